package providers

import (
	"context"

	"seoul-cards/models"
)

// Provider ist das Interface, das jede Feed-Quelle implementieren muss.
type Provider interface {
	// Fetch holt Kandidaten für ein Topic und normalisiert sie zu Cards.
	Fetch(ctx context.Context, topic models.Topic) ([]models.Card, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "googlenews").
	Name() string
}
