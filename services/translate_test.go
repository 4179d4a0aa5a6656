package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubBackend ist ein skriptbares Test-Backend.
type stubBackend struct {
	name      string
	translate func(text, source, target string) (string, error)
	calls     int
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Translate(_ context.Context, text, source, target string) (string, error) {
	s.calls++
	return s.translate(text, source, target)
}

func failing(name string) *stubBackend {
	return &stubBackend{name: name, translate: func(string, string, string) (string, error) {
		return "", errors.New("backend down")
	}}
}

func prefixing(name string) *stubBackend {
	return &stubBackend{name: name, translate: func(text, _, _ string) (string, error) {
		return "fr:" + text, nil
	}}
}

func TestTranslateEmptyInputPassesThrough(t *testing.T) {
	chain := NewTranslationChainWith(nil, zap.NewNop())
	assert.Equal(t, "", chain.Translate(context.Background(), "", "en", "fr"))
	assert.Equal(t, "   ", chain.Translate(context.Background(), "   ", "en", "fr"))
}

func TestTranslateFirstBackendWins(t *testing.T) {
	first := prefixing("first")
	second := prefixing("second")
	chain := NewTranslationChainWith([]TranslationBackend{first, second}, zap.NewNop())

	got := chain.Translate(context.Background(), "hello", "en", "fr")
	assert.Equal(t, "fr:hello", got)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestTranslateSkipsFailingBackends(t *testing.T) {
	broken := failing("broken")
	working := prefixing("working")
	chain := NewTranslationChainWith([]TranslationBackend{broken, working}, zap.NewNop())

	got := chain.Translate(context.Background(), "hello", "en", "fr")
	assert.Equal(t, "fr:hello", got)
	assert.Equal(t, 1, broken.calls)
}

func TestTranslateEchoTriggersAutoRetry(t *testing.T) {
	// Backend gibt die Eingabe unverändert zurück, bis source=auto gesetzt ist.
	echoThenFix := &stubBackend{name: "echo"}
	echoThenFix.translate = func(text, source, _ string) (string, error) {
		if source == "auto" {
			return "fr:" + text, nil
		}
		return text, nil
	}
	chain := NewTranslationChainWith([]TranslationBackend{echoThenFix}, zap.NewNop())

	got := chain.Translate(context.Background(), "hello world", "en", "fr")
	assert.Equal(t, "fr:hello world", got)
	assert.Equal(t, 2, echoThenFix.calls)
}

func TestTranslateStubbornEchoFallsThrough(t *testing.T) {
	echo := &stubBackend{name: "echo", translate: func(text, _, _ string) (string, error) {
		return text, nil
	}}
	chain := NewTranslationChainWith([]TranslationBackend{echo}, zap.NewNop())

	// Kette erschöpft: Keyword-Tabelle übernimmt und übersetzt bekannte Phrasen.
	got := chain.Translate(context.Background(), "traffic update", "en", "fr")
	assert.Equal(t, "circulation update", got)
}

func TestTranslateAllBackendsDeadNeverReturnsEmpty(t *testing.T) {
	chain := NewTranslationChainWith([]TranslationBackend{failing("a"), failing("b")}, zap.NewNop())

	got := chain.Translate(context.Background(), "Hey guys! Welcome to Seoul, check out this pop-up store.", "en", "fr")
	assert.Equal(t, "Salut les amis! bienvenue à Séoul, check out this boutique éphémère.", got)
	assert.NotEmpty(t, got)
}

func TestTranslateKeywordFallbackKeepsUnknownText(t *testing.T) {
	chain := NewTranslationChainWith([]TranslationBackend{failing("a")}, zap.NewNop())

	got := chain.Translate(context.Background(), "completely unknown words", "en", "fr")
	assert.Equal(t, "completely unknown words", got)
}

func TestTranslateChunksLongText(t *testing.T) {
	backend := prefixing("chunky")
	chain := NewTranslationChainWith([]TranslationBackend{backend}, zap.NewNop())

	sentence := strings.Repeat("word ", 70) + "end."
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 3))
	require.Greater(t, len(text), chunkThreshold)

	got := chain.Translate(context.Background(), text, "en", "fr")
	assert.Equal(t, 3, backend.calls, "each sentence chunk goes through the chain")
	assert.Equal(t, 3, strings.Count(got, "fr:"))
}

func TestTranslateOversizedChunkGoesToFallback(t *testing.T) {
	backend := prefixing("never-called")
	chain := NewTranslationChainWith([]TranslationBackend{backend}, zap.NewNop())

	// Ein einzelner Satz ohne Satzende, länger als das Submit-Limit.
	text := strings.Repeat("weather ", 300)
	require.Greater(t, len(text), maxSubmitLength)

	got := chain.Translate(context.Background(), text, "en", "fr")
	assert.Equal(t, 0, backend.calls)
	assert.Contains(t, got, "météo")
}

func TestKeywordTranslatorLongestPhraseFirst(t *testing.T) {
	kt := NewKeywordTranslator()

	// "pop-up store" darf nicht vorab von "pop-up" zerlegt werden.
	assert.Equal(t, "boutique éphémère", kt.Translate("pop-up store"))
	assert.Equal(t, "éphémère", kt.Translate("pop-up"))
}

func TestKeywordTranslatorWordBoundaries(t *testing.T) {
	kt := NewKeywordTranslator()

	// "open" in "opening" bleibt unangetastet.
	assert.Equal(t, "the opening ceremony", kt.Translate("the opening ceremony"))
	assert.Equal(t, "ouvert daily", kt.Translate("open daily"))
}
