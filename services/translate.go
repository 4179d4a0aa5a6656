package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// chunkThreshold: längere Texte werden satzweise übersetzt.
	chunkThreshold = 600
	// maxSubmitLength: längere Chunks gehen direkt in den Keyword-Fallback.
	maxSubmitLength = 1800
	// chunkDelay schont die Rate-Limits der öffentlichen Endpunkte.
	chunkDelay = 120 * time.Millisecond

	translateTimeout = 25 * time.Second
)

// TranslationBackend ist ein einzelner Übersetzungsdienst der Kette.
type TranslationBackend interface {
	Name() string
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// TranslationChain probiert Backends in fester Reihenfolge und fällt als
// letzte Stufe auf eine statische Keyword-Tabelle zurück. Translate liefert
// daher immer einen String und niemals einen Fehler nach außen.
type TranslationChain struct {
	backends []TranslationBackend
	fallback *KeywordTranslator
	logger   *zap.Logger
}

// NewTranslationChain baut die Standard-Kette: lokaler Dienst, öffentliche
// Endpunkte, Wörterbuch-API, Keyword-Tabelle.
func NewTranslationChain(localURL string, logger *zap.Logger) *TranslationChain {
	client := &http.Client{Timeout: translateTimeout}
	backends := []TranslationBackend{}
	if localURL != "" {
		backends = append(backends, &LibreTranslateBackend{name: "local", endpoint: localURL, client: client})
	}
	for i, endpoint := range publicTranslateEndpoints {
		backends = append(backends, &LibreTranslateBackend{
			name:     fmt.Sprintf("public-%d", i+1),
			endpoint: endpoint,
			client:   client,
		})
	}
	backends = append(backends, &MyMemoryBackend{client: client})

	return &TranslationChain{
		backends: backends,
		fallback: NewKeywordTranslator(),
		logger:   logger,
	}
}

// NewTranslationChainWith erlaubt Tests, die Backend-Liste zu injizieren.
func NewTranslationChainWith(backends []TranslationBackend, logger *zap.Logger) *TranslationChain {
	return &TranslationChain{
		backends: backends,
		fallback: NewKeywordTranslator(),
		logger:   logger,
	}
}

// publicTranslateEndpoints sind die fest hinterlegten öffentlichen Instanzen.
var publicTranslateEndpoints = []string{
	"https://libretranslate.de/translate",
	"https://translate.argosopentech.com/translate",
}

// Translate übersetzt text von source nach target. Lange Eingaben werden
// in Satz-Chunks zerlegt und einzeln übersetzt.
func (tc *TranslationChain) Translate(ctx context.Context, text, source, target string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	if len(text) <= chunkThreshold {
		return tc.translateChunk(ctx, text, source, target)
	}

	chunks := splitSentences(text)
	out := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-ctx.Done():
				// Restliche Chunks nur noch über die Keyword-Tabelle.
				out = append(out, tc.fallback.Translate(chunk))
				continue
			case <-time.After(chunkDelay):
			}
		}
		out = append(out, tc.translateChunk(ctx, chunk, source, target))
	}
	return strings.Join(out, " ")
}

// translateChunk probiert die Backend-Kette für einen einzelnen Chunk.
// Liefert ein Backend den Eingabetext unverändert zurück (stilles Echo),
// wird einmal mit automatischer Spracherkennung nachgefasst.
func (tc *TranslationChain) translateChunk(ctx context.Context, text, source, target string) string {
	if len(text) > maxSubmitLength {
		return tc.fallback.Translate(text)
	}

	for _, backend := range tc.backends {
		result, err := backend.Translate(ctx, text, source, target)
		if err != nil {
			tc.logger.Debug("translation backend failed",
				zap.String("backend", backend.Name()), zap.Error(err))
			continue
		}
		if usable(result, text) {
			return result
		}
		// Echo erkannt: einmal mit auto-detect nachfassen.
		result, err = backend.Translate(ctx, text, "auto", target)
		if err == nil && usable(result, text) {
			return result
		}
	}
	return tc.fallback.Translate(text)
}

func usable(result, input string) bool {
	result = strings.TrimSpace(result)
	return result != "" && !strings.EqualFold(result, strings.TrimSpace(input))
}

// LibreTranslateBackend spricht das {q, source, target, format}-Protokoll.
type LibreTranslateBackend struct {
	name     string
	endpoint string
	client   *http.Client
}

func (b *LibreTranslateBackend) Name() string { return b.name }

func (b *LibreTranslateBackend) Translate(ctx context.Context, text, source, target string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"q":      text,
		"source": source,
		"target": target,
		"format": "text",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translate error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.TranslatedText, nil
}

// MyMemoryBackend ist der Wörterbuch-artige letzte Netzwerk-Versuch.
type MyMemoryBackend struct {
	client *http.Client
}

func (b *MyMemoryBackend) Name() string { return "mymemory" }

func (b *MyMemoryBackend) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "auto" {
		// MyMemory kennt keine automatische Erkennung.
		source = "en"
	}
	endpoint := fmt.Sprintf("https://api.mymemory.translated.net/get?q=%s&langpair=%s|%s",
		url.QueryEscape(text), source, target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mymemory error %s", resp.Status)
	}

	var parsed struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.ResponseData.TranslatedText, nil
}

// KeywordTranslator ersetzt bekannte Phrasen und Ortsnamen per Tabelle.
// Längere Phrasen werden zuerst ersetzt, damit Mehrwort-Einträge nicht
// von Einzelwörtern überschattet werden. Unbekannter Text bleibt stehen.
type KeywordTranslator struct {
	phrases []phrasePair
}

type phrasePair struct {
	re *regexp.Regexp
	to string
}

// NewKeywordTranslator baut die en→fr-Ersetzungstabelle auf.
func NewKeywordTranslator() *KeywordTranslator {
	table := map[string]string{
		"hey guys":         "Salut les amis",
		"welcome to seoul": "bienvenue à Séoul",
		"this weekend":     "ce week-end",
		"this week":        "cette semaine",
		"free entry":       "entrée gratuite",
		"pop-up store":     "boutique éphémère",
		"popup store":      "boutique éphémère",
		"pop-up":           "éphémère",
		"good news":        "bonne nouvelle",
		"heads up":         "attention",
		"don't miss":       "à ne pas manquer",
		"subway line":      "ligne de métro",
		"city hall":        "hôtel de ville",
		"han river":        "fleuve Han",
		"seongsu-dong":     "Seongsu-dong",
		"weather":          "météo",
		"traffic":          "circulation",
		"festival":         "festival",
		"exhibition":       "exposition",
		"neighborhood":     "quartier",
		"today":            "aujourd'hui",
		"tomorrow":         "demain",
		"open":             "ouvert",
		"closed":           "fermé",
		"free":             "gratuit",
		"new":              "nouveau",
	}

	froms := make([]string, 0, len(table))
	for from := range table {
		froms = append(froms, from)
	}
	sort.Slice(froms, func(i, j int) bool {
		if len(froms[i]) != len(froms[j]) {
			return len(froms[i]) > len(froms[j])
		}
		return froms[i] < froms[j]
	})

	phrases := make([]phrasePair, 0, len(froms))
	for _, from := range froms {
		// Wortgrenzen, damit kurze Einträge keine Wortteile ersetzen.
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(from) + `\b`)
		phrases = append(phrases, phrasePair{re: re, to: table[from]})
	}
	return &KeywordTranslator{phrases: phrases}
}

// Translate wendet die Tabelle case-insensitiv an.
func (k *KeywordTranslator) Translate(text string) string {
	for _, p := range k.phrases {
		text = p.re.ReplaceAllString(text, p.to)
	}
	return text
}
