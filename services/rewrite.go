package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"seoul-cards/models"
)

const (
	// originalityThreshold: darunter wird nicht publiziert.
	originalityThreshold = 0.7

	rewriteTimeout = 120 * time.Second
	maxNumPredict  = 1400
	minBodyLength  = 600

	sentinel = "END_OF_CARD"
)

// RewriteRequest ist der Ollama-kompatible Generate-Request.
type RewriteRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options RewriteOptions `json:"options"`
}

type RewriteOptions struct {
	Temperature float64  `json:"temperature"`
	NumPredict  int      `json:"num_predict"`
	Stop        []string `json:"stop"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// RewriteResult ist das Ergebnis eines Rewrite-Aufrufs.
type RewriteResult struct {
	Title       string
	Summary     string
	Body        string
	Tags        []string
	Confidence  float64
	Originality float64
	// Fallback markiert, dass Template-Inhalte eingesetzt wurden und der
	// Artikel manuell geprüft werden muss.
	Fallback bool
}

// RewriteService ruft das lokale generative Backend auf und validiert
// die textuelle Originalität des Ergebnisses.
type RewriteService struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewRewriteService erstellt die Rewrite-Engine.
func NewRewriteService(baseURL, model string, logger *zap.Logger) *RewriteService {
	return &RewriteService{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: rewriteTimeout},
		logger:  logger,
	}
}

// Rewrite erzeugt eine vollständig neu formulierte englische Fassung.
// Transport- und Parse-Fehler führen zu Template-Fallback-Inhalten,
// niemals zu einer leeren Card ("never empty-handed").
func (r *RewriteService) Rewrite(ctx context.Context, card *models.Card, targetLength int) RewriteResult {
	if targetLength < minBodyLength {
		targetLength = minBodyLength
	}
	sourceURL := ""
	if len(card.Sources) > 0 {
		sourceURL = card.Sources[0].URL
	}
	prompt := buildPrompt(card.Title, card.Summary, sourceURL, card.Category, targetLength)

	raw, err := r.generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("generation backend failed, using template fallback",
			zap.String("id", card.ID), zap.Error(err))
		result := templateFallback(card)
		result.Originality = Originality(result.Summary+" "+result.Body, card.Title+" "+card.Summary)
		return result
	}

	d, usedFallback := parseDraft(raw)
	fillEmptySections(&d, card)

	result := RewriteResult{
		Title:      d.title,
		Summary:    d.summary,
		Body:       d.body,
		Tags:       d.tags,
		Confidence: d.confidence,
		Fallback:   usedFallback && d.confidence == 0,
	}
	result.Originality = Originality(result.Summary+" "+result.Body, card.Title+" "+card.Summary)
	return result
}

// buildPrompt baut den Abschnitts-Prompt mit fester Persona und Sentinel.
func buildPrompt(title, summary, sourceURL string, category models.Category, targetLength int) string {
	var b strings.Builder
	b.WriteString("You are a friendly local guide writing for visitors and expats in Seoul.\n")
	b.WriteString("Write a completely new article in English about the news below.\n")
	b.WriteString("Do NOT copy phrases from the source. Use your own wording throughout.\n\n")
	fmt.Fprintf(&b, "Category: %s\n", category)
	fmt.Fprintf(&b, "Source title: %s\n", title)
	fmt.Fprintf(&b, "Source summary: %s\n", summary)
	if sourceURL != "" {
		fmt.Fprintf(&b, "Source link: %s\n", sourceURL)
	}
	fmt.Fprintf(&b, "\nThe CONTENT section must be at least %d characters long.\n", targetLength)
	b.WriteString("Respond in exactly this format:\n\n")
	b.WriteString("TITLE: <new title>\n")
	b.WriteString("SUMMARY: <two sentences>\n")
	b.WriteString("CONTENT: <the full article>\n")
	b.WriteString("TAGS: <comma separated tags>\n")
	b.WriteString(sentinel + "\n")
	return b.String()
}

func (r *RewriteService) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(RewriteRequest{
		Model:  r.model,
		Prompt: prompt,
		Stream: false,
		Options: RewriteOptions{
			Temperature: 0.7,
			NumPredict:  maxNumPredict,
			Stop:        []string{sentinel},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("generate error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if strings.TrimSpace(gr.Response) == "" {
		return "", fmt.Errorf("empty generate response")
	}
	return gr.Response, nil
}

// draft ist das Zwischenergebnis des Parsers.
type draft struct {
	title      string
	summary    string
	body       string
	tags       []string
	confidence float64
}

// parseStrategy versucht, einen Draft aus der Rohantwort zu gewinnen.
// Strategien werden der Reihe nach probiert, bis eine vollständig greift.
type parseStrategy func(raw string) (draft, bool)

var parseStrategies = []parseStrategy{
	parseStrictSections,
	parseOpeningPhrase,
	parseLongestSentences,
}

// parseDraft wendet die Strategien in Reihenfolge an. Das zweite Ergebnis
// meldet, ob auf eine Fallback-Strategie ausgewichen werden musste.
func parseDraft(raw string) (draft, bool) {
	for i, strategy := range parseStrategies {
		if d, ok := strategy(raw); ok {
			return d, i > 0
		}
	}
	return draft{}, true
}

var reSectionHeader = regexp.MustCompile(`(?m)^\s*\*{0,2}(TITLE|SUMMARY|CONTENT|TAGS)\*{0,2}\s*:\s*\*{0,2}\s*`)

// parseStrictSections erwartet die vier Abschnitts-Header, auch in den
// Markdown-Fett-Varianten (**TITLE:** und **TITLE**:).
func parseStrictSections(raw string) (draft, bool) {
	locs := reSectionHeader.FindAllStringSubmatchIndex(raw, -1)
	if len(locs) == 0 {
		return draft{}, false
	}

	sections := map[string]string{}
	for i, loc := range locs {
		name := raw[loc[2]:loc[3]]
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		value := raw[loc[1]:end]
		if idx := strings.Index(value, sentinel); idx >= 0 {
			value = value[:idx]
		}
		sections[name] = strings.TrimSpace(value)
	}

	d := draft{
		title:      sections["TITLE"],
		summary:    sections["SUMMARY"],
		body:       sections["CONTENT"],
		tags:       splitTags(sections["TAGS"]),
		confidence: 0.9,
	}
	if d.title == "" || d.summary == "" || d.body == "" {
		return draft{}, false
	}
	return d, true
}

// openingPhrases sind typische Artikelanfänge, an denen der Fließtext
// beginnt, wenn das Modell die Header weggelassen hat.
var openingPhrases = []string{
	"Hey guys", "Hey there", "Good news", "Big news", "Heads up",
	"If you", "This week", "This weekend", "Seoul",
}

func parseOpeningPhrase(raw string) (draft, bool) {
	cleaned := strings.TrimSpace(stripSentinel(raw))
	start := -1
	for _, phrase := range openingPhrases {
		if idx := strings.Index(cleaned, phrase); idx >= 0 && (start < 0 || idx < start) {
			start = idx
		}
	}
	if start < 0 {
		return draft{}, false
	}

	body := strings.TrimSpace(cleaned[start:])
	if body == "" {
		return draft{}, false
	}
	sentences := splitSentences(body)
	if len(sentences) == 0 {
		return draft{}, false
	}

	d := draft{
		title:      firstSentence(sentences),
		summary:    strings.Join(firstN(sentences, 2), " "),
		body:       body,
		confidence: 0.5,
	}
	return d, true
}

// parseLongestSentences setzt als letzte Parsing-Stufe die längsten Sätze
// der Rohantwort zu einem Body zusammen.
func parseLongestSentences(raw string) (draft, bool) {
	sentences := splitSentences(stripSentinel(raw))
	if len(sentences) == 0 {
		return draft{}, false
	}

	sorted := append([]string{}, sentences...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	if len(sorted) > 6 {
		sorted = sorted[:6]
	}

	d := draft{
		title:      firstSentence(sentences),
		summary:    firstSentence(sorted),
		body:       strings.Join(sorted, " "),
		confidence: 0.2,
	}
	return d, true
}

// Template-Texte für Felder, die nach allen Fallbacks leer bleiben.
const (
	templateTitle   = "What's happening in Seoul"
	templateSummary = "Something interesting is going on in the city. Check the source below for details."
	templateBody    = "We picked up a local story worth knowing about, but our writing assistant could not produce a full article this time. The source link below has the original coverage, and this card will be refreshed once a proper write-up is available."
)

// fillEmptySections ersetzt leere Felder durch generische Templates —
// die Engine liefert nie eine Card mit leerem Titel oder Body aus.
func fillEmptySections(d *draft, card *models.Card) {
	if strings.TrimSpace(d.title) == "" {
		d.title = templateTitle
	}
	if strings.TrimSpace(d.summary) == "" {
		d.summary = templateSummary
	}
	if strings.TrimSpace(d.body) == "" {
		d.body = templateBody
	}
	if len(d.tags) == 0 {
		d.tags = card.Tags
	}
}

// templateFallback ist das Ergebnis bei Transport-/Backend-Fehlern.
func templateFallback(card *models.Card) RewriteResult {
	return RewriteResult{
		Title:    templateTitle,
		Summary:  templateSummary,
		Body:     templateBody,
		Tags:     card.Tags,
		Fallback: true,
	}
}

// Originality ist 1 − Token-Set-Jaccard-Ähnlichkeit beider Texte.
// Deterministisch und ohne Netzzugriff aufrufbar; identische Texte
// ergeben 0, disjunkte Texte 1.
func Originality(rewritten, original string) float64 {
	a := tokenSet(rewritten)
	b := tokenSet(original)
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 || len(b) == 0 {
		return 1
	}

	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return 1 - float64(intersection)/float64(union)
}

// OriginalityThreshold liefert die feste Publikationsschwelle.
func OriginalityThreshold() float64 {
	return originalityThreshold
}

var reToken = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range reToken.FindAllString(strings.ToLower(text), -1) {
		set[tok] = true
	}
	return set
}

var reSentenceEnd = regexp.MustCompile(`([.!?])\s+`)

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := reSentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstSentence(sentences []string) string {
	if len(sentences) == 0 {
		return ""
	}
	return strings.TrimRight(sentences[0], ".!?")
}

func firstN(sentences []string, n int) []string {
	if len(sentences) < n {
		return sentences
	}
	return sentences[:n]
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.Trim(strings.TrimSpace(p), "#"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stripSentinel(raw string) string {
	if idx := strings.Index(raw, sentinel); idx >= 0 {
		return raw[:idx]
	}
	return raw
}
