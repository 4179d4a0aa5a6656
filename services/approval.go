package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"seoul-cards/models"
	"seoul-cards/storage"
)

// maxTags begrenzt die Tag-Anzahl pro Card.
const maxTags = 8

// ApprovalRules sind die handgepflegten Freigaberegeln.
type ApprovalRules struct {
	TrustedDomains    []string
	SensitiveKeywords []string
}

// DefaultApprovalRules: Auto-Freigabe nur für vertrauenswürdige Domains
// und nur ohne sensible Begriffe (inkl. koreanischer Entsprechungen).
func DefaultApprovalRules() ApprovalRules {
	return ApprovalRules{
		TrustedDomains: []string{
			"seoul.go.kr",
			"korea.kr",
			"yna.co.kr",
			"visitseoul.net",
			"kma.go.kr",
		},
		SensitiveKeywords: []string{
			"politics", "protest", "scandal", "accident", "death",
			"정치", "시위", "스캔들", "사고", "사망",
		},
	}
}

// ApprovalService wendet die Freigaberegeln auf Inbox-Cards an und
// re-deriviert Kategorie, Score, Geo und Tags bei jeder Freigabe.
type ApprovalService struct {
	rules   ApprovalRules
	scoring ScoringTable
	geo     *GeoResolver
	store   storage.CardStore
	logger  *zap.Logger
}

// NewApprovalService erstellt das Approval-Gate.
func NewApprovalService(rules ApprovalRules, scoring ScoringTable, geo *GeoResolver, store storage.CardStore, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{rules: rules, scoring: scoring, geo: geo, store: store, logger: logger}
}

// RunAutoApproval prüft alle pending Cards und gibt die Zahl der
// automatisch freigegebenen zurück.
func (a *ApprovalService) RunAutoApproval(ctx context.Context) (int, error) {
	cards, err := a.store.Load(storage.CollectionInbox)
	if err != nil {
		return 0, err
	}

	approved := 0
	for i := range cards {
		if cards[i].Status != models.StatusPending {
			continue
		}
		if !a.Eligible(&cards[i]) {
			continue
		}
		a.rederive(ctx, &cards[i])
		if err := cards[i].Transition(models.StatusApproved); err != nil {
			a.logger.Warn("auto-approval transition rejected",
				zap.String("id", cards[i].ID), zap.Error(err))
			continue
		}
		approved++
	}

	if approved > 0 {
		if err := a.store.Save(storage.CollectionInbox, cards); err != nil {
			return 0, err
		}
	}
	a.logger.Info("auto-approval pass finished", zap.Int("approved", approved))
	return approved, nil
}

// Approve gibt eine einzelne Card manuell frei.
func (a *ApprovalService) Approve(ctx context.Context, id string) (*models.Card, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("card id is required")
	}
	cards, err := a.store.Load(storage.CollectionInbox)
	if err != nil {
		return nil, err
	}
	for i := range cards {
		if cards[i].ID != id {
			continue
		}
		if len(cards[i].Sources) == 0 {
			return nil, fmt.Errorf("card %s has no sources", id)
		}
		a.rederive(ctx, &cards[i])
		if err := cards[i].Transition(models.StatusApproved); err != nil {
			return nil, err
		}
		if err := a.store.Save(storage.CollectionInbox, cards); err != nil {
			return nil, err
		}
		return &cards[i], nil
	}
	return nil, fmt.Errorf("card %s not found in inbox", id)
}

// Eligible prüft die drei Auto-Freigabe-Bedingungen:
// vertrauenswürdige Quelle, keine sensiblen Begriffe, mindestens eine Quelle.
func (a *ApprovalService) Eligible(card *models.Card) bool {
	if len(card.Sources) == 0 {
		return false
	}

	trusted := false
	for _, src := range card.Sources {
		domain := sourceDomain(src.URL)
		for _, td := range a.rules.TrustedDomains {
			if domain == td || strings.HasSuffix(domain, "."+td) {
				trusted = true
				break
			}
		}
		if trusted {
			break
		}
	}
	if !trusted {
		return false
	}

	text := strings.ToLower(card.Title + " " + card.Summary)
	for _, kw := range a.rules.SensitiveKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// rederive berechnet die ableitbaren Felder neu. Die Klassifikation ist
// nicht sticky: die neu abgeleitete Kategorie gewinnt immer.
func (a *ApprovalService) rederive(ctx context.Context, card *models.Card) {
	card.Category = Classify(card.Title, card.Summary)

	pageURL := ""
	if len(card.Sources) > 0 {
		pageURL = card.Sources[0].URL
	}
	card.Geo = a.geo.ResolveFromPage(ctx, pageURL, card.Title+" "+card.Summary)

	card.Tags = ExtractTags(card)
	card.Score = a.scoring.Score(card.Title, card.Summary, card.Tags, card.PrimaryDomain(), card.Geo != nil)
}

// reTransitLine erkennt nummerierte U-Bahn-Linien in beiden Schreibweisen.
var reTransitLine = regexp.MustCompile(`(?i)(?:line\s*([0-9]{1,2})|([0-9]{1,2})\s*호선)`)

// tagCues sind Schlagwort-getriggerte Tags, in fester Reihenfolge.
var tagCues = []struct {
	tag  string
	cues []string
}{
	{"popup", []string{"팝업", "popup", "pop-up"}},
	{"festival", []string{"축제", "festival", "페스티벌"}},
	{"traffic", []string{"교통", "통제", "traffic"}},
	{"weekend", []string{"주말", "weekend"}},
}

// ExtractTags vereinigt bestehende Tags mit Keyword-, Linien-, Kategorie-
// und Area-Tags, gedeckelt auf maxTags.
func ExtractTags(card *models.Card) []string {
	text := strings.ToLower(card.Title + " " + card.Summary)

	seen := map[string]bool{}
	var tags []string
	add := func(tag string) {
		tag = strings.TrimSpace(strings.ToLower(tag))
		if tag == "" || seen[tag] || len(tags) >= maxTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, t := range card.Tags {
		add(t)
	}
	for _, tc := range tagCues {
		for _, cue := range tc.cues {
			if strings.Contains(text, cue) {
				add(tc.tag)
				break
			}
		}
	}
	if m := reTransitLine.FindStringSubmatch(card.Title + " " + card.Summary); m != nil {
		num := m[1]
		if num == "" {
			num = m[2]
		}
		add("line-" + num)
	}
	add(string(card.Category))
	if card.Geo != nil {
		add(AreaSlug(card.Geo.Area))
	}

	return tags
}

func sourceDomain(rawURL string) string {
	u := strings.TrimPrefix(rawURL, "https://")
	u = strings.TrimPrefix(u, "http://")
	if idx := strings.IndexAny(u, "/?#"); idx >= 0 {
		u = u[:idx]
	}
	return strings.TrimPrefix(strings.ToLower(u), "www.")
}
