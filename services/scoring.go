package services

import (
	"math"
	"strings"

	"seoul-cards/models"
)

// ScoringTable bündelt die Gewichtstabellen des Scorers. Die Tabellen sind
// unveränderliche Konfiguration und werden bei Konstruktion injiziert.
type ScoringTable struct {
	Keywords    map[string]float64
	DomainTrust map[string]float64
	GeoBonus    float64
}

// DefaultScoringTable sind die handgepflegten Gewichte der Produktion.
func DefaultScoringTable() ScoringTable {
	return ScoringTable{
		Keywords: map[string]float64{
			"팝업":         2.0,
			"pop-up":     2.0,
			"popup":      1.8,
			"전시":         1.5,
			"festival":   1.5,
			"축제":         1.5,
			"exhibition": 1.3,
			"핫플":         1.2,
			"hotspot":    1.2,
			"통제":         1.0,
			"traffic":    1.0,
			"지연":         0.8,
			"무료":         0.8,
			"weekend":    0.6,
			"주말":         0.6,
			"event":      0.5,
			"행사":         0.5,
		},
		DomainTrust: map[string]float64{
			"seoul.go.kr":   2.0,
			"korea.kr":      1.8,
			"yna.co.kr":     1.5,
			"yonhapnews.kr": 1.5,
			"news.kbs.co.kr": 1.2,
			"hani.co.kr":    1.0,
			"chosun.com":    1.0,
			"joongang.co.kr": 1.0,
			"visitseoul.net": 0.8,
			"news.google.com": 0.2,
		},
		GeoBonus: 0.5,
	}
}

// Score ist eine reine, deterministische Bewertungsfunktion.
// Basis 1.0 plus Keyword-, Domain- und Geo-Boni, gerundet auf eine
// Nachkommastelle. Darf auf jeder Stufe erneut ausgeführt werden.
func (t ScoringTable) Score(title, summary string, tags []string, domain string, hasGeo bool) float64 {
	text := strings.ToLower(title + " " + summary + " " + strings.Join(tags, " "))

	score := 1.0
	for kw, weight := range t.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			score += weight
		}
	}

	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))
	for trusted, bonus := range t.DomainTrust {
		if domain == trusted || strings.HasSuffix(domain, "."+trusted) {
			score += bonus
			break
		}
	}

	if hasGeo {
		score += t.GeoBonus
	}

	return math.Round(score*10) / 10
}

// classRule ist eine priorisierte Mustergruppe der Klassifikation.
type classRule struct {
	category models.Category
	cues     []string
}

// classRules in Prioritätsreihenfolge: Popup-Signale schlagen Verkehr,
// Verkehr schlägt Wetter usw.; Fallback ist news-issue.
var classRules = []classRule{
	{models.CategoryPopup, []string{"팝업", "pop-up", "popup", "전시", "exhibition", "페스티벌", "festival", "축제"}},
	{models.CategoryTraffic, []string{"교통", "통제", "지하철", "버스", "traffic", "congestion", "도로", "지연"}},
	{models.CategoryWeather, []string{"날씨", "weather", "폭염", "한파", "장마", "미세먼지", "폭설", "태풍"}},
	{models.CategoryDensity, []string{"인파", "밀집", "혼잡", "crowd", "붐비"}},
	{models.CategoryLocalTip, []string{"꿀팁", "tip", "추천", "방법", "할인"}},
	{models.CategoryHotspot, []string{"핫플", "hotspot", "맛집", "명소", "카페"}},
}

// Classify ordnet Titel+Summary einer Kategorie zu (first-match-wins).
func Classify(title, summary string) models.Category {
	text := strings.ToLower(title + " " + summary)
	for _, rule := range classRules {
		for _, cue := range rule.cues {
			if strings.Contains(text, strings.ToLower(cue)) {
				return rule.category
			}
		}
	}
	return models.CategoryNewsIssue
}
