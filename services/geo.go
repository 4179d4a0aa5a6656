package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"seoul-cards/models"
)

// GazetteerEntry mappt Namensvarianten eines Viertels auf Label + Koordinate.
type GazetteerEntry struct {
	Variants []string
	Area     string
	Lat, Lng float64
}

// DefaultGazetteer ist die statische, geordnete Ortsliste. First-match-wins,
// spezifischere Viertel stehen deshalb vor den Bezirken.
var DefaultGazetteer = []GazetteerEntry{
	{[]string{"성수동", "성수", "seongsu-dong", "seongsu"}, "Seongsu-dong", 37.5446, 127.0559},
	{[]string{"홍대", "홍익대", "hongdae"}, "Hongdae", 37.5563, 126.9220},
	{[]string{"이태원", "itaewon"}, "Itaewon", 37.5345, 126.9946},
	{[]string{"연남동", "연남", "yeonnam-dong", "yeonnam"}, "Yeonnam-dong", 37.5609, 126.9256},
	{[]string{"망원동", "망원", "mangwon"}, "Mangwon-dong", 37.5556, 126.9016},
	{[]string{"한남동", "한남", "hannam"}, "Hannam-dong", 37.5357, 127.0020},
	{[]string{"압구정", "apgujeong"}, "Apgujeong", 37.5274, 127.0286},
	{[]string{"가로수길", "garosu-gil", "garosugil"}, "Garosu-gil", 37.5199, 127.0230},
	{[]string{"여의도", "yeouido"}, "Yeouido", 37.5219, 126.9245},
	{[]string{"북촌", "bukchon"}, "Bukchon", 37.5826, 126.9850},
	{[]string{"익선동", "ikseon-dong", "ikseon"}, "Ikseon-dong", 37.5718, 126.9898},
	{[]string{"을지로", "euljiro"}, "Euljiro", 37.5662, 126.9910},
	{[]string{"강남", "gangnam"}, "Gangnam", 37.4979, 127.0276},
	{[]string{"잠실", "jamsil"}, "Jamsil", 37.5133, 127.1001},
	{[]string{"명동", "myeongdong", "myeong-dong"}, "Myeongdong", 37.5637, 126.9827},
	{[]string{"종로", "jongno"}, "Jongno", 37.5729, 126.9794},
	{[]string{"서울", "seoul"}, "Seoul", 37.5665, 126.9780},
}

// maxPageScan begrenzt, wie viel Seitentext nach Ortsnamen durchsucht wird.
const maxPageScan = 6000

// GeoResolver löst best-effort eine Viertel-/Stadtreferenz auf.
type GeoResolver struct {
	gazetteer []GazetteerEntry
	client    *http.Client
	logger    *zap.Logger
}

// NewGeoResolver erstellt einen Resolver mit injiziertem Gazetteer.
func NewGeoResolver(gazetteer []GazetteerEntry, client *http.Client, logger *zap.Logger) *GeoResolver {
	return &GeoResolver{gazetteer: gazetteer, client: client, logger: logger}
}

// Resolve durchsucht den Text nach Ortsnamen, first-match-wins.
func (g *GeoResolver) Resolve(text string) *models.GeoPoint {
	if len(text) > maxPageScan {
		text = text[:maxPageScan]
	}
	lower := strings.ToLower(text)
	for _, entry := range g.gazetteer {
		for _, variant := range entry.Variants {
			if strings.Contains(lower, strings.ToLower(variant)) {
				return &models.GeoPoint{Area: entry.Area, Lat: entry.Lat, Lng: entry.Lng}
			}
		}
	}
	return nil
}

// ResolveFromPage holt die Artikelseite und durchsucht deren Text.
// Jeder Abruf-Fehler degradiert zu "kein Geo" und dem Titel/Summary-Fallback.
func (g *GeoResolver) ResolveFromPage(ctx context.Context, pageURL, fallbackText string) *models.GeoPoint {
	if pageURL != "" {
		if text := g.fetchPageText(ctx, pageURL); text != "" {
			if geo := g.Resolve(text); geo != nil {
				return geo
			}
		}
	}
	return g.Resolve(fallbackText)
}

func (g *GeoResolver) fetchPageText(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("geo page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}
	body := doc.Find("body")
	body.Find("script, style, nav, footer").Remove()

	text := strings.TrimSpace(body.Text())
	if len(text) > maxPageScan {
		text = text[:maxPageScan]
	}
	return text
}

// AreaSlug normalisiert ein Area-Label zu einem dash-case Tag.
func AreaSlug(area string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(area), " ", "-"))
}
