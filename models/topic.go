package models

// Topic ist ein festes (Query, Source-Tag)-Paar für die Feed-Sammlung.
type Topic struct {
	Tag      string   `json:"tag"`
	Query    string   `json:"query"`
	Category Category `json:"category,omitempty"`
}

// DefaultTopics ist die gebundene Themenliste der Sammel-Läufe.
var DefaultTopics = []Topic{
	{Tag: "popup", Query: "서울 팝업스토어", Category: CategoryPopup},
	{Tag: "traffic", Query: "서울 교통 통제", Category: CategoryTraffic},
	{Tag: "weather", Query: "서울 날씨 특보", Category: CategoryWeather},
	{Tag: "hotspot", Query: "서울 핫플레이스", Category: CategoryHotspot},
	{Tag: "tip", Query: "서울 생활 꿀팁", Category: CategoryLocalTip},
	{Tag: "density", Query: "서울 인파 밀집", Category: CategoryDensity},
	{Tag: "issue", Query: "서울 이슈", Category: CategoryNewsIssue},
}
