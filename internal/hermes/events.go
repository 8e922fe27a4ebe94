package hermes

import "time"

type BuildComputedEvent struct {
	BuildID   string             `json:"build_id"`
	Mode      string             `json:"mode"`
	Objective string             `json:"objective,omitempty"`
	Driver    string             `json:"driver"`
	Body      string             `json:"body"`
	Tire      string             `json:"tire"`
	Glider    string             `json:"glider"`
	Score     *float64           `json:"score,omitempty"`
	Grip      *float64           `json:"grip,omitempty"`
	Totals    map[string]float64 `json:"totals"`
	Timestamp time.Time          `json:"timestamp"`
}

type CatalogRefreshedEvent struct {
	Entries   int       `json:"entries_purged"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// CatalogRefreshRequest asks every instance to drop its catalog cache.
type CatalogRefreshRequest struct {
	RequestedBy string `json:"requested_by,omitempty"`
}
