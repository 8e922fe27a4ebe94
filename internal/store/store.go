package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is one of the four component slots a build draws from.
type Category string

const (
	CategoryDriver Category = "Driver"
	CategoryBody   Category = "Body"
	CategoryTire   Category = "Tire"
	CategoryGlider Category = "Glider"
)

// Categories lists the component slots in enumeration order.
var Categories = []Category{CategoryDriver, CategoryBody, CategoryTire, CategoryGlider}

// ParseCategory accepts the category name in any case, plus the plural
// forms used in URLs ("drivers", "bodies", ...).
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "Driver", "driver", "drivers":
		return CategoryDriver, true
	case "Body", "body", "bodies":
		return CategoryBody, true
	case "Tire", "tire", "tires":
		return CategoryTire, true
	case "Glider", "glider", "gliders":
		return CategoryGlider, true
	}
	return "", false
}

// Stat names as they appear after stripping the ontology's "has" prefix.
const (
	StatAcceleration        = "Acceleration"
	StatGroundSpeed         = "GroundSpeed"
	StatWeight              = "Weight"
	StatGroundHandling      = "GroundHandling"
	StatAntiGravitySpeed    = "AntiGravitySpeed"
	StatAntiGravityHandling = "AntiGravityHandling"
	StatAirSpeed            = "AirSpeed"
	StatAirHandling         = "AirHandling"
	StatWaterSpeed          = "WaterSpeed"
	StatWaterHandling       = "WaterHandling"
	StatInvincibility       = "Invincibility"
	StatMiniTurbo           = "MiniTurbo"
	StatOnRoadTraction      = "OnRoadTraction"
	StatOffRoadTraction     = "OffRoadTraction"

	// StatIsDLC is a flag property, never a stat.
	StatIsDLC = "IsDLC"
)

// KnownStats is the parameter-filter list, in the order it is offered.
var KnownStats = []string{
	StatAcceleration, StatGroundSpeed, StatWeight, StatGroundHandling,
	StatAntiGravitySpeed, StatAntiGravityHandling, StatAirSpeed, StatAirHandling,
	StatWaterSpeed, StatWaterHandling, StatInvincibility, StatMiniTurbo,
	StatOnRoadTraction, StatOffRoadTraction,
}

// ChartStats is the order stats are drawn in a build chart.
var ChartStats = []string{
	StatGroundSpeed, StatWaterSpeed, StatAirSpeed, StatAntiGravitySpeed,
	StatAcceleration, StatWeight,
	StatGroundHandling, StatWaterHandling, StatAirHandling, StatAntiGravityHandling,
	StatOnRoadTraction, StatOffRoadTraction, StatMiniTurbo, StatInvincibility,
}

// IsDLCKey reports whether name is the DLC flag in either spelling the
// ontology uses (isDLC, IsDLC).
func IsDLCKey(name string) bool {
	return strings.EqualFold(name, StatIsDLC)
}

// IsKnownStat reports whether name is one of KnownStats.
func IsKnownStat(name string) bool {
	for _, s := range KnownStats {
		if s == name {
			return true
		}
	}
	return false
}

// Stats maps a stat name to its value. A missing stat reads as 0.
type Stats map[string]float64

// Get returns the value for name, or 0 when absent.
func (s Stats) Get(name string) float64 {
	return s[name]
}

// Entity is a named, stat-bearing option within a category.
type Entity struct {
	URI   string `json:"uri"`
	Name  string `json:"name"`
	Stats Stats  `json:"stats,omitempty"`
}

// ComponentSet holds one fully-materialized collection per category.
type ComponentSet struct {
	Drivers []Entity `json:"drivers"`
	Bodies  []Entity `json:"bodies"`
	Tires   []Entity `json:"tires"`
	Gliders []Entity `json:"gliders"`
}

// ByCategory returns the collection for c.
func (cs *ComponentSet) ByCategory(c Category) []Entity {
	switch c {
	case CategoryDriver:
		return cs.Drivers
	case CategoryBody:
		return cs.Bodies
	case CategoryTire:
		return cs.Tires
	case CategoryGlider:
		return cs.Gliders
	}
	return nil
}

// Find looks up an entity by URI within category c.
func (cs *ComponentSet) Find(c Category, uri string) (Entity, bool) {
	for _, e := range cs.ByCategory(c) {
		if e.URI == uri {
			return e, true
		}
	}
	return Entity{}, false
}

// NamedRef is a URI plus its display name, used for dropdowns.
type NamedRef struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// SlipModifiers maps a rounded off-road traction level to a grip multiplier.
type SlipModifiers map[int]float64

// SlipTable maps a slipperiness class URI to its modifiers.
type SlipTable map[string]SlipModifiers

// SlipperyTrack is a track that carries a slipperiness profile.
type SlipperyTrack struct {
	URI       string `json:"uri"`
	Name      string `json:"name"`
	ClassURI  string `json:"class_uri"`
	ClassName string `json:"class"` // Light, Medium, Heavy
}

// SlipColumns groups track names by slipperiness class.
type SlipColumns struct {
	Light  []string `json:"light"`
	Medium []string `json:"medium"`
	Heavy  []string `json:"heavy"`
}

// Rows returns the number of table rows needed to show every column.
func (sc SlipColumns) Rows() int {
	n := len(sc.Light)
	if len(sc.Medium) > n {
		n = len(sc.Medium)
	}
	if len(sc.Heavy) > n {
		n = len(sc.Heavy)
	}
	return n
}

// --- Build records ---

type BuildMode string

const (
	ModePlaystyle BuildMode = "playstyle"
	ModeStat      BuildMode = "stat"
	ModeManual    BuildMode = "manual"
)

// BuildRecord is a computed build kept so it can be fetched again by id.
type BuildRecord struct {
	ID        uuid.UUID `json:"id"`
	Mode      BuildMode `json:"mode"`
	Objective string    `json:"objective,omitempty"` // playstyle key or stat name

	Driver NamedRef `json:"driver"`
	Body   NamedRef `json:"body"`
	Tire   NamedRef `json:"tire"`
	Glider NamedRef `json:"glider"`

	Totals Stats    `json:"totals"`
	Score  *float64 `json:"score,omitempty"`

	TrackURI string   `json:"track_uri,omitempty"`
	Grip     *float64 `json:"grip,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// MaxListLimit caps one page of build history.
const MaxListLimit = 100

type BuildFilter struct {
	Mode      *BuildMode
	Objective string
	Limit     int
	Offset    int
}

// PageSize returns Limit clamped to (0, MaxListLimit]. Zero means the maximum.
func (f BuildFilter) PageSize() int {
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}

type BuildStats struct {
	Total     int            `json:"total"`
	ByMode    map[string]int `json:"by_mode"`
	LastBuilt *time.Time     `json:"last_built,omitempty"`
}

type Store interface {
	CreateBuild(ctx context.Context, b *BuildRecord) error
	GetBuild(ctx context.Context, id uuid.UUID) (*BuildRecord, error)
	ListBuilds(ctx context.Context, filter BuildFilter) ([]*BuildRecord, error)
	GetBuildStats(ctx context.Context) (*BuildStats, error)

	Close() error
}
