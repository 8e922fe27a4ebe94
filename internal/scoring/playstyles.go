package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/kathRex/kartbuilds/internal/store"
)

// Playstyle is a named weighted objective offered as a preset.
type Playstyle struct {
	Key         string   `json:"key" yaml:"key"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Weights     Weighted `json:"weights" yaml:"weights"`
}

// DefaultPlaystyles returns the built-in presets in display order.
func DefaultPlaystyles() []Playstyle {
	return []Playstyle{
		{
			Key:         "speedDemon",
			Name:        "Speed Demon",
			Description: "This build prioritizes maximum top speed above all else, making it ideal for long straightaways and experienced players.",
			Weights: Weighted{
				store.StatGroundSpeed:      3,
				store.StatWaterSpeed:       2,
				store.StatAirSpeed:         2,
				store.StatAntiGravitySpeed: 2,
				store.StatWeight:           1,
				store.StatMiniTurbo:        0.5,
			},
		},
		{
			Key:         "driftMaster",
			Name:        "Drift & Boost Master",
			Description: "Perfect for courses with many turns. This build focuses on high acceleration and a powerful mini-turbo to boost out of drifts quickly.",
			Weights: Weighted{
				store.StatAcceleration:        3,
				store.StatMiniTurbo:           3,
				store.StatGroundHandling:      1,
				store.StatAntiGravityHandling: 1,
			},
		},
		{
			Key:         "unstoppableTank",
			Name:        "Unstoppable Tank",
			Description: "Built for aggressive racing and battle mode. This build maximizes weight to knock opponents around and resists being pushed.",
			Weights: Weighted{
				store.StatWeight:        3,
				store.StatGroundSpeed:   1,
				store.StatInvincibility: 1.5,
			},
		},
		{
			Key:         "offroadSpecialist",
			Name:        "Off-Road Specialist",
			Description: "Ideal for tracks with lots of shortcuts. This build maximizes off-road traction to maintain speed on sand, grass, or dirt.",
			Weights: Weighted{
				store.StatOffRoadTraction: 4,
				store.StatGroundHandling:  1,
				store.StatAcceleration:    1,
			},
		},
		{
			Key:         "allRounder",
			Name:        "Balanced All-Rounder",
			Description: "A solid, versatile setup for any situation. This build provides a great balance between speed, acceleration, and handling.",
			Weights: Weighted{
				store.StatGroundSpeed:    1.5,
				store.StatAcceleration:   1.5,
				store.StatGroundHandling: 1.5,
				store.StatMiniTurbo:      1,
			},
		},
	}
}

// Validate checks that the preset has a key and at least one weight, and
// that every weight is finite and non-negative.
func (p Playstyle) Validate() error {
	if p.Key == "" {
		return fmt.Errorf("playstyle key is required")
	}
	if len(p.Weights) == 0 {
		return fmt.Errorf("playstyle %s: no weights", p.Key)
	}
	for _, k := range sortedKeys(p.Weights) {
		w := p.Weights[k]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("playstyle %s: weight for %s is not finite", p.Key, k)
		}
		if w < 0 {
			return fmt.Errorf("playstyle %s: negative weight for %s: %f", p.Key, k, w)
		}
	}
	return nil
}

// MergePlaystyles overlays overrides on base. An override with an existing
// key replaces it in place; new keys are appended in sorted order.
func MergePlaystyles(base []Playstyle, overrides map[string]Playstyle) ([]Playstyle, error) {
	out := make([]Playstyle, len(base))
	copy(out, base)

	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Key] = i
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p := overrides[k]
		p.Key = k
		if p.Name == "" {
			p.Name = k
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if i, ok := index[k]; ok {
			out[i] = p
			continue
		}
		index[k] = len(out)
		out = append(out, p)
	}
	return out, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
