package scoring

import (
	"sort"

	"github.com/kathRex/kartbuilds/internal/store"
)

// Term is one weighted attribute of an objective.
type Term struct {
	Attribute string
	Weight    float64
}

// Objective ranks aggregated stats. Terms are returned in a fixed order so
// repeated evaluations sum in the same sequence.
type Objective interface {
	Terms() []Term
	Name() string
}

// Weighted scores the sum of aggregated[attr] * weight over its entries.
// Attributes not in the map do not contribute.
type Weighted map[string]float64

func (w Weighted) Terms() []Term {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make([]Term, len(keys))
	for i, k := range keys {
		terms[i] = Term{Attribute: k, Weight: w[k]}
	}
	return terms
}

func (w Weighted) Name() string { return "weighted" }

// Attribute scores a single aggregated stat.
type Attribute string

func (a Attribute) Terms() []Term {
	return []Term{{Attribute: string(a), Weight: 1}}
}

func (a Attribute) Name() string { return string(a) }

// Score evaluates obj against aggregated stats. Missing stats count as 0.
func Score(obj Objective, totals store.Stats) float64 {
	var score float64
	for _, t := range obj.Terms() {
		score += totals.Get(t.Attribute) * t.Weight
	}
	return score
}
