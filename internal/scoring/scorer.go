package scoring

import (
	"math"

	"github.com/kathRex/kartbuilds/internal/store"
)

// Combination is one driver/body/tire/glider tuple with its aggregated stats.
type Combination struct {
	Driver store.Entity `json:"driver"`
	Body   store.Entity `json:"body"`
	Tire   store.Entity `json:"tire"`
	Glider store.Entity `json:"glider"`
	Totals store.Stats  `json:"totals"`
	Score  float64      `json:"score"`
}

// Aggregate sums the stats of the given entities key by key. A key missing
// from an entity contributes 0.
func Aggregate(entities ...store.Entity) store.Stats {
	out := make(store.Stats)
	for _, e := range entities {
		for k, v := range e.Stats {
			out[k] += v
		}
	}
	return out
}

// Evaluated returns how many tuples FindBest visits for the given sizes.
func Evaluated(drivers, bodies, tires, gliders int) int {
	return drivers * bodies * tires * gliders
}

// FindBest enumerates every driver/body/tire/glider tuple, drivers outermost
// and gliders innermost, and returns the first one reaching the highest
// score. It returns nil when any collection is empty or when no tuple scores
// above negative infinity.
func FindBest(drivers, bodies, tires, gliders []store.Entity, obj Objective) *Combination {
	if len(drivers) == 0 || len(bodies) == 0 || len(tires) == 0 || len(gliders) == 0 {
		return nil
	}

	terms := obj.Terms()
	dv := project(drivers, terms)
	bv := project(bodies, terms)
	tv := project(tires, terms)
	gv := project(gliders, terms)

	best := math.Inf(-1)
	bi, bj, bk, bl := -1, -1, -1, -1

	for i := range dv {
		for j := range bv {
			for k := range tv {
				for l := range gv {
					var score float64
					for t := range terms {
						sum := dv[i][t] + bv[j][t] + tv[k][t] + gv[l][t]
						score += sum * terms[t].Weight
					}
					if score > best {
						best = score
						bi, bj, bk, bl = i, j, k, l
					}
				}
			}
		}
	}

	if bi < 0 {
		return nil
	}

	return &Combination{
		Driver: drivers[bi],
		Body:   bodies[bj],
		Tire:   tires[bk],
		Glider: gliders[bl],
		Totals: Aggregate(drivers[bi], bodies[bj], tires[bk], gliders[bl]),
		Score:  best,
	}
}

// project lays out each entity's values for the objective's attributes so
// the inner loop avoids map lookups.
func project(entities []store.Entity, terms []Term) [][]float64 {
	out := make([][]float64, len(entities))
	for i, e := range entities {
		row := make([]float64, len(terms))
		for t, term := range terms {
			row[t] = e.Stats.Get(term.Attribute)
		}
		out[i] = row
	}
	return out
}
