package scoring

import "math"

// AdjustedGrip rounds offRoadTraction half up to a level and scales it by
// that level's modifier. ok is false when mods has no entry for the level.
func AdjustedGrip(offRoadTraction float64, mods map[int]float64) (float64, bool) {
	if math.IsNaN(offRoadTraction) || math.IsInf(offRoadTraction, 0) {
		return 0, false
	}
	level := int(math.Floor(offRoadTraction + 0.5))
	mod, ok := mods[level]
	if !ok {
		return 0, false
	}
	return offRoadTraction * mod, true
}
