package scoring

import "math"

// Composite adds derived category scores to leaf scores. Each composite is the
// unweighted mean of its constituents' scores; an empty constituent list
// scores 0. A composite overwrites any leaf entry with the same id.
func Composite(reg *Registry, leaf Values) Values {
	out := leaf.Clone()
	for _, id := range reg.derived {
		deps := reg.byID[id].DerivedFrom
		if len(deps) == 0 {
			out[id] = 0
			continue
		}
		var sum float64
		for _, dep := range deps {
			sum += out[dep]
		}
		out[id] = sum / float64(len(deps))
	}
	return out
}

// DisplayScore is the 0-100 weighted summary of a day's scores.
func DisplayScore(reg *Registry, scores Values) int {
	var total float64
	for _, c := range reg.categories {
		if c.Weight == 0 {
			continue
		}
		total += scores[c.ID] * c.Weight
	}
	return int(math.Round(total * 100))
}
