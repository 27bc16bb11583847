package scoring

import "math"

// Values maps category id to a raw value or a normalized score.
type Values map[string]float64

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// Decay carries last forward across daysElapsed days with no observation:
// last * factor^days. Negative elapsed days (out-of-order messages) clamp to 0.
func Decay(last float64, daysElapsed int, factor float64) float64 {
	if daysElapsed <= 0 {
		return last
	}
	return last * math.Pow(factor, float64(daysElapsed))
}

// Resolve builds the complete raw row for a day. Inferred values win verbatim;
// every other observed category decays from its last known value, or from 0
// when it was never recorded.
func Resolve(reg *Registry, inferred, lastKnown Values, daysElapsed int) Values {
	out := make(Values, len(reg.observed))
	for _, id := range reg.observed {
		if v, ok := inferred[id]; ok {
			out[id] = v
			continue
		}
		out[id] = Decay(lastKnown[id], daysElapsed, reg.decayFactor)
	}
	return out
}
