package scoring

// SelectPriority returns the lowest-scoring category among order. Ties go to
// whichever comes first in order, never to map iteration or id ordering.
// Categories missing from scores are skipped; if none are present the
// fallback is returned.
func SelectPriority(scores Values, order []string, fallback string) string {
	best := ""
	var lowest float64
	for _, id := range order {
		s, ok := scores[id]
		if !ok {
			continue
		}
		if best == "" || s < lowest {
			best, lowest = id, s
		}
	}
	if best == "" {
		return fallback
	}
	return best
}
