package scoring

import "math"

// WindowDays is the trailing span, in calendar days, that smooths every
// category's score. It is shared by all categories.
const WindowDays = 7

// History holds raw rows by day. Days with no row are simply absent.
type History map[Day]Values

// Window returns the WindowDays consecutive days ending at asOf, oldest first.
func Window(asOf Day) []Day {
	days := make([]Day, WindowDays)
	for i := range days {
		days[i] = asOf.AddDays(i - (WindowDays - 1))
	}
	return days
}

// PriorDays returns the window days strictly before asOf.
func PriorDays(asOf Day) []Day {
	return Window(asOf)[:WindowDays-1]
}

// Average returns the windowed, normalized score of one category as of a day.
// The asOf cell comes from today so a just-written row never needs re-reading.
// Missing historical cells count as 0. The result is the mean divided by the
// category target, capped at 1.0 with no floor.
func Average(c Category, asOf Day, today Values, history History) float64 {
	var sum float64
	for _, d := range Window(asOf) {
		if d == asOf {
			sum += today[c.ID]
			continue
		}
		sum += history[d][c.ID]
	}
	mean := sum / WindowDays
	target := c.Target
	if target <= 0 {
		target = 1.0
	}
	return math.Min(mean/target, 1.0)
}
