package scoring

import "time"

// Snapshot is one day's complete scoring result.
type Snapshot struct {
	Day          Day       `json:"day"`
	Scores       Values    `json:"scores"`
	DisplayScore int       `json:"display_score"`
	Priority     string    `json:"priority"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Score runs the window, composite and priority stages for one day. today is
// the resolved raw row for day; history holds raw rows for the prior window
// days. Nothing is persisted here.
func Score(reg *Registry, day Day, today Values, history History) Snapshot {
	leaf := make(Values, len(reg.observed))
	for _, id := range reg.observed {
		leaf[id] = Average(reg.byID[id], day, today, history)
	}
	scores := Composite(reg, leaf)

	levers := make(Values, len(reg.levers))
	for _, id := range reg.levers {
		if s, ok := scores[id]; ok {
			levers[id] = s
		}
	}

	return Snapshot{
		Day:          day,
		Scores:       scores,
		DisplayScore: DisplayScore(reg, scores),
		Priority:     SelectPriority(levers, reg.levers, reg.fallback),
	}
}
