package llm

import (
	"fmt"
	"sort"
	"strings"
)

// CategoryHint describes one category to the model.
type CategoryHint struct {
	ID          string
	Unit        string
	Description string
}

const inferenceSystem = `You convert a person's free-text status update into numeric values for a fixed set of life-tracking categories.
Return ONLY a JSON object mapping category id to a number. No prose, no code fences.`

// InferencePrompt builds the request that infers category values from a
// status message. previous holds the last recorded values for context.
func InferencePrompt(message string, categories []CategoryHint, previous map[string]float64) Request {
	var cats strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&cats, "- %s (%s): %s\n", c.ID, c.Unit, c.Description)
	}

	prev := "none recorded yet"
	if len(previous) > 0 {
		keys := make([]string, 0, len(previous))
		for k := range previous {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%g", k, previous[k])
		}
		prev = strings.Join(parts, ", ")
	}

	prompt := fmt.Sprintf(`CATEGORIES:
%s
PREVIOUS VALUES:
%s

MESSAGE:
%s

Rules:
- Include a category ONLY if the message gives evidence for it today
- Omit categories the message does not mention; omission means "no update", not zero
- Use the unit listed for each category
- Use 0 only when the message says the activity did not happen
- Return ONLY a JSON object, e.g. {"sleep": 7.5, "movement": 20}

If the message contains nothing measurable, return: {}`, cats.String(), prev, message)

	return Request{
		System: inferenceSystem,
		Prompt: prompt,
		JSON:   true,
	}
}
