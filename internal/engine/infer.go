package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/neonvoidvibes/align/internal/llm"
	"github.com/neonvoidvibes/align/internal/scoring"
)

// Inferrer turns message text into partial category values through an LLM.
// Call duration is bounded by the provider's configured timeout.
type Inferrer struct {
	LLM      llm.Client
	Registry *scoring.Registry

	// OnFailure, when set, is called every time inference degrades.
	OnFailure func(err error)
}

// Infer returns the categories the model found evidence for. It never fails:
// any provider or parse error degrades to an empty map, which the resolver
// treats as "no update" for every category.
func (i *Inferrer) Infer(ctx context.Context, text string, previous scoring.Values) scoring.Values {
	values, err := i.infer(ctx, text, previous)
	if err != nil {
		log.Printf("inference: %v (falling back to decay only)", err)
		if i.OnFailure != nil {
			i.OnFailure(err)
		}
		return scoring.Values{}
	}
	return values
}

func (i *Inferrer) infer(ctx context.Context, text string, previous scoring.Values) (scoring.Values, error) {
	if i.LLM == nil {
		return nil, fmt.Errorf("LLM not configured")
	}
	if strings.TrimSpace(text) == "" {
		return scoring.Values{}, nil
	}

	var hints []llm.CategoryHint
	for _, id := range i.Registry.Observed() {
		c, _ := i.Registry.Get(id)
		hints = append(hints, llm.CategoryHint{ID: c.ID, Unit: c.Unit, Description: c.Description})
	}

	resp, err := i.LLM.Complete(ctx, llm.InferencePrompt(text, hints, previous))
	if err != nil {
		return nil, fmt.Errorf("llm inference: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("llm inference: empty response")
	}
	return parseInferenceResponse(resp.Content, i.Registry)
}

// parseInferenceResponse extracts a JSON object of category values from the
// model output. The output may be wrapped in code fences or prose. Unknown
// or derived categories and non-numeric values are dropped.
func parseInferenceResponse(content string, reg *scoring.Registry) (scoring.Values, error) {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal inference: %w", err)
	}

	out := make(scoring.Values, len(raw))
	for key, v := range raw {
		id := strings.ToLower(strings.TrimSpace(key))
		c, ok := reg.Get(id)
		if !ok || c.Derived() {
			log.Printf("inference: ignoring category %q", key)
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			log.Printf("inference: ignoring non-numeric %s=%v", id, v)
			continue
		}
		out[id] = f
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
