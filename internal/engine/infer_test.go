package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonvoidvibes/align/internal/llm"
	"github.com/neonvoidvibes/align/internal/scoring"
)

func TestParseInferenceResponse(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		name    string
		input   string
		want    scoring.Values
		wantErr bool
	}{
		{"plain", `{"sleep": 7.5, "focus": 90}`, scoring.Values{"sleep": 7.5, "focus": 90}, false},
		{"empty object", `{}`, scoring.Values{}, false},
		{"code fence", "```json\n{\"movement\": 20}\n```", scoring.Values{"movement": 20}, false},
		{"prose around", `Here you go: {"connection": 2} hope that helps`, scoring.Values{"connection": 2}, false},
		{"case and spaces in keys", `{" Sleep ": 6}`, scoring.Values{"sleep": 6}, false},
		{"numeric string", `{"savings": "15.5"}`, scoring.Values{"savings": 15.5}, false},
		{"unknown category dropped", `{"hydration": 2, "focus": 30}`, scoring.Values{"focus": 30}, false},
		{"derived category dropped", `{"vitality": 0.8}`, scoring.Values{}, false},
		{"non-numeric dropped", `{"sleep": "lots", "focus": true, "movement": null}`, scoring.Values{}, false},
		{"zero kept", `{"savings": 0}`, scoring.Values{"savings": 0}, false},
		{"no object", `nothing to report`, nil, true},
		{"broken json", `{"sleep": }`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInferenceResponse(tt.input, reg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferSendsObservedCategories(t *testing.T) {
	client := mockLLM(`{"sleep": 7}`)
	inf := &Inferrer{LLM: client, Registry: testRegistry(t)}

	got := inf.Infer(context.Background(), "slept seven hours", scoring.Values{"sleep": 6})
	assert.Equal(t, scoring.Values{"sleep": 7}, got)

	require.Equal(t, 1, client.CallCount())
	req := client.Calls[0]
	assert.True(t, req.JSON)
	assert.Contains(t, req.Prompt, "slept seven hours")
	assert.Contains(t, req.Prompt, "mindfulness")
	assert.False(t, strings.Contains(req.Prompt, "vitality"), "derived categories are never asked for")
}

func TestInferBlankTextSkipsModel(t *testing.T) {
	client := mockLLM(`{"sleep": 7}`)
	inf := &Inferrer{LLM: client, Registry: testRegistry(t)}

	assert.Empty(t, inf.Infer(context.Background(), "   ", nil))
	assert.Equal(t, 0, client.CallCount())
}

func TestInferDegradesAndReports(t *testing.T) {
	var failures []error
	inf := &Inferrer{
		LLM:       &llm.MockClient{Err: errors.New("timeout")},
		Registry:  testRegistry(t),
		OnFailure: func(err error) { failures = append(failures, err) },
	}

	got := inf.Infer(context.Background(), "walked", nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error(), "timeout")

	inf.LLM = &llm.MockClient{}
	assert.Empty(t, inf.Infer(context.Background(), "walked", nil))
	assert.Len(t, failures, 2, "nil response counts as a failure")
}
