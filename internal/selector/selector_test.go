package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aescanero/dago-node-template/internal/eval/cel"
	"github.com/aescanero/dago-node-template/internal/eval/template"
)

func newSelector(complete CompleteFunc) (*Selector, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewSelector(cel.NewEvaluator(nil), template.NewEngine(), complete, zap.New(core)), logs
}

func TestDetectMode(t *testing.T) {
	classify := &ClassifyConfig{PromptTemplate: "p", Routes: map[string]string{"a": "b"}}
	tests := []struct {
		name   string
		config Config
		want   Mode
	}{
		{"inline wins", Config{Template: "x", TemplateName: "n"}, ModeInline},
		{"named", Config{TemplateName: "n"}, ModeNamed},
		{"hybrid", Config{Rules: []Rule{{"true", "t"}}, Classify: classify}, ModeHybrid},
		{"classify", Config{Classify: classify}, ModeClassify},
		{"rules", Config{Rules: []Rule{{"true", "t"}}}, ModeRules},
		{"empty", Config{}, ModeRules},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMode(&tt.config))
		})
	}
}

func TestSelectDirect(t *testing.T) {
	s, _ := newSelector(nil)
	ctx := context.Background()

	sel, err := s.Select(ctx, nil, &Config{Template: "Hi {{name}}"})
	require.NoError(t, err)
	assert.Equal(t, "Hi {{name}}", sel.Source)
	assert.Empty(t, sel.Name)
	assert.Equal(t, "direct", sel.PathTaken)

	sel, err = s.Select(ctx, nil, &Config{TemplateName: "welcome"})
	require.NoError(t, err)
	assert.Equal(t, "welcome", sel.Name)
	assert.Equal(t, string(ModeNamed), sel.Mode)
}

func TestSelectRules(t *testing.T) {
	s, logs := newSelector(nil)
	ctx := context.Background()
	config := &Config{
		Rules: []Rule{
			{Condition: "state.missing.deep == 1", Template: "broken"},
			{Condition: "state.priority == 'high'", Template: "urgent"},
			{Condition: "state.score > 0.8", Template: "premium"},
		},
		Fallback: "standard",
	}

	sel, err := s.Select(ctx, map[string]interface{}{"priority": "high", "score": 0.9}, config)
	require.NoError(t, err)
	assert.Equal(t, "urgent", sel.Name)
	assert.Equal(t, "fast", sel.PathTaken)
	assert.Contains(t, sel.Reasoning, "matched rule 1")
	assert.Equal(t, 1, logs.FilterMessage("rule evaluation error").Len())

	sel, err = s.Select(ctx, map[string]interface{}{"priority": "low", "score": 0.95}, config)
	require.NoError(t, err)
	assert.Equal(t, "premium", sel.Name)

	sel, err = s.Select(ctx, map[string]interface{}{"priority": "low", "score": 0.1}, config)
	require.NoError(t, err)
	assert.Equal(t, "standard", sel.Name)
	assert.Equal(t, "fallback", sel.PathTaken)
}

func TestSelectInvalidConfig(t *testing.T) {
	s, _ := newSelector(nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		config *Config
	}{
		{"nil", nil},
		{"no fallback", &Config{Rules: []Rule{{"true", "t"}}}},
		{"empty condition", &Config{Rules: []Rule{{"", "t"}}, Fallback: "f"}},
		{"empty target", &Config{Rules: []Rule{{"true", ""}}, Fallback: "f"}},
		{"classify without routes", &Config{Classify: &ClassifyConfig{PromptTemplate: "p"}, Fallback: "f"}},
		{"explicit named without name", &Config{Mode: ModeNamed}},
		{"unknown mode", &Config{Mode: "magic", Fallback: "f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Select(ctx, nil, tt.config)
			assert.Error(t, err)
		})
	}
}

func TestSelectClassify(t *testing.T) {
	ctx := context.Background()
	var prompts []string
	answer := "Billing."
	complete := func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return answer, nil
	}
	s, _ := newSelector(complete)

	config := &Config{
		Classify: &ClassifyConfig{
			PromptTemplate: "Classify: {{message}}",
			Routes: map[string]string{
				"billing":         "billing_reply",
				"billing_dispute": "dispute_reply",
				"technical":       "tech_reply",
			},
		},
		Fallback: "generic",
	}
	data := map[string]interface{}{"message": "charged twice"}

	sel, err := s.Select(ctx, data, config)
	require.NoError(t, err)
	assert.Equal(t, "billing_reply", sel.Name)
	assert.Equal(t, "slow", sel.PathTaken)
	assert.Equal(t, []string{"Classify: charged twice"}, prompts)

	answer = "this is a billing_dispute"
	sel, err = s.Select(ctx, data, config)
	require.NoError(t, err)
	assert.Equal(t, "dispute_reply", sel.Name)

	answer = "no idea"
	sel, err = s.Select(ctx, data, config)
	require.NoError(t, err)
	assert.Equal(t, "generic", sel.Name)
	assert.Equal(t, "fallback", sel.PathTaken)
}

func TestSelectClassifyFallbacks(t *testing.T) {
	ctx := context.Background()
	config := &Config{
		Classify: &ClassifyConfig{PromptTemplate: "{{#if}}", Routes: map[string]string{"a": "b"}},
		Fallback: "generic",
	}

	s, _ := newSelector(nil)
	sel, err := s.Select(ctx, nil, config)
	require.NoError(t, err)
	assert.Equal(t, "generic", sel.Name)
	assert.Contains(t, sel.Reasoning, "not configured")

	s, _ = newSelector(func(context.Context, string) (string, error) { return "a", nil })
	sel, err = s.Select(ctx, nil, config)
	require.NoError(t, err)
	assert.Equal(t, "generic", sel.Name)
	assert.Contains(t, sel.Reasoning, "failed to render prompt")

	config.Classify.PromptTemplate = "ok"
	s, _ = newSelector(func(context.Context, string) (string, error) { return "", errors.New("rate limited") })
	sel, err = s.Select(ctx, nil, config)
	require.NoError(t, err)
	assert.Equal(t, "generic", sel.Name)
	assert.Contains(t, sel.Reasoning, "rate limited")
}

func TestSelectHybrid(t *testing.T) {
	ctx := context.Background()
	calls := 0
	s, _ := newSelector(func(context.Context, string) (string, error) {
		calls++
		return "technical", nil
	})
	config := &Config{
		Rules: []Rule{{Condition: "state.message.contains('refund')", Template: "refund"}},
		Classify: &ClassifyConfig{
			PromptTemplate: "Classify: {{message}}",
			Routes:         map[string]string{"technical": "tech_reply"},
		},
		Fallback: "generic",
	}

	sel, err := s.Select(ctx, map[string]interface{}{"message": "I want a refund"}, config)
	require.NoError(t, err)
	assert.Equal(t, "refund", sel.Name)
	assert.Equal(t, "fast", sel.PathTaken)
	assert.Equal(t, 0, calls)

	sel, err = s.Select(ctx, map[string]interface{}{"message": "app crashes"}, config)
	require.NoError(t, err)
	assert.Equal(t, "tech_reply", sel.Name)
	assert.Equal(t, string(ModeHybrid), sel.Mode)
	assert.Contains(t, sel.Reasoning, "after rules failed")
	assert.Equal(t, 1, calls)
}
