package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aescanero/dago-libs/pkg/domain/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-template/internal/data"
	"github.com/aescanero/dago-node-template/internal/eval/cel"
	"github.com/aescanero/dago-node-template/internal/eval/template"
	"github.com/aescanero/dago-node-template/internal/loader"
	"github.com/aescanero/dago-node-template/internal/selector"
)

type stateFunc func(ctx context.Context, id string) (state.State, error)

func (f stateFunc) Load(ctx context.Context, id string) (state.State, error) { return f(ctx, id) }

const testManifest = `
template "welcome" {
  source   = "Welcome {{name}} ({{lang}})"
  defaults = { name = "guest", lang = "en" }
}
template "urgent" {
  source = "URGENT: {{subject}}"
}
template "standard" {
  source = "{{subject}}"
}
`

func newProcessor(t *testing.T, stateStore StateLoader, complete selector.CompleteFunc) *Processor {
	t.Helper()
	manifest, err := loader.ParseManifest([]byte(testManifest), "test.hcl", t.TempDir())
	require.NoError(t, err)

	engine := template.NewEngine(template.WithLoader(manifest))
	evaluator := cel.NewEvaluator(nil)
	require.NoError(t, engine.RegisterHelper("cel", evaluator.Helper()))
	sel := selector.NewSelector(evaluator, engine, complete, nil)
	return NewProcessor(engine, sel, manifest, stateStore, complete, zap.NewNop())
}

func TestParseRenderRequest(t *testing.T) {
	req, err := parseRenderRequest(map[string]interface{}{
		"data": `{"request_id":"r1","execution_id":"e1","node_id":"n1","template_name":"welcome",` +
			`"rules":[{"condition":"true","template":"x"}],"fallback":"f","data":{"b":1,"a":2},"complete":true}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", req.RequestID)
	assert.Equal(t, "e1", req.ExecutionID)
	assert.Equal(t, "welcome", req.TemplateName)
	assert.Equal(t, []selector.Rule{{Condition: "true", Template: "x"}}, req.Rules)
	assert.Equal(t, "f", req.Fallback)
	assert.JSONEq(t, `{"b":1,"a":2}`, string(req.Data))
	assert.True(t, req.Complete)

	req, err = parseRenderRequest(map[string]interface{}{"data": `{"template":"x"}`})
	require.NoError(t, err)
	assert.Len(t, req.RequestID, 36)

	_, err = parseRenderRequest(map[string]interface{}{})
	assert.Error(t, err)
	_, err = parseRenderRequest(map[string]interface{}{"data": "{"})
	assert.Error(t, err)
}

func TestProcessInline(t *testing.T) {
	p := newProcessor(t, nil, nil)
	res, err := p.Process(context.Background(), &RenderRequest{
		RequestID: "r1",
		NodeID:    "n1",
		Config:    selector.Config{Template: "{{#each this}}{{@key}}={{this}};{{/each}}"},
		Data:      json.RawMessage(`{"z":1,"a":2}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "z=1;a=2;", res.Output)
	assert.Equal(t, "inline", res.Template)
	assert.Equal(t, "r1", res.RequestID)
	assert.Equal(t, "n1", res.NodeID)
	assert.False(t, res.Timestamp.IsZero())
}

func TestProcessNamedWithDefaults(t *testing.T) {
	p := newProcessor(t, nil, nil)
	ctx := context.Background()

	res, err := p.Process(ctx, &RenderRequest{
		Config: selector.Config{TemplateName: "welcome"},
		Data:   json.RawMessage(`{"name":"Ann"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Welcome Ann (en)", res.Output)

	res, err = p.Process(ctx, &RenderRequest{Config: selector.Config{TemplateName: "welcome"}})
	require.NoError(t, err)
	assert.Equal(t, "Welcome guest (en)", res.Output)
}

func TestProcessDataPath(t *testing.T) {
	p := newProcessor(t, nil, nil)
	res, err := p.Process(context.Background(), &RenderRequest{
		Config:   selector.Config{Template: "{{name}}"},
		Data:     json.RawMessage(`{"payload":{"user":{"name":"Ann"}}}`),
		DataPath: "payload.user",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann", res.Output)
}

func TestProcessRulesFromState(t *testing.T) {
	store := stateFunc(func(_ context.Context, id string) (state.State, error) {
		if id != "e1" {
			return nil, ErrStateNotFound
		}
		return state.State{"priority": "high", "subject": "disk full"}, nil
	})
	p := newProcessor(t, store, nil)

	res, err := p.Process(context.Background(), &RenderRequest{
		ExecutionID: "e1",
		Config: selector.Config{
			Rules:    []selector.Rule{{Condition: "state.priority == 'high'", Template: "urgent"}},
			Fallback: "standard",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "URGENT: disk full", res.Output)
	assert.Equal(t, "urgent", res.Template)
	assert.Equal(t, "fast", res.PathTaken)

	_, err = p.Process(context.Background(), &RenderRequest{
		ExecutionID: "missing",
		Config:      selector.Config{TemplateName: "standard"},
	})
	require.ErrorIs(t, err, ErrStateNotFound)
	assert.False(t, retryable(err))
}

func TestProcessStateStoreFailureIsRetryable(t *testing.T) {
	store := stateFunc(func(context.Context, string) (state.State, error) {
		return nil, errors.New("connection reset")
	})
	p := newProcessor(t, store, nil)
	_, err := p.Process(context.Background(), &RenderRequest{
		ExecutionID: "e1",
		Config:      selector.Config{TemplateName: "standard"},
	})
	require.Error(t, err)
	assert.True(t, retryable(err))
}

func TestProcessComplete(t *testing.T) {
	var prompt string
	complete := func(_ context.Context, p string) (string, error) {
		prompt = p
		return "42", nil
	}
	p := newProcessor(t, nil, complete)

	res, err := p.Process(context.Background(), &RenderRequest{
		Config:   selector.Config{Template: "What is {{q}}?"},
		Data:     json.RawMessage(`{"q":"six times seven"}`),
		Complete: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "What is six times seven?", prompt)
	assert.Equal(t, "42", res.Completion)

	noLLM := newProcessor(t, nil, nil)
	_, err = noLLM.Process(context.Background(), &RenderRequest{
		Config:   selector.Config{Template: "x"},
		Complete: true,
	})
	assert.Error(t, err)

	failing := newProcessor(t, nil, func(context.Context, string) (string, error) {
		return "", errors.New("overloaded")
	})
	_, err = failing.Process(context.Background(), &RenderRequest{
		Config:   selector.Config{Template: "x"},
		Complete: true,
	})
	require.Error(t, err)
	assert.True(t, retryable(err))
}

func TestProcessTemplateErrors(t *testing.T) {
	p := newProcessor(t, nil, nil)
	ctx := context.Background()

	_, err := p.Process(ctx, &RenderRequest{
		RequestID: "r1",
		Config:    selector.Config{Template: "line\n{{#if x}}open"},
	})
	require.Error(t, err)
	assert.False(t, retryable(err))
	event := newErrorEvent(&RenderRequest{RequestID: "r1"}, err)
	assert.Equal(t, "unclosed_section", event.Kind)
	assert.Equal(t, 2, event.Line)
	assert.Equal(t, "r1", event.RequestID)

	_, err = p.Process(ctx, &RenderRequest{Config: selector.Config{TemplateName: "nope"}})
	require.Error(t, err)
	kind, name, _ := classify(err)
	assert.Equal(t, "partial_not_found", kind)
	assert.Equal(t, "nope", name)

	_, err = p.Process(ctx, &RenderRequest{Config: selector.Config{Template: "x"}, Data: json.RawMessage(`{`)})
	require.Error(t, err)
	kind, _, _ = classify(err)
	assert.Equal(t, "invalid_request", kind)
}

func TestWithDefaultsKeepsOrder(t *testing.T) {
	p := newProcessor(t, nil, nil)
	v, err := data.FromJSON([]byte(`{"z":1,"name":"Ann"}`))
	require.NoError(t, err)

	merged := p.withDefaults("welcome", v).(*data.Object)
	assert.Equal(t, []string{"lang", "name", "z"}, merged.Keys())
	name, _ := merged.Get("name")
	assert.Equal(t, "Ann", name)

	assert.Same(t, v, p.withDefaults("urgent", v))
}

type fakeRedis struct {
	values map[string]string
	err    error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedisStateStore(t *testing.T) {
	fake := &fakeRedis{values: map[string]string{"graph:state:e1": `{"status":"running","inputs":{"x":1}}`}}
	s := &RedisStateStore{client: fake, prefix: DefaultStateKeyPrefix}
	ctx := context.Background()

	st, err := s.Load(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "running", st["status"])

	_, err = s.Load(ctx, "e2")
	assert.ErrorIs(t, err, ErrStateNotFound)

	fake.values["graph:state:bad"] = "{"
	_, err = s.Load(ctx, "bad")
	assert.Error(t, err)

	fake.err = errors.New("timeout")
	_, err = s.Load(ctx, "e1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStateNotFound)
}

func TestHealthServer(t *testing.T) {
	hs := NewHealthServer(0, nil, zap.NewNop())
	var failing error
	hs.AddCheck("templates", func(context.Context) error { return failing })
	srv := httptest.NewServer(hs.Handler())
	defer srv.Close()

	get := func(path string) (int, HealthResponse) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, map[string]string{"templates": "healthy"}, body.Checks)

	code, body = get("/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body.Status)

	failing = errors.New("manifest missing")
	code, body = get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy: manifest missing", body.Checks["templates"])

	code, body = get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body.Status)
}
