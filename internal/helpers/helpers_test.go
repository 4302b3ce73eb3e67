package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/dago-node-template/internal/eval/template"
)

func newEngine(t *testing.T) *template.Engine {
	t.Helper()
	e := template.NewEngine()
	require.NoError(t, Register(e))
	return e
}

func TestHelpers(t *testing.T) {
	e := newEngine(t)
	data := map[string]interface{}{
		"name":   "  Ann  ",
		"status": "open",
		"count":  3,
		"empty":  "",
		"tags":   []interface{}{"a", "b", "c"},
		"words":  []string{"x", "y"},
		"obj":    map[string]interface{}{"k": 1, "j": 2},
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"uppercase", "{{uppercase status}}", "OPEN"},
		{"lowercase", `{{lowercase "MiXed"}}`, "mixed"},
		{"trim", "[{{trim name}}]", "[Ann]"},
		{"default empty", `{{default empty "none"}}`, "none"},
		{"default missing", `{{default nope "none"}}`, "none"},
		{"default set", `{{default status "none"}}`, "open"},
		{"eq inline", `{{eq status "open"}}`, "true"},
		{"eq numeric", `{{eq count 3}}`, "true"},
		{"eq numeric text", `{{eq count "3"}}`, "true"},
		{"ne inline", `{{ne status "open"}}`, "false"},
		{"eq block", `{{#eq status "open"}}Open{{else}}Closed{{/eq}}`, "Open"},
		{"ne block", `{{#ne status "open"}}Open{{else}}Closed{{/ne}}`, "Closed"},
		{"gt", "{{gt count 2}}", "true"},
		{"lt", "{{lt count 2}}", "false"},
		{"gt block", "{{#gt count 10}}big{{else}}small{{/gt}}", "small"},
		{"contains", `{{contains status "pe"}}`, "true"},
		{"join", `{{join tags "-"}}`, "a-b-c"},
		{"join default separator", "{{join words}}", "x,y"},
		{"len sequence", "{{len tags}}", "3"},
		{"len text", "{{len status}}", "4"},
		{"len map", "{{len obj}}", "2"},
		{"len other", "{{len count}}", "0"},
		{"subexpression", `{{#if (eq status "open")}}yes{{/if}}`, "yes"},
		{"nested", `{{uppercase (trim name)}}`, "ANN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Render(tt.src, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCompareRejectsNonNumbers(t *testing.T) {
	e := newEngine(t)
	_, err := e.Render(`{{gt status 1}}`, map[string]interface{}{"status": "open"})
	var dispatch *template.HelperDispatchError
	require.ErrorAs(t, err, &dispatch)
	assert.Equal(t, "gt", dispatch.Helper)
}

func TestAllDoesNotShadowBuiltins(t *testing.T) {
	for _, name := range []string{"if", "unless", "each", "with", "lookup", "log"} {
		_, ok := All()[name]
		assert.False(t, ok, name)
	}
}
