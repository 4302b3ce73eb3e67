package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/dago-node-template/internal/eval/template"
)

func TestFromJSON(t *testing.T) {
	v, err := FromJSON([]byte(`{"z": 1, "a": [true, null, 2.5, "s"], "m": {"k": "v"}}`))
	require.NoError(t, err)

	obj, ok := v.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())
	assert.Equal(t, 3, obj.Len())

	z, _ := obj.Get("z")
	assert.Equal(t, int64(1), z)

	a, _ := obj.Get("a")
	assert.Equal(t, []interface{}{true, nil, 2.5, "s"}, a)

	m, _ := obj.Get("m")
	nested, ok := m.(*Object)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"k": "v"}, nested.Map())

	_, err = FromJSON([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestFromJSONScalars(t *testing.T) {
	v, err := FromJSON([]byte(`[1, "x"]`))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), "x"}, v)

	v, err = FromJSON([]byte(`"text"`))
	require.NoError(t, err)
	assert.Equal(t, "text", v)
}

func TestFromJSONPath(t *testing.T) {
	raw := []byte(`{"payload": {"user": {"name": "Ann"}}}`)

	v, err := FromJSONPath(raw, "payload.user")
	require.NoError(t, err)
	obj := v.(*Object)
	name, _ := obj.Get("name")
	assert.Equal(t, "Ann", name)

	v, err = FromJSONPath(raw, "payload.missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestObjectSetKeepsPosition(t *testing.T) {
	o := NewObject()
	o.Set("a", 1)
	o.Set("b", 2)
	o.Set("a", 3)
	assert.Equal(t, []string{"a", "b"}, o.Keys())
	v, _ := o.Get("a")
	assert.Equal(t, 3, v)

	var nilObj *Object
	_, ok := nilObj.Get("a")
	assert.False(t, ok)
	assert.Zero(t, nilObj.Len())
}

func TestMerge(t *testing.T) {
	base, err := FromJSON([]byte(`{"name": "guest", "opts": {"lang": "en", "tz": "UTC"}}`))
	require.NoError(t, err)
	over, err := FromJSON([]byte(`{"opts": {"lang": "fr"}, "extra": 1}`))
	require.NoError(t, err)

	merged := Merge(base.(*Object), over.(*Object))
	assert.Equal(t, []string{"name", "opts", "extra"}, merged.Keys())
	opts, _ := merged.Get("opts")
	assert.Equal(t, map[string]interface{}{"lang": "fr", "tz": "UTC"}, opts.(*Object).Map())
}

func TestObjectInTemplates(t *testing.T) {
	v, err := FromJSON([]byte(`{"b": 1, "a": 2, "user": {"name": "Ann"}, "items": [{"n": 1}, {"n": 2}]}`))
	require.NoError(t, err)

	e := template.NewEngine()
	tests := []struct {
		src  string
		want string
	}{
		{"{{#each this}}{{@key}};{{/each}}", "b;a;user;items;"},
		{"{{user.name}}", "Ann"},
		{"{{#with user}}{{name}}{{/with}}", "Ann"},
		{"{{#each items}}{{n}}{{#unless @last}},{{/unless}}{{/each}}", "1,2"},
		{"{{#if user}}yes{{/if}}", "yes"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			out, err := e.Render(tt.src, v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}
