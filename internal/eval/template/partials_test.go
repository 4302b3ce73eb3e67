package template

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartials(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterPartials(map[string]string{
		"user":   "{{name}}",
		"greet":  "{{greeting}} {{name}}",
		"layout": "<{{> @partial-block}}>",
		"parent": "{{../title}}",
		"outer":  "{{> inner}}",
		"rebind": "{{> inner x=2}}",
		"inner":  "[{{x}}]",
	}))

	data := map[string]interface{}{
		"title":  "T",
		"person": map[string]interface{}{"name": "Ann"},
		"users": []interface{}{
			map[string]interface{}{"name": "a"},
			map[string]interface{}{"name": "b"},
		},
		"name": "root",
	}

	assert.Equal(t, "a,b,", mustRender(t, e, "{{#each users}}{{> user}},{{/each}}", data))
	assert.Equal(t, "Ann", mustRender(t, e, "{{> user person}}", data))
	assert.Equal(t, "Hi Ann", mustRender(t, e, `{{> greet person greeting="Hi"}}`, data))
	assert.Equal(t, "Hey root", mustRender(t, e, `{{> greet greeting="Hey"}}`, data))
	assert.Equal(t, "<body root>", mustRender(t, e, "{{#> layout}}body {{name}}{{/layout}}", data))
	assert.Equal(t, "fallback", mustRender(t, e, "{{#> missing}}fallback{{/missing}}", data))
	assert.Equal(t, "T", mustRender(t, e, "{{> parent person}}", data))
	assert.Equal(t, "[1]", mustRender(t, e, "{{> outer x=1}}", data))
	assert.Equal(t, "[2]", mustRender(t, e, "{{> rebind x=1}}", data))
	assert.Equal(t, "[1]|", mustRender(t, e, "{{> outer x=1}}|{{x}}", data))
}

func TestPartialDynamicName(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterPartialTemplate("user", "user:{{name}}"))
	require.NoError(t, e.RegisterHelper("which", func(_ interface{}, opts *Options) (interface{}, error) {
		return "user", nil
	}))
	assert.Equal(t, "user:Ann", mustRender(t, e, "{{> (which)}}", map[string]interface{}{"name": "Ann"}))
}

func TestPartialIndentation(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterPartialTemplate("lines", "x\ny\n"))
	assert.Equal(t, "begin\n  x\n  y\nend\n", mustRender(t, e, "begin\n  {{> lines}}\nend\n", nil))
}

func TestPartialNotFoundAtRenderTime(t *testing.T) {
	e := NewEngine()
	tmpl, err := e.Compile("before {{> missing}}")
	require.NoError(t, err)

	_, err = tmpl.Exec(nil)
	var notFound *PartialNotFoundError
	require.True(t, errors.As(err, &notFound), "got %v", err)
	assert.Equal(t, "missing", notFound.Name)

	// registering afterwards makes the same compiled template work
	require.NoError(t, e.RegisterPartialTemplate("missing", "found"))
	out, err := tmpl.Exec(nil)
	require.NoError(t, err)
	assert.Equal(t, "before found", out)
}

func TestPartialLoader(t *testing.T) {
	var loads int32
	loader := LoaderFunc(func(_ context.Context, name string) (string, bool, error) {
		atomic.AddInt32(&loads, 1)
		switch name {
		case "footer":
			return "-- {{sig}}", true, nil
		case "broken":
			return "{{#if}}", true, nil
		}
		return "", false, nil
	})
	e := NewEngine(WithLoader(loader))

	data := map[string]interface{}{"sig": "bye"}
	assert.Equal(t, "-- bye", mustRender(t, e, "{{> footer}}", data))
	assert.Equal(t, "-- bye", mustRender(t, e, "{{> footer}}!", data)[:6])
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))

	_, err := e.Render("{{> nowhere}}", data)
	var notFound *PartialNotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)

	_, err = e.Render("{{> broken}}", data)
	var unclosed *UnclosedSectionError
	require.True(t, errors.As(err, &unclosed), "got %v", err)
	assert.Equal(t, "broken", unclosed.Template)

	loadErr := errors.New("store down")
	failing := NewEngine(WithLoader(LoaderFunc(func(context.Context, string) (string, bool, error) {
		return "", false, loadErr
	})))
	_, err = failing.Render("{{> any}}", nil)
	assert.True(t, errors.Is(err, loadErr))
}

func TestPartialConcurrentLoad(t *testing.T) {
	var loads int32
	e := NewEngine(WithLoader(LoaderFunc(func(_ context.Context, name string) (string, bool, error) {
		atomic.AddInt32(&loads, 1)
		return "shared", true, nil
	})))
	tmpl, err := e.Compile("{{> lazy}}")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := tmpl.Exec(nil)
			assert.NoError(t, err)
			assert.Equal(t, "shared", out)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestRenderNamed(t *testing.T) {
	e := NewEngine(WithLoader(LoaderFunc(func(_ context.Context, name string) (string, bool, error) {
		if name == "welcome" {
			return "Welcome {{name}}", true, nil
		}
		return "", false, nil
	})))
	out, err := e.RenderNamed(context.Background(), "welcome", map[string]interface{}{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome Ann", out)

	_, err = e.RenderNamed(context.Background(), "nope", nil)
	var notFound *PartialNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestRecursionLimit(t *testing.T) {
	e := NewEngine(WithMaxDepth(10))
	require.NoError(t, e.RegisterPartialTemplate("loop", "x{{> loop}}"))

	_, err := e.Render("{{> loop}}", nil)
	var limitErr *RecursionLimitError
	require.True(t, errors.As(err, &limitErr), "got %v", err)
	assert.Equal(t, 10, limitErr.Limit)
	assert.Len(t, limitErr.Chain, 11)
	assert.Equal(t, "partial:loop", limitErr.Chain[0])
	assert.Contains(t, err.Error(), "partial:loop -> partial:loop")
}

func TestRecursiveTreePartial(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterPartialTemplate("node", "{{name}}{{#if children}}({{#each children}}{{> node}}{{/each}}){{/if}}"))
	tree := map[string]interface{}{
		"name": "root",
		"children": []interface{}{
			map[string]interface{}{"name": "a"},
			map[string]interface{}{"name": "b", "children": []interface{}{
				map[string]interface{}{"name": "c"},
			}},
		},
	}
	assert.Equal(t, "root(ab(c))", mustRender(t, e, "{{> node}}", tree))
}

func TestOptionsPartial(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RegisterPartialTemplate("item", "<{{this}}>"))
	require.NoError(t, e.RegisterHelper("wrapEach", func(_ interface{}, opts *Options) (interface{}, error) {
		out := ""
		n, at, _ := sequence(opts.Param(0))
		for i := 0; i < n; i++ {
			s, err := opts.Partial("item", at(i))
			if err != nil {
				return nil, err
			}
			out += s
		}
		return SafeString(out), nil
	}))
	assert.Equal(t, "<1><2>", mustRender(t, e, "{{wrapEach list}}", map[string]interface{}{"list": []interface{}{1, 2}}))
}
