package starlark

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

const script = `
def upper(text, ctx):
    return text.upper()

def lines(text, ctx):
    return [ctx.name + ":" + l for l in text.split("\n")]

def banner(text, ctx):
    return wrap("<pre>", escape(prefix + text), "</pre>", ctx)

filters = {
    "upper": upper,
    "lines": lines,
    "banner": banner,
}
`

func compact() jade.FilterContext {
	return jade.FilterContext{Name: "test", Delimiters: jade.DefaultOptions().Delimiters}
}

func loadFilters(t *testing.T, src string, vars map[string]any) map[string]jade.Filter {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/filters.star", []byte(src), 0o644))
	filters, err := LoadFilters(fs, "/filters.star", vars)
	require.NoError(t, err)
	return filters
}

func TestLoadFilters(t *testing.T) {
	filters := loadFilters(t, script, map[string]any{"prefix": "> "})
	require.Len(t, filters, 3)

	out, err := filters["upper"]("hello", compact())
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)

	out, err = filters["lines"]("a\nb", compact())
	require.NoError(t, err)
	assert.Equal(t, "test:a\ntest:b", out)

	out, err = filters["banner"]("<b>", compact())
	require.NoError(t, err)
	assert.Equal(t, "<pre>&gt; &lt;b&gt;</pre>", out)

	pretty := compact()
	pretty.Pretty, pretty.NewLine, pretty.Indent = true, "\n", "  "
	out, err = filters["banner"]("x", pretty)
	require.NoError(t, err)
	assert.Equal(t, "<pre>\n&gt; x\n  </pre>", out)
}

func TestScriptFilterInCompiler(t *testing.T) {
	filters := loadFilters(t, script, map[string]any{"prefix": ""})
	opts := jade.DefaultOptions()
	for name, f := range filters {
		opts.Filters[name] = f
	}
	c, err := jade.NewCompiler(opts)
	require.NoError(t, err)

	out, err := c.Compile("div\n  :upper\n    shout", "")
	require.NoError(t, err)
	assert.Equal(t, "<div>SHOUT</div>", out)
}

func TestFilterErrors(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"missing dict":   {src: "x = 1", want: `does not define "filters"`},
		"not a dict":     {src: "filters = [1]", want: "must be a dict"},
		"not a function": {src: "filters = {'a': 1}", want: "not a function"},
		"bad name":       {src: "def f(t, c):\n    return t\nfilters = {1: f}", want: "non-empty strings"},
		"syntax":         {src: "def (", want: "starlark execution error"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewEvaluator().Filters("test.star", tc.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFilterResultErrors(t *testing.T) {
	filters := loadFilters(t, `
def number(text, ctx):
    return 1

def mixed(text, ctx):
    return ["a", 2]

def broken(text, ctx):
    fail("boom")

filters = {"number": number, "mixed": mixed, "broken": broken}
`, nil)

	_, err := filters["number"]("x", compact())
	assert.ErrorContains(t, err, "must return a string")
	_, err = filters["mixed"]("x", compact())
	assert.ErrorContains(t, err, "line 1 is not a string")
	_, err = filters["broken"]("x", compact())
	assert.ErrorContains(t, err, "boom")
}

func TestLoadFiltersMissingFile(t *testing.T) {
	_, err := LoadFilters(afero.NewMemMapFs(), "/nope.star", nil)
	assert.ErrorContains(t, err, "read filter script")
}

func TestSetGlobal(t *testing.T) {
	e := NewEvaluator()
	require.NoError(t, e.SetGlobal("cfg", map[string]any{
		"name":  "site",
		"count": 3,
		"tags":  []any{"a", "b"},
		"ratio": 0.5,
		"on":    true,
		"none":  nil,
	}))
	globals, err := e.ExecFile("test.star", `out = "%s/%d/%s/%s" % (cfg["name"], cfg["count"], ",".join(cfg["tags"]), cfg["none"])`)
	require.NoError(t, err)
	assert.Equal(t, "site/3/a,b/None", FromStarlark(globals["out"]))

	assert.Error(t, e.SetGlobal("bad", struct{}{}))
}

func TestFromStarlark(t *testing.T) {
	dict := starlark.NewDict(1)
	require.NoError(t, dict.SetKey(starlark.String("k"), starlark.NewList([]starlark.Value{starlark.MakeInt(1), starlark.Float(1.5)})))

	assert.Nil(t, FromStarlark(starlark.None))
	assert.Equal(t, "s", FromStarlark(starlark.String("s")))
	assert.Equal(t, int64(42), FromStarlark(starlark.MakeInt64(42)))
	assert.Equal(t, true, FromStarlark(starlark.Bool(true)))
	assert.Equal(t, []any{"a", int64(2)}, FromStarlark(starlark.Tuple{starlark.String("a"), starlark.MakeInt(2)}))
	assert.Equal(t, map[string]any{"k": []any{int64(1), 1.5}}, FromStarlark(dict))
}

func TestDedent(t *testing.T) {
	assert.Equal(t, "a\n  b\n\nc", dedent("    a\n      b\n\n    c"))
	assert.Equal(t, "a\nb", dedent("a\nb"))
	assert.Equal(t, " a\nb", dedent("\t a\n\tb"))
}
