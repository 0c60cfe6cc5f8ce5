package starlark

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

// NewFilterContext exposes where a filter's output goes as a struct with the
// fields name, indent, newline, pretty and delimiters.
func NewFilterContext(fc jade.FilterContext) *starlarkstruct.Struct {
	delim := func(d jade.Delimiter) starlark.Value {
		return starlark.Tuple{starlark.String(d.Open), starlark.String(d.Close)}
	}
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"name":    starlark.String(fc.Name),
		"indent":  starlark.String(fc.Indent),
		"newline": starlark.String(fc.NewLine),
		"pretty":  starlark.Bool(fc.Pretty),
		"delimiters": starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
			"statement":      delim(fc.Delimiters.Statement),
			"echo":           delim(fc.Delimiters.Echo),
			"comment":        delim(fc.Delimiters.Comment),
			"hidden_comment": delim(fc.Delimiters.HiddenComment),
		}),
	})
}

// CreateBuiltins returns the functions every filter script can call.
func CreateBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),

		"escape": starlark.NewBuiltin("escape", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var text string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &text); err != nil {
				return nil, err
			}
			return starlark.String(jade.EscapeHTML(text)), nil
		}),

		"wrap": starlark.NewBuiltin("wrap", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var open, text, close string
			var ctx starlark.Value = starlark.None
			if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "open", &open, "text", &text, "close", &close, "ctx?", &ctx); err != nil {
				return nil, err
			}
			if text == "" {
				return starlark.String(open + close), nil
			}
			pretty, indent, newline, err := layout(ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn.Name(), err)
			}
			if !pretty {
				return starlark.String(open + text + close), nil
			}
			return starlark.String(open + newline + text + newline + indent + close), nil
		}),

		"dedent": starlark.NewBuiltin("dedent", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var text string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &text); err != nil {
				return nil, err
			}
			return starlark.String(dedent(text)), nil
		}),
	}
}

// layout reads the pretty printing fields of a filter context. None means
// compact output.
func layout(ctx starlark.Value) (pretty bool, indent, newline string, err error) {
	if ctx == starlark.None {
		return false, "", "", nil
	}
	s, ok := ctx.(*starlarkstruct.Struct)
	if !ok {
		return false, "", "", fmt.Errorf("ctx must be a filter context, got %s", ctx.Type())
	}
	get := func(name string) starlark.Value {
		v, err := s.Attr(name)
		if err != nil || v == nil {
			return starlark.None
		}
		return v
	}
	indent, _ = starlark.AsString(get("indent"))
	newline, _ = starlark.AsString(get("newline"))
	return bool(get("pretty").Truth()), indent, newline, nil
}

// dedent removes the whitespace prefix shared by all non-empty lines.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	prefix := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lead := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = lead, false
			continue
		}
		for !strings.HasPrefix(lead, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, prefix)
	}
	return strings.Join(lines, "\n")
}
