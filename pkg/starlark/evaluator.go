package starlark

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/spf13/afero"
	"go.starlark.net/starlark"

	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

// FiltersGlobal is the dict a filter script defines, mapping filter names to
// functions of (text, ctx).
const FiltersGlobal = "filters"

// Evaluator runs filter scripts. Scripts see the builtins plus any globals
// set before execution.
type Evaluator struct {
	builtins starlark.StringDict
	globals  starlark.StringDict
}

// NewEvaluator creates a new Starlark evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{
		builtins: CreateBuiltins(),
		globals:  make(starlark.StringDict),
	}
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(thread *starlark.Thread, msg string) {
			slog.Debug("starlark print", "thread", thread.Name, "msg", msg)
		},
	}
}

// SetGlobal makes value visible to scripts executed afterwards.
func (e *Evaluator) SetGlobal(name string, value any) error {
	v, err := ToStarlark(value)
	if err != nil {
		return fmt.Errorf("global %q: %w", name, err)
	}
	e.globals[name] = v
	return nil
}

// ExecFile executes a script and returns the globals it defined.
func (e *Evaluator) ExecFile(filename string, src any) (starlark.StringDict, error) {
	predeclared := make(starlark.StringDict, len(e.builtins)+len(e.globals))
	maps.Copy(predeclared, e.builtins)
	maps.Copy(predeclared, e.globals)

	globals, err := starlark.ExecFile(newThread(filename), filename, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution error: %w", err)
	}
	return globals, nil
}

// Filters executes a filter script and wraps every entry of its filters dict
// as a jade.Filter.
func (e *Evaluator) Filters(filename string, src any) (map[string]jade.Filter, error) {
	globals, err := e.ExecFile(filename, src)
	if err != nil {
		return nil, err
	}
	v, ok := globals[FiltersGlobal]
	if !ok {
		return nil, fmt.Errorf("%s: script does not define %q", filename, FiltersGlobal)
	}
	dict, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: %q must be a dict, got %s", filename, FiltersGlobal, v.Type())
	}
	filters := make(map[string]jade.Filter, dict.Len())
	for _, item := range dict.Items() {
		name, ok := starlark.AsString(item[0])
		if !ok || name == "" {
			return nil, fmt.Errorf("%s: filter names must be non-empty strings, got %s", filename, item[0])
		}
		fn, ok := item[1].(starlark.Callable)
		if !ok {
			return nil, fmt.Errorf("%s: filter %q is a %s, not a function", filename, name, item[1].Type())
		}
		filters[name] = wrapFilter(filename, fn)
		slog.Debug("loaded script filter", "script", filename, "name", name)
	}
	return filters, nil
}

func wrapFilter(filename string, fn starlark.Callable) jade.Filter {
	return func(text string, fc jade.FilterContext) (string, error) {
		args := starlark.Tuple{starlark.String(text), NewFilterContext(fc)}
		res, err := starlark.Call(newThread(filename), fn, args, nil)
		if err != nil {
			return "", fmt.Errorf("%s: %w", fn.Name(), err)
		}
		switch out := FromStarlark(res).(type) {
		case string:
			return out, nil
		case []any:
			// A list of lines is joined the way the compiler breaks lines.
			sep := fc.NewLine
			if !fc.Pretty {
				sep = "\n"
			}
			lines := make([]string, len(out))
			for i, l := range out {
				s, ok := l.(string)
				if !ok {
					return "", fmt.Errorf("%s: line %d is not a string", fn.Name(), i)
				}
				lines[i] = s
			}
			return strings.Join(lines, sep), nil
		}
		return "", fmt.Errorf("%s: filters must return a string or a list of strings, got %s", fn.Name(), res.Type())
	}
}

// LoadFilters reads a filter script from fs. vars are set as globals before
// the script runs.
func LoadFilters(fs afero.Fs, path string, vars map[string]any) (map[string]jade.Filter, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read filter script: %w", err)
	}
	e := NewEvaluator()
	for name, v := range vars {
		if err := e.SetGlobal(name, v); err != nil {
			return nil, err
		}
	}
	return e.Filters(path, src)
}
