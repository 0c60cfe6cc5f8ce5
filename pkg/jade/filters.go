package jade

import (
	"fmt"
	"strings"
)

// FilterContext describes where a filter's output goes.
type FilterContext struct {
	Name string
	// Indent is the indentation of the filter's own line, NewLine the line
	// break between its lines. Both are empty unless pretty printing.
	Indent     string
	NewLine    string
	Pretty     bool
	Delimiters Delimiters
}

// Filter transforms the text block of a ":name" filter or a filtered include.
// In pretty mode every line of text is already indented one level deeper than
// the filter.
type Filter func(text string, fc FilterContext) (string, error)

// BuiltinFilters returns the plain, css, js and php filters.
func BuiltinFilters() map[string]Filter {
	return map[string]Filter{
		"plain": plainFilter,
		"css":   wrapFilter("<style>", "</style>"),
		"js":    wrapFilter("<script>", "</script>"),
		"php":   phpFilter,
	}
}

func plainFilter(text string, _ FilterContext) (string, error) {
	return text, nil
}

func wrapFilter(open, close string) Filter {
	return func(text string, fc FilterContext) (string, error) {
		return wrap(open, close, text, fc), nil
	}
}

func phpFilter(text string, fc FilterContext) (string, error) {
	if strings.Contains(text, fc.Delimiters.Statement.Close) {
		return "", fmt.Errorf("php filter text must not contain %q", fc.Delimiters.Statement.Close)
	}
	d := fc.Delimiters.Statement
	if !fc.Pretty {
		return d.Open + " " + text + " " + d.Close, nil
	}
	return wrap(d.Open, d.Close, text, fc), nil
}

func wrap(open, close, text string, fc FilterContext) string {
	if text == "" {
		return open + close
	}
	if !fc.Pretty {
		return open + text + close
	}
	return open + fc.NewLine + text + fc.NewLine + fc.Indent + close
}
