package jade

import (
	"regexp"
	"strings"
)

// Embedded code is opaque to the compiler. These helpers only recognize the
// literal scalars and plain variable references it treats specially.

var (
	reNumber      = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?$`)
	reVariableRef = regexp.MustCompile(`^\$[a-zA-Z_]\w*(?:->[a-zA-Z_]\w*|\[(?:'[^'\\]*'|"[^"\\$]*"|\d+|\$[a-zA-Z_]\w*)\])*$`)
)

// isScalar reports whether v is a literal the compiler can evaluate: a
// number, true, false, null or a quoted string without interpolation.
func isScalar(v string) bool {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "true", "false", "null":
		return true
	}
	if reNumber.MatchString(v) {
		return true
	}
	_, ok := unquote(v)
	return ok
}

func isVariable(v string) bool {
	return reVariableRef.MatchString(strings.TrimSpace(v))
}

// unquote returns the value of a single- or double-quoted string literal.
// Double-quoted strings that interpolate variables are not literals.
func unquote(v string) (string, bool) {
	if len(v) < 2 {
		return "", false
	}
	q := v[0]
	if (q != '\'' && q != '"') || v[len(v)-1] != q {
		return "", false
	}
	var b strings.Builder
	body := v[1 : len(v)-1]
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == q:
			return "", false
		case c == '$' && q == '"':
			return "", false
		case c == '\\' && i+1 < len(body):
			nc := body[i+1]
			if q == '\'' {
				if nc == '\'' || nc == '\\' {
					b.WriteByte(nc)
					i++
					continue
				}
				b.WriteByte(c)
				continue
			}
			if r, ok := doubleQuoteEscapes[nc]; ok {
				b.WriteByte(r)
				i++
				continue
			}
			b.WriteByte(c)
		case c == '\\':
			return "", false
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), true
}

var doubleQuoteEscapes = map[byte]byte{
	'n': '\n', 't': '\t', 'r': '\r', 'v': '\v', 'f': '\f', 'e': 0x1b,
	'\\': '\\', '$': '$', '"': '"',
}

// exportString writes s as a single-quoted code literal.
func exportString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

// checkedValue guards a plain variable reference against being undefined.
func checkedValue(expr string) string {
	expr = strings.TrimSpace(expr)
	if isVariable(expr) {
		return "isset(" + expr + ") ? " + expr + " : null"
	}
	return expr
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes s the way the runtime's htmlspecialchars does with
// ENT_QUOTES.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
