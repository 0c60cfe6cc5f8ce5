package jade

import (
	"strconv"
	"strings"
)

type attrValue struct {
	// code is the raw value; empty for a boolean attribute.
	code    string
	escaped bool
	checked bool
}

// attrSet is the ordered multimap of an element's attributes. Repeated names
// collect their values in source order.
type attrSet struct {
	names   []string
	values  map[string][]attrValue
	spreads []string
}

func (s *attrSet) add(name string, v attrValue) {
	if s.values == nil {
		s.values = map[string][]attrValue{}
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = append(s.values[name], v)
}

// collectAttributes flattens attributes and assignments. "&attributes(x)"
// spreads x at runtime; any other "&name(a, b)" adds a and b to name.
func collectAttributes(attrs []*AttributeNode, assignments []*AssignmentNode) *attrSet {
	s := &attrSet{}
	for _, a := range attrs {
		s.add(attributeName(a.Name), attrValue{code: a.Value, escaped: a.Escaped, checked: a.Checked})
	}
	for _, as := range assignments {
		for _, a := range as.Attributes {
			switch {
			case as.Name == "attributes" && a.Value == "":
				s.spreads = append(s.spreads, a.Name)
			case as.Name == "attributes":
				s.add(attributeName(a.Name), attrValue{code: a.Value, escaped: a.Escaped, checked: a.Checked})
			case a.Value == "":
				s.add(as.Name, attrValue{code: a.Name, escaped: a.Escaped, checked: a.Checked})
			default:
				s.add(as.Name, attrValue{code: a.Value, escaped: a.Escaped, checked: a.Checked})
			}
		}
	}
	return s
}

func attributeName(name string) string {
	if s, ok := unquote(name); ok {
		return s
	}
	return name
}

func (c *Compiler) compileAttributes(attrs []*AttributeNode, assignments []*AssignmentNode) string {
	s := collectAttributes(attrs, assignments)
	if len(s.spreads) > 0 {
		code := "echo " + c.runtime("attributes") + "(" + c.attributeArray(s) + ", [" + strings.Join(s.spreads, ", ") + "], " +
			exportString(c.opts.QuoteStyle) + ", true, " + exportString(c.opts.EscapeCharset) + ");"
		return c.statement(code)
	}
	var b strings.Builder
	for _, name := range s.names {
		b.WriteString(c.compileAttribute(name, s.values[name]))
	}
	return b.String()
}

func (c *Compiler) compileAttribute(name string, values []attrValue) string {
	for _, v := range values {
		if v.code != "" && !isScalar(v.code) {
			return c.dynamicAttribute(name, values)
		}
	}
	var parts []string
	boolean := false
	for _, v := range values {
		code := strings.TrimSpace(v.code)
		switch strings.ToLower(code) {
		case "":
			boolean = true
			continue
		case "true":
			boolean = true
			continue
		case "false", "null":
			continue
		}
		s, ok := unquote(code)
		if !ok {
			s = code
		}
		if v.escaped {
			s = EscapeHTML(s)
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		if boolean {
			return c.booleanAttribute(name)
		}
		return ""
	}
	q := c.opts.QuoteStyle
	vals := make([]any, len(parts))
	for i, p := range parts {
		vals[i] = p
	}
	return " " + name + "=" + q + AttributeValue(name, vals...) + q
}

func (c *Compiler) booleanAttribute(name string) string {
	switch {
	case c.mode != ModeHTML:
		return " " + name + "=" + c.opts.QuoteStyle + name + c.opts.QuoteStyle
	case c.opts.isSelfRepeating(name):
		return " " + name
	}
	return " " + name + "=" + c.opts.QuoteStyle + c.opts.QuoteStyle
}

func valueCode(v attrValue) string {
	if v.code == "" {
		return "true"
	}
	if v.checked {
		return checkedValue(v.code)
	}
	return strings.TrimSpace(v.code)
}

// dynamicAttribute defers the attribute to runtime. It is only written when
// none of its values is null or false.
func (c *Compiler) dynamicAttribute(name string, values []attrValue) string {
	escape := true
	exprs := make([]string, len(values))
	for i, v := range values {
		exprs[i] = valueCode(v)
		escape = escape && v.escaped
	}
	call := func(arg string) string {
		return c.runtime("attribute") + "(" + exportString(name) + ", " + arg + ", " +
			exportString(c.opts.QuoteStyle) + ", " + strconv.FormatBool(escape) + ", " + exportString(c.opts.EscapeCharset) + ")"
	}
	if len(exprs) == 1 {
		return c.statement("$__value = " + exprs[0] + "; if ($__value !== null && $__value !== false) echo " +
			call("[$__value]") + "; unset($__value);")
	}
	return c.statement("$__values = [" + strings.Join(exprs, ", ") + "]; " +
		"if (!in_array(null, $__values, true) && !in_array(false, $__values, true)) echo " +
		call("$__values") + "; unset($__values);")
}

// attributeArray writes the set as a code array of name => [values].
func (c *Compiler) attributeArray(s *attrSet) string {
	entries := make([]string, 0, len(s.names))
	for _, name := range s.names {
		vals := s.values[name]
		exprs := make([]string, len(vals))
		for i, v := range vals {
			exprs[i] = valueCode(v)
		}
		entries = append(entries, exportString(name)+" => ["+strings.Join(exprs, ", ")+"]")
	}
	return "[" + strings.Join(entries, ", ") + "]"
}
