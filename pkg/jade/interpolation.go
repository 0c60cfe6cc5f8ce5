package jade

import "strings"

// interpolate expands #{code}, !{code}, #[jade] and ![jade] in text. A
// leading backslash keeps the sequence literally.
func (c *Compiler) interpolate(n Node, text string) (string, error) {
	if !strings.ContainsAny(text, "#!") {
		return text, nil
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch == '\\' && i+2 < len(text) && isInterpolationStart(text[i+1], text[i+2]) {
			b.WriteString(text[i+1 : i+3])
			i += 2
			continue
		}
		if i+1 >= len(text) || !isInterpolationStart(ch, text[i+1]) {
			b.WriteByte(ch)
			continue
		}
		r := newReader(text[i+1:])
		inner, err := r.readBracketContents()
		if err != nil {
			return "", c.errorf(n, "interpolation %q: %v", text[i:min(i+16, len(text))], err)
		}
		var out string
		switch text[i : i+2] {
		case "#{":
			out = c.escapedEcho(checkedValue(inner))
		case "!{":
			out = c.echo(checkedValue(inner))
		case "#[":
			out, err = c.compileFragment(n, inner)
		case "![":
			out, err = c.compileFragment(n, inner)
			out = EscapeHTML(out)
		}
		if err != nil {
			return "", err
		}
		b.WriteString(out)
		i += r.i
	}
	return b.String(), nil
}

func isInterpolationStart(a, b byte) bool {
	return (a == '#' || a == '!') && (b == '{' || b == '[')
}

// compileFragment compiles an inline template. Its output is never pretty
// printed.
func (c *Compiler) compileFragment(at Node, src string) (string, error) {
	doc, err := NewParser(c.opts.Lexer).Parse(strings.TrimSpace(src))
	if err != nil {
		return "", c.errorf(at, "inline template %q: %v", src, err)
	}
	c.inline++
	defer func() { c.inline-- }()
	return c.compileChildren(doc.Children(), false)
}
