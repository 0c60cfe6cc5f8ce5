package jade

import (
	"fmt"
	"slices"
	"strings"
)

func (c *Compiler) compileNode(n Node) (string, error) {
	switch t := n.(type) {
	case *DocumentNode:
		return c.compileChildren(t.Children(), false)
	case *ElementNode:
		return c.compileElement(t)
	case *TextNode:
		return c.compileText(t)
	case *BlockNode:
		return c.compileBlock(t)
	case *ConditionalNode:
		return c.compileConditional(t)
	case *CaseNode:
		return c.compileCase(t)
	case *WhenNode:
		return "", c.errorf(t, "when is only allowed directly inside a case")
	case *EachNode:
		return c.compileEach(t)
	case *WhileNode:
		return c.compileWhile(t)
	case *DoNode:
		return c.compileDo(t)
	case *ForNode:
		return c.compileLoop(t, "for ("+t.Subject+")")
	case *MixinCallNode:
		return c.compileMixinCall(t)
	case *VariableNode:
		return c.line() + c.statement("$"+t.Name+" = "+t.Value+";"), nil
	case *CommentNode:
		return c.compileComment(t)
	case *FilterNode:
		return c.compileFilter(t)
	case *ExpressionNode:
		return c.compileExpression(t), nil
	case *CodeNode:
		return c.compileCode(t)
	case *DoctypeNode:
		return c.compileDoctype(t), nil
	case *MixinNode:
		return "", c.errorf(t, "mixin %q was not registered", t.Name)
	case *ImportNode:
		return "", c.errorf(t, "unresolved %s of %q", t.ImportType, t.Path)
	}
	return "", c.errorf(n, "%s nodes cannot be compiled on their own", n.Kind())
}

// compileChildren compiles nodes in order. Without pretty printing adjacent
// text nodes are separated by one blank, lines of a text block by a line
// break.
func (c *Compiler) compileChildren(nodes []Node, deeper bool) (string, error) {
	if deeper {
		c.level++
		defer func() { c.level-- }()
	}
	var b strings.Builder
	var prev Node
	for _, n := range nodes {
		s, err := c.compileNode(n)
		if err != nil {
			return "", err
		}
		if s == "" && !isBlockText(n) {
			continue
		}
		if c.newLine() == "" && isTextNode(prev) && isTextNode(n) {
			if isBlockText(prev) && isBlockText(n) {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(s)
		prev = n
	}
	return b.String(), nil
}

func isTextNode(n Node) bool {
	_, ok := n.(*TextNode)
	return ok
}

func isBlockText(n Node) bool {
	t, ok := n.(*TextNode)
	return ok && t.Block
}

func (c *Compiler) compileElement(el *ElementNode) (string, error) {
	tag := el.Tag
	if tag == "" {
		tag = c.opts.DefaultTag
	}
	var b strings.Builder
	b.WriteString(c.line())
	b.WriteString("<" + tag)
	b.WriteString(c.compileAttributes(el.Attributes, el.Assignments))
	children := el.Children()
	if len(children) == 0 {
		switch {
		case c.mode != ModeHTML:
			b.WriteString(" />")
		case c.opts.isSelfClosing(tag):
			b.WriteString(">")
		default:
			b.WriteString("></" + tag + ">")
		}
		return b.String(), nil
	}
	b.WriteString(">")
	if t, ok := children[0].(*TextNode); ok && len(children) == 1 && len(t.Children()) == 0 {
		s, err := c.textValue(t)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	} else {
		s, err := c.compileChildren(children, true)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
		b.WriteString(c.line())
	}
	b.WriteString("</" + tag + ">")
	return b.String(), nil
}

func (c *Compiler) textValue(t *TextNode) (string, error) {
	if t.Raw {
		return t.Value, nil
	}
	return c.interpolate(t, t.Value)
}

// nestedBlockText writes the lines below a text block line, each on its own
// line and indented one unit per level.
func (c *Compiler) nestedBlockText(t *TextNode, depth int, b *strings.Builder) error {
	unit := strings.Repeat(c.opts.IndentStyle, c.opts.IndentWidth)
	for _, ch := range t.Children() {
		ct, ok := ch.(*TextNode)
		if !ok {
			return c.errorf(ch, "only text is allowed inside a text block")
		}
		s, err := c.textValue(ct)
		if err != nil {
			return err
		}
		b.WriteByte('\n')
		if s != "" {
			b.WriteString(strings.Repeat(unit, depth) + s)
		}
		if err := c.nestedBlockText(ct, depth+1, b); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileText(t *TextNode) (string, error) {
	s, err := c.textValue(t)
	if err != nil {
		return "", err
	}
	children := t.Children()
	if len(children) == 0 {
		return c.line() + s, nil
	}
	if t.Block && c.newLine() == "" {
		var b strings.Builder
		b.WriteString(s)
		if err := c.nestedBlockText(t, 1, &b); err != nil {
			return "", err
		}
		return b.String(), nil
	}
	body, err := c.compileChildren(children, true)
	if err != nil {
		return "", err
	}
	if c.newLine() == "" && isTextNode(children[0]) {
		body = " " + body
	}
	return c.line() + s + body, nil
}

func (c *Compiler) compileBlock(b *BlockNode) (string, error) {
	if b.Ignored {
		return "", nil
	}
	if b.Name == "" {
		return c.line() + c.statement("if (isset($__block) && is_callable($__block)) { $__block(); }"), nil
	}
	return c.compileChildren(b.Children(), false)
}

// compileBody writes a statement that opens a code block, the children one
// level deeper and, unless close is empty, the closing statement.
func (c *Compiler) compileBody(n Node, open, close string) (string, error) {
	body, err := c.compileChildren(n.Children(), true)
	if err != nil {
		return "", err
	}
	out := c.line() + c.statement(open) + body
	if close != "" {
		out += c.line() + c.statement(close)
	}
	return out, nil
}

func isChainedConditional(n Node) bool {
	cond, ok := n.(*ConditionalNode)
	return ok && (cond.ConditionType == "elseif" || cond.ConditionType == "else")
}

// compileConditional keeps a chain of branches inside one code block: a
// following elseif or else closes the previous branch itself.
func (c *Compiler) compileConditional(n *ConditionalNode) (string, error) {
	var open string
	switch n.ConditionType {
	case "if":
		open = "if (" + n.Subject + ") {"
	case "unless":
		open = "if (!(" + n.Subject + ")) {"
	case "elseif":
		open = "} elseif (" + n.Subject + ") {"
	case "else":
		open = "} else {"
	default:
		return "", c.errorf(n, "unknown condition type %q", n.ConditionType)
	}
	if isChainedConditional(n) {
		if _, ok := PrevSibling(n).(*ConditionalNode); !ok {
			return "", c.errorf(n, "%s without a preceding if", n.ConditionType)
		}
	}
	close := "}"
	if isChainedConditional(NextSibling(n)) {
		close = ""
	}
	return c.compileBody(n, open, close)
}

func (c *Compiler) compileCase(n *CaseNode) (string, error) {
	children := n.Children()
	if len(children) == 0 {
		return "", c.errorf(n, "case needs at least one when")
	}
	for _, ch := range children {
		if _, ok := ch.(*WhenNode); !ok {
			return "", c.errorf(ch, "case may only contain when and default, found %s", ch.Kind())
		}
	}
	d := c.opts.Delimiters.Statement
	var b strings.Builder
	b.WriteString(c.line())
	b.WriteString(d.Open + " switch (" + n.Subject + ") {")
	for i, ch := range children {
		w := ch.(*WhenNode)
		label := "default:"
		if !w.Default {
			label = "case " + w.Subject + ":"
		}
		// Nothing may be written between the switch and its first case.
		if i == 0 {
			b.WriteString(" " + label + " " + d.Close)
		} else {
			b.WriteString(c.newLine() + c.indentAt(c.level+1) + c.statement(label))
		}
		if len(w.Children()) == 0 {
			continue
		}
		c.level++
		body, err := c.compileChildren(w.Children(), true)
		c.level--
		if err != nil {
			return "", err
		}
		b.WriteString(body)
		b.WriteString(c.newLine() + c.indentAt(c.level+1) + c.statement("break;"))
	}
	b.WriteString(c.line() + c.statement("}"))
	return b.String(), nil
}

func (c *Compiler) compileEach(n *EachNode) (string, error) {
	it := fmt.Sprintf("$__iterator%d", c.iterator)
	c.iterator++
	as := "$" + n.ItemName
	if n.KeyName != "" {
		as = "$" + n.KeyName + " => " + as
	}
	return c.compileLoop(n, it+" = "+n.Subject+"; foreach ("+it+" as "+as+")")
}

func (c *Compiler) compileLoop(n Node, head string) (string, error) {
	return c.compileBody(n, head+" {", "}")
}

func (c *Compiler) compileWhile(n *WhileNode) (string, error) {
	if len(n.Children()) > 0 {
		return c.compileLoop(n, "while ("+n.Subject+")")
	}
	if _, ok := PrevSibling(n).(*DoNode); ok {
		return c.line() + c.statement("} while ("+n.Subject+");"), nil
	}
	return c.line() + c.statement("while ("+n.Subject+");"), nil
}

func (c *Compiler) compileDo(n *DoNode) (string, error) {
	if n.Subject != "" {
		return "", c.errorf(n, "do takes no subject, put the condition on the following while")
	}
	w, ok := NextSibling(n).(*WhileNode)
	if !ok || len(w.Children()) > 0 {
		return "", c.errorf(n, "do needs a following while without children")
	}
	return c.compileBody(n, "do {", "")
}

func (c *Compiler) compileExpression(n *ExpressionNode) string {
	code := n.Value
	if n.Checked {
		code = checkedValue(code)
	}
	if n.Escaped {
		return c.line() + c.escapedEcho(code)
	}
	return c.line() + c.echo(code)
}

// textLines collects the raw lines below a comment, filter or code block,
// indenting nested lines by one unit per level.
func (c *Compiler) textLines(n Node, depth int, lines []string) ([]string, error) {
	unit := strings.Repeat(c.opts.IndentStyle, c.opts.IndentWidth)
	for _, ch := range n.Children() {
		t, ok := ch.(*TextNode)
		if !ok {
			return nil, c.errorf(ch, "only text is allowed inside a %s", n.Kind())
		}
		for _, l := range strings.Split(t.Value, "\n") {
			if l != "" {
				l = strings.Repeat(unit, depth) + l
			}
			lines = append(lines, l)
		}
		var err error
		if lines, err = c.textLines(t, depth+1, lines); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// blockText joins the lines of n. In pretty mode each line is indented one
// level deeper than n.
func (c *Compiler) blockText(n Node) (string, error) {
	lines, err := c.textLines(n, 0, nil)
	if err != nil {
		return "", err
	}
	if prefix := c.indentAt(c.level + 1); prefix != "" {
		for i, l := range lines {
			if l != "" {
				lines[i] = prefix + l
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Compiler) compileComment(n *CommentNode) (string, error) {
	text, err := c.blockText(n)
	if err != nil {
		return "", err
	}
	d := c.opts.Delimiters.Comment
	if !n.Rendered {
		d = c.opts.Delimiters.HiddenComment
	}
	if c.newLine() != "" && strings.Contains(text, "\n") {
		return c.line() + d.Open + "\n" + text + c.line() + d.Close, nil
	}
	return c.line() + d.Open + " " + strings.TrimSpace(text) + " " + d.Close, nil
}

func (c *Compiler) compileFilter(n *FilterNode) (string, error) {
	f, ok := c.opts.Filters[n.Name]
	if !ok {
		return "", c.errorf(n, "unknown filter %q", n.Name)
	}
	text, err := c.blockText(n)
	if err != nil {
		return "", err
	}
	out, err := f(text, FilterContext{
		Name:       n.Name,
		Indent:     c.indent(),
		NewLine:    c.newLine(),
		Pretty:     c.newLine() != "",
		Delimiters: c.opts.Delimiters,
	})
	if err != nil {
		return "", c.errorf(n, "filter %q: %v", n.Name, err)
	}
	return c.line() + out, nil
}

func (c *Compiler) compileCode(n *CodeNode) (string, error) {
	if !n.Block {
		if len(n.Children()) == 0 {
			return c.line() + c.statement(n.Value), nil
		}
		return c.compileBody(n, n.Value+" {", "}")
	}
	text, err := c.blockText(n)
	if err != nil {
		return "", err
	}
	d := c.opts.Delimiters.Statement
	return c.line() + d.Open + "\n" + text + "\n" + c.indent() + d.Close, nil
}

func doctypeMode(name string) Mode {
	switch {
	case name == "xml":
		return ModeXML
	case slices.Contains(xhtmlDoctypes, name):
		return ModeXHTML
	}
	return ModeHTML
}

func (c *Compiler) compileDoctype(n *DoctypeNode) string {
	decl, ok := c.opts.Doctypes[n.Name]
	if !ok {
		decl = "<!DOCTYPE " + n.Name + ">"
	}
	c.mode = doctypeMode(n.Name)
	// An XML declaration would be read as an opening code delimiter.
	if strings.Contains(decl, "<?") {
		return c.line() + c.echo(exportString(decl))
	}
	return c.line() + decl
}
