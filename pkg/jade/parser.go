package jade

import (
	"fmt"
	"io"
)

// Parser builds a node tree from the lexer's token stream. It keeps no state
// between calls to Parse; one Parser must not be used concurrently.
type Parser struct {
	opts LexerOptions

	tok      Token
	document *DocumentNode
	level    int
	current  Node
	parent   Node
	last     Node

	inMixin    bool
	mixinLevel int

	// expansion is the innermost node of a pending "a: b" chain. Each
	// node's outer link points to the one it was expanded from.
	expansion Node
	expectTag bool

	attrs      *[]*AttributeNode
	assignment *AssignmentNode
}

// NewParser returns a parser whose lexers use opts.
func NewParser(opts LexerOptions) *Parser {
	return &Parser{opts: opts}
}

// Parse lexes and parses a whole template.
func Parse(src string, opts LexerOptions) (*DocumentNode, error) {
	return NewParser(opts).Parse(src)
}

// Parse returns the document node of src.
func (p *Parser) Parse(src string) (*DocumentNode, error) {
	p.reset()
	lx := NewLexer(src, p.opts)
	for {
		t, err := lx.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		p.tok = t
		if err := p.handle(t); err != nil {
			return nil, err
		}
	}
	if p.expectTag {
		return nil, p.errorf("expected a tag name after the namespace colon")
	}
	if p.attrs != nil {
		return nil, p.errorf("unclosed attribute block")
	}
	p.commit()
	return p.document, nil
}

func (p *Parser) reset() {
	p.document = &DocumentNode{nodeBase: nodeBase{line: 1}}
	p.tok = Token{}
	p.level = 0
	p.current, p.last, p.expansion = nil, nil, nil
	p.parent = p.document
	p.inMixin, p.mixinLevel = false, 0
	p.expectTag = false
	p.attrs, p.assignment = nil, nil
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{
		Message: fmt.Sprintf(format, args...),
		Line:    p.tok.Line,
		Offset:  p.tok.Offset,
		Kind:    p.tok.Kind,
	}
}

func (p *Parser) handle(t Token) error {
	if p.expectTag && t.Kind != TokenTag {
		return p.errorf("expected a tag name after the namespace colon, got %s", t.Kind)
	}
	if p.attrs != nil && t.Kind != TokenAttribute && t.Kind != TokenAttributeEnd {
		return p.errorf("unexpected %s inside an attribute block", t.Kind)
	}
	switch t.Kind {
	case TokenNewLine:
		p.commit()
	case TokenIndent:
		return p.indent()
	case TokenOutdent:
		return p.outdent()
	case TokenExpansion:
		return p.expand(t)
	case TokenTag:
		return p.handleTag(t)
	case TokenClass:
		return p.handleShorthand("class", t)
	case TokenID:
		return p.handleShorthand("id", t)
	case TokenAttributeStart:
		return p.attributeStart()
	case TokenAttribute:
		return p.attribute(t)
	case TokenAttributeEnd:
		return p.attributeEnd()
	case TokenAssignment:
		return p.handleAssignment(t)
	case TokenText:
		p.appendOrStart(&TextNode{nodeBase: at(t), Value: t.Value, Block: t.Block})
	case TokenExpression:
		p.appendOrStart(&ExpressionNode{nodeBase: at(t), Value: t.Value, Escaped: t.Escaped, Checked: t.Checked})
	case TokenImport:
		return p.start(&ImportNode{nodeBase: at(t), ImportType: t.Name, Path: t.Value, Filter: t.Filter})
	case TokenBlock:
		if t.Name == "" && !p.withinMixin() {
			return p.errorf("anonymous blocks are only allowed inside mixins")
		}
		return p.start(&BlockNode{nodeBase: at(t), Name: t.Name, Mode: t.Mode})
	case TokenConditional:
		return p.start(&ConditionalNode{nodeBase: at(t), ConditionType: t.ConditionType, Subject: t.Subject})
	case TokenCase:
		return p.start(&CaseNode{nodeBase: at(t), Subject: t.Subject})
	case TokenWhen:
		if _, ok := p.target().(*CaseNode); !ok {
			return p.errorf("%s is only allowed directly inside a case", t.ConditionType)
		}
		return p.start(&WhenNode{nodeBase: at(t), Subject: t.Subject, Default: t.ConditionType == "default"})
	case TokenEach:
		return p.start(&EachNode{nodeBase: at(t), Subject: t.Subject, ItemName: t.ItemName, KeyName: t.KeyName})
	case TokenWhile:
		return p.start(&WhileNode{nodeBase: at(t), Subject: t.Subject})
	case TokenDo:
		return p.start(&DoNode{nodeBase: at(t), Subject: t.Subject})
	case TokenFor:
		return p.start(&ForNode{nodeBase: at(t), Subject: t.Subject})
	case TokenMixin:
		if p.withinMixin() {
			return p.errorf("mixin %q: mixins cannot be nested", t.Name)
		}
		if err := p.start(&MixinNode{nodeBase: at(t), Name: t.Name}); err != nil {
			return err
		}
		p.inMixin, p.mixinLevel = true, p.level
	case TokenMixinCall:
		return p.start(&MixinCallNode{nodeBase: at(t), Name: t.Name})
	case TokenVariable:
		return p.start(&VariableNode{nodeBase: at(t), Name: t.Name, Value: t.Value})
	case TokenComment:
		return p.start(&CommentNode{nodeBase: at(t), Rendered: t.Rendered})
	case TokenFilter:
		return p.start(&FilterNode{nodeBase: at(t), Name: t.Name})
	case TokenCode:
		return p.start(&CodeNode{nodeBase: at(t), Value: t.Value, Block: t.Block})
	case TokenDoctype:
		return p.start(&DoctypeNode{nodeBase: at(t), Name: t.Name})
	default:
		return p.errorf("unhandled token")
	}
	return nil
}

// target is the node the current line's node will end up in.
func (p *Parser) target() Node {
	if p.expansion != nil {
		return p.expansion
	}
	return p.parent
}

// withinMixin reports whether the node being built ends up in a mixin body.
func (p *Parser) withinMixin() bool {
	if !p.inMixin {
		return false
	}
	if p.level > p.mixinLevel {
		return true
	}
	for n := p.expansion; n != nil; n = n.Outer() {
		if _, ok := n.(*MixinNode); ok {
			return true
		}
	}
	return false
}

func (p *Parser) start(n Node) error {
	if p.current != nil {
		return p.errorf("unexpected %s after %s", n.Kind(), p.current.Kind())
	}
	p.current = n
	return nil
}

func (p *Parser) appendOrStart(n Node) {
	if p.current != nil {
		AppendChild(p.current, n)
		return
	}
	p.current = n
}

// element returns the element or mixin call being built, creating a default
// element when nothing is in progress.
func (p *Parser) element() (Node, error) {
	switch c := p.current.(type) {
	case nil:
		el := &ElementNode{nodeBase: at(p.tok)}
		p.current = el
		return el, nil
	case *ElementNode, *MixinCallNode:
		return c, nil
	default:
		return nil, p.errorf("%s cannot be used on a %s", p.tok.Kind, c.Kind())
	}
}

// commit puts the finished line into the tree. For an expansion chain the
// outermost node goes into the parent and every inner node becomes the only
// child of the node it was expanded from.
func (p *Parser) commit() {
	inner := p.current
	if inner == nil {
		inner = p.expansion
	} else {
		inner.base().outer = p.expansion
	}
	p.current, p.expansion = nil, nil
	p.expectTag = false
	if inner == nil {
		return
	}
	n := inner
	for n.Outer() != nil {
		AppendChild(n.Outer(), n)
		n = n.Outer()
	}
	AppendChild(p.parent, n)
	p.last = inner
}

func (p *Parser) indent() error {
	p.level++
	if p.last == nil {
		return p.errorf("unexpected indentation")
	}
	switch p.last.(type) {
	case *ImportNode, *ExpressionNode, *DoctypeNode, *VariableNode:
		return p.errorf("%s nodes cannot have children", p.last.Kind())
	}
	p.parent = p.last
	return nil
}

func (p *Parser) outdent() error {
	p.level--
	n := p.parent
	for n.Outer() != nil {
		n = n.Outer()
	}
	if n.Parent() == nil {
		return p.errorf("unexpected outdent")
	}
	p.parent = n.Parent()
	p.last = n
	if p.inMixin && p.level <= p.mixinLevel {
		p.inMixin = false
	}
	return nil
}

func (p *Parser) expand(t Token) error {
	if p.current == nil {
		return p.errorf("nothing to expand")
	}
	if el, ok := p.current.(*ElementNode); ok && !t.WithSpace && el.Tag != "" &&
		len(el.Attributes) == 0 && len(el.Assignments) == 0 && len(el.Children()) == 0 {
		p.expectTag = true
		return nil
	}
	p.current.base().outer = p.expansion
	p.expansion = p.current
	p.current = nil
	return nil
}

func (p *Parser) handleTag(t Token) error {
	if p.expectTag {
		p.expectTag = false
		el := p.current.(*ElementNode)
		el.Tag += ":" + t.Name
		return nil
	}
	n, err := p.element()
	if err != nil {
		return err
	}
	el, ok := n.(*ElementNode)
	if !ok {
		return p.errorf("tag %q cannot be used on a mixin call", t.Name)
	}
	if el.Tag != "" {
		return p.errorf("element already has the tag %q, cannot set %q", el.Tag, t.Name)
	}
	el.Tag = t.Name
	return nil
}

// handleShorthand stores .class and #id as quoted attribute values.
func (p *Parser) handleShorthand(name string, t Token) error {
	n, err := p.element()
	if err != nil {
		return err
	}
	attr := &AttributeNode{nodeBase: at(t), Name: name, Value: "'" + t.Name + "'", Escaped: true, Checked: true}
	switch c := n.(type) {
	case *ElementNode:
		attr.base().parent = c
		c.Attributes = append(c.Attributes, attr)
	case *MixinCallNode:
		attr.base().parent = c
		c.Attributes = append(c.Attributes, attr)
	}
	return nil
}

func (p *Parser) handleAssignment(t Token) error {
	n, err := p.element()
	if err != nil {
		return err
	}
	a := &AssignmentNode{nodeBase: at(t), Name: t.Name}
	a.base().parent = n
	switch c := n.(type) {
	case *ElementNode:
		c.Assignments = append(c.Assignments, a)
	case *MixinCallNode:
		c.Assignments = append(c.Assignments, a)
	}
	p.assignment = a
	return nil
}

func (p *Parser) attributeStart() error {
	if p.assignment != nil {
		p.attrs = &p.assignment.Attributes
		return nil
	}
	if m, ok := p.current.(*MixinNode); ok {
		if len(m.Attributes) > 0 {
			return p.errorf("mixin %q already declares its parameters", m.Name)
		}
		p.attrs = &m.Attributes
		return nil
	}
	n, err := p.element()
	if err != nil {
		return err
	}
	switch c := n.(type) {
	case *ElementNode:
		p.attrs = &c.Attributes
	case *MixinCallNode:
		if !c.argsSeen {
			c.argsSeen = true
			p.attrs = &c.Arguments
		} else {
			p.attrs = &c.Attributes
		}
	}
	return nil
}

func (p *Parser) attribute(t Token) error {
	if p.attrs == nil {
		return p.errorf("attribute outside of an attribute block")
	}
	owner := p.current
	if p.assignment != nil {
		owner = p.assignment
	}
	attr := &AttributeNode{nodeBase: at(t), Name: t.Name, Value: t.Value, Escaped: t.Escaped, Checked: t.Checked}
	attr.base().parent = owner
	*p.attrs = append(*p.attrs, attr)
	return nil
}

func (p *Parser) attributeEnd() error {
	if p.attrs == nil {
		return p.errorf("unexpected end of attribute block")
	}
	p.attrs = nil
	p.assignment = nil
	return nil
}
