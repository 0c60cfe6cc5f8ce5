package jade

import "fmt"

// NodeKind identifies the concrete type of a Node.
type NodeKind int

const (
	KindNone NodeKind = iota
	KindDocument
	KindElement
	KindAttribute
	KindAssignment
	KindText
	KindImport
	KindBlock
	KindConditional
	KindCase
	KindWhen
	KindEach
	KindWhile
	KindDo
	KindFor
	KindMixin
	KindMixinCall
	KindVariable
	KindComment
	KindFilter
	KindExpression
	KindCode
	KindDoctype
)

var kindNames = [...]string{
	KindNone:        "none",
	KindDocument:    "document",
	KindElement:     "element",
	KindAttribute:   "attribute",
	KindAssignment:  "assignment",
	KindText:        "text",
	KindImport:      "import",
	KindBlock:       "block",
	KindConditional: "conditional",
	KindCase:        "case",
	KindWhen:        "when",
	KindEach:        "each",
	KindWhile:       "while",
	KindDo:          "do",
	KindFor:         "for",
	KindMixin:       "mixin",
	KindMixinCall:   "mixinCall",
	KindVariable:    "variable",
	KindComment:     "comment",
	KindFilter:      "filter",
	KindExpression:  "expression",
	KindCode:        "code",
	KindDoctype:     "doctype",
}

func (k NodeKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Block modes.
const (
	BlockReplace = "replace"
	BlockAppend  = "append"
	BlockPrepend = "prepend"
)

// Node is any vertex of a parsed template. The set of implementations is
// closed; the compiler switches over all of them.
type Node interface {
	Kind() NodeKind
	Line() int
	Offset() int
	Parent() Node
	Children() []Node
	// Outer is the node this one was expanded from with "a: b".
	Outer() Node
	base() *nodeBase
}

// nodeBase holds what every node shares. parent is a back-reference only:
// children are owned by the slice, and only the tree functions below set it.
type nodeBase struct {
	line     int
	offset   int
	parent   Node
	children []Node
	outer    Node
}

func (b *nodeBase) base() *nodeBase  { return b }
func (b *nodeBase) Line() int        { return b.line }
func (b *nodeBase) Offset() int      { return b.offset }
func (b *nodeBase) Parent() Node     { return b.parent }
func (b *nodeBase) Children() []Node { return b.children }
func (b *nodeBase) Outer() Node      { return b.outer }

func at(t Token) nodeBase { return nodeBase{line: t.Line, offset: t.Offset} }

// DocumentNode is the root produced by the parser.
type DocumentNode struct{ nodeBase }

// ElementNode is an HTML/XML element. An empty Tag means the default tag.
type ElementNode struct {
	nodeBase
	Tag         string
	Attributes  []*AttributeNode
	Assignments []*AssignmentNode
}

// AttributeNode is one name/value pair. Value holds raw code; an empty Value
// is a boolean attribute. Mixin parameters and call arguments use it too.
type AttributeNode struct {
	nodeBase
	Name    string
	Value   string
	Escaped bool
	Checked bool
}

// AssignmentNode is an "&name(...)" attribute spread.
type AssignmentNode struct {
	nodeBase
	Name       string
	Attributes []*AttributeNode
}

// TextNode is literal text, with interpolation unless Raw is set.
type TextNode struct {
	nodeBase
	Value string
	Raw   bool
	// Block marks a line of a text block. Line breaks between block lines
	// are kept.
	Block bool
}

// ImportNode is an extends or include statement.
type ImportNode struct {
	nodeBase
	ImportType string
	Path       string
	Filter     string
}

// BlockNode is a named block, or an anonymous one inside a mixin.
type BlockNode struct {
	nodeBase
	Name    string
	Mode    string
	Ignored bool
}

// ConditionalNode is one branch of an if/unless/elseif/else chain.
type ConditionalNode struct {
	nodeBase
	ConditionType string
	Subject       string
}

type CaseNode struct {
	nodeBase
	Subject string
}

type WhenNode struct {
	nodeBase
	Subject string
	Default bool
}

type EachNode struct {
	nodeBase
	Subject  string
	ItemName string
	KeyName  string
}

type WhileNode struct {
	nodeBase
	Subject string
}

type DoNode struct {
	nodeBase
	Subject string
}

type ForNode struct {
	nodeBase
	Subject string
}

// MixinNode is a mixin definition. Attributes are its declared parameters.
type MixinNode struct {
	nodeBase
	Name       string
	Attributes []*AttributeNode
}

// MixinCallNode is a "+name(args)" call. Arguments come from the first
// attribute block, Attributes and Assignments from everything after it.
type MixinCallNode struct {
	nodeBase
	Name        string
	Arguments   []*AttributeNode
	Attributes  []*AttributeNode
	Assignments []*AssignmentNode

	argsSeen bool
}

type VariableNode struct {
	nodeBase
	Name  string
	Value string
}

// CommentNode holds its text as children. Hidden comments have Rendered unset.
type CommentNode struct {
	nodeBase
	Rendered bool
}

// FilterNode holds the filtered text as children.
type FilterNode struct {
	nodeBase
	Name string
}

type ExpressionNode struct {
	nodeBase
	Value   string
	Escaped bool
	Checked bool
}

// CodeNode is a "- code" line, or a code block whose lines are text children.
type CodeNode struct {
	nodeBase
	Value string
	Block bool
}

type DoctypeNode struct {
	nodeBase
	Name string
}

func (*DocumentNode) Kind() NodeKind    { return KindDocument }
func (*ElementNode) Kind() NodeKind     { return KindElement }
func (*AttributeNode) Kind() NodeKind   { return KindAttribute }
func (*AssignmentNode) Kind() NodeKind  { return KindAssignment }
func (*TextNode) Kind() NodeKind        { return KindText }
func (*ImportNode) Kind() NodeKind      { return KindImport }
func (*BlockNode) Kind() NodeKind       { return KindBlock }
func (*ConditionalNode) Kind() NodeKind { return KindConditional }
func (*CaseNode) Kind() NodeKind        { return KindCase }
func (*WhenNode) Kind() NodeKind        { return KindWhen }
func (*EachNode) Kind() NodeKind        { return KindEach }
func (*WhileNode) Kind() NodeKind       { return KindWhile }
func (*DoNode) Kind() NodeKind          { return KindDo }
func (*ForNode) Kind() NodeKind         { return KindFor }
func (*MixinNode) Kind() NodeKind       { return KindMixin }
func (*MixinCallNode) Kind() NodeKind   { return KindMixinCall }
func (*VariableNode) Kind() NodeKind    { return KindVariable }
func (*CommentNode) Kind() NodeKind     { return KindComment }
func (*FilterNode) Kind() NodeKind      { return KindFilter }
func (*ExpressionNode) Kind() NodeKind  { return KindExpression }
func (*CodeNode) Kind() NodeKind        { return KindCode }
func (*DoctypeNode) Kind() NodeKind     { return KindDoctype }

// AppendChild makes child the last child of parent, detaching it from any
// previous parent first.
func AppendChild(parent, child Node) {
	Detach(child)
	pb := parent.base()
	pb.children = append(pb.children, child)
	child.base().parent = parent
}

// PrependChild makes child the first child of parent.
func PrependChild(parent, child Node) {
	Detach(child)
	pb := parent.base()
	pb.children = append([]Node{child}, pb.children...)
	child.base().parent = parent
}

// InsertBefore puts child right before ref among parent's children. When ref
// is not a child of parent, child is appended.
func InsertBefore(parent, ref, child Node) {
	Detach(child)
	pb := parent.base()
	i := indexOf(pb.children, ref)
	if i < 0 {
		pb.children = append(pb.children, child)
	} else {
		pb.children = append(pb.children, nil)
		copy(pb.children[i+1:], pb.children[i:])
		pb.children[i] = child
	}
	child.base().parent = parent
}

// Detach removes n from its parent. It is a no-op for roots.
func Detach(n Node) {
	b := n.base()
	if b.parent == nil {
		return
	}
	pb := b.parent.base()
	if i := indexOf(pb.children, n); i >= 0 {
		pb.children = append(pb.children[:i:i], pb.children[i+1:]...)
	}
	b.parent = nil
}

// DetachChildren removes and returns all children of n in order.
func DetachChildren(n Node) []Node {
	b := n.base()
	children := b.children
	b.children = nil
	for _, c := range children {
		c.base().parent = nil
	}
	return children
}

// PrevSibling returns the sibling right before n, or nil.
func PrevSibling(n Node) Node {
	p := n.Parent()
	if p == nil {
		return nil
	}
	siblings := p.Children()
	if i := indexOf(siblings, n); i > 0 {
		return siblings[i-1]
	}
	return nil
}

// NextSibling returns the sibling right after n, or nil.
func NextSibling(n Node) Node {
	p := n.Parent()
	if p == nil {
		return nil
	}
	siblings := p.Children()
	if i := indexOf(siblings, n); i >= 0 && i+1 < len(siblings) {
		return siblings[i+1]
	}
	return nil
}

func indexOf(nodes []Node, n Node) int {
	for i, c := range nodes {
		if c == n {
			return i
		}
	}
	return -1
}

// FindAll collects every descendant of root of type T in depth-first
// pre-order. root itself is included when it matches.
func FindAll[T Node](root Node) []T {
	var out []T
	var walk func(Node)
	walk = func(n Node) {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}
