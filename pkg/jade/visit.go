package jade

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

type Visitor interface {
	Visit(n Node) error
}

// VisitorFunc adapts a function to a Visitor.
type VisitorFunc func(n Node) error

func (f VisitorFunc) Visit(n Node) error { return f(n) }

// SkipChildren may be returned by a Visitor to stop Walk from descending
// into the node's children.
var SkipChildren = errors.New("skip children")

// Walk visits n and its children depth-first in source order. The child list
// is copied before descending, so visitors may detach the visited node.
func Walk(v Visitor, n Node) error {
	if err := v.Visit(n); err != nil {
		if err == SkipChildren {
			return nil
		}
		return err
	}
	children := append([]Node(nil), n.Children()...)
	for _, c := range children {
		if err := Walk(v, c); err != nil {
			return err
		}
	}
	return nil
}

// Pretty returns a line-oriented string representation of the tree.
func Pretty(n Node) string {
	var buf bytes.Buffer
	ppNode(&buf, 0, n)
	return buf.String()
}

func ppNode(buf *bytes.Buffer, indent int, n Node) {
	buf.WriteString(strings.Repeat(" ", indent))
	switch t := n.(type) {
	case *DocumentNode:
		buf.WriteString("Document")
	case *ElementNode:
		tag := t.Tag
		if tag == "" {
			tag = "(default)"
		}
		fmt.Fprintf(buf, "Element(%s%s%s)", tag, ppAttrs(t.Attributes), ppAssignments(t.Assignments))
	case *TextNode:
		fmt.Fprintf(buf, "Text(%q)", t.Value)
	case *ImportNode:
		if t.Filter != "" {
			fmt.Fprintf(buf, "Import(%s:%s %q)", t.ImportType, t.Filter, t.Path)
		} else {
			fmt.Fprintf(buf, "Import(%s %q)", t.ImportType, t.Path)
		}
	case *BlockNode:
		fmt.Fprintf(buf, "Block(%s %s)", t.Mode, t.Name)
		if t.Ignored {
			buf.WriteString(" ignored")
		}
	case *ConditionalNode:
		fmt.Fprintf(buf, "Conditional(%s %q)", t.ConditionType, t.Subject)
	case *CaseNode:
		fmt.Fprintf(buf, "Case(%q)", t.Subject)
	case *WhenNode:
		if t.Default {
			buf.WriteString("When(default)")
		} else {
			fmt.Fprintf(buf, "When(%q)", t.Subject)
		}
	case *EachNode:
		if t.KeyName != "" {
			fmt.Fprintf(buf, "Each($%s, $%s in %q)", t.ItemName, t.KeyName, t.Subject)
		} else {
			fmt.Fprintf(buf, "Each($%s in %q)", t.ItemName, t.Subject)
		}
	case *WhileNode:
		fmt.Fprintf(buf, "While(%q)", t.Subject)
	case *DoNode:
		buf.WriteString("Do")
	case *ForNode:
		fmt.Fprintf(buf, "For(%q)", t.Subject)
	case *MixinNode:
		fmt.Fprintf(buf, "Mixin(%s%s)", t.Name, ppAttrs(t.Attributes))
	case *MixinCallNode:
		fmt.Fprintf(buf, "MixinCall(%s%s%s%s)", t.Name, ppAttrs(t.Arguments), ppAttrs(t.Attributes), ppAssignments(t.Assignments))
	case *VariableNode:
		fmt.Fprintf(buf, "Variable($%s = %q)", t.Name, t.Value)
	case *CommentNode:
		if t.Rendered {
			buf.WriteString("Comment")
		} else {
			buf.WriteString("Comment(hidden)")
		}
	case *FilterNode:
		fmt.Fprintf(buf, "Filter(%s)", t.Name)
	case *ExpressionNode:
		fmt.Fprintf(buf, "Expression(%q", t.Value)
		if !t.Escaped {
			buf.WriteString(" unescaped")
		}
		if !t.Checked {
			buf.WriteString(" unchecked")
		}
		buf.WriteString(")")
	case *CodeNode:
		if t.Block {
			buf.WriteString("Code(block)")
		} else {
			fmt.Fprintf(buf, "Code(%q)", t.Value)
		}
	case *DoctypeNode:
		fmt.Fprintf(buf, "Doctype(%s)", t.Name)
	default:
		buf.WriteString(n.Kind().String())
	}
	buf.WriteByte('\n')
	for _, c := range n.Children() {
		ppNode(buf, indent+2, c)
	}
}

func ppAttrs(attrs []*AttributeNode) string {
	if len(attrs) == 0 {
		return ""
	}
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		s := a.Name
		if !a.Checked {
			s += "?"
		}
		if !a.Escaped {
			s += "!"
		}
		if a.Value != "" {
			s += "=" + a.Value
		}
		parts[i] = s
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func ppAssignments(as []*AssignmentNode) string {
	var b strings.Builder
	for _, a := range as {
		b.WriteString(" &" + a.Name + ppAttrs(a.Attributes))
	}
	return b.String()
}
