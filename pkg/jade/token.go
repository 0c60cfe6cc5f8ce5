package jade

import (
	"fmt"
	"strings"
)

// TokenKind identifies the lexical class of a Token.
type TokenKind int

const (
	TokenNewLine TokenKind = iota
	TokenIndent
	TokenOutdent
	TokenTag
	TokenClass
	TokenID
	TokenAttributeStart
	TokenAttribute
	TokenAttributeEnd
	TokenText
	TokenImport
	TokenBlock
	TokenConditional
	TokenCase
	TokenWhen
	TokenEach
	TokenWhile
	TokenDo
	TokenFor
	TokenMixin
	TokenMixinCall
	TokenAssignment
	TokenVariable
	TokenComment
	TokenFilter
	TokenExpression
	TokenCode
	TokenDoctype
	TokenExpansion
)

var tokenNames = [...]string{
	TokenNewLine:        "newLine",
	TokenIndent:         "indent",
	TokenOutdent:        "outdent",
	TokenTag:            "tag",
	TokenClass:          "class",
	TokenID:             "id",
	TokenAttributeStart: "attributeStart",
	TokenAttribute:      "attribute",
	TokenAttributeEnd:   "attributeEnd",
	TokenText:           "text",
	TokenImport:         "import",
	TokenBlock:          "block",
	TokenConditional:    "conditional",
	TokenCase:           "case",
	TokenWhen:           "when",
	TokenEach:           "each",
	TokenWhile:          "while",
	TokenDo:             "do",
	TokenFor:            "for",
	TokenMixin:          "mixin",
	TokenMixinCall:      "mixinCall",
	TokenAssignment:     "assignment",
	TokenVariable:       "variable",
	TokenComment:        "comment",
	TokenFilter:         "filter",
	TokenExpression:     "expression",
	TokenCode:           "code",
	TokenDoctype:        "doctype",
	TokenExpansion:      "expansion",
}

func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is a lexical unit. Only the fields relevant to Kind are set.
type Token struct {
	Kind   TokenKind
	Line   int
	Offset int
	// Level is the lexer's indentation depth when the token was emitted.
	Level int

	Name  string
	Value string

	// Subject is the expression of control statements.
	Subject       string
	ConditionType string
	ItemName      string
	KeyName       string

	// Mode is the block mode (replace, append, prepend).
	Mode string
	// Filter is the filter name of an include:filter import.
	Filter string

	Escaped   bool
	Checked   bool
	Rendered  bool
	Block     bool
	WithSpace bool
}

func (t Token) String() string {
	var b strings.Builder
	b.WriteString(t.Kind.String())
	field := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, " %s=%q", k, v)
		}
	}
	field("name", t.Name)
	field("value", t.Value)
	field("type", t.ConditionType)
	field("subject", t.Subject)
	field("item", t.ItemName)
	field("key", t.KeyName)
	field("mode", t.Mode)
	field("filter", t.Filter)
	switch t.Kind {
	case TokenAttribute, TokenExpression:
		if !t.Escaped {
			b.WriteString(" unescaped")
		}
		if !t.Checked {
			b.WriteString(" unchecked")
		}
	case TokenComment:
		if !t.Rendered {
			b.WriteString(" hidden")
		}
	case TokenExpansion:
		if t.WithSpace {
			b.WriteString(" spaced")
		}
	}
	return b.String()
}
