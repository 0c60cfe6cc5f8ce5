package jade

import (
	"regexp"
	"strings"
)

var (
	reImport     = regexp.MustCompile(`^(extends|include)(?::([\w-]+))?[ \t]+([^\n]+)`)
	reBlock      = regexp.MustCompile(`^block(?:[ \t]+(append|prepend|replace))?(?:[ \t]+([a-zA-Z_][\w-]*))?`)
	reBlockShort = regexp.MustCompile(`^(append|prepend|replace)[ \t]+([a-zA-Z_][\w-]*)`)
	reEach       = regexp.MustCompile(`^each[ \t]+\$?([a-zA-Z_]\w*)(?:[ \t]*,[ \t]*\$?([a-zA-Z_]\w*))?[ \t]+in[ \t]+`)
	reMixin      = regexp.MustCompile(`^mixin[ \t]+([a-zA-Z_][\w-]*)`)
	reMixinCall  = regexp.MustCompile(`^\+([a-zA-Z_][\w-]*)`)
	reDoctype    = regexp.MustCompile(`^(?:doctype|!!!)(?:[ \t]+([^\n]*))?`)
	reTag        = regexp.MustCompile(`^[a-zA-Z_][\w-]*`)
	reClass      = regexp.MustCompile(`^\.([a-zA-Z_-][\w-]*)`)
	reID         = regexp.MustCompile(`^#([a-zA-Z_-][\w-]*)`)
	reAssignment = regexp.MustCompile(`^&([a-zA-Z_][\w-]*)`)
	reVariable   = regexp.MustCompile(`^\$([a-zA-Z_]\w*)[ \t]*=`)
	reComment    = regexp.MustCompile(`^//(-)?`)
	reFilter     = regexp.MustCompile(`^:([\w-]+)`)
	reExpression = regexp.MustCompile(`^(\?)?(!)?=`)
)

// matchWord applies re at the cursor and only consumes the match when it is
// not directly followed by an identifier byte.
func (l *Lexer) matchWord(re *regexp.Regexp) []string {
	m := re.FindStringSubmatch(l.r.src[l.r.i:])
	if m == nil {
		return nil
	}
	if c := l.r.peekAt(len(m[0])); isIdentByte(c) || c == '-' {
		return nil
	}
	l.r.consume(len(m[0]))
	return m
}

// atContentStart reports whether only indentation precedes the cursor on
// the current line.
func (l *Lexer) atContentStart() bool {
	for j := l.r.i - 1; j >= 0; j-- {
		switch l.r.src[j] {
		case '\n':
			return true
		case ' ', '\t':
		default:
			return false
		}
	}
	return true
}

func (l *Lexer) scanImport() (bool, error) {
	t := l.token(TokenImport)
	m := l.r.matchRegexp(reImport)
	if m == nil {
		return false, nil
	}
	t.Name = m[1]
	t.Filter = m[2]
	t.Value = strings.TrimSpace(m[3])
	l.emit(t)
	return true, nil
}

func (l *Lexer) scanBlock() (bool, error) {
	t := l.token(TokenBlock)
	m := l.matchWord(reBlock)
	if m == nil {
		m = l.matchWord(reBlockShort)
		if m == nil {
			return false, nil
		}
		t.Mode, t.Name = m[1], m[2]
	} else {
		t.Mode, t.Name = m[1], m[2]
	}
	if t.Mode == "" {
		t.Mode = BlockReplace
	}
	l.emit(t)
	return true, l.scanSub()
}

// subjectMode tells the generic control scanner whether a keyword reads a
// subject expression.
type subjectMode int

const (
	subjectNone subjectMode = iota
	subjectOptional
	subjectRequired
)

type controlKeyword struct {
	word    string
	name    string
	subject subjectMode
}

// scanControl is shared by every control statement. The first keyword that
// matches decides the token's ConditionType and whether a subject is read.
func (l *Lexer) scanControl(kind TokenKind, keywords []controlKeyword) (bool, error) {
	t := l.token(kind)
	var kw *controlKeyword
	for i := range keywords {
		if l.r.matchKeyword(keywords[i].word) {
			kw = &keywords[i]
			break
		}
	}
	if kw == nil {
		return false, nil
	}
	t.ConditionType = kw.name
	if kw.subject != subjectNone {
		subject, err := l.readSubject()
		if err != nil {
			return false, err
		}
		if subject == "" && kw.subject == subjectRequired {
			return false, l.r.errorf("%s needs a subject", kw.word)
		}
		t.Subject = subject
	}
	l.emit(t)
	return true, l.scanSub()
}

// readSubject reads a bare or parenthesised control subject up to the end of
// the line or an expansion colon.
func (l *Lexer) readSubject() (string, error) {
	l.r.readSpaces()
	s, err := l.r.readExpression(exprOptions{breaks: "\n:", ternary: true})
	if err != nil {
		return "", err
	}
	return stripParens(strings.TrimSpace(s)), nil
}

// stripParens removes one pair of parentheses enclosing the whole string.
func stripParens(s string) string {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}

var conditionalKeywords = []controlKeyword{
	{"if", "if", subjectRequired},
	{"unless", "unless", subjectRequired},
	{"elseif", "elseif", subjectRequired},
	{"else if", "elseif", subjectRequired},
	{"else", "else", subjectNone},
}

func (l *Lexer) scanConditional() (bool, error) {
	return l.scanControl(TokenConditional, conditionalKeywords)
}

func (l *Lexer) scanCase() (bool, error) {
	return l.scanControl(TokenCase, []controlKeyword{{"case", "case", subjectRequired}})
}

func (l *Lexer) scanWhen() (bool, error) {
	return l.scanControl(TokenWhen, []controlKeyword{
		{"when", "when", subjectRequired},
		{"default", "default", subjectNone},
	})
}

func (l *Lexer) scanDo() (bool, error) {
	return l.scanControl(TokenDo, []controlKeyword{{"do", "do", subjectOptional}})
}

func (l *Lexer) scanWhile() (bool, error) {
	return l.scanControl(TokenWhile, []controlKeyword{{"while", "while", subjectRequired}})
}

func (l *Lexer) scanFor() (bool, error) {
	return l.scanControl(TokenFor, []controlKeyword{{"for", "for", subjectRequired}})
}

func (l *Lexer) scanEach() (bool, error) {
	if !l.r.hasPrefix("each") {
		return false, nil
	}
	if c := l.r.peekAt(4); isIdentByte(c) || c == '-' {
		return false, nil
	}
	t := l.token(TokenEach)
	m := l.r.matchRegexp(reEach)
	if m == nil {
		return false, l.r.errorf("malformed each loop, expected \"each $item[, $key] in $subject\"")
	}
	t.ItemName, t.KeyName = m[1], m[2]
	subject, err := l.readSubject()
	if err != nil {
		return false, err
	}
	if subject == "" {
		return false, l.r.errorf("each needs a subject to iterate")
	}
	t.Subject = subject
	l.emit(t)
	return true, l.scanSub()
}

func (l *Lexer) scanMixin() (bool, error) {
	t := l.token(TokenMixin)
	m := l.r.matchRegexp(reMixin)
	if m == nil {
		return false, nil
	}
	t.Name = m[1]
	l.emit(t)
	return true, l.scanSub()
}

func (l *Lexer) scanMixinCall() (bool, error) {
	t := l.token(TokenMixinCall)
	m := l.r.matchRegexp(reMixinCall)
	if m == nil {
		return false, nil
	}
	t.Name = m[1]
	l.emit(t)
	return true, l.scanSub()
}

func (l *Lexer) scanDoctype() (bool, error) {
	t := l.token(TokenDoctype)
	m := l.matchWord(reDoctype)
	if m == nil {
		return false, nil
	}
	t.Name = strings.TrimSpace(m[1])
	if t.Name == "" {
		t.Name = "html"
	}
	l.emit(t)
	return true, nil
}

func (l *Lexer) scanTag() (bool, error) {
	t := l.token(TokenTag)
	m := l.r.matchRegexp(reTag)
	if m == nil {
		return false, nil
	}
	t.Name = m[0]
	l.emit(t)
	return true, l.scanSub()
}

func (l *Lexer) scanClass() (bool, error) {
	t := l.token(TokenClass)
	m := l.r.matchRegexp(reClass)
	if m == nil {
		return false, nil
	}
	t.Name = m[1]
	l.emit(t)
	return true, l.scanSub()
}

func (l *Lexer) scanID() (bool, error) {
	t := l.token(TokenID)
	m := l.r.matchRegexp(reID)
	if m == nil {
		return false, nil
	}
	t.Name = m[1]
	l.emit(t)
	return true, l.scanSub()
}

func (l *Lexer) scanAttributes() (bool, error) {
	if l.r.peek() != '(' {
		return false, nil
	}
	start := l.token(TokenAttributeStart)
	l.r.next()
	l.emit(start)
	for {
		l.r.readWhile(func(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == ',' })
		if l.r.eof() {
			return false, &LexError{Message: "unclosed attribute block, expected ')'", Line: start.Line, Offset: start.Offset}
		}
		if l.r.peek() == ')' {
			end := l.token(TokenAttributeEnd)
			l.r.next()
			l.emit(end)
			break
		}
		if err := l.scanAttribute(); err != nil {
			return false, err
		}
	}
	return true, l.scanSub()
}

func (l *Lexer) scanAttribute() error {
	t := l.token(TokenAttribute)
	t.Escaped, t.Checked = true, true
	name, err := l.r.readExpression(exprOptions{breaks: "=,) \t\n", continueOnOperator: true})
	if err != nil {
		return err
	}
flags:
	for len(name) > 0 {
		switch name[len(name)-1] {
		case '!':
			t.Escaped = false
		case '?':
			t.Checked = false
		default:
			break flags
		}
		name = name[:len(name)-1]
	}
	if name == "" {
		return l.r.errorf("attribute name expected")
	}
	t.Name = name
	l.r.readSpaces()
	if l.r.peek() == '=' {
		l.r.next()
		l.r.readSpaces()
		value, err := l.r.readExpression(exprOptions{breaks: ",) \t\n", continueOnOperator: true})
		if err != nil {
			return err
		}
		if value == "" {
			return l.r.errorf("value expected for attribute %q", name)
		}
		t.Value = value
	}
	l.emit(t)
	return nil
}

func (l *Lexer) scanAssignment() (bool, error) {
	t := l.token(TokenAssignment)
	m := l.r.matchRegexp(reAssignment)
	if m == nil {
		return false, nil
	}
	if l.r.peek() != '(' {
		return false, l.r.errorf("assignment &%s needs an attribute block", m[1])
	}
	t.Name = m[1]
	l.emit(t)
	return true, nil
}

func (l *Lexer) scanVariable() (bool, error) {
	m := reVariable.FindStringSubmatch(l.r.src[l.r.i:])
	if m == nil || l.r.peekAt(len(m[0])) == '=' {
		return false, nil
	}
	t := l.token(TokenVariable)
	l.r.consume(len(m[0]))
	l.r.readSpaces()
	value, err := l.r.readExpression(exprOptions{breaks: "\n"})
	if err != nil {
		return false, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false, l.r.errorf("value expected for $%s", m[1])
	}
	t.Name, t.Value = m[1], value
	l.emit(t)
	return true, nil
}

func (l *Lexer) scanComment() (bool, error) {
	t := l.token(TokenComment)
	m := l.r.matchRegexp(reComment)
	if m == nil {
		return false, nil
	}
	t.Rendered = m[1] == ""
	l.emit(t)
	return true, l.scanTextBlock(true)
}

func (l *Lexer) scanFilter() (bool, error) {
	t := l.token(TokenFilter)
	m := l.r.matchRegexp(reFilter)
	if m == nil {
		return false, nil
	}
	t.Name = m[1]
	l.emit(t)
	return true, l.scanTextBlock(true)
}

func (l *Lexer) scanExpression() (bool, error) {
	t := l.token(TokenExpression)
	m := l.r.matchRegexp(reExpression)
	if m == nil {
		return false, nil
	}
	t.Checked = m[1] == ""
	t.Escaped = m[2] == ""
	l.r.readSpaces()
	value, err := l.r.readExpression(exprOptions{breaks: "\n"})
	if err != nil {
		return false, err
	}
	t.Value = strings.TrimSpace(value)
	if t.Value == "" {
		return false, l.r.errorf("expression expected after %q", m[0])
	}
	l.emit(t)
	return true, nil
}

func (l *Lexer) scanCode() (bool, error) {
	if l.r.peek() != '-' || !l.atContentStart() {
		return false, nil
	}
	t := l.token(TokenCode)
	l.r.next()
	l.r.readSpaces()
	if l.r.restOfLineBlank() {
		t.Block = true
		l.emit(t)
		return true, l.scanTextBlock(false)
	}
	t.Value = strings.TrimSpace(l.r.readLine())
	l.emit(t)
	return true, nil
}

func (l *Lexer) scanMarkup() (bool, error) {
	if l.r.peek() != '<' || !l.atContentStart() {
		return false, nil
	}
	t := l.token(TokenText)
	t.Value = l.r.readLine()
	l.emit(t)
	return true, nil
}

func (l *Lexer) scanTextLine() (bool, error) {
	if l.r.peek() != '|' || !l.atContentStart() {
		return false, nil
	}
	l.r.next()
	if l.r.peek() == ' ' {
		l.r.next()
	}
	t := l.token(TokenText)
	t.Value = l.r.readLine()
	l.emit(t)
	return true, nil
}

func (l *Lexer) scanText() (bool, error) {
	if !l.atContentStart() {
		return false, nil
	}
	t := l.token(TokenText)
	t.Value = l.r.readLine()
	if t.Value == "" {
		return false, nil
	}
	l.emit(t)
	return true, nil
}

// scanSub handles what may trail a construct on the same line: an expansion
// colon, a text block dot or inline text.
func (l *Lexer) scanSub() error {
	switch c := l.r.peek(); {
	case c == ':':
		if l.r.peekAt(1) == ':' {
			return nil
		}
		t := l.token(TokenExpansion)
		l.r.next()
		t.WithSpace = l.r.readSpaces() != ""
		if l.r.restOfLineBlank() {
			return l.r.errorf("expansion needs something to expand into")
		}
		l.emit(t)
	case c == '.' && l.r.peekAt(1) != '.' && l.restBlankAfter(1):
		l.r.next()
		l.r.readSpaces()
		return l.scanTextBlock(false)
	case isBlank(c):
		l.r.readSpaces()
		if l.r.eof() || l.r.peek() == '\n' {
			return nil
		}
		t := l.token(TokenText)
		t.Value = l.r.readLine()
		l.emit(t)
	}
	return nil
}

func (l *Lexer) restBlankAfter(k int) bool {
	for j := l.r.i + k; j < l.r.n; j++ {
		switch l.r.src[j] {
		case ' ', '\t':
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// scanTextBlock emits the rest of the line (when withLine is set) as text,
// then every following line indented deeper than the introducer as block
// text, with the NewLine/Indent/Outdent tokens in between. Blank lines
// between those lines become empty text.
func (l *Lexer) scanTextBlock(withLine bool) error {
	if withLine {
		t := l.token(TokenText)
		t.Value = strings.TrimSpace(l.r.readLine())
		if t.Value != "" {
			l.emit(t)
		}
	}
	base := l.level
	started := false
	for l.r.peek() == '\n' && l.nextLineDeeper(base) {
		l.emit(l.token(TokenNewLine))
		l.r.next()
		l.lineStart = true
		if err := l.indentLine(true); err != nil {
			return err
		}
		t := l.token(TokenText)
		t.Block = true
		if l.r.peek() == '\n' {
			if started {
				l.emit(t)
			}
			continue
		}
		t.Value = l.r.readLine()
		l.emit(t)
		started = true
	}
	return nil
}
