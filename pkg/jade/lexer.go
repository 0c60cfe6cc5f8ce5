package jade

import (
	"io"
	"iter"
	"math"
)

// The lexer turns template source into a stream of tokens. It is pull based:
// scanners run only when the parser asks for the next token, and every
// scanner pushes 0..n tokens onto a small queue.

// Indentation styles.
const (
	IndentSpace = " "
	IndentTab   = "\t"
)

// spacesPerTab is used to reconcile tabs and spaces inside one indent when
// the width is not known yet, and to turn spaces into tabs in tab style.
const spacesPerTab = 4

// LexerOptions presets the indentation style and width. Zero values mean the
// first indented line decides.
type LexerOptions struct {
	IndentStyle string `yaml:"indentStyle,omitempty"`
	IndentWidth int    `yaml:"indentWidth,omitempty"`
}

type scanFunc func(l *Lexer) (bool, error)

// Lexer scans one template. It is not restartable; create one per input.
type Lexer struct {
	r    *reader
	opts LexerOptions

	style byte
	width int
	level int
	// indents holds the indent of every open level, in units.
	indents []float64

	lineStart bool
	queue     []Token
	err       error
}

// NewLexer returns a lexer positioned at the start of src.
func NewLexer(src string, opts LexerOptions) *Lexer {
	l := &Lexer{r: newReader(src), opts: opts, lineStart: true}
	if opts.IndentStyle != "" {
		l.style = opts.IndentStyle[0]
	}
	if opts.IndentWidth > 0 {
		l.width = opts.IndentWidth
	}
	return l
}

// scanners in priority order.
var scanners = []scanFunc{
	(*Lexer).scanNewLine,
	(*Lexer).scanIndent,
	(*Lexer).scanImport,
	(*Lexer).scanBlock,
	(*Lexer).scanConditional,
	(*Lexer).scanEach,
	(*Lexer).scanCase,
	(*Lexer).scanWhen,
	(*Lexer).scanDo,
	(*Lexer).scanWhile,
	(*Lexer).scanFor,
	(*Lexer).scanMixin,
	(*Lexer).scanMixinCall,
	(*Lexer).scanDoctype,
	(*Lexer).scanTag,
	(*Lexer).scanClass,
	(*Lexer).scanID,
	(*Lexer).scanAttributes,
	(*Lexer).scanAssignment,
	(*Lexer).scanVariable,
	(*Lexer).scanComment,
	(*Lexer).scanFilter,
	(*Lexer).scanExpression,
	(*Lexer).scanCode,
	(*Lexer).scanMarkup,
	(*Lexer).scanTextLine,
	(*Lexer).scanText,
}

// Next returns the next token, or io.EOF once the input is exhausted. A lex
// error is sticky: every later call returns it again.
func (l *Lexer) Next() (Token, error) {
	for len(l.queue) == 0 {
		if l.err != nil {
			return Token{}, l.err
		}
		if l.r.eof() {
			return Token{}, io.EOF
		}
		if err := l.scan(); err != nil {
			l.err = err
			l.queue = nil
			return Token{}, err
		}
	}
	t := l.queue[0]
	l.queue = l.queue[1:]
	return t, nil
}

// Tokens exposes the stream as an iterator. Iteration stops after the first
// error, which is yielded with a zero token.
func (l *Lexer) Tokens() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		for {
			t, err := l.Next()
			if err == io.EOF {
				return
			}
			if !yield(t, err) || err != nil {
				return
			}
		}
	}
}

// Lex reads every token of src.
func Lex(src string, opts LexerOptions) ([]Token, error) {
	var out []Token
	for t, err := range NewLexer(src, opts).Tokens() {
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (l *Lexer) scan() error {
	start := l.r.i
	wasLineStart := l.lineStart
	for _, s := range scanners {
		ok, err := s(l)
		if err != nil {
			return err
		}
		if ok {
			if l.r.i == start && len(l.queue) == 0 && !wasLineStart {
				return l.r.errorf("unexpected character %q", l.r.peek())
			}
			return nil
		}
	}
	return l.r.errorf("unexpected character %q", l.r.peek())
}

func (l *Lexer) token(kind TokenKind) Token {
	return Token{Kind: kind, Line: l.r.line, Offset: l.r.offset, Level: l.level}
}

func (l *Lexer) emit(t Token) {
	l.queue = append(l.queue, t)
}

func (l *Lexer) scanNewLine() (bool, error) {
	if l.r.peek() != '\n' {
		return false, nil
	}
	l.emit(l.token(TokenNewLine))
	l.r.next()
	l.lineStart = true
	return true, nil
}

func (l *Lexer) scanIndent() (bool, error) {
	if !l.lineStart {
		return false, nil
	}
	return true, l.indentLine(false)
}

// indentLine reads the indent of a new line and emits the indent and outdent
// tokens that move the lexer to its level. Blank lines keep the level. In a
// text block a line may dedent to between two open levels.
func (l *Lexer) indentLine(lenient bool) error {
	l.lineStart = false
	t := l.token(TokenIndent)
	indent := l.r.readSpaces()
	if l.r.eof() || l.r.peek() == '\n' {
		return nil
	}
	level, err := l.indentLevel(indent, t, lenient)
	if err != nil {
		return err
	}
	for l.level < level {
		l.level++
		t.Kind, t.Level = TokenIndent, l.level
		l.emit(t)
	}
	for l.level > level {
		l.level--
		t.Kind, t.Level = TokenOutdent, l.level
		l.emit(t)
	}
	return nil
}

// indentUnits measures an indent in units of the established style. A tab in
// space style counts as one indent width, spaces in tab style count a quarter
// tab each.
func (l *Lexer) indentUnits(indent string, style byte) float64 {
	tab := l.width
	if tab == 0 {
		tab = spacesPerTab
	}
	units := 0.0
	for i := 0; i < len(indent); i++ {
		switch {
		case indent[i] == style:
			units++
		case style == ' ':
			units += float64(tab)
		default:
			units += 1.0 / spacesPerTab
		}
	}
	return units
}

// indentLevel establishes style and width on first use and converts an
// indent into a level. Open levels indented deeper than the line are closed;
// a line deeper than every open level opens exactly one more.
func (l *Lexer) indentLevel(indent string, at Token, lenient bool) (int, error) {
	if indent == "" {
		l.indents = l.indents[:0]
		return 0, nil
	}
	hasTab, hasSpace := false, false
	for i := 0; i < len(indent); i++ {
		if indent[i] == '\t' {
			hasTab = true
		} else {
			hasSpace = true
		}
	}
	if l.style == 0 {
		l.style = indent[0]
	}
	if !(hasTab && hasSpace) {
		if (l.style == ' ' && hasTab) || (l.style == '\t' && hasSpace) {
			return 0, &LexError{
				Message: "mixed indentation: the template is indented with " + styleName(l.style) + " but this line uses " + styleName(indent[0]),
				Line:    at.Line,
				Offset:  at.Offset,
				Near:    l.r.near(),
			}
		}
	}
	units := l.indentUnits(indent, l.style)
	if l.width == 0 {
		l.width = max(1, int(math.Round(units)))
	}
	n := len(l.indents)
	for n > 0 && l.indents[n-1] > units {
		n--
	}
	if n > 0 && l.indents[n-1] == units {
		l.indents = l.indents[:n]
		return n, nil
	}
	if n < len(l.indents) && !lenient {
		return 0, &LexError{
			Message: "inconsistent indentation: this line does not line up with any enclosing level",
			Line:    at.Line,
			Offset:  at.Offset,
			Near:    l.r.near(),
		}
	}
	l.indents = append(l.indents[:n], units)
	return n + 1, nil
}

// unitsAt returns the indent of level, in units.
func (l *Lexer) unitsAt(level int) float64 {
	if level <= 0 || level > len(l.indents) {
		return 0
	}
	return l.indents[level-1]
}

func styleName(b byte) string {
	if b == '\t' {
		return "tabs"
	}
	return "spaces"
}

// nextLineDeeper looks past the current newline and blank lines and reports
// whether the next content line is indented deeper than base.
func (l *Lexer) nextLineDeeper(base int) bool {
	src, i := l.r.src, l.r.i
	for i < len(src) && src[i] == '\n' {
		i++
		start := i
		for i < len(src) && isBlank(src[i]) {
			i++
		}
		if i >= len(src) {
			return false
		}
		if src[i] == '\n' {
			continue
		}
		indent := src[start:i]
		if indent == "" {
			return false
		}
		style := l.style
		if style == 0 {
			style = indent[0]
		}
		return l.indentUnits(indent, style) > l.unitsAt(base)
	}
	return false
}
