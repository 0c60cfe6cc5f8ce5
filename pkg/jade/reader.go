package jade

import (
	"fmt"
	"regexp"
	"strings"
)

// reader is a cursor over template source. It tracks the line (1-based) and
// the offset inside the current line (0-based) of the next byte.
type reader struct {
	src    string
	i      int
	n      int
	line   int
	offset int
}

func newReader(src string) *reader {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	return &reader{src: src, n: len(src), line: 1}
}

func (r *reader) eof() bool { return r.i >= r.n }

func (r *reader) peek() byte {
	if r.i >= r.n {
		return 0
	}
	return r.src[r.i]
}

func (r *reader) peekAt(k int) byte {
	if r.i+k >= r.n {
		return 0
	}
	return r.src[r.i+k]
}

func (r *reader) hasPrefix(s string) bool {
	return strings.HasPrefix(r.src[r.i:], s)
}

func (r *reader) next() byte {
	if r.i >= r.n {
		return 0
	}
	b := r.src[r.i]
	r.i++
	if b == '\n' {
		r.line++
		r.offset = 0
	} else {
		r.offset++
	}
	return b
}

func (r *reader) consume(k int) string {
	start := r.i
	for j := 0; j < k && r.i < r.n; j++ {
		r.next()
	}
	return r.src[start:r.i]
}

// match consumes s if the input continues with it.
func (r *reader) match(s string) bool {
	if !r.hasPrefix(s) {
		return false
	}
	r.consume(len(s))
	return true
}

// matchRegexp applies an anchored pattern at the cursor and consumes the match.
// The pattern must start with ^.
func (r *reader) matchRegexp(re *regexp.Regexp) []string {
	m := re.FindStringSubmatch(r.src[r.i:])
	if m == nil {
		return nil
	}
	r.consume(len(m[0]))
	return m
}

// matchKeyword consumes kw when it is followed by a non-identifier byte.
func (r *reader) matchKeyword(kw string) bool {
	if !r.hasPrefix(kw) {
		return false
	}
	if c := r.peekAt(len(kw)); isIdentByte(c) || c == '-' {
		return false
	}
	r.consume(len(kw))
	return true
}

func (r *reader) readWhile(pred func(byte) bool) string {
	start := r.i
	for r.i < r.n && pred(r.src[r.i]) {
		r.next()
	}
	return r.src[start:r.i]
}

func (r *reader) readSpaces() string {
	return r.readWhile(isBlank)
}

// readLine returns the rest of the current line without the newline.
func (r *reader) readLine() string {
	return r.readWhile(func(b byte) bool { return b != '\n' })
}

// restOfLineBlank reports whether only blanks remain on the current line.
func (r *reader) restOfLineBlank() bool {
	for j := r.i; j < r.n; j++ {
		switch r.src[j] {
		case ' ', '\t':
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

func (r *reader) near() string {
	end := r.i + 16
	if end > r.n {
		end = r.n
	}
	s := r.src[r.i:end]
	if k := strings.IndexByte(s, '\n'); k >= 0 {
		s = s[:k]
	}
	return s
}

func (r *reader) errorf(format string, args ...any) *LexError {
	return &LexError{
		Message: fmt.Sprintf(format, args...),
		Line:    r.line,
		Offset:  r.offset,
		Near:    r.near(),
	}
}

// exprOptions tunes readExpression.
type exprOptions struct {
	// breaks stops the scan at depth 0 outside strings.
	breaks string
	// escapes lists the control letters a backslash may escape inside quotes,
	// besides the quote character itself and the backslash.
	escapes string
	// ternary keeps the ':' of a pending '?' inside the expression.
	ternary bool
	// continueOnOperator ignores a blank break when the next non-blank byte
	// continues an operator (a + b) or the previous one ended one.
	continueOnOperator bool
}

var defaultEscapes = "ntr"

// readExpression reads a free-form code expression until one of the break
// bytes shows up outside brackets and strings.
func (r *reader) readExpression(opts exprOptions) (string, error) {
	var stack []byte
	var quote byte
	start := r.i
	startLine, startOffset := r.line, r.offset
	pending := 0
	escapes := opts.escapes
	if escapes == "" {
		escapes = defaultEscapes
	}
	for r.i < r.n {
		c := r.src[r.i]
		if quote != 0 {
			if c == '\\' && r.i+1 < r.n {
				nc := r.src[r.i+1]
				if nc == quote || nc == '\\' || strings.IndexByte(escapes, nc) >= 0 {
					r.consume(2)
					continue
				}
			}
			if c == quote {
				quote = 0
			}
			r.next()
			continue
		}
		if len(stack) == 0 && strings.IndexByte(opts.breaks, c) >= 0 {
			if c == ':' {
				if r.peekAt(1) == ':' {
					r.consume(2)
					continue
				}
				if opts.ternary && pending > 0 {
					pending--
					r.next()
					continue
				}
			}
			if isBlank(c) && opts.continueOnOperator && r.continuesOperator(start) {
				r.readSpaces()
				continue
			}
			break
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			stack = append(stack, ')')
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", r.errorf("unexpected closing bracket %q", c)
			}
			stack = stack[:len(stack)-1]
		case '?':
			if opts.ternary && len(stack) == 0 {
				switch r.peekAt(1) {
				case '?':
					r.consume(2)
					continue
				case '-':
					if r.peekAt(2) == '>' {
						r.consume(3)
						continue
					}
				case ':':
					r.consume(2)
					continue
				}
				pending++
			}
		}
		r.next()
	}
	if quote != 0 {
		return "", &LexError{Message: fmt.Sprintf("unclosed string, expected %q", quote), Line: startLine, Offset: startOffset, Near: r.src[start:min(start+16, r.n)]}
	}
	if len(stack) > 0 {
		return "", &LexError{Message: fmt.Sprintf("unclosed bracket, expected %q", stack[len(stack)-1]), Line: startLine, Offset: startOffset, Near: r.src[start:min(start+16, r.n)]}
	}
	return r.src[start:r.i], nil
}

const operatorBytes = ".+-*/%?:|&<>=!^~"

// continuesOperator is used on a blank inside an expression: the expression
// goes on when the last non-blank byte read or the next non-blank byte is an
// operator.
func (r *reader) continuesOperator(start int) bool {
	prev := strings.TrimRight(r.src[start:r.i], " \t")
	if prev == "" {
		return false
	}
	if strings.IndexByte(operatorBytes, prev[len(prev)-1]) >= 0 {
		return true
	}
	j := r.i
	for j < r.n && isBlank(r.src[j]) {
		j++
	}
	if j >= r.n {
		return false
	}
	c := r.src[j]
	if c == '=' || c == '!' {
		// "a !b" is two entries, "a != b" and "a == b" are one.
		return j+1 < r.n && r.src[j+1] == '='
	}
	return strings.IndexByte(operatorBytes, c) >= 0
}

// readBracketContents expects the cursor on an opening bracket and returns
// everything up to the matching closer, consuming both brackets.
func (r *reader) readBracketContents() (string, error) {
	open := r.peek()
	var close byte
	switch open {
	case '(':
		close = ')'
	case '[':
		close = ']'
	case '{':
		close = '}'
	default:
		return "", r.errorf("expected opening bracket")
	}
	line, offset := r.line, r.offset
	r.next()
	s, err := r.readExpression(exprOptions{breaks: string(close)})
	if err != nil {
		return "", err
	}
	if !r.match(string(close)) {
		return "", &LexError{Message: fmt.Sprintf("unclosed bracket, expected %q", close), Line: line, Offset: offset, Near: s}
	}
	return s, nil
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
