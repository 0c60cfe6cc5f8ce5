package jade

import (
	"errors"
	"fmt"
)

// LexError reports malformed low-level syntax: unclosed brackets, attribute
// blocks or strings, bad indentation and unrecognized characters.
type LexError struct {
	Message string
	Line    int
	Offset  int
	Near    string
}

func (e *LexError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("lex error at line %d, offset %d: %s", e.Line, e.Offset, e.Message)
	}
	return fmt.Sprintf("lex error at line %d, offset %d (near %q): %s", e.Line, e.Offset, e.Near, e.Message)
}

// ParseError reports an illegal token adjacency or nesting.
type ParseError struct {
	Message string
	Line    int
	Offset  int
	Kind    TokenKind
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, offset %d (%s token): %s", e.Line, e.Offset, e.Kind, e.Message)
}

// CompileError reports a semantic violation found once the tree is known.
type CompileError struct {
	Message string
	Line    int
	Offset  int
	Kind    NodeKind
	Path    string
}

func (e *CompileError) Error() string {
	where := fmt.Sprintf("line %d, offset %d", e.Line, e.Offset)
	if e.Path != "" {
		where = e.Path + ": " + where
	}
	if e.Kind == KindNone {
		return fmt.Sprintf("compile error at %s: %s", where, e.Message)
	}
	return fmt.Sprintf("compile error at %s (%s node): %s", where, e.Kind, e.Message)
}

// FileError attaches the file a lex or parse error occurred in.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// ErrorFile returns the file err occurred in, if it carries one.
func ErrorFile(err error) string {
	var ce *CompileError
	if errors.As(err, &ce) && ce.Path != "" {
		return ce.Path
	}
	var fe *FileError
	if errors.As(err, &fe) {
		return fe.Path
	}
	return ""
}

// ErrTemplateNotFound is returned by resolvers when no candidate file exists.
type ErrTemplateNotFound struct{ Name string }

func (e ErrTemplateNotFound) Error() string { return "template not found: " + e.Name }

// IsNotFound reports whether err (or anything it wraps) is an ErrTemplateNotFound.
func IsNotFound(err error) bool {
	var nf ErrTemplateNotFound
	return errors.As(err, &nf)
}

// Position returns the line and offset carried by any of the three stage
// errors, looking through wrapping.
func Position(err error) (line, offset int, ok bool) {
	var le *LexError
	if errors.As(err, &le) {
		return le.Line, le.Offset, true
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Line, pe.Offset, true
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Line, ce.Offset, true
	}
	return 0, 0, false
}
