package jade

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// maxImportDepth bounds the file stack. Including the same file at several
// places is fine; a file importing itself runs into this limit.
const maxImportDepth = 64

func (c *Compiler) resolveImports(root Node) error {
	for _, imp := range FindAll[*ImportNode](root) {
		if err := c.handleImport(imp); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) handleImport(imp *ImportNode) error {
	if !c.opts.AllowImports {
		return c.errorf(imp, "%s %q: imports are not allowed", imp.ImportType, imp.Path)
	}
	if len(c.files) >= maxImportDepth {
		return c.errorf(imp, "%s %q: imports nested deeper than %d files, does a file import itself?", imp.ImportType, imp.Path, maxImportDepth)
	}
	name := importName(imp.Path)
	var dirs []string
	if cur := c.currentFile(); cur != "" {
		dirs = []string{filepath.Dir(cur)}
	}
	path, err := c.opts.Resolver.Resolve(name, c.opts.FileExtension, dirs)
	if err != nil {
		if IsNotFound(err) {
			return c.errorf(imp, "%s %q: file not found", imp.ImportType, name)
		}
		return fmt.Errorf("resolve %q: %w", name, err)
	}
	src, err := afero.ReadFile(c.opts.FS, path)
	if err != nil {
		return c.errorf(imp, "%s %q: %v", imp.ImportType, path, err)
	}
	c.deps = append(c.deps, path)
	parent := imp.Parent()

	if imp.Filter != "" || filepath.Ext(path) != c.opts.FileExtension {
		if imp.ImportType == "extends" {
			return c.errorf(imp, "cannot extend %q, it is not a template", path)
		}
		InsertBefore(parent, imp, c.foreignNode(imp, path, string(src)))
		Detach(imp)
		slog.Debug("included file", "path", path, "filter", imp.Filter)
		return nil
	}

	doc, err := NewParser(c.opts.Lexer).Parse(string(src))
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	c.files = append(c.files, path)
	err = c.resolveImports(doc)
	c.files = c.files[:len(c.files)-1]
	if err != nil {
		return err
	}
	for _, child := range DetachChildren(doc) {
		InsertBefore(parent, imp, child)
	}
	Detach(imp)
	slog.Debug("resolved import", "type", imp.ImportType, "path", path)
	return nil
}

// importName strips optional quotes around an import path.
func importName(p string) string {
	p = strings.TrimSpace(p)
	if s, ok := unquote(p); ok {
		return s
	}
	return p
}

// foreignNode wraps a non-template file as raw text, or as a filter when the
// import names one or the extension is mapped to one.
func (c *Compiler) foreignNode(imp *ImportNode, path, src string) Node {
	pos := nodeBase{line: imp.line, offset: imp.offset}
	text := &TextNode{nodeBase: pos, Value: strings.TrimRight(src, "\n"), Raw: true}
	name := imp.Filter
	if name == "" {
		name = c.opts.FilterMap[strings.TrimPrefix(filepath.Ext(path), ".")]
	}
	if name == "" {
		return text
	}
	f := &FilterNode{nodeBase: pos, Name: name}
	AppendChild(f, text)
	return f
}
