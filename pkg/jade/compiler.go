package jade

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Compiler turns templates into markup interleaved with code. The per-call
// registries are reset by every Compile, so a Compiler may be reused, but not
// from several goroutines at once.
type Compiler struct {
	opts Options

	files    []string
	deps     []string
	mode     Mode
	level    int
	inline   int
	iterator int

	mixins     map[string]*mixinDef
	mixinOrder []string
	// calls records which mixins each mixin body calls; "" is the document.
	calls map[string][]string
	scope string

	ownResolver bool
}

// NewCompiler validates opts and fills in the resolver and filesystem.
func NewCompiler(opts Options) (*Compiler, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	c := &Compiler{opts: opts}
	if opts.Resolver == nil {
		c.opts.Resolver = NewFileResolver(opts.FS, opts.SearchPaths)
		c.ownResolver = true
	}
	return c, nil
}

// Options returns the configuration the compiler was built with. A resolver
// built from the search paths is left out so changed paths take effect.
func (c *Compiler) Options() Options {
	opts := c.opts
	if c.ownResolver {
		opts.Resolver = nil
	}
	return opts
}

// Dependencies lists the files read by the last Compile call, starting with
// the origin file when one was given.
func (c *Compiler) Dependencies() []string {
	return append([]string(nil), c.deps...)
}

func (c *Compiler) reset(path string) {
	c.files, c.deps = nil, nil
	if path != "" {
		path = filepath.Clean(path)
		c.files = append(c.files, path)
		c.deps = append(c.deps, path)
	}
	c.mode = c.opts.Mode
	c.level, c.inline, c.iterator = 0, 0, 0
	c.mixins = map[string]*mixinDef{}
	c.mixinOrder = nil
	c.calls = map[string][]string{}
	c.scope = ""
}

// Compile compiles src. path is the file src was read from and may be empty;
// relative imports are resolved against its directory.
func (c *Compiler) Compile(src, path string) (string, error) {
	c.reset(path)
	doc, err := NewParser(c.opts.Lexer).Parse(src)
	if err != nil {
		if path != "" {
			return "", &FileError{Path: path, Err: err}
		}
		return "", err
	}
	if err := c.resolveImports(doc); err != nil {
		return "", err
	}
	c.stackBlocks(doc)
	// Mixin bodies are compiled before the document, so they need the mode
	// of its doctype up front.
	if doctypes := FindAll[*DoctypeNode](doc); len(doctypes) > 0 {
		c.mode = doctypeMode(doctypes[0].Name)
	}
	if err := c.registerMixins(doc); err != nil {
		return "", err
	}
	body, err := c.compileNode(doc)
	if err != nil {
		return "", err
	}
	out := c.compileMixinDefinitions() + body
	return strings.TrimPrefix(out, "\n"), nil
}

// CompileFile resolves name against the search paths and compiles it.
func (c *Compiler) CompileFile(name string) (string, error) {
	path, err := c.opts.Resolver.Resolve(name, c.opts.FileExtension, nil)
	if err != nil {
		return "", err
	}
	src, err := afero.ReadFile(c.opts.FS, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	slog.Debug("compiling file", "path", path)
	return c.Compile(string(src), path)
}

func (c *Compiler) currentFile() string {
	if len(c.files) == 0 {
		return ""
	}
	return c.files[len(c.files)-1]
}

func (c *Compiler) errorf(n Node, format string, args ...any) *CompileError {
	return &CompileError{
		Message: fmt.Sprintf(format, args...),
		Line:    n.Line(),
		Offset:  n.Offset(),
		Kind:    n.Kind(),
		Path:    c.currentFile(),
	}
}

func (c *Compiler) newLine() string {
	if !c.opts.Pretty || c.inline > 0 {
		return ""
	}
	return "\n"
}

func (c *Compiler) indentAt(level int) string {
	if !c.opts.Pretty || c.inline > 0 || level <= 0 {
		return ""
	}
	return strings.Repeat(c.opts.IndentStyle, c.opts.IndentWidth*level)
}

func (c *Compiler) indent() string { return c.indentAt(c.level) }

// line starts a node on its own line in pretty mode.
func (c *Compiler) line() string { return c.newLine() + c.indent() }

func (c *Compiler) statement(code string) string {
	d := c.opts.Delimiters.Statement
	return d.Open + " " + code + " " + d.Close
}

func (c *Compiler) echo(code string) string {
	d := c.opts.Delimiters.Echo
	return d.Open + code + d.Close
}

// escapedEcho writes code through the runtime's HTML escaping.
func (c *Compiler) escapedEcho(code string) string {
	return c.echo("htmlspecialchars(" + code + ", ENT_QUOTES, " + exportString(c.opts.EscapeCharset) + ")")
}

func (c *Compiler) runtime(fn string) string {
	return strings.TrimRight(c.opts.RuntimeNamespace, `\`) + `\` + fn
}
