package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

// Cache stores compiled templates on disk. An entry stays valid while the
// template and every file it imported keep their modification times.
type Cache struct {
	Dir string
	FS  afero.Fs
}

// New returns a cache in dir on fs, or on the OS filesystem when fs is nil.
func New(dir string, fs afero.Fs) *Cache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Cache{Dir: dir, FS: fs}
}

type meta struct {
	Source string `json:"source"`
	// Options fingerprints the compiler options the output was built with.
	Options string `json:"options"`
	// Deps maps every file read during compilation to its mtime in
	// nanoseconds.
	Deps map[string]int64 `json:"deps"`
	// DataFile is the basename of the cached output file
	DataFile string `json:"data_file"`
}

// Result is a compiled template and the files it was built from.
type Result struct {
	Output string
	// Dependencies starts with the template itself, followed by every file
	// it imported.
	Dependencies []string
	FromCache    bool
}

// Compile returns the compiled output of the template at path, reusing the
// cached output when nothing it depends on changed.
func (c *Cache) Compile(comp *jade.Compiler, path string) (Result, error) {
	opts := comp.Options()
	src, err := filepath.Abs(path)
	if err != nil {
		return Result{}, err
	}
	fingerprint := optionsKey(opts)
	key := hash(src + "\x00" + fingerprint)
	mpath := filepath.Join(c.Dir, key+".json")

	if m, ok := c.readMeta(mpath); ok && m.Source == src && m.Options == fingerprint && c.fresh(opts.FS, m) {
		if b, err := afero.ReadFile(c.FS, filepath.Join(c.Dir, m.DataFile)); err == nil {
			slog.Debug("cache hit", "path", src)
			return Result{Output: string(b), Dependencies: m.dependencies(), FromCache: true}, nil
		}
	}

	b, err := afero.ReadFile(opts.FS, src)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", src, err)
	}
	out, err := comp.Compile(string(b), src)
	if err != nil {
		return Result{}, err
	}

	m := meta{Source: src, Options: fingerprint, Deps: map[string]int64{}, DataFile: key + ".out"}
	for _, dep := range comp.Dependencies() {
		st, err := opts.FS.Stat(dep)
		if err != nil {
			return Result{}, fmt.Errorf("stat dependency %s: %w", dep, err)
		}
		m.Deps[dep] = st.ModTime().UnixNano()
	}
	if err := c.writeFile(filepath.Join(c.Dir, m.DataFile), []byte(out)); err != nil {
		return Result{}, err
	}
	if err := c.writeMeta(mpath, m); err != nil {
		return Result{}, err
	}
	slog.Debug("cache store", "path", src, "deps", len(m.Deps))
	return Result{Output: out, Dependencies: comp.Dependencies()}, nil
}

// Invalidate drops every entry compiled from path, whatever options it was
// compiled with.
func (c *Cache) Invalidate(path string) error {
	src, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	entries, err := afero.ReadDir(c.FS, c.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		mpath := filepath.Join(c.Dir, e.Name())
		m, ok := c.readMeta(mpath)
		if !ok || m.Source != src {
			continue
		}
		for _, p := range []string{filepath.Join(c.Dir, m.DataFile), mpath} {
			if err := c.FS.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		slog.Debug("cache invalidated", "path", src)
	}
	return nil
}

func (c *Cache) readMeta(path string) (meta, bool) {
	var m meta
	b, err := afero.ReadFile(c.FS, path)
	if err != nil {
		return m, false
	}
	if err := json.Unmarshal(b, &m); err != nil {
		slog.Warn("ignoring corrupt cache entry", "path", path, "err", err)
		return m, false
	}
	return m, m.DataFile != ""
}

func (m meta) dependencies() []string {
	deps := []string{m.Source}
	for _, dep := range slices.Sorted(maps.Keys(m.Deps)) {
		if dep != m.Source {
			deps = append(deps, dep)
		}
	}
	return deps
}

// fresh reports whether every recorded dependency still has its mtime.
func (c *Cache) fresh(srcFS afero.Fs, m meta) bool {
	if _, ok := m.Deps[m.Source]; !ok {
		return false
	}
	for dep, mtime := range m.Deps {
		st, err := srcFS.Stat(dep)
		if err != nil || st.ModTime().UnixNano() != mtime {
			return false
		}
	}
	return true
}

func (c *Cache) writeFile(dst string, data []byte) error {
	if err := c.FS.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := afero.WriteFile(c.FS, tmp, data, 0o644); err != nil {
		_ = c.FS.Remove(tmp)
		return err
	}
	return c.FS.Rename(tmp, dst)
}

func (c *Cache) writeMeta(path string, m meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return c.writeFile(path, b)
}

// optionsKey covers the options that change compiled output. Filters are
// functions and only contribute their names.
func optionsKey(o jade.Options) string {
	filters := slices.Sorted(maps.Keys(o.Filters))
	b, err := json.Marshal(struct {
		Pretty                  bool
		IndentStyle             string
		IndentWidth             int
		Mode                    string
		SelfClosingTags         []string
		SelfRepeatingAttributes []string
		Doctypes                map[string]string
		Filters                 []string
		FilterMap               map[string]string
		QuoteStyle              string
		AllowImports            bool
		ReplaceMixins           bool
		CompileUncalledMixins   bool
		DefaultTag              string
		FileExtension           string
		Delimiters              jade.Delimiters
		EscapeCharset           string
		RuntimeNamespace        string
		SearchPaths             []string
		Lexer                   jade.LexerOptions
	}{
		o.Pretty, o.IndentStyle, o.IndentWidth, o.Mode.String(),
		o.SelfClosingTags, o.SelfRepeatingAttributes, o.Doctypes, filters, o.FilterMap,
		o.QuoteStyle, o.AllowImports, o.ReplaceMixins, o.CompileUncalledMixins,
		o.DefaultTag, o.FileExtension, o.Delimiters, o.EscapeCharset, o.RuntimeNamespace,
		o.SearchPaths, o.Lexer,
	})
	if err != nil {
		// Only plain strings, bools and ints are marshaled.
		panic(err)
	}
	return hash(string(b))
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
