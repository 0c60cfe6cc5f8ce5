package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/peterh/liner"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func useFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, src := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(src), 0o644))
	}
	appFs = fs
	t.Cleanup(func() { appFs = afero.NewOsFs() })
	return fs
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(&rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

var site = map[string]string{
	"/views/_layout.jade": "html\n  block body",
	"/views/page.jade":    "extends _layout\nblock body\n  p hi",
	"/views/about.jade":   "extends _layout\nblock body\n  p about",
}

func TestCompileStdin(t *testing.T) {
	useFs(t, nil)
	out, _, err := execute(t, "p hi", "compile")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>\n", out)

	out, _, err = execute(t, "div\n  p a", "compile", "--pretty")
	require.NoError(t, err)
	assert.Equal(t, "<div>\n  <p>a</p>\n</div>\n", out)
}

func TestCompileFiles(t *testing.T) {
	fs := useFs(t, site)

	out, _, err := execute(t, "", "compile", "/views/page.jade")
	require.NoError(t, err)
	assert.Equal(t, "<html><p>hi</p></html>\n", out)

	_, _, err = execute(t, "", "compile", "-o", "/out", "--ext", ".php", "/views/page.jade", "/views/about.jade")
	require.NoError(t, err)
	b, err := afero.ReadFile(fs, "/out/page.php")
	require.NoError(t, err)
	assert.Equal(t, "<html><p>hi</p></html>", string(b))
	b, err = afero.ReadFile(fs, "/out/about.php")
	require.NoError(t, err)
	assert.Equal(t, "<html><p>about</p></html>", string(b))
}

func TestCompileWritesRuntime(t *testing.T) {
	fs := useFs(t, site)

	_, _, err := execute(t, "", "compile", "-o", "/out", "/views/page.jade")
	require.NoError(t, err)
	b, err := afero.ReadFile(fs, "/out/jade-runtime.php")
	require.NoError(t, err)
	assert.Equal(t, jade.Runtime(jade.DefaultOptions().RuntimeNamespace), string(b))

	_, _, err = execute(t, "", "compile", "-o", "/plain", "--runtime=", "/views/page.jade")
	require.NoError(t, err)
	exists, err := afero.Exists(fs, "/plain/jade-runtime.php")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRuntimeCommand(t *testing.T) {
	useFs(t, map[string]string{"jade.yaml": `runtimeNamespace: \App\Jade`})
	out, _, err := execute(t, "", "runtime")
	require.NoError(t, err)
	assert.Contains(t, out, "namespace App\\Jade;")
	assert.Contains(t, out, "function attribute_value(")
}

func TestCompileResolvesNames(t *testing.T) {
	useFs(t, map[string]string{
		"jade.yaml":           "searchPaths: [/views]",
		"/views/_layout.jade": site["/views/_layout.jade"],
		"/views/page.jade":    site["/views/page.jade"],
	})
	out, _, err := execute(t, "", "compile", "page")
	require.NoError(t, err)
	assert.Equal(t, "<html><p>hi</p></html>\n", out)
}

func TestCompileUsesConfig(t *testing.T) {
	useFs(t, map[string]string{
		"jade.yaml":        "mode: xml",
		"/site/other.yaml": "pretty: true",
	})
	out, _, err := execute(t, "br", "compile")
	require.NoError(t, err)
	assert.Equal(t, "<br />\n", out)

	out, _, err = execute(t, "div\n  p a", "compile", "--config", "/site/other.yaml")
	require.NoError(t, err)
	assert.Equal(t, "<div>\n  <p>a</p>\n</div>\n", out)

	_, _, err = execute(t, "p", "compile", "--config", "/missing.yaml")
	assert.ErrorContains(t, err, "loading config")
}

func TestCompileWithCache(t *testing.T) {
	fs := useFs(t, site)

	_, logs, err := execute(t, "", "compile", "-o", "/out", "--cache-dir", "/cache", "/views/page.jade")
	require.NoError(t, err)
	assert.Contains(t, logs, "cached=false")

	_, logs, err = execute(t, "", "compile", "-o", "/out", "--cache-dir", "/cache", "/views/page.jade")
	require.NoError(t, err)
	assert.Contains(t, logs, "cached=true")

	entries, err := afero.ReadDir(fs, "/cache")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCompileErrorDiagnostics(t *testing.T) {
	fs := useFs(t, map[string]string{"/views/bad.jade": "div\n  a(b"})

	_, _, err := execute(t, "", "compile", "/views/bad.jade")
	require.Error(t, err)
	msg := formatError(fs, err)
	assert.Contains(t, msg, "error: /views/bad.jade: lex error at line 2")
	assert.Contains(t, msg, "--> /views/bad.jade:2:")
	assert.Contains(t, msg, "2 |   a(b")
	assert.Contains(t, msg, "^")

	_, _, err = execute(t, "a(b", "compile")
	require.Error(t, err)
	msg = formatError(fs, err)
	assert.True(t, strings.HasPrefix(msg, "error: lex error"))
	assert.NotContains(t, msg, "-->")
}

func TestFormatErrorImportedFile(t *testing.T) {
	fs := useFs(t, map[string]string{
		"/views/page.jade":  "div\n  include _part",
		"/views/_part.jade": "p\n  a(b",
	})
	_, _, err := execute(t, "", "compile", "/views/page.jade")
	require.Error(t, err)
	assert.Equal(t, "/views/_part.jade", jade.ErrorFile(err))
	assert.Contains(t, formatError(fs, err), "2 |   a(b")
}

func TestTokens(t *testing.T) {
	useFs(t, map[string]string{"/t.jade": "p hi"})
	out, _, err := execute(t, "", "tokens", "/t.jade")
	require.NoError(t, err)
	assert.Contains(t, out, `tag name="p"`)
	assert.Contains(t, out, `text value="hi"`)

	out, _, err = execute(t, "div\n  p", "tokens")
	require.NoError(t, err)
	assert.Contains(t, out, "indent")
}

func TestTree(t *testing.T) {
	useFs(t, map[string]string{"/t.jade": "p hi"})
	out, _, err := execute(t, "", "tree", "/t.jade")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Document"))
	assert.Contains(t, out, "Element(p)")
	assert.Contains(t, out, `Text("hi")`)

	_, _, err = execute(t, "", "tree", "/missing.jade")
	assert.Error(t, err)
}

func newTestBuilder(t *testing.T, fs afero.Fs) *builder {
	t.Helper()
	opts := jade.DefaultOptions()
	opts.FS = fs
	comp, err := jade.NewCompiler(opts)
	require.NoError(t, err)
	return newBuilder(comp, "/out", ".phtml", io.Discard)
}

func TestBuilderRebuildsDependents(t *testing.T) {
	fs := useFs(t, site)
	b := newTestBuilder(t, fs)
	require.NoError(t, b.buildAll([]string{"/views"}))

	exists, err := afero.Exists(fs, "/out/_layout.phtml")
	require.NoError(t, err)
	assert.False(t, exists, "partials get no output")

	require.NoError(t, afero.WriteFile(fs, "/views/_layout.jade", []byte("body\n  block body"), 0o644))
	rebuilt := b.handle(fsnotify.Event{Name: "/views/_layout.jade", Op: fsnotify.Write})
	assert.Equal(t, []string{"/views/about.jade", "/views/page.jade"}, rebuilt)

	out, err := afero.ReadFile(fs, "/out/page.phtml")
	require.NoError(t, err)
	assert.Equal(t, "<body><p>hi</p></body>", string(out))

	rebuilt = b.handle(fsnotify.Event{Name: "/views/page.jade", Op: fsnotify.Write})
	assert.Equal(t, []string{"/views/page.jade"}, rebuilt)
}

func TestBuilderEvents(t *testing.T) {
	fs := useFs(t, site)
	b := newTestBuilder(t, fs)
	require.NoError(t, b.buildAll([]string{"/views"}))

	require.NoError(t, afero.WriteFile(fs, "/views/new.jade", []byte("p new"), 0o644))
	assert.Equal(t, []string{"/views/new.jade"}, b.handle(fsnotify.Event{Name: "/views/new.jade", Op: fsnotify.Create}))

	assert.Empty(t, b.handle(fsnotify.Event{Name: "/views/page.jade", Op: fsnotify.Chmod}))
	assert.Empty(t, b.handle(fsnotify.Event{Name: "/views/notes.txt", Op: fsnotify.Write}))

	assert.Empty(t, b.handle(fsnotify.Event{Name: "/views/page.jade", Op: fsnotify.Remove}))
	assert.NotContains(t, b.deps, "/views/page.jade")
}

func TestBuilderRecoversFromErrors(t *testing.T) {
	fs := useFs(t, map[string]string{"/views/page.jade": "a(b"})
	b := newTestBuilder(t, fs)
	var errOut bytes.Buffer
	b.errOut = &errOut
	require.NoError(t, b.buildAll([]string{"/views"}))
	assert.Contains(t, errOut.String(), "unclosed attribute block")

	require.NoError(t, afero.WriteFile(fs, "/views/page.jade", []byte("p fixed"), 0o644))
	assert.Equal(t, []string{"/views/page.jade"}, b.handle(fsnotify.Event{Name: "/views/page.jade", Op: fsnotify.Write}))
	out, err := afero.ReadFile(fs, "/out/page.phtml")
	require.NoError(t, err)
	assert.Equal(t, "<p>fixed</p>", string(out))
}

type script struct {
	lines []string
}

func (s *script) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	if line == "^C" {
		return "", liner.ErrPromptAborted
	}
	return line, nil
}

func newSession(t *testing.T) (*session, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	comp, err := jade.NewCompiler(jade.DefaultOptions())
	require.NoError(t, err)
	var out, errOut bytes.Buffer
	return &session{comp: comp, out: &out, errOut: &errOut}, &out, &errOut
}

func TestReadTemplate(t *testing.T) {
	p := &script{lines: []string{"div", "  p hi", "", ":tree", "^C", "p"}}

	src, ok := readTemplate(p)
	assert.True(t, ok)
	assert.Equal(t, "div\n  p hi", src)

	src, ok = readTemplate(p)
	assert.True(t, ok)
	assert.Equal(t, ":tree", src)

	src, ok = readTemplate(p)
	assert.True(t, ok)
	assert.Empty(t, src)

	src, ok = readTemplate(p)
	assert.True(t, ok, "end of input submits the pending template")
	assert.Equal(t, "p", src)

	_, ok = readTemplate(p)
	assert.False(t, ok)
}

func TestSession(t *testing.T) {
	s, out, errOut := newSession(t)
	var history []string
	p := &script{lines: []string{
		"div", "  p hi", "",
		":pretty",
		"div", "  p hi", "",
		":tree",
		"p hi", "",
		"a(b", "",
		":nope",
		":quit",
		"p never",
	}}
	require.NoError(t, s.run(p, func(h string) { history = append(history, h) }))

	o := out.String()
	assert.Contains(t, o, "<div><p>hi</p></div>\n")
	assert.Contains(t, o, "pretty output on")
	assert.Contains(t, o, "<div>\n  <p>hi</p>\n</div>\n")
	assert.Contains(t, o, "tree output on")
	assert.Contains(t, o, `Text("hi")`)
	assert.Contains(t, o, "unknown command")
	assert.NotContains(t, o, "never")
	assert.Contains(t, errOut.String(), "error: lex error")
	assert.Equal(t, []string{`div\n  p hi`, `div\n  p hi`, "p hi"}, history)
}

func TestSessionEndsOnEOF(t *testing.T) {
	s, out, _ := newSession(t)
	require.NoError(t, s.run(&script{lines: []string{":help"}}, nil))
	assert.Contains(t, out.String(), ":pretty")
	assert.True(t, strings.HasSuffix(out.String(), "\n\n"))
}
