package jade

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

const mixinHeader = `<?php $__scope = isset($__scope) ? $__scope : get_defined_vars(); if (!isset($__mixins)) { $__mixins = []; } ?>`

func newCompiler(t *testing.T, mutate func(*Options)) *Compiler {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	c, err := NewCompiler(opts)
	if err != nil {
		t.Fatalf("new compiler: %v", err)
	}
	return c
}

func compile(t *testing.T, src string, mutate func(*Options)) string {
	t.Helper()
	out, err := newCompiler(t, mutate).Compile(src, "")
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return out
}

func compileErr(t *testing.T, src string, mutate func(*Options)) *CompileError {
	t.Helper()
	_, err := newCompiler(t, mutate).Compile(src, "")
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("compile %q: got %v, want a CompileError", src, err)
	}
	return ce
}

// memFS returns a filesystem holding files and options reading from it.
func memFS(t *testing.T, files map[string]string) func(*Options) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, src := range files {
		if err := afero.WriteFile(fs, name, []byte(src), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return func(o *Options) { o.FS = fs }
}

func TestCompileMarkup(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"expansion", "a: b: c", "<a><b><c></c></b></a>"},
		{"default tag", ".a: .b", `<div class="a"><div class="b"></div></div>`},
		{"class merge", "a.x(class='y  z')", `<a class="x y z"></a>`},
		{"id", "p#main text", `<p id="main">text</p>`},
		{"void", "br\nimg(src='a.png')", `<br><img src="a.png">`},
		{"static null dropped", "a(href=null, title=false)", "<a></a>"},
		{"self repeating", "input(checked)", "<input checked>"},
		{"boolean", "input(foo)", `<input foo="">`},
		{"boolean true", "input(foo=true)", `<input foo="">`},
		{"escaped value", `a(title="<b>")`, `<a title="&lt;b&gt;"></a>`},
		{"unescaped value", `a(title!="<b>")`, `<a title="<b>"></a>`},
		{"style", "a(style='color: red;', style='top: 0')", `<a style="color: red; top: 0"></a>`},
		{"piped text", "p\n  | one\n  | two", "<p>one two</p>"},
		{"literal markup", "<div>\n  <p>Hi</p>\n</div>", "<div> <p>Hi</p> </div>"},
		{"namespaced tag", "fb:like", "<fb:like></fb:like>"},
		{"doctype", "doctype html\np", "<!DOCTYPE html><p></p>"},
		{"comment", "// note", "<!-- note -->"},
		{"hidden comment", "//- note", "<?php /* note */ ?>"},
		{"filter", ":css\n  body { color: red; }", "<style>body { color: red; }</style>"},
		{"escaped interpolation", `p \#{x}`, "<p>#{x}</p>"},
		{"inline template", "p see #[a(href='/x') here]", `<p>see <a href="/x">here</a></p>`},
		{"escaped inline template", "p ![b x]", "<p>&lt;b&gt;x&lt;/b&gt;</p>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, compile(t, tc.src, nil)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileCode(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			"escaped expression", "p= $x",
			`<p><?=htmlspecialchars(isset($x) ? $x : null, ENT_QUOTES, 'UTF-8')?></p>`,
		},
		{"unescaped expression", "p!= $x", `<p><?=isset($x) ? $x : null?></p>`},
		{"unchecked expression", "p?= $x", `<p><?=htmlspecialchars($x, ENT_QUOTES, 'UTF-8')?></p>`},
		{
			"interpolation", "p Hello #{$name}!",
			`<p>Hello <?=htmlspecialchars(isset($name) ? $name : null, ENT_QUOTES, 'UTF-8')?>!</p>`,
		},
		{"raw interpolation", "p !{$html}", `<p><?=isset($html) ? $html : null?></p>`},
		{"variable", "$x = 5", `<?php $x = 5; ?>`},
		{"code line", "- $x = 1", `<?php $x = 1 ?>`},
		{"code with body", "- foreach ($a as $b)\n  p", `<?php foreach ($a as $b) { ?><p></p><?php } ?>`},
		{"code block", "-\n  $a = 1;\n  $b = 2;", "<?php\n$a = 1;\n$b = 2;\n?>"},
		{
			"if else", "if $a\n  p A\nelse\n  p B",
			`<?php if ($a) { ?><p>A</p><?php } else { ?><p>B</p><?php } ?>`,
		},
		{
			"elseif", "if $a\n  p A\nelse if $b\n  p B",
			`<?php if ($a) { ?><p>A</p><?php } elseif ($b) { ?><p>B</p><?php } ?>`,
		},
		{"unless", "unless $a\n  p", `<?php if (!($a)) { ?><p></p><?php } ?>`},
		{
			"each", "each $item, $key in $items\n  li= $item",
			`<?php $__iterator0 = $items; foreach ($__iterator0 as $key => $item) { ?><li><?=htmlspecialchars(isset($item) ? $item : null, ENT_QUOTES, 'UTF-8')?></li><?php } ?>`,
		},
		{"do while", "do\n  p x\nwhile $a", `<?php do { ?><p>x</p><?php } while ($a); ?>`},
		{"while", "while $i < 3\n  p", `<?php while ($i < 3) { ?><p></p><?php } ?>`},
		{"for", "for $i = 0; $i < 3; $i++\n  p", `<?php for ($i = 0; $i < 3; $i++) { ?><p></p><?php } ?>`},
		{
			"case", "case $x\n  when 1\n    p one\n  default\n    p other",
			`<?php switch ($x) { case 1: ?><p>one</p><?php break; ?><?php default: ?><p>other</p><?php break; ?><?php } ?>`,
		},
		{
			"dynamic attribute", "a(href=$url)",
			`<a<?php $__value = isset($url) ? $url : null; if ($__value !== null && $__value !== false) echo \Tale\Jade\Runtime\attribute('href', [$__value], '"', true, 'UTF-8'); unset($__value); ?>></a>`,
		},
		{
			"attribute spread", "a&attributes($attrs)",
			`<a<?php echo \Tale\Jade\Runtime\attributes([], [$attrs], '"', true, 'UTF-8'); ?>></a>`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, compile(t, tc.src, nil)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileIteratorsAreNumbered(t *testing.T) {
	out := compile(t, "each $a in $x\n  p\neach $b in $y\n  p", nil)
	if !strings.Contains(out, "$__iterator0 = $x") || !strings.Contains(out, "$__iterator1 = $y") {
		t.Fatalf("got %s", out)
	}
}

func TestCompileModes(t *testing.T) {
	out := compile(t, "doctype xml\nfoo", nil)
	if want := `<?='<?xml version="1.0" encoding="utf-8" ?>'?><foo />`; out != want {
		t.Fatalf("xml: got %s, want %s", out, want)
	}

	out = compile(t, "doctype transitional\nbr\ninput(checked)", nil)
	if !strings.HasSuffix(out, `<br /><input checked="checked" />`) {
		t.Fatalf("xhtml: got %s", out)
	}

	out = compile(t, "br", func(o *Options) { o.Mode = ModeXML })
	if out != "<br />" {
		t.Fatalf("xml option: got %s", out)
	}
}

func TestCompileVariablesAndCheckedReferences(t *testing.T) {
	out := compile(t, "$title = 'Home'\nh1= $title\np= $page->title", nil)
	for _, want := range []string{
		"$title = 'Home';",
		"isset($title) ? $title : null",
		"isset($page->title) ? $page->title : null",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("got %s, want it to contain %s", out, want)
		}
	}
}

func TestCompileMixinBodiesFollowDoctype(t *testing.T) {
	for doctype, want := range map[string]string{
		"xml":          "<br />",
		"transitional": "<br />",
		"html":         "<br>",
	} {
		out := compile(t, "doctype "+doctype+"\nmixin m\n  br\n+m", nil)
		if !strings.Contains(out, want) {
			t.Errorf("%s: got %s, want it to contain %s", doctype, out, want)
		}
		if want == "<br />" && strings.Contains(out, "<br>") {
			t.Errorf("%s: got %s, mixin body used html mode", doctype, out)
		}
	}
}

func TestCompileTextBlockKeepsLineBreaks(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{"pre.\n  line1\n\n  line2", "<pre>line1\n\nline2</pre>"},
		{"pre.\n  if (a) {\n    b();\n  }", "<pre>if (a) {\n  b();\n}</pre>"},
		{"script.\n  var a = 1;\n  var b = 2;", "<script>var a = 1;\nvar b = 2;</script>"},
		{"p\n  | one\n  | two", "<p>one two</p>"},
	}
	for _, tc := range cases {
		if out := compile(t, tc.src, nil); out != tc.want {
			t.Errorf("%q: got %q, want %q", tc.src, out, tc.want)
		}
	}
}

func TestCompilePretty(t *testing.T) {
	pretty := func(o *Options) { o.Pretty = true }
	out := compile(t, "div\n  p Hello", pretty)
	if want := "<div>\n  <p>Hello</p>\n</div>"; out != want {
		t.Fatalf("got %q, want %q", out, want)
	}

	out = compile(t, "ul\n  li a\n  li\n    b x", pretty)
	if want := "<ul>\n  <li>a</li>\n  <li>\n    <b>x</b>\n  </li>\n</ul>"; out != want {
		t.Fatalf("got %q, want %q", out, want)
	}

	out = compile(t, "div\n  p Hello", func(o *Options) {
		o.Pretty = true
		o.IndentStyle = IndentTab
		o.IndentWidth = 1
	})
	if want := "<div>\n\t<p>Hello</p>\n</div>"; out != want {
		t.Fatalf("tabs: got %q, want %q", out, want)
	}
}

func TestCompileMixins(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		out := compile(t, "mixin foo($a, $b=2)\n  p= $a\n+foo(5)", nil)
		want := mixinHeader +
			`<?php $__mixins['foo'] = function (array $__arguments = [], $__block = null, array $__attributes = []) use (&$__mixins, $__scope) { extract($__scope); extract($__arguments); ?>` +
			`<p><?=htmlspecialchars(isset($a) ? $a : null, ENT_QUOTES, 'UTF-8')?></p>` +
			`<?php }; ?>` +
			`<?php $__mixins['foo'](['a' => 5, 'b' => 2], null, []); ?>`
		if diff := cmp.Diff(want, out); diff != "" {
			t.Fatalf("output mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("named", func(t *testing.T) {
		out := compile(t, "mixin foo($a, $b)\n  p\n+foo($b=3, 1)", nil)
		if !strings.Contains(out, `$__mixins['foo'](['a' => 1, 'b' => 3], null, []);`) {
			t.Fatalf("got %s", out)
		}
	})

	t.Run("variadic", func(t *testing.T) {
		out := compile(t, "mixin list($title, ...$items)\n  p= $title\n+list('a', 1, 2)", nil)
		if !strings.Contains(out, `$__mixins['list'](['title' => 'a', 'items' => [1, 2]], null, []);`) {
			t.Fatalf("got %s", out)
		}
	})

	t.Run("attributes", func(t *testing.T) {
		out := compile(t, "mixin box\n  div\n+box.big", nil)
		if !strings.Contains(out, `$__mixins['box']([], null, ['class' => ['big']]);`) {
			t.Fatalf("got %s", out)
		}
	})

	t.Run("block", func(t *testing.T) {
		out := compile(t, "mixin box\n  div: block\n+box\n  p inner", nil)
		if !strings.Contains(out, `<div><?php if (isset($__block) && is_callable($__block)) { $__block(); } ?></div>`) {
			t.Fatalf("mixin body: %s", out)
		}
		call := `<?php $__callScope = get_defined_vars(); $__mixins['box']([], function () use (&$__mixins, $__callScope) { extract($__callScope); ?><p>inner</p><?php }, []); ?>`
		if !strings.HasSuffix(out, call) {
			t.Fatalf("call: %s", out)
		}
	})

	t.Run("uncalled mixins are omitted", func(t *testing.T) {
		if out := compile(t, "mixin foo\n  p\ndiv", nil); out != "<div></div>" {
			t.Fatalf("got %s", out)
		}
		out := compile(t, "mixin foo\n  p\ndiv", func(o *Options) { o.CompileUncalledMixins = true })
		if !strings.Contains(out, `$__mixins['foo'] = function`) {
			t.Fatalf("got %s", out)
		}
	})

	t.Run("mixins calling mixins", func(t *testing.T) {
		out := compile(t, "mixin a\n  +b\nmixin b\n  p\nmixin c\n  p\n+a", nil)
		if !strings.Contains(out, `$__mixins['a'] = `) || !strings.Contains(out, `$__mixins['b'] = `) {
			t.Fatalf("missing definitions: %s", out)
		}
		if strings.Contains(out, `$__mixins['c'] = `) {
			t.Fatalf("uncalled mixin compiled: %s", out)
		}
	})

	t.Run("replace", func(t *testing.T) {
		src := "mixin foo\n  p a\nmixin foo\n  p b\n+foo"
		if ce := compileErr(t, src, nil); !strings.Contains(ce.Message, "already defined") {
			t.Fatalf("got %v", ce)
		}
		out := compile(t, src, func(o *Options) { o.ReplaceMixins = true })
		if !strings.Contains(out, "<p>b</p>") || strings.Contains(out, "<p>a</p>") {
			t.Fatalf("got %s", out)
		}
	})
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"case without when", "case $x", "at least one when"},
		{"case with element", "case $x\n  p", "may only contain"},
		{"undefined mixin", "+nope", "not defined"},
		{"too many arguments", "mixin foo($a)\n  p\n+foo(1, 2)", "too many arguments"},
		{"unknown parameter", "mixin foo($a)\n  p\n+foo($z=1)", "no parameter"},
		{"variadic not last", "mixin foo(...$a, $b)\n  p", "must come last"},
		{"else without if", "p\nelse\n  p", "without a preceding if"},
		{"do without while", "do\n  p", "following while"},
		{"unknown filter", ":nope\n  x", "unknown filter"},
		{"php filter close", ":php\n  echo 1; ?>", "must not contain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ce := compileErr(t, tc.src, nil)
			if !strings.Contains(ce.Message, tc.want) {
				t.Fatalf("got %q, want it to mention %q", ce.Message, tc.want)
			}
		})
	}
}

func TestCompileBlocks(t *testing.T) {
	layout := "html\n  block content\n    p layout\n  block scripts\n    script a"
	cases := []struct {
		name string
		page string
		want string
	}{
		{"replace", "extends layout\nblock content\n  p page", "<html><p>page</p><script>a</script></html>"},
		{"append", "extends layout\nblock append scripts\n  script b", "<html><p>layout</p><script>a</script><script>b</script></html>"},
		{"prepend", "extends layout\nprepend scripts\n  script b\n  script c", "<html><p>layout</p><script>b</script><script>c</script><script>a</script></html>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCompiler(t, memFS(t, map[string]string{
				"/views/layout.jade": layout,
				"/views/page.jade":   tc.page,
			}))
			out, err := c.CompileFile("/views/page.jade")
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if diff := cmp.Diff(tc.want, out); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{"/views/page.jade", "/views/layout.jade"}, c.Dependencies()); diff != "" {
				t.Fatalf("dependencies (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileIncludes(t *testing.T) {
	files := memFS(t, map[string]string{
		"/views/style.css":          "body { color: red; }\n",
		"/views/notes.md":           "# hi\n",
		"/views/partials/nav.jade":  "nav\n  include link",
		"/views/partials/link.jade": "a(href='/')",
		"/views/self.jade":          "include self",
	})
	cases := []struct {
		src  string
		want string
	}{
		{"include style.css", "<style>body { color: red; }</style>"},
		{"include:plain style.css", "body { color: red; }"},
		{"include notes.md", "# hi"},
		{"div\n  include partials/nav", `<div><nav><a href="/"></a></nav></div>`},
	}
	for _, tc := range cases {
		c := newCompiler(t, files)
		out, err := c.Compile(tc.src, "/views/page.jade")
		if err != nil {
			t.Fatalf("%q: %v", tc.src, err)
		}
		if out != tc.want {
			t.Errorf("%q: got %q, want %q", tc.src, out, tc.want)
		}
	}

	c := newCompiler(t, files)
	_, err := c.Compile("include self", "/views/page.jade")
	var ce *CompileError
	if !errors.As(err, &ce) || !strings.Contains(ce.Message, "deeper than") {
		t.Fatalf("cyclic include: got %v", err)
	}
	if ce.Path != "/views/self.jade" {
		t.Fatalf("cyclic include reported in %q", ce.Path)
	}
}

func TestCompileImportErrors(t *testing.T) {
	files := memFS(t, map[string]string{"/views/style.css": "x"})

	_, err := newCompiler(t, files).Compile("include missing", "/views/page.jade")
	var ce *CompileError
	if !errors.As(err, &ce) || !strings.Contains(ce.Message, "file not found") {
		t.Fatalf("missing include: got %v", err)
	}
	if ce.Path != "/views/page.jade" || ce.Line != 1 {
		t.Fatalf("missing include reported at %s:%d", ce.Path, ce.Line)
	}

	_, err = newCompiler(t, files).Compile("extends style.css", "/views/page.jade")
	if !errors.As(err, &ce) || !strings.Contains(ce.Message, "not a template") {
		t.Fatalf("foreign extends: got %v", err)
	}

	disabled := func(o *Options) {
		files(o)
		o.AllowImports = false
	}
	_, err = newCompiler(t, disabled).Compile("include style.css", "/views/page.jade")
	if !errors.As(err, &ce) || !strings.Contains(ce.Message, "not allowed") {
		t.Fatalf("disabled imports: got %v", err)
	}
}

func TestCompileFileNotFound(t *testing.T) {
	c := newCompiler(t, memFS(t, nil))
	_, err := c.CompileFile("/views/nope")
	if !IsNotFound(err) {
		t.Fatalf("got %v, want a not found error", err)
	}
}

func TestCompileParseErrorCarriesPath(t *testing.T) {
	_, err := newCompiler(t, nil).Compile("a(b", "views/x.jade")
	if err == nil || !strings.HasPrefix(err.Error(), "views/x.jade: ") {
		t.Fatalf("got %v", err)
	}
	var le *LexError
	if !errors.As(err, &le) {
		t.Fatalf("got %T, want a wrapped LexError", err)
	}
	if got := ErrorFile(err); got != "views/x.jade" {
		t.Errorf("ErrorFile = %q", got)
	}
}

func TestCompilerIsReusable(t *testing.T) {
	c := newCompiler(t, nil)
	if _, err := c.Compile("mixin a\n  p\n+a", ""); err != nil {
		t.Fatalf("first compile: %v", err)
	}
	out, err := c.Compile("mixin a\n  b\n+a\neach $x in $y\n  i", "")
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if !strings.Contains(out, "$__iterator0") || !strings.Contains(out, "<b></b>") {
		t.Fatalf("state leaked between compiles: %s", out)
	}
}

func TestNewCompilerValidatesDelimiters(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiters.Echo.Close = ""
	opts.Delimiters.HiddenComment.Open = ""
	_, err := NewCompiler(opts)
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"delimiters[1]: echo.close", "delimiters[3]: hiddenComment.open"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestNewCompilerValidatesOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.IndentWidth = 0
	opts.QuoteStyle = "`"
	_, err := NewCompiler(opts)
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"indentWidth", "quoteStyle"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
