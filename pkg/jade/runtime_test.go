package jade

import (
	"strings"
	"testing"
)

func TestAttributeValue(t *testing.T) {
	cases := []struct {
		name   string
		attr   string
		values []any
		want   string
	}{
		{"class strings", "class", []any{"a  b", " c"}, "a b c"},
		{"class list", "class", []any{[]any{"a", []string{"b c"}}, nil, false}, "a b c"},
		{"class map", "class", []any{map[string]any{"on": true, "off": false, "zero": "0", "full": []any{1}}, "x"}, "full on x"},
		{"class bools", "class", []any{map[string]bool{"b": true, "a": true, "c": false}}, "a b"},
		{"style strings", "style", []any{"color: red;", " width: 1px "}, "color: red; width: 1px"},
		{"style map", "style", []any{map[string]any{"width": 10, "color": "red", "height": nil}}, "color: red; width: 10"},
		{"style string map", "style", []any{map[string]string{"top": "0", "left": ""}, "z-index: 2"}, "top: 0; z-index: 2"},
		{"data map", "data-options", []any{map[string]any{"a": 1, "b": []any{"x"}}}, `{"a":1,"b":["x"]}`},
		{"data scalars", "data-id", []any{"7", 3, true}, "73true"},
		{"plain concatenation", "href", []any{"/a/", 1, nil, true, "/b"}, "/a/1/b"},
		{"plain list", "title", []any{[]any{"a", "", "b"}}, "a b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AttributeValue(tc.attr, tc.values...); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStaticAttributesJoinLikeRuntime(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{`a(class="a" class="b  c")`, `<a class="a b c"></a>`},
		{`a(style="color: red;" style="top: 0")`, `<a style="color: red; top: 0"></a>`},
		{`a(data-x="1" data-x="2")`, `<a data-x="12"></a>`},
	}
	for _, tc := range cases {
		if out := compile(t, tc.src, nil); out != tc.want {
			t.Errorf("%s: got %s, want %s", tc.src, out, tc.want)
		}
	}
}

func TestRuntimeDefinesCalledHelpers(t *testing.T) {
	src := Runtime(DefaultOptions().RuntimeNamespace)
	if !strings.HasPrefix(src, "<?php\nnamespace Tale\\Jade\\Runtime;\n") {
		t.Fatalf("unexpected header:\n%s", src[:min(len(src), 80)])
	}
	for _, fn := range []string{"attribute_value", "attribute", "attributes", "flatten_class", "flatten_style"} {
		if !strings.Contains(src, "function "+fn+"(") {
			t.Errorf("runtime does not define %s", fn)
		}
	}

	out := compile(t, "a(href=$url)\na&attributes($attrs)", nil)
	for _, fn := range []string{`\Tale\Jade\Runtime\attribute(`, `\Tale\Jade\Runtime\attributes(`} {
		if !strings.Contains(out, fn) {
			t.Errorf("compiled output does not call %s", fn)
		}
	}
}

func TestRuntimeNamespace(t *testing.T) {
	src := Runtime(`\App\View\`)
	if !strings.Contains(src, "\nnamespace App\\View;\n") || strings.Contains(src, `Tale\Jade`) {
		t.Fatalf("namespace not replaced:\n%s", src[:min(len(src), 80)])
	}
}
