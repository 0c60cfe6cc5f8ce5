package jade

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

//go:embed runtime.php
var runtimeSource string

const runtimeNamespace = `namespace Tale\Jade\Runtime;`

// Runtime returns the PHP helpers compiled templates call, declared in ns.
// It has to be included once before a template is rendered.
func Runtime(ns string) string {
	ns = strings.Trim(ns, `\`)
	return strings.Replace(runtimeSource, runtimeNamespace, "namespace "+ns+";", 1)
}

// AttributeValue joins the values of one attribute like the attribute_value
// helper does at runtime. Class values are flattened into names and style
// values into rules; maps contribute their keys in sorted order. Values of
// data-* attributes that are not strings are written as JSON. Everything
// else is concatenated, skipping nil and bools.
func AttributeValue(name string, values ...any) string {
	switch name {
	case "class":
		return strings.Join(flattenClass(values), " ")
	case "style":
		return strings.Join(flattenStyle(values), "; ")
	}
	data := strings.HasPrefix(name, "data-")
	var b strings.Builder
	for _, v := range values {
		switch t := v.(type) {
		case string:
			b.WriteString(t)
		case nil:
		default:
			if !data {
				b.WriteString(plainValue(v))
				continue
			}
			js, err := json.Marshal(t)
			if err != nil {
				b.WriteString(plainValue(v))
				continue
			}
			b.Write(js)
		}
	}
	return b.String()
}

func flattenClass(v any) []string {
	switch t := v.(type) {
	case nil, bool:
		return nil
	case string:
		return strings.Fields(t)
	case []string:
		var out []string
		for _, s := range t {
			out = append(out, strings.Fields(s)...)
		}
		return out
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, flattenClass(item)...)
		}
		return out
	case map[string]bool:
		var out []string
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if t[k] {
				out = append(out, k)
			}
		}
		return out
	case map[string]any:
		var out []string
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if truthy(t[k]) {
				out = append(out, k)
			}
		}
		return out
	}
	return strings.Fields(fmt.Sprint(v))
}

func flattenStyle(v any) []string {
	switch t := v.(type) {
	case nil, bool:
		return nil
	case string:
		rule := strings.TrimRight(strings.TrimSpace(t), ";")
		if rule == "" {
			return nil
		}
		return []string{rule}
	case []string:
		var out []string
		for _, s := range t {
			out = append(out, flattenStyle(s)...)
		}
		return out
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, flattenStyle(item)...)
		}
		return out
	case map[string]string:
		var out []string
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if t[k] != "" {
				out = append(out, k+": "+t[k])
			}
		}
		return out
	case map[string]any:
		var out []string
		for _, k := range slices.Sorted(maps.Keys(t)) {
			switch item := t[k]; item {
			case nil, false, "":
			default:
				out = append(out, k+": "+plainValue(item))
			}
		}
		return out
	}
	return flattenStyle(fmt.Sprint(v))
}

// plainValue writes scalars as they are and joins lists and maps with blanks.
func plainValue(v any) string {
	var parts []string
	switch t := v.(type) {
	case nil, bool:
		return ""
	case string:
		return t
	case []string:
		parts = slices.Clone(t)
	case []any:
		for _, item := range t {
			parts = append(parts, plainValue(item))
		}
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			parts = append(parts, plainValue(t[k]))
		}
	default:
		return fmt.Sprint(v)
	}
	return strings.Join(slices.DeleteFunc(parts, func(s string) bool { return s == "" }), " ")
}

// truthy follows the loose boolean conversion of the generated code.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}
