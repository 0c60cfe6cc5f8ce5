package jade

import (
	"log/slog"
	"regexp"
	"strings"
)

var reParamName = regexp.MustCompile(`^[a-zA-Z_]\w*$`)

type mixinParam struct {
	name     string
	def      string
	variadic bool
}

type mixinDef struct {
	node   *MixinNode
	params []mixinParam
	body   string
}

func (d *mixinDef) param(name string) (mixinParam, bool) {
	for _, p := range d.params {
		if p.name == name {
			return p, true
		}
	}
	return mixinParam{}, false
}

// registerMixins detaches every mixin definition, then compiles each body
// once. Bodies are compiled after registration so mixins may call each other
// regardless of order.
func (c *Compiler) registerMixins(root Node) error {
	for _, m := range FindAll[*MixinNode](root) {
		if _, dup := c.mixins[m.Name]; dup {
			if !c.opts.ReplaceMixins {
				return c.errorf(m, "mixin %q is already defined", m.Name)
			}
		} else {
			c.mixinOrder = append(c.mixinOrder, m.Name)
		}
		params, err := c.mixinParams(m)
		if err != nil {
			return err
		}
		c.mixins[m.Name] = &mixinDef{node: m, params: params}
		Detach(m)
		slog.Debug("registered mixin", "name", m.Name, "params", len(params))
	}
	for _, name := range c.mixinOrder {
		def := c.mixins[name]
		c.scope = name
		c.calls[name] = nil
		body, err := c.compileChildren(def.node.Children(), true)
		if err != nil {
			return err
		}
		def.body = body
	}
	c.scope = ""
	return nil
}

func (c *Compiler) mixinParams(m *MixinNode) ([]mixinParam, error) {
	params := make([]mixinParam, 0, len(m.Attributes))
	for i, a := range m.Attributes {
		name, variadic := strings.CutPrefix(a.Name, "...")
		name = strings.TrimPrefix(name, "$")
		if !reParamName.MatchString(name) {
			return nil, c.errorf(m, "mixin %q: invalid parameter %q", m.Name, a.Name)
		}
		if variadic && i != len(m.Attributes)-1 {
			return nil, c.errorf(m, "mixin %q: variadic parameter %q must come last", m.Name, name)
		}
		params = append(params, mixinParam{name: name, def: a.Value, variadic: variadic})
	}
	return params, nil
}

// usedMixins lists the mixins reachable from the document's calls, in
// definition order.
func (c *Compiler) usedMixins() []string {
	if c.opts.CompileUncalledMixins {
		return c.mixinOrder
	}
	used := map[string]bool{}
	queue := append([]string(nil), c.calls[""]...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if used[name] {
			continue
		}
		used[name] = true
		queue = append(queue, c.calls[name]...)
	}
	var out []string
	for _, name := range c.mixinOrder {
		if used[name] {
			out = append(out, name)
		}
	}
	return out
}

// compileMixinDefinitions writes the closures of all used mixins. Each one
// sees the variables defined when the template started and the registry.
func (c *Compiler) compileMixinDefinitions() string {
	names := c.usedMixins()
	if len(names) == 0 {
		return ""
	}
	d := c.opts.Delimiters.Statement
	var b strings.Builder
	b.WriteString(c.statement("$__scope = isset($__scope) ? $__scope : get_defined_vars(); if (!isset($__mixins)) { $__mixins = []; }"))
	for _, name := range names {
		b.WriteString(c.newLine())
		b.WriteString(d.Open + " $__mixins[" + exportString(name) + "] = function (array $__arguments = [], $__block = null, array $__attributes = []) use (&$__mixins, $__scope) { extract($__scope); extract($__arguments); " + d.Close)
		b.WriteString(c.mixins[name].body)
		b.WriteString(c.newLine() + c.statement("};"))
	}
	b.WriteString(c.newLine())
	return b.String()
}

func (c *Compiler) compileMixinCall(n *MixinCallNode) (string, error) {
	def, ok := c.mixins[n.Name]
	if !ok {
		return "", c.errorf(n, "mixin %q is not defined", n.Name)
	}
	c.calls[c.scope] = append(c.calls[c.scope], n.Name)
	args, err := c.bindArguments(def, n)
	if err != nil {
		return "", err
	}
	s := collectAttributes(n.Attributes, n.Assignments)
	attrs := c.attributeArray(s)
	for _, spread := range s.spreads {
		attrs = "array_merge_recursive(" + attrs + ", (array) (" + spread + "))"
	}
	d := c.opts.Delimiters.Statement
	block, prefix := "null", ""
	if len(n.Children()) > 0 {
		body, err := c.compileChildren(n.Children(), true)
		if err != nil {
			return "", err
		}
		prefix = "$__callScope = get_defined_vars(); "
		block = "function () use (&$__mixins, $__callScope) { extract($__callScope); " + d.Close + body + c.line() + d.Open + " }"
	}
	call := "$__mixins[" + exportString(n.Name) + "](" + args + ", " + block + ", " + attrs + ");"
	return c.line() + c.statement(prefix+call), nil
}

// bindArguments maps call arguments onto the declared parameters. Named
// arguments bind by name, positional ones fill the first unbound parameter in
// declaration order and overflow into a variadic parameter. Unbound
// parameters take their default or null.
func (c *Compiler) bindArguments(def *mixinDef, n *MixinCallNode) (string, error) {
	bound := map[string]string{}
	var positional []string
	for _, a := range n.Arguments {
		if a.Value == "" {
			positional = append(positional, strings.TrimSpace(a.Name))
			continue
		}
		name := strings.TrimPrefix(a.Name, "$")
		if _, ok := def.param(name); !ok {
			return "", c.errorf(n, "mixin %q has no parameter %q", n.Name, name)
		}
		bound[name] = a.Value
	}
	var rest []string
	var variadic *mixinParam
	for i := range def.params {
		if def.params[i].variadic {
			variadic = &def.params[i]
		}
	}
next:
	for _, v := range positional {
		for _, p := range def.params {
			if _, ok := bound[p.name]; !ok && !p.variadic {
				bound[p.name] = v
				continue next
			}
		}
		if variadic == nil {
			return "", c.errorf(n, "too many arguments for mixin %q", n.Name)
		}
		rest = append(rest, v)
	}
	entries := make([]string, 0, len(def.params))
	for _, p := range def.params {
		v, ok := bound[p.name]
		switch {
		case ok:
		case p.variadic:
			v = "[" + strings.Join(rest, ", ") + "]"
		case p.def != "":
			v = p.def
		default:
			v = "null"
		}
		entries = append(entries, exportString(p.name)+" => "+v)
	}
	return "[" + strings.Join(entries, ", ") + "]", nil
}
