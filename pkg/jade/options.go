package jade

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/Talesoft/tale-jade-sub000/pkg/validator"
)

// Mode selects how empty elements and boolean attributes are written.
type Mode int

const (
	ModeHTML Mode = iota
	ModeXML
	ModeXHTML
)

var modeNames = map[Mode]string{ModeHTML: "html", ModeXML: "xml", ModeXHTML: "xhtml"}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts "html", "xml" and "xhtml" in any case.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return ModeHTML, fmt.Errorf("unknown mode %q, expected html, xml or xhtml", s)
}

// Delimiter is an open/close pair written around generated code.
type Delimiter struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// Delimiters are the four pairs the compiler writes.
type Delimiters struct {
	Statement     Delimiter `yaml:"statement"`
	Echo          Delimiter `yaml:"echo"`
	Comment       Delimiter `yaml:"comment"`
	HiddenComment Delimiter `yaml:"hiddenComment"`
}

// namedDelimiter ties a pair to its option name for validation messages.
type namedDelimiter struct {
	name string
	Delimiter
}

func (d namedDelimiter) Validate() error {
	return validator.All(
		validator.NotEmpty(d.Open, d.name+".open"),
		validator.NotEmpty(d.Close, d.name+".close"),
	)
}

func (d Delimiters) named() []namedDelimiter {
	return []namedDelimiter{
		{"statement", d.Statement},
		{"echo", d.Echo},
		{"comment", d.Comment},
		{"hiddenComment", d.HiddenComment},
	}
}

// Options configures a Compiler. It is read-only while a compile runs.
type Options struct {
	Pretty      bool
	IndentStyle string
	IndentWidth int
	Mode        Mode

	SelfClosingTags         []string
	SelfRepeatingAttributes []string
	Doctypes                map[string]string
	Filters                 map[string]Filter
	// FilterMap maps a file extension (without dot) of an included file to
	// the filter that wraps its contents.
	FilterMap  map[string]string
	QuoteStyle string

	AllowImports          bool
	ReplaceMixins         bool
	CompileUncalledMixins bool
	DefaultTag            string
	SearchPaths           []string
	FileExtension         string

	Delimiters    Delimiters
	EscapeCharset string
	// RuntimeNamespace prefixes the helper functions generated code calls.
	RuntimeNamespace string

	Lexer    LexerOptions
	Resolver Resolver
	FS       afero.Fs
}

// DefaultDoctypes maps doctype names to their declarations.
var DefaultDoctypes = map[string]string{
	"5":            `<!DOCTYPE html>`,
	"html":         `<!DOCTYPE html>`,
	"default":      `<!DOCTYPE html>`,
	"xml":          `<?xml version="1.0" encoding="utf-8" ?>`,
	"transitional": `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">`,
	"strict":       `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">`,
	"frameset":     `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Frameset//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-frameset.dtd">`,
	"1.1":          `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">`,
	"basic":        `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML Basic 1.1//EN" "http://www.w3.org/TR/xhtml-basic/xhtml-basic11.dtd">`,
	"mobile":       `<!DOCTYPE html PUBLIC "-//WAPFORUM//DTD XHTML Mobile 1.2//EN" "http://www.openmobilealliance.org/tech/DTD/xhtml-mobile12.dtd">`,
}

// xhtmlDoctypes switch the output mode to XHTML.
var xhtmlDoctypes = []string{"transitional", "strict", "frameset", "1.1", "basic", "mobile"}

// DefaultOptions returns the standard configuration: HTML output with PHP
// delimiters, imports allowed and the built-in filters registered.
func DefaultOptions() Options {
	return Options{
		IndentStyle: IndentSpace,
		IndentWidth: 2,
		Mode:        ModeHTML,
		SelfClosingTags: []string{
			"input", "br", "img", "link", "area", "base", "col", "command",
			"embed", "hr", "keygen", "meta", "param", "source", "track", "wbr",
		},
		SelfRepeatingAttributes: []string{"selected", "checked", "disabled"},
		Doctypes:                maps.Clone(DefaultDoctypes),
		Filters:                 BuiltinFilters(),
		FilterMap: map[string]string{
			"css": "css",
			"js":  "js",
			"php": "php",
			"txt": "plain",
		},
		QuoteStyle:    `"`,
		AllowImports:  true,
		DefaultTag:    "div",
		FileExtension: ".jade",
		Delimiters: Delimiters{
			Statement:     Delimiter{Open: "<?php", Close: "?>"},
			Echo:          Delimiter{Open: "<?=", Close: "?>"},
			Comment:       Delimiter{Open: "<!--", Close: "-->"},
			HiddenComment: Delimiter{Open: "<?php /*", Close: "*/ ?>"},
		},
		EscapeCharset:    "UTF-8",
		RuntimeNamespace: `\Tale\Jade\Runtime`,
	}
}

// Validate checks the options for values the compiler cannot work with.
func (o Options) Validate() error {
	return validator.All(
		validator.MatchesAllowed(o.IndentStyle, []string{IndentSpace, IndentTab}, "indentStyle"),
		validator.Positive(o.IndentWidth, "indentWidth"),
		validator.MatchesAllowed(o.Mode, []Mode{ModeHTML, ModeXML, ModeXHTML}, "mode"),
		validator.MatchesAllowed(o.QuoteStyle, []string{`"`, `'`}, "quoteStyle"),
		validator.NotEmpty(o.DefaultTag, "defaultTag"),
		validator.NotEmpty(o.EscapeCharset, "escapeCharset"),
		validator.Each(o.Delimiters.named(), "delimiters"),
		validator.NoDuplicates(o.SelfClosingTags, "selfClosingTags"),
		validator.NoDuplicates(o.SelfRepeatingAttributes, "selfRepeatingAttributes"),
		validator.Map(o.SearchPaths, validator.NotEmpty, "searchPaths"),
		validator.MapDict(o.FilterMap, func(ext, name string) error {
			if _, ok := o.Filters[name]; !ok {
				return fmt.Errorf("filterMap[%s] names unknown filter %q", ext, name)
			}
			return nil
		}, "filterMap"),
		validator.MapDict(o.Filters, func(name string, f Filter) error {
			if f == nil {
				return fmt.Errorf("filter %q is nil", name)
			}
			return nil
		}, "filters"),
		o.validateLexer(),
	)
}

func (o Options) validateLexer() error {
	if o.Lexer.IndentStyle != "" {
		if err := validator.MatchesAllowed(o.Lexer.IndentStyle, []string{IndentSpace, IndentTab}, "lexer.indentStyle"); err != nil {
			return err
		}
	}
	if o.Lexer.IndentWidth < 0 {
		return fmt.Errorf("lexer.indentWidth must not be negative, got %d", o.Lexer.IndentWidth)
	}
	return nil
}

func (o Options) isSelfClosing(tag string) bool {
	return slices.Contains(o.SelfClosingTags, tag)
}

func (o Options) isSelfRepeating(name string) bool {
	return slices.Contains(o.SelfRepeatingAttributes, name)
}
