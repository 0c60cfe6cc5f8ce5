package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
	"github.com/Talesoft/tale-jade-sub000/pkg/starlark"
	v "github.com/Talesoft/tale-jade-sub000/pkg/validator"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "jade.yaml"

// LexerConfig presets the indentation the lexer expects.
type LexerConfig struct {
	IndentStyle string `yaml:"indentStyle"`
	IndentWidth int    `yaml:"indentWidth"`
}

// DelimitersConfig overrides single delimiter pairs. Unset pairs keep their
// defaults.
type DelimitersConfig struct {
	Statement     *jade.Delimiter `yaml:"statement"`
	Echo          *jade.Delimiter `yaml:"echo"`
	Comment       *jade.Delimiter `yaml:"comment"`
	HiddenComment *jade.Delimiter `yaml:"hiddenComment"`
}

// Config is the YAML form of the compiler options. Zero values keep the
// compiler defaults; maps are merged over the default maps.
type Config struct {
	Pretty                  bool              `yaml:"pretty"`
	IndentStyle             string            `yaml:"indentStyle"`
	IndentWidth             int               `yaml:"indentWidth"`
	Mode                    string            `yaml:"mode"`
	SelfClosingTags         []string          `yaml:"selfClosingTags"`
	SelfRepeatingAttributes []string          `yaml:"selfRepeatingAttributes"`
	Doctypes                map[string]string `yaml:"doctypes"`
	FilterMap               map[string]string `yaml:"filterMap"`
	QuoteStyle              string            `yaml:"quoteStyle"`
	AllowImports            *bool             `yaml:"allowImports"`
	ReplaceMixins           bool              `yaml:"replaceMixins"`
	CompileUncalledMixins   bool              `yaml:"compileUncalledMixins"`
	DefaultTag              string            `yaml:"defaultTag"`
	SearchPaths             []string          `yaml:"searchPaths"`
	FileExtension           string            `yaml:"fileExtension"`
	Delimiters              DelimitersConfig  `yaml:"delimiters"`
	EscapeCharset           string            `yaml:"escapeCharset"`
	RuntimeNamespace        string            `yaml:"runtimeNamespace"`
	Lexer                   LexerConfig       `yaml:"lexer"`

	// FilterScripts are Starlark files defining additional filters.
	FilterScripts []string `yaml:"filterScripts"`
	// FilterVars are globals visible to every filter script.
	FilterVars map[string]any `yaml:"filterVars"`
	// CacheDir enables the compiled output cache.
	CacheDir string `yaml:"cacheDir"`
}

var indentStyles = map[string]string{"": "", "space": jade.IndentSpace, "tab": jade.IndentTab}

// Load reads and validates a configuration file. Relative paths in it are
// resolved against the file's directory.
func Load(fs afero.Fs, path string) (*Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	slog.Debug("loaded config", "path", path)
	return cfg, nil
}

// Parse decodes and validates a configuration document. Unknown keys are
// an error.
func Parse(b []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, p := range c.SearchPaths {
		c.SearchPaths[i] = abs(p)
	}
	for i, p := range c.FilterScripts {
		c.FilterScripts[i] = abs(p)
	}
	c.CacheDir = abs(c.CacheDir)
}

func (c *Config) Validate() error {
	styles := []string{"", "space", "tab"}
	return v.All(
		v.MatchesAllowed(c.IndentStyle, styles, "indentStyle"),
		v.MatchesAllowed(c.Lexer.IndentStyle, styles, "lexer.indentStyle"),
		func() error {
			if c.IndentWidth < 0 || c.Lexer.IndentWidth < 0 {
				return fmt.Errorf("indentWidth must not be negative")
			}
			return nil
		}(),
		func() error {
			if c.Mode == "" {
				return nil
			}
			_, err := jade.ParseMode(c.Mode)
			return err
		}(),
		v.MatchesAllowed(c.QuoteStyle, []string{"", `"`, `'`}, "quoteStyle"),
		v.NoDuplicates(c.SearchPaths, "searchPaths"),
		v.Map(c.SearchPaths, v.NotEmpty, "searchPaths"),
		v.NoDuplicates(c.FilterScripts, "filterScripts"),
		v.Map(c.FilterScripts, func(p, description string) error {
			return v.HasExtension(p, []string{".star", ".py"}, description)
		}, "filterScripts"),
		func() error {
			if c.FileExtension != "" && filepath.Ext(c.FileExtension) != c.FileExtension {
				return fmt.Errorf("fileExtension must look like \".jade\", got %q", c.FileExtension)
			}
			return nil
		}(),
	)
}

// Options builds compiler options from the defaults and the configuration.
// Filter scripts are read from fs, which also becomes the compiler's
// filesystem.
func (c *Config) Options(fs afero.Fs) (jade.Options, error) {
	o := jade.DefaultOptions()
	o.FS = fs
	o.Pretty = c.Pretty
	if c.IndentStyle != "" {
		o.IndentStyle = indentStyles[c.IndentStyle]
	}
	if c.IndentWidth > 0 {
		o.IndentWidth = c.IndentWidth
	}
	if c.Mode != "" {
		mode, err := jade.ParseMode(c.Mode)
		if err != nil {
			return o, err
		}
		o.Mode = mode
	}
	if c.SelfClosingTags != nil {
		o.SelfClosingTags = c.SelfClosingTags
	}
	if c.SelfRepeatingAttributes != nil {
		o.SelfRepeatingAttributes = c.SelfRepeatingAttributes
	}
	maps.Copy(o.Doctypes, c.Doctypes)
	maps.Copy(o.FilterMap, c.FilterMap)
	setString(&o.QuoteStyle, c.QuoteStyle)
	if c.AllowImports != nil {
		o.AllowImports = *c.AllowImports
	}
	o.ReplaceMixins = c.ReplaceMixins
	o.CompileUncalledMixins = c.CompileUncalledMixins
	setString(&o.DefaultTag, c.DefaultTag)
	o.SearchPaths = c.SearchPaths
	setString(&o.FileExtension, c.FileExtension)
	setDelimiter(&o.Delimiters.Statement, c.Delimiters.Statement)
	setDelimiter(&o.Delimiters.Echo, c.Delimiters.Echo)
	setDelimiter(&o.Delimiters.Comment, c.Delimiters.Comment)
	setDelimiter(&o.Delimiters.HiddenComment, c.Delimiters.HiddenComment)
	setString(&o.EscapeCharset, c.EscapeCharset)
	setString(&o.RuntimeNamespace, c.RuntimeNamespace)
	o.Lexer = jade.LexerOptions{IndentStyle: indentStyles[c.Lexer.IndentStyle], IndentWidth: c.Lexer.IndentWidth}

	for _, script := range c.FilterScripts {
		filters, err := starlark.LoadFilters(fs, script, c.FilterVars)
		if err != nil {
			return o, fmt.Errorf("filter script %s: %w", script, err)
		}
		for name, f := range filters {
			if _, ok := o.Filters[name]; ok {
				slog.Debug("script filter overrides filter", "name", name, "script", script)
			}
			o.Filters[name] = f
		}
	}
	if err := o.Validate(); err != nil {
		return o, fmt.Errorf("invalid options: %w", err)
	}
	return o, nil
}

func setString(dst *string, s string) {
	if s != "" {
		*dst = s
	}
}

func setDelimiter(dst *jade.Delimiter, d *jade.Delimiter) {
	if d != nil {
		*dst = *d
	}
}
