package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Talesoft/tale-jade-sub000/pkg/config"
	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

const defaultRuntimeFile = "jade-runtime.php"

var (
	configPath string
	verbose    bool

	// appFs backs every file the commands read or write.
	appFs afero.Fs = afero.NewOsFs()
)

var rootCmd = cobra.Command{
	Use:           "jade",
	Short:         "Compile Jade templates to PHTML",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

// loadConfig reads the configuration file. A missing default file yields an
// empty configuration; a missing explicit one is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(appFs, configPath)
	if err == nil {
		return cfg, nil
	}
	if f := cmd.Flag("config"); (f == nil || !f.Changed) && errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", configPath)
		return &config.Config{}, nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// newCompiler builds a compiler from the configuration, letting the caller
// adjust it first.
func newCompiler(cmd *cobra.Command, adjust func(*config.Config)) (*jade.Compiler, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	opts, err := cfg.Options(appFs)
	if err != nil {
		return nil, nil, err
	}
	c, err := jade.NewCompiler(opts)
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	compileCmd.Flags().StringP("out", "o", "", "Write compiled files to this directory instead of stdout")
	compileCmd.Flags().Bool("pretty", false, "Indent the generated markup")
	compileCmd.Flags().String("cache-dir", "", "Reuse compiled output stored in this directory")
	compileCmd.Flags().String("ext", ".phtml", "Extension of the written files")
	compileCmd.Flags().String("runtime", defaultRuntimeFile, "Name of the runtime helpers written to the output directory, empty to skip")
	rootCmd.AddCommand(&compileCmd)

	rootCmd.AddCommand(&tokensCmd)
	rootCmd.AddCommand(&treeCmd)

	watchCmd.Flags().StringP("out", "o", "", "Directory the compiled files are written to")
	watchCmd.Flags().Bool("pretty", false, "Indent the generated markup")
	watchCmd.Flags().String("ext", ".phtml", "Extension of the written files")
	watchCmd.Flags().String("runtime", defaultRuntimeFile, "Name of the runtime helpers written to the output directory, empty to skip")
	_ = watchCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(&watchCmd)

	rootCmd.AddCommand(&runtimeCmd)

	replCmd.Flags().Bool("pretty", false, "Start with pretty output enabled")
	rootCmd.AddCommand(&replCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, formatError(appFs, err))
		os.Exit(1)
	}
}
