package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Talesoft/tale-jade-sub000/pkg/cache"
	"github.com/Talesoft/tale-jade-sub000/pkg/config"
	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

var compileCmd = cobra.Command{
	Use:   "compile [files...]",
	Short: "Compile templates, or stdin when no files are given",
	RunE: func(cmd *cobra.Command, args []string) error {
		pretty, _ := cmd.Flags().GetBool("pretty")
		outDir, _ := cmd.Flags().GetString("out")
		ext, _ := cmd.Flags().GetString("ext")
		cacheDir, _ := cmd.Flags().GetString("cache-dir")
		runtimeFile, _ := cmd.Flags().GetString("runtime")

		comp, cfg, err := newCompiler(cmd, func(cfg *config.Config) {
			cfg.Pretty = cfg.Pretty || pretty
		})
		if err != nil {
			return err
		}

		if len(args) == 0 {
			src, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			out, err := comp.Compile(string(src), "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		}

		if cacheDir == "" {
			cacheDir = cfg.CacheDir
		}
		var store *cache.Cache
		if cacheDir != "" {
			store = cache.New(cacheDir, appFs)
		}

		for _, name := range args {
			res, err := compileTemplate(comp, store, name)
			if err != nil {
				return err
			}
			if outDir == "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Output)
				continue
			}
			dst, err := writeOutput(outDir, name, ext, res.Output)
			if err != nil {
				return err
			}
			slog.Info("compiled", "template", name, "output", dst, "cached", res.FromCache)
		}
		if outDir != "" {
			return writeRuntime(comp, outDir, runtimeFile)
		}
		return nil
	},
}

// compileTemplate compiles a file given by path. Names that are not files
// are resolved through the configured search paths.
func compileTemplate(comp *jade.Compiler, store *cache.Cache, name string) (cache.Result, error) {
	exists, err := afero.Exists(appFs, name)
	if err != nil {
		return cache.Result{}, err
	}
	if !exists {
		out, err := comp.CompileFile(name)
		if err != nil {
			return cache.Result{}, err
		}
		return cache.Result{Output: out, Dependencies: comp.Dependencies()}, nil
	}
	if store != nil {
		return store.Compile(comp, name)
	}
	src, err := afero.ReadFile(appFs, name)
	if err != nil {
		return cache.Result{}, err
	}
	out, err := comp.Compile(string(src), name)
	if err != nil {
		return cache.Result{}, err
	}
	return cache.Result{Output: out, Dependencies: comp.Dependencies()}, nil
}

// writeOutput writes out to dir, named after the template with ext in place
// of its extension.
func writeOutput(dir, name, ext, out string) (string, error) {
	base := filepath.Base(name)
	dst := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+ext)
	if err := appFs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := afero.WriteFile(appFs, dst, []byte(out), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", dst, err)
	}
	return dst, nil
}
