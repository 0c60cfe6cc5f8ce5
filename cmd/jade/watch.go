package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Talesoft/tale-jade-sub000/pkg/cache"
	"github.com/Talesoft/tale-jade-sub000/pkg/config"
	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

var watchCmd = cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Compile templates and recompile them when they or their imports change",
	RunE: func(cmd *cobra.Command, args []string) error {
		pretty, _ := cmd.Flags().GetBool("pretty")
		outDir, _ := cmd.Flags().GetString("out")
		ext, _ := cmd.Flags().GetString("ext")
		runtimeFile, _ := cmd.Flags().GetString("runtime")

		comp, cfg, err := newCompiler(cmd, func(cfg *config.Config) {
			cfg.Pretty = cfg.Pretty || pretty
		})
		if err != nil {
			return err
		}
		dirs := args
		if len(dirs) == 0 {
			dirs = cfg.SearchPaths
		}
		if len(dirs) == 0 {
			dirs = []string{"."}
		}

		b := newBuilder(comp, outDir, ext, cmd.ErrOrStderr())
		if cfg.CacheDir != "" {
			b.store = cache.New(cfg.CacheDir, appFs)
		}
		if err := writeRuntime(comp, outDir, runtimeFile); err != nil {
			return err
		}
		if err := b.buildAll(dirs); err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer watcher.Close()
		for _, dir := range dirs {
			err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() {
					return watcher.Add(path)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("error adding directory to watcher: %w", err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		slog.Info("watching", "dirs", dirs, "output", outDir)
		return b.watch(ctx, watcher)
	},
}

// builder compiles every template below a set of directories and keeps
// track of the files each one was built from.
type builder struct {
	comp   *jade.Compiler
	store  *cache.Cache
	outDir string
	ext    string
	errOut io.Writer

	// deps maps a template to the files read by its last successful build.
	deps map[string][]string
}

func newBuilder(comp *jade.Compiler, outDir, ext string, errOut io.Writer) *builder {
	return &builder{comp: comp, outDir: outDir, ext: ext, errOut: errOut, deps: map[string][]string{}}
}

// isTemplate reports whether path is a template that gets its own output.
// Files starting with an underscore are partials and only compiled as part
// of the templates importing them.
func (b *builder) isTemplate(path string) bool {
	return filepath.Ext(path) == b.comp.Options().FileExtension && !strings.HasPrefix(filepath.Base(path), "_")
}

func (b *builder) buildAll(dirs []string) error {
	for _, dir := range dirs {
		err := afero.Walk(appFs, dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && b.isTemplate(path) {
				b.build(path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("scanning %s: %w", dir, err)
		}
	}
	return nil
}

// build compiles one template. Failures are reported and keep the
// dependencies of the previous build, so fixing any of them retriggers it.
func (b *builder) build(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		b.report(err)
		return
	}
	res, err := compileTemplate(b.comp, b.store, abs)
	if err != nil {
		b.report(err)
		if _, ok := b.deps[abs]; !ok {
			b.deps[abs] = []string{abs}
		}
		return
	}
	deps := make([]string, 0, len(res.Dependencies))
	for _, dep := range res.Dependencies {
		if d, err := filepath.Abs(dep); err == nil {
			deps = append(deps, d)
		}
	}
	b.deps[abs] = deps

	dst, err := writeOutput(b.outDir, abs, b.ext, res.Output)
	if err != nil {
		b.report(err)
		return
	}
	slog.Info("compiled", "template", abs, "output", dst, "cached", res.FromCache)
}

func (b *builder) report(err error) {
	fmt.Fprint(b.errOut, formatError(appFs, err))
}

// affected lists the templates that have to be rebuilt when path changed.
func (b *builder) affected(path string) []string {
	var out []string
	for tpl, deps := range b.deps {
		if slices.Contains(deps, path) {
			out = append(out, tpl)
		}
	}
	if _, known := b.deps[path]; !known && b.isTemplate(path) {
		out = append(out, path)
	}
	slices.Sort(out)
	return out
}

// handle reacts to a single filesystem event and returns the templates it
// rebuilt.
func (b *builder) handle(ev fsnotify.Event) []string {
	path, err := filepath.Abs(ev.Name)
	if err != nil {
		b.report(err)
		return nil
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if _, ok := b.deps[path]; ok {
			delete(b.deps, path)
			slog.Warn("template removed, keeping its output", "template", path)
		}
		return nil
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		slog.Debug("ignoring event", "event", ev.String())
		return nil
	}
	if b.store != nil {
		if err := b.store.Invalidate(path); err != nil {
			slog.Warn("could not invalidate cache entry", "path", path, "error", err)
		}
	}
	targets := b.affected(path)
	if len(targets) == 0 {
		if filepath.Ext(path) == b.comp.Options().FileExtension {
			slog.Warn("skipped change, no template uses this file", "path", path)
		}
		return nil
	}
	for _, tpl := range targets {
		b.build(tpl)
	}
	return targets
}

func (b *builder) watch(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						slog.Warn("could not watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			// editors tend to write a file in several steps
			time.Sleep(100 * time.Millisecond)
			b.handle(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}
