package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

var runtimeCmd = cobra.Command{
	Use:   "runtime",
	Short: "Print the PHP helpers compiled templates call",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		comp, _, err := newCompiler(cmd, nil)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), jade.Runtime(comp.Options().RuntimeNamespace))
		return nil
	},
}

// writeRuntime puts the helpers next to the compiled files. An empty name
// disables it.
func writeRuntime(comp *jade.Compiler, dir, name string) error {
	if name == "" {
		return nil
	}
	if err := appFs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	dst := filepath.Join(dir, name)
	if err := afero.WriteFile(appFs, dst, []byte(jade.Runtime(comp.Options().RuntimeNamespace)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	slog.Debug("wrote runtime", "path", dst)
	return nil
}
