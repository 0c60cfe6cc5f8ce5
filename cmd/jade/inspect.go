package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

var tokensCmd = cobra.Command{
	Use:   "tokens [file]",
	Short: "Print the token stream of a template",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, path, err := readSource(cmd, args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts, err := cfg.Options(appFs)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for tok, err := range jade.NewLexer(src, opts.Lexer).Tokens() {
			if err != nil {
				return withFile(path, err)
			}
			fmt.Fprintf(w, "%d:%d\t%s%s\n", tok.Line, tok.Offset, indent(tok.Level), tok)
		}
		return nil
	},
}

var treeCmd = cobra.Command{
	Use:   "tree [file]",
	Short: "Print the parsed node tree of a template",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, path, err := readSource(cmd, args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts, err := cfg.Options(appFs)
		if err != nil {
			return err
		}
		doc, err := jade.Parse(src, opts.Lexer)
		if err != nil {
			return withFile(path, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), jade.Pretty(doc))
		return nil
	},
}

// readSource reads the named file, or stdin without arguments.
func readSource(cmd *cobra.Command, args []string) (src, path string, err error) {
	if len(args) == 0 {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), "", nil
	}
	b, err := afero.ReadFile(appFs, args[0])
	if err != nil {
		return "", "", err
	}
	return string(b), args[0], nil
}

func withFile(path string, err error) error {
	if path == "" {
		return err
	}
	return &jade.FileError{Path: path, Err: err}
}

func indent(level int) string {
	return strings.Repeat("  ", max(level, 0))
}
