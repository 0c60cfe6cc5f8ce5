package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/Talesoft/tale-jade-sub000/pkg/config"
	"github.com/Talesoft/tale-jade-sub000/pkg/jade"
)

const (
	historyFile = ".jade_history"
	promptMain  = "jade> "
	promptCont  = "....  "
	replBanner  = "Jade REPL. Enter a template, finish it with an empty line.\nType :help for commands, :quit or Ctrl+D to exit."
	replHelp    = `Commands:
  :pretty  Toggle indented output
  :tree    Toggle printing the node tree instead of the output
  :help    Show this help
  :quit    Exit the REPL`
)

var replCmd = cobra.Command{
	Use:   "repl",
	Short: "Compile templates interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pretty, _ := cmd.Flags().GetBool("pretty")
		comp, _, err := newCompiler(cmd, func(cfg *config.Config) {
			cfg.Pretty = cfg.Pretty || pretty
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), replBanner)

		home, _ := os.UserHomeDir()
		histPath := filepath.Join(home, historyFile)

		ln := liner.NewLiner()
		defer ln.Close()
		ln.SetCtrlCAborts(true)

		defer func() {
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigc)
		go func() {
			<-sigc
			ln.Close()
			os.Exit(130)
		}()

		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}

		s := &session{comp: comp, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
		return s.run(ln, ln.AppendHistory)
	},
}

type prompter interface {
	Prompt(prompt string) (string, error)
}

// session holds the REPL state between templates.
type session struct {
	comp   *jade.Compiler
	tree   bool
	out    io.Writer
	errOut io.Writer
}

func (s *session) run(p prompter, remember func(string)) error {
	for {
		src, ok := readTemplate(p)
		if !ok {
			fmt.Fprintln(s.out)
			return nil
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		if cmd := strings.TrimSpace(src); strings.HasPrefix(cmd, ":") {
			quit, err := s.command(strings.ToLower(cmd))
			if err != nil {
				fmt.Fprint(s.errOut, formatError(appFs, err))
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.eval(src); err != nil {
			fmt.Fprint(s.errOut, formatError(appFs, err))
			continue
		}
		if remember != nil {
			remember(strings.ReplaceAll(src, "\n", "\\n"))
		}
	}
}

func (s *session) command(cmd string) (quit bool, err error) {
	switch cmd {
	case ":quit":
		return true, nil
	case ":help":
		fmt.Fprintln(s.out, replHelp)
	case ":tree":
		s.tree = !s.tree
		fmt.Fprintf(s.out, "tree output %s\n", onOff(s.tree))
	case ":pretty":
		opts := s.comp.Options()
		opts.Pretty = !opts.Pretty
		comp, err := jade.NewCompiler(opts)
		if err != nil {
			return false, err
		}
		s.comp = comp
		fmt.Fprintf(s.out, "pretty output %s\n", onOff(opts.Pretty))
	default:
		fmt.Fprintln(s.out, "unknown command. Type :help for a list.")
	}
	return false, nil
}

func (s *session) eval(src string) error {
	if s.tree {
		doc, err := jade.Parse(src, s.comp.Options().Lexer)
		if err != nil {
			return err
		}
		fmt.Fprint(s.out, jade.Pretty(doc))
		return nil
	}
	out, err := s.comp.Compile(src, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, out)
	return nil
}

// readTemplate reads lines until an empty one. A command on the first line
// is returned on its own. ok is false once input ends.
func readTemplate(p prompter) (src string, ok bool) {
	var lines []string
	for {
		prompt := promptMain
		if len(lines) > 0 {
			prompt = promptCont
		}
		line, err := p.Prompt(prompt)
		switch {
		case errors.Is(err, io.EOF):
			if len(lines) > 0 {
				return strings.Join(lines, "\n"), true
			}
			return "", false
		case errors.Is(err, liner.ErrPromptAborted):
			return "", true
		case err != nil:
			return "", false
		}
		if len(lines) == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, true
		}
		if strings.TrimSpace(line) == "" {
			return strings.Join(lines, "\n"), true
		}
		lines = append(lines, line)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
