package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"decipher/pkg/eval"
	"decipher/pkg/render"
	"decipher/pkg/runner"
	"decipher/pkg/version"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const (
	replPrompt = "decipher> "
	contPrompt = "........> "
)

var replHistory string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	Long: `Reads programs line by line. A program runs as soon as a line ending in
"END." completes it.

Commands:
  :globals  show the globals of the last successful run
  :reset    discard the program typed so far
  :quit     leave the session`,
	Args: cobra.NoArgs,
	RunE: runREPL,
}

func init() {
	home, _ := os.UserHomeDir()
	replCmd.Flags().StringVar(&replHistory, "history", filepath.Join(home, ".decipher_history"), "history file, empty to disable")
	rootCmd.AddCommand(replCmd)
}

func runREPL(cmd *cobra.Command, args []string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if replHistory != "" {
		if f, err := os.Open(replHistory); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(replHistory); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, version.String())
	fmt.Fprintln(out, `Type a program ending in "END." or :quit to leave.`)

	s := &replSession{cmd: cmd, runner: newRunner()}
	for {
		prompt := replPrompt
		if s.buf.pending() {
			prompt = contPrompt
		}
		input, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			s.buf.reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if s.handle(input) {
			return nil
		}
	}
}

type replSession struct {
	cmd    *cobra.Command
	runner *runner.Runner
	buf    programBuffer
	last   *runner.Result
}

// handle processes one input line and reports whether the session should
// end.
func (s *replSession) handle(input string) bool {
	out := s.cmd.OutOrStdout()
	if !s.buf.pending() {
		switch strings.TrimSpace(input) {
		case ":quit", ":q":
			return true
		case ":reset":
			return false
		case ":globals":
			if s.last == nil {
				fmt.Fprintln(out, "no program has run yet")
			} else {
				render.Members(out, s.last.Global)
			}
			return false
		case "":
			return false
		}
	} else if strings.TrimSpace(input) == ":reset" {
		s.buf.reset()
		return false
	}

	src, ok := s.buf.add(input)
	if !ok {
		return false
	}
	res, err := s.runner.Run(s.cmd.Context(), src,
		eval.WithInput(s.cmd.InOrStdin()),
		eval.WithOutput(out),
	)
	if err != nil {
		errOut := s.cmd.ErrOrStderr()
		render.Diagnostic(errOut, err, src, useColor(errOut))
		return false
	}
	s.last = res
	return false
}

// programBuffer collects lines until one ending in "END." completes a
// program.
type programBuffer struct {
	lines []string
}

func (b *programBuffer) add(line string) (string, bool) {
	b.lines = append(b.lines, line)
	if !strings.HasSuffix(strings.TrimSpace(line), "END.") {
		return "", false
	}
	src := strings.Join(b.lines, "\n")
	b.lines = nil
	return src, true
}

func (b *programBuffer) pending() bool { return len(b.lines) > 0 }
func (b *programBuffer) reset()        { b.lines = nil }
