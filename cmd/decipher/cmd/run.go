package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"decipher/pkg/eval"
	"decipher/pkg/render"
	"decipher/pkg/runner"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	runWatch   bool
	runGlobals string
)

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Check and run a program",
	Long: `Checks a program and runs it. READ statements consume standard input.

Examples:
  decipher run factorial.dcp
  decipher run --globals=json factorial.dcp
  decipher run --watch factorial.dcp`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var evalCmd = &cobra.Command{
	Use:   "eval <source>",
	Short: "Check and run a program given on the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkGlobalsFormat(); err != nil {
			return err
		}
		return runOnce(cmd, args[0])
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <file|->",
	Short: "Parse and analyze a program without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readSource(cmd, args[0])
		if err != nil {
			return err
		}
		res, err := newRunner().Check(src)
		if err != nil {
			return withSource(err, src)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", args[0], res.Fingerprint)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "run again whenever the file changes")
	runCmd.Flags().StringVar(&runGlobals, "globals", "", "print global variables after the run: table, json or yaml")
	runCmd.Flags().Lookup("globals").NoOptDefVal = "table"
	evalCmd.Flags().StringVar(&runGlobals, "globals", "", "print global variables after the run: table, json or yaml")
	evalCmd.Flags().Lookup("globals").NoOptDefVal = "table"

	rootCmd.AddCommand(runCmd, evalCmd, checkCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := checkGlobalsFormat(); err != nil {
		return err
	}
	if runWatch {
		if args[0] == "-" {
			return fmt.Errorf("--watch needs a file")
		}
		return watch(cmd, args[0])
	}

	src, err := readSource(cmd, args[0])
	if err != nil {
		return err
	}
	return runOnce(cmd, src)
}

func runOnce(cmd *cobra.Command, src string) error {
	res, err := newRunner().Run(cmd.Context(), src,
		eval.WithInput(cmd.InOrStdin()),
		eval.WithOutput(cmd.OutOrStdout()),
	)
	if err != nil {
		return withSource(err, src)
	}
	return printGlobals(cmd.OutOrStdout(), res)
}

func checkGlobalsFormat() error {
	switch runGlobals {
	case "", "table", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("--globals: unknown format %q (want table, json or yaml)", runGlobals)
	}
}

func printGlobals(w io.Writer, res *runner.Result) error {
	switch runGlobals {
	case "table":
		render.Members(w, res.Global)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(eval.Snapshot(res.Global))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(eval.Snapshot(res.Global)); err != nil {
			return err
		}
		return enc.Close()
	}
	return nil
}

// watch runs path once and again after every write, until the command's
// context is cancelled. Program errors are reported but do not stop it.
func watch(cmd *cobra.Command, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	ctx := cmd.Context()
	rerun := func() {
		src, err := readSource(cmd, abs)
		if err == nil {
			err = runOnce(cmd, src)
		}
		if err != nil {
			render.Diagnostic(cmd.ErrOrStderr(), err, src, useColor(cmd.ErrOrStderr()))
		}
		logger.Info("watching for changes", "file", path)
	}
	rerun()

	const debounceDelay = 100 * time.Millisecond
	timer := time.NewTimer(debounceDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				timer.Reset(debounceDelay)
			}

		case <-timer.C:
			fmt.Fprintf(cmd.ErrOrStderr(), "--- %s changed, running again\n", path)
			rerun()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
