package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"decipher/pkg/config"
	"decipher/pkg/diag"
	"decipher/pkg/eval"
	"decipher/pkg/logging"
	"decipher/pkg/render"
	"decipher/pkg/runner"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	scoping  string
	logLevel string
	noColor  bool
)

// Loaded by the root pre-run hook before any subcommand runs.
var (
	appConfig *config.Config
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "decipher",
	Short: "DeCipher - a small Pascal-like language",
	Long: `DeCipher runs programs written in a small Pascal-like language with
INTEGER and REAL variables, nested procedures, IF, WHILE, READ and PRINT.

Every program is lexed, parsed and checked before a single statement runs.
Diagnostics are printed as <Class>[<Kind>] line:col: message and make the
process exit with status 10.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx)
}

func execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var se *sourceError
	src := ""
	if errors.As(err, &se) {
		src = se.src
	}
	render.Diagnostic(rootCmd.ErrOrStderr(), err, src, useColor(rootCmd.ErrOrStderr()))
	if _, ok := diag.As(err); ok {
		return diag.ExitCode
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().StringVar(&scoping, "scoping", "", "variable scoping: copy or lexical")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored diagnostics")
}

// setup loads the configuration, lets flags override it and builds the
// logger.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("scoping") {
		cfg.Interpreter.Scoping = scoping
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("no-color") {
		cfg.Log.NoColor = noColor
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	appConfig, logger = cfg, l
	logger.Debug("configuration loaded", "file", cfgFile, "scoping", cfg.Interpreter.Scoping)
	return nil
}

func newRunner() *runner.Runner {
	mode, _ := eval.ParseScoping(appConfig.Interpreter.Scoping)
	return runner.New(logger,
		eval.WithScoping(mode),
		eval.WithMaxDepth(appConfig.Interpreter.MaxCallDepth),
		eval.WithPrompt(appConfig.Interpreter.ReadPrompt),
	)
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	off := noColor
	if appConfig != nil {
		off = appConfig.Log.NoColor
	}
	return render.UseColor(f, off)
}

// sourceError attaches the program text to an error so the caret excerpt
// can be printed.
type sourceError struct {
	err error
	src string
}

func (e *sourceError) Error() string { return e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }

func withSource(err error, src string) error {
	if err == nil {
		return nil
	}
	return &sourceError{err: err, src: src}
}

// readSource reads a program from path, or from stdin when path is "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
