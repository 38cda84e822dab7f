package cmd

import (
	"fmt"

	"decipher/pkg/lexer"
	"decipher/pkg/render"

	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <file|->",
	Short: "Print the token stream of a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readSource(cmd, args[0])
		if err != nil {
			return err
		}
		toks, err := lexer.Tokenize(src)
		render.Tokens(cmd.OutOrStdout(), toks)
		return withSource(err, src)
	},
}

var astCmd = &cobra.Command{
	Use:   "ast <file|->",
	Short: "Print the parsed program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readSource(cmd, args[0])
		if err != nil {
			return err
		}
		program, err := newRunner().Parse(src)
		if err != nil {
			return withSource(err, src)
		}
		fmt.Fprintln(cmd.OutOrStdout(), program.String())
		return nil
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file|->",
	Short: "Print the scopes and symbols built by semantic analysis",
	Long: `Prints every scope the analyzer built, from BUILTINS down to the
innermost procedure. When analysis fails the scopes built so far are
printed before the diagnostic.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readSource(cmd, args[0])
		if err != nil {
			return err
		}
		res, err := newRunner().Check(src)
		if len(res.Scopes) > 0 {
			render.Symbols(cmd.OutOrStdout(), res.Scopes)
		}
		return withSource(err, src)
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd, astCmd, symbolsCmd)
}
