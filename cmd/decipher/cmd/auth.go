package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"decipher/pkg/playground"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a playground bearer token with the configured secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl := appConfig.Playground.TokenTTL.Duration
		if cmd.Flags().Changed("ttl") {
			ttl = tokenTTL
		}
		tok, expires, err := playground.SignToken(tokenSubject, appConfig.Playground.JWTSecret, ttl)
		if err != nil {
			return err
		}
		logger.Info("token signed", "subject", tokenSubject, "expires", expires)
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for playground.password_hash",
	Long: `Prints a bcrypt hash of the password for use as playground.password_hash.
Without an argument the password is read from the first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return errors.New("password must not be empty")
		}

		hash, err := playground.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "playground", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime (overrides playground.token_ttl)")
	rootCmd.AddCommand(tokenCmd, hashPasswordCmd)
}
