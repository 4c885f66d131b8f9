package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tokenmint/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tokenmint",
	Short: "A pay-to-mint service for SPL tokens on Solana",
	Long: `tokenmint quotes a fee for creating an SPL token, builds the fee payment
transaction for the user to sign, verifies the payment on the ledger and then
creates the token with the requested metadata and authority revocations.

Examples:
  tokenmint serve
  tokenmint quote --revoke-mint --revoke-freeze
  tokenmint verify <signature> --payer <address> --fee 0.15
  tokenmint mints --state failed`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return logger.New(verbose)
}
