package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tokenmint/config"
	"tokenmint/pkg/fee"
	"tokenmint/pkg/ledger"
	"tokenmint/pkg/payment"
	"tokenmint/pkg/types"
)

var (
	verifyPayer string
	verifyFee   string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <reference>",
	Short: "Check a fee payment transaction",
	Long: `Check that the transaction identified by reference transferred at least the
expected fee from payer to the operator address.

When --fee is not given the base fee is expected.

Examples:
  tokenmint verify 5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW --payer 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin
  tokenmint verify <signature> --payer <address> --fee 0.15 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyPayer, "payer", "", "Address that paid the fee (required)")
	verifyCmd.Flags().StringVar(&verifyFee, "fee", "", "Expected fee in SOL (default: base fee)")
	_ = verifyCmd.MarkFlagRequired("payer")
}

type verifyOutput struct {
	Matched bool                `json:"matched"`
	Reason  string              `json:"reason"`
	Claim   *types.PaymentClaim `json:"claim,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	reference := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	log := newLogger(cmd)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	expected := cfg.BaseFee
	if verifyFee != "" {
		if expected, err = decimal.NewFromString(verifyFee); err != nil {
			return fmt.Errorf("invalid fee %q: %w", verifyFee, err)
		}
	}
	minLamports, err := fee.ToLamports(expected)
	if err != nil {
		return fmt.Errorf("invalid fee: %w", err)
	}

	client, err := ledger.NewSolanaClient(ledger.SolanaConfig{
		RPCURL:      cfg.RPCURL,
		Commitment:  cfg.Commitment,
		CallTimeout: cfg.RPCTimeout,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	verifier, err := payment.NewVerifier(payment.VerifierConfig{
		Ledger:        client,
		Operator:      cfg.Operator,
		HistoryWindow: cfg.HistoryWindow,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Looking up payment transaction..."
		s.Start()
	}

	result, err := verifier.VerifyByReference(context.Background(), reference, verifyPayer, cfg.Operator.String(), minLamports)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(verifyOutput{
			Matched: result.Matched,
			Reason:  string(result.Reason),
			Claim:   result.Claim,
		}, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	displayVerification(reference, expected, result)
	return nil
}

func displayVerification(reference string, expected decimal.Decimal, result payment.MatchResult) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                       PAYMENT VERIFICATION")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Reference:  %s\n", color.HiBlackString(reference))
	fmt.Printf("  Expected:   %s SOL\n", expected.String())

	if result.Claim != nil {
		fmt.Printf("  Payer:      %s\n", result.Claim.Payer)
		fmt.Printf("  Recipient:  %s\n", result.Claim.Recipient)
		fmt.Printf("  Paid:       %s SOL\n", fee.FromLamports(result.Claim.Amount).String())
	}

	if result.Matched {
		fmt.Printf("  Verdict:    %s\n", color.GreenString("PAID"))
	} else {
		fmt.Printf("  Verdict:    %s (%s)\n", color.RedString("NOT PAID"), result.Reason)
		var mismatch *payment.PaymentMismatchError
		if errors.As(result.Err(), &mismatch) {
			fmt.Printf("              %s\n", color.YellowString(mismatch.Message()))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
