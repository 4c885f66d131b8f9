package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tokenmint/config"
	"tokenmint/pkg/fee"
	"tokenmint/pkg/types"
)

var quoteOptions types.FeeOptions

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Show the fee for creating a token",
	Long: `Show the fee charged for creating a token with the given options.

Each enabled option adds the configured surcharge to the base fee.

Examples:
  tokenmint quote
  tokenmint quote --revoke-mint --revoke-freeze
  tokenmint quote --custom-metadata --json`,
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().BoolVar(&quoteOptions.RevokeMint, "revoke-mint", false, "Revoke the mint authority after minting")
	quoteCmd.Flags().BoolVar(&quoteOptions.RevokeFreeze, "revoke-freeze", false, "Revoke the freeze authority")
	quoteCmd.Flags().BoolVar(&quoteOptions.RevokeMetadata, "revoke-metadata", false, "Make the token metadata immutable")
	quoteCmd.Flags().BoolVar(&quoteOptions.CustomMetadata, "custom-metadata", false, "Attach a custom metadata URI")
}

type quoteOutput struct {
	TotalFee         string           `json:"totalFee"`
	TotalFeeLamports uint64           `json:"totalFeeLamports"`
	Options          types.FeeOptions `json:"options"`
	PayTo            string           `json:"payTo"`
	Network          string           `json:"network"`
}

func runQuote(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	calculator, err := fee.NewCalculator(fee.Schedule{
		Base:      cfg.BaseFee,
		Surcharge: cfg.OptionSurcharge,
	})
	if err != nil {
		return err
	}

	quote := calculator.ComputeFee(quoteOptions)

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(quoteOutput{
			TotalFee:         quote.Total.String(),
			TotalFeeLamports: quote.Lamports,
			Options:          quoteOptions,
			PayTo:            cfg.Operator.String(),
			Network:          cfg.Network,
		}, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          FEE QUOTE")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Base fee:            %s SOL\n", cfg.BaseFee.String())
	printOption("Revoke mint", quoteOptions.RevokeMint, cfg.OptionSurcharge.String())
	printOption("Revoke freeze", quoteOptions.RevokeFreeze, cfg.OptionSurcharge.String())
	printOption("Immutable metadata", quoteOptions.RevokeMetadata, cfg.OptionSurcharge.String())
	printOption("Custom metadata", quoteOptions.CustomMetadata, cfg.OptionSurcharge.String())

	fmt.Println("\n  " + strings.Repeat("-", 50))
	fmt.Printf("  Total:               %s (%d lamports)\n",
		color.New(color.Bold, color.FgGreen).Sprintf("%s SOL", quote.Total.String()), quote.Lamports)
	fmt.Printf("  Pay to:              %s (%s)\n", color.CyanString(cfg.Operator.String()), cfg.Network)

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
	return nil
}

func printOption(name string, enabled bool, surcharge string) {
	label := fmt.Sprintf("%s:", name)
	if enabled {
		fmt.Printf("  %-20s +%s SOL\n", label, surcharge)
		return
	}
	fmt.Printf("  %-20s %s\n", label, color.HiBlackString("off"))
}
