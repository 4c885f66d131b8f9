package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tokenmint/config"
	"tokenmint/pkg/store"
)

var filterState string

var mintsCmd = &cobra.Command{
	Use:     "mints",
	Aliases: []string{"records", "ls"},
	Short:   "List recent create-token requests",
	Long: `List the idempotency records kept for recent create-token requests.

Records expire after the configured retention (TOKENMINT_RECORD_TTL). Failed
records show the step that failed and the mint address if one was created.

Examples:
  tokenmint mints
  tokenmint mints --state failed
  tokenmint mints --json`,
	RunE: runMints,
}

func init() {
	rootCmd.AddCommand(mintsCmd)

	mintsCmd.Flags().StringVar(&filterState, "state", "", "Filter by state (processing, completed, failed)")
}

func runMints(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	state := store.State(strings.ToLower(filterState))
	if state != "" && !state.IsValid() {
		return fmt.Errorf("invalid state %q: must be processing, completed or failed", filterState)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	records, err := newRecordManager(cfg, newLogger(cmd))
	if err != nil {
		return err
	}

	list := records.List(state)
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	displayRecords(list)
	return nil
}

// newRecordManager opens the record file at the configured path, or in the
// home directory when none is set
func newRecordManager(cfg *config.Config, log *slog.Logger) (*store.Manager, error) {
	path := cfg.StorePath
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}

	storage, err := store.NewStorage(path)
	if err != nil {
		return nil, err
	}
	log.Debug("store: records loaded", "path", storage.FilePath(), "count", storage.Count())

	return store.NewManager(store.ManagerConfig{
		Storage: storage,
		TTL:     cfg.RecordTTL,
		Logger:  log,
	})
}

func displayRecords(records []*store.MintRecord) {
	if len(records) == 0 {
		fmt.Println("\nNo mint records found.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                 MINT RECORDS")
	fmt.Println(strings.Repeat("=", 90))

	for _, r := range records {
		fmt.Printf("\n  Key:       %s\n", color.CyanString(r.Key))
		fmt.Printf("  State:     %s\n", coloredState(r.State))
		fmt.Printf("  Payer:     %s\n", r.Payer)
		fmt.Printf("  Reference: %s\n", color.HiBlackString(r.PaymentReference))
		if r.Mint != "" {
			fmt.Printf("  Mint:      %s\n", color.CyanString(r.Mint))
		}
		if r.State == store.StateFailed {
			fmt.Printf("  Failed at: %s\n", color.RedString(r.FailedStep))
			fmt.Printf("  Error:     %s\n", r.Error)
		}
		fmt.Printf("  Created:   %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("  Expires:   %s\n", r.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("Total: %d records\n\n", len(records))
}

func coloredState(state store.State) string {
	s := strings.ToUpper(string(state))
	switch state {
	case store.StateCompleted:
		return color.GreenString(s)
	case store.StateProcessing:
		return color.YellowString(s)
	case store.StateFailed:
		return color.RedString(s)
	default:
		return s
	}
}
