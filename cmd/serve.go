package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tokenmint/config"
	"tokenmint/pkg/api"
	"tokenmint/pkg/fee"
	"tokenmint/pkg/ledger"
	"tokenmint/pkg/metrics"
	"tokenmint/pkg/mint"
	"tokenmint/pkg/payment"
	"tokenmint/pkg/token"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API serving fee quotes, payment transactions, payment
verification and token creation.

Configuration is read from TOKENMINT_* environment variables, an optional .env
file and an optional ~/.tokenmint.yaml. TOKENMINT_OPERATOR_ADDRESS is required.

Examples:
  tokenmint serve
  TOKENMINT_RPC_URL=https://api.mainnet-beta.solana.com tokenmint serve -v`,
	RunE: runServe,
}

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides TOKENMINT_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.BuildInfo.WithLabelValues(rootCmd.Version).Set(1)

	calculator, err := fee.NewCalculator(fee.Schedule{
		Base:      cfg.BaseFee,
		Surcharge: cfg.OptionSurcharge,
	})
	if err != nil {
		return err
	}

	client, err := ledger.NewSolanaClient(ledger.SolanaConfig{
		RPCURL:         cfg.RPCURL,
		Commitment:     cfg.Commitment,
		CallTimeout:    cfg.RPCTimeout,
		ConfirmTimeout: cfg.ConfirmTimeout,
		SkipPreflight:  cfg.SkipPreflight,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to create ledger client: %w", err)
	}

	builder, err := payment.NewBuilder(payment.BuilderConfig{
		Ledger:   client,
		Operator: cfg.Operator,
		Logger:   log,
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

	program, err := token.NewSolanaProgram(token.SolanaConfig{
		Ledger: client,
		Logger: log,
	})
	if err != nil {
		return err
	}

	orchestrator, err := mint.NewOrchestrator(mint.OrchestratorConfig{
		Verifier:   verifier,
		Program:    program,
		Calculator: calculator,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	records, err := newRecordManager(cfg, log)
	if err != nil {
		return err
	}
	go records.RunSweeper(ctx, cfg.SweepInterval)

	service, err := mint.NewService(mint.ServiceConfig{
		Minter:  orchestrator,
		Records: records,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	router, err := api.NewRouter(api.HandlerConfig{
		Calculator:  calculator,
		Builder:     builder,
		Verifier:    verifier,
		Tokens:      service,
		Network:     cfg.Network,
		RateLimiter: api.NewRateLimiter(ctx, cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.ServerConfig{
		ListenAddr:      cfg.ListenAddr(),
		ShutdownTimeout: cfg.ShutdownTimeout,
		Handler:         router,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	log.Info("tokenmint: starting",
		"network", cfg.Network,
		"rpc", cfg.RPCURL,
		"operator", cfg.Operator.String())

	return server.Run(ctx)
}
