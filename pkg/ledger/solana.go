package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"tokenmint/pkg/metrics"
)

const (
	DefaultCallTimeout    = 20 * time.Second
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

// SolanaConfig configures the RPC-backed ledger client
type SolanaConfig struct {
	RPCURL         string
	Commitment     string
	CallTimeout    time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	SkipPreflight  bool
	Logger         *slog.Logger
}

// SolanaClient talks to a Solana cluster over JSON-RPC
type SolanaClient struct {
	config SolanaConfig
	client *rpc.Client
	log    *slog.Logger
}

var (
	_ Client    = (*SolanaClient)(nil)
	_ Submitter = (*SolanaClient)(nil)
)

// NewSolanaClient creates a new RPC-backed ledger client
func NewSolanaClient(cfg SolanaConfig) (*SolanaClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not configured for Solana")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &SolanaClient{
		config: cfg,
		client: rpc.New(cfg.RPCURL),
		log:    cfg.Logger,
	}, nil
}

// LatestBlockhash returns the most recent blockhash at the configured commitment
func (s *SolanaClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	start := time.Now()
	recent, err := s.client.GetLatestBlockhash(ctx, s.getCommitment())
	metrics.RecordLedgerCall("getLatestBlockhash", time.Since(start), err)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if recent == nil || recent.Value == nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: empty response")
	}
	return recent.Value.Blockhash, nil
}

// Transaction fetches a settled transaction and flattens what the verifier needs
func (s *SolanaClient) Transaction(ctx context.Context, signature solana.Signature) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	maxVersion := uint64(0)
	start := time.Now()
	out, err := s.client.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     s.readCommitment(),
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		metrics.RecordLedgerCall("getTransaction", time.Since(start), nil)
		return nil, ErrNotFound
	}
	metrics.RecordLedgerCall("getTransaction", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if out == nil || out.Transaction == nil {
		return nil, ErrNotFound
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	result := &Transaction{
		Signature:   signature.String(),
		Slot:        out.Slot,
		AccountKeys: make([]string, 0, len(tx.Message.AccountKeys)),
	}
	for _, key := range tx.Message.AccountKeys {
		result.AccountKeys = append(result.AccountKeys, key.String())
	}
	if out.Meta != nil {
		result.HasMeta = true
		result.Failed = out.Meta.Err != nil
		result.PreBalances = out.Meta.PreBalances
		result.PostBalances = out.Meta.PostBalances
	}

	return result, nil
}

// RecentSignatures lists the newest signatures involving address
func (s *SolanaClient) RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	start := time.Now()
	out, err := s.client.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: s.readCommitment(),
	})
	metrics.RecordLedgerCall("getSignaturesForAddress", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures for address: %w", err)
	}

	sigs := make([]solana.Signature, 0, len(out))
	for _, entry := range out {
		if entry == nil {
			continue
		}
		sigs = append(sigs, entry.Signature)
	}
	return sigs, nil
}

// SendAndConfirm sends a signed transaction and polls until it reaches the
// configured commitment, fails, or the confirm timeout elapses
func (s *SolanaClient) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sendCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	opts := rpc.TransactionOpts{
		SkipPreflight:       s.config.SkipPreflight,
		PreflightCommitment: s.getCommitment(),
	}

	start := time.Now()
	sig, err := s.client.SendTransactionWithOpts(sendCtx, tx, opts)
	metrics.RecordLedgerCall("sendTransaction", time.Since(start), err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	s.log.Debug("ledger: transaction sent", "signature", sig.String())

	confirmCtx, confirmCancel := context.WithTimeout(ctx, s.config.ConfirmTimeout)
	defer confirmCancel()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-confirmCtx.Done():
			return sig, fmt.Errorf("transaction %s not confirmed: %w", sig, confirmCtx.Err())
		case <-ticker.C:
		}

		start := time.Now()
		status, err := s.client.GetSignatureStatuses(confirmCtx, false, sig)
		metrics.RecordLedgerCall("getSignatureStatuses", time.Since(start), err)
		if err != nil {
			s.log.Debug("ledger: signature status poll failed", "signature", sig.String(), "error", err)
			continue
		}
		if status == nil || len(status.Value) == 0 || status.Value[0] == nil {
			continue
		}

		st := status.Value[0]
		if st.Err != nil {
			return sig, fmt.Errorf("transaction %s failed: %v", sig, st.Err)
		}
		if s.reached(st.ConfirmationStatus) {
			return sig, nil
		}
	}
}

// MinimumBalanceForRentExemption returns the lamports needed to keep an
// account of the given size alive
func (s *SolanaClient) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	start := time.Now()
	lamports, err := s.client.GetMinimumBalanceForRentExemption(ctx, size, s.getCommitment())
	metrics.RecordLedgerCall("getMinimumBalanceForRentExemption", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to get rent exemption: %w", err)
	}
	return lamports, nil
}

// AccountData returns the raw data of an account, or ErrNotFound
func (s *SolanaClient) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	start := time.Now()
	info, err := s.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: s.getCommitment(),
	})
	if errors.Is(err, rpc.ErrNotFound) {
		metrics.RecordLedgerCall("getAccountInfo", time.Since(start), nil)
		return nil, ErrNotFound
	}
	metrics.RecordLedgerCall("getAccountInfo", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}
	if info == nil || info.Value == nil {
		return nil, ErrNotFound
	}
	return info.Value.Data.GetBinary(), nil
}

// getCommitment returns the commitment level from config
func (s *SolanaClient) getCommitment() rpc.CommitmentType {
	switch strings.ToLower(s.config.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}

// readCommitment is the commitment used for transaction reads, which the
// RPC only accepts at confirmed or finalized
func (s *SolanaClient) readCommitment() rpc.CommitmentType {
	if c := s.getCommitment(); c == rpc.CommitmentFinalized {
		return c
	}
	return rpc.CommitmentConfirmed
}

func (s *SolanaClient) reached(status rpc.ConfirmationStatusType) bool {
	switch s.getCommitment() {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}
