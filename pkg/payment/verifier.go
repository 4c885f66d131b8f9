package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"tokenmint/pkg/ledger"
	"tokenmint/pkg/metrics"
	"tokenmint/pkg/types"
)

// DefaultHistoryWindow is the number of recent operator transactions scanned
// by history verification
const DefaultHistoryWindow = 50

// Reason explains the outcome of a reference verification
type Reason string

const (
	ReasonMatched          Reason = "matched"
	ReasonNotFound         Reason = "not_found"
	ReasonIncomplete       Reason = "incomplete"
	ReasonFailed           Reason = "failed"
	ReasonSenderMismatch   Reason = "sender_mismatch"
	ReasonReceiverMismatch Reason = "receiver_mismatch"
	ReasonAmountMismatch   Reason = "amount_mismatch"
)

// MatchResult is the verdict for a single payment reference. Claim is set
// whenever the ledger returned a complete record.
type MatchResult struct {
	Matched bool
	Reason  Reason
	Claim   *types.PaymentClaim
}

// Err returns nil for a match and a *PaymentMismatchError otherwise
func (r MatchResult) Err() error {
	if r.Matched {
		return nil
	}
	return &PaymentMismatchError{Reason: r.Reason, Claim: r.Claim}
}

// VerifierConfig configures a Verifier
type VerifierConfig struct {
	Ledger        ledger.Client
	Operator      solana.PublicKey
	HistoryWindow int
	Logger        *slog.Logger
}

// Verifier decides whether a qualifying payment exists on the ledger
type Verifier struct {
	ledger   ledger.Client
	operator solana.PublicKey
	window   int
	log      *slog.Logger
}

// NewVerifier creates a new payment verifier
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger client is required")
	}
	if cfg.Operator.IsZero() {
		return nil, errors.New("operator address is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	return &Verifier{
		ledger:   cfg.Ledger,
		operator: cfg.Operator,
		window:   cfg.HistoryWindow,
		log:      cfg.Logger,
	}, nil
}

// Operator returns the address payments must be sent to
func (v *Verifier) Operator() solana.PublicKey {
	return v.operator
}

// VerifyByReference fetches a single transaction and checks it was sent by
// sender to receiver for at least minLamports. The ledger not knowing the
// transaction is a non-match, not an error.
func (v *Verifier) VerifyByReference(ctx context.Context, reference, sender, receiver string, minLamports uint64) (MatchResult, error) {
	sig, err := solana.SignatureFromBase58(reference)
	if err != nil || reference == "" {
		return MatchResult{}, fmt.Errorf("%w: %q", ErrInvalidReference, reference)
	}
	if _, err := ParseAddress(sender); err != nil {
		return MatchResult{}, err
	}
	if _, err := ParseAddress(receiver); err != nil {
		return MatchResult{}, err
	}

	tx, err := v.ledger.Transaction(ctx, sig)
	if errors.Is(err, ledger.ErrNotFound) {
		metrics.RecordVerification("reference", string(ReasonNotFound))
		return MatchResult{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		v.log.Error("payment: failed to fetch transaction", "reference", reference, "error", err)
		metrics.RecordVerification("reference", "error")
		return MatchResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	result := evaluate(tx, sender, receiver, minLamports)
	metrics.RecordVerification("reference", string(result.Reason))

	v.log.Debug("payment: reference verified", "reference", reference, "reason", result.Reason)

	return result, nil
}

// VerifyByHistory scans the most recent operator transactions, newest
// first, and reports whether any was sent by sender for at least
// minLamports. Older payments beyond the window are not found.
func (v *Verifier) VerifyByHistory(ctx context.Context, sender string, minLamports uint64) (bool, error) {
	if _, err := ParseAddress(sender); err != nil {
		return false, err
	}

	sigs, err := v.ledger.RecentSignatures(ctx, v.operator, v.window)
	if err != nil {
		v.log.Error("payment: failed to list operator signatures", "error", err)
		metrics.RecordVerification("history", "error")
		return false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if len(sigs) > v.window {
		sigs = sigs[:v.window]
	}

	receiver := v.operator.String()
	for _, sig := range sigs {
		tx, err := v.ledger.Transaction(ctx, sig)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			v.log.Error("payment: failed to fetch transaction", "reference", sig.String(), "error", err)
			metrics.RecordVerification("history", "error")
			return false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}

		if evaluate(tx, sender, receiver, minLamports).Matched {
			metrics.RecordVerification("history", string(ReasonMatched))
			return true, nil
		}
	}

	metrics.RecordVerification("history", string(ReasonNotFound))
	return false, nil
}

// evaluate applies the payment predicate to a settled transaction. Checks
// run in a fixed order so the first failing condition is the one reported.
func evaluate(tx *ledger.Transaction, sender, receiver string, minLamports uint64) MatchResult {
	if tx == nil || !tx.HasMeta || len(tx.AccountKeys) < 2 ||
		len(tx.PreBalances) < 1 || len(tx.PostBalances) < 1 {
		return MatchResult{Reason: ReasonIncomplete}
	}

	var amount uint64
	if tx.PreBalances[0] > tx.PostBalances[0] {
		amount = tx.PreBalances[0] - tx.PostBalances[0]
	}

	claim := &types.PaymentClaim{
		Payer:     tx.AccountKeys[0],
		Recipient: tx.AccountKeys[1],
		Amount:    amount,
		Reference: tx.Signature,
	}

	switch {
	case tx.Failed:
		return MatchResult{Reason: ReasonFailed, Claim: claim}
	case claim.Payer != sender:
		return MatchResult{Reason: ReasonSenderMismatch, Claim: claim}
	case claim.Recipient != receiver:
		return MatchResult{Reason: ReasonReceiverMismatch, Claim: claim}
	case claim.Amount < minLamports:
		return MatchResult{Reason: ReasonAmountMismatch, Claim: claim}
	}

	return MatchResult{Matched: true, Reason: ReasonMatched, Claim: claim}
}
