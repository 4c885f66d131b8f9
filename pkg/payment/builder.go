package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"

	"tokenmint/pkg/fee"
	"tokenmint/pkg/ledger"
)

// BuilderConfig configures a Builder
type BuilderConfig struct {
	Ledger   ledger.Client
	Operator solana.PublicKey
	Logger   *slog.Logger
}

// Builder produces unsigned fee payment transactions for the client to sign
type Builder struct {
	ledger   ledger.Client
	operator solana.PublicKey
	log      *slog.Logger
}

// NewBuilder creates a new payment transaction builder
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger client is required")
	}
	if cfg.Operator.IsZero() {
		return nil, errors.New("operator address is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Builder{
		ledger:   cfg.Ledger,
		operator: cfg.Operator,
		log:      cfg.Logger,
	}, nil
}

// BuildPaymentTransaction returns a base64-encoded transaction transferring
// feeSOL from payer to the operator. The payer pays network fees and the
// signature slots are left empty for the client to fill.
func (b *Builder) BuildPaymentTransaction(ctx context.Context, payer string, feeSOL decimal.Decimal) (string, error) {
	payerKey, err := ParseAddress(payer)
	if err != nil {
		return "", err
	}

	if !feeSOL.IsPositive() {
		return "", fmt.Errorf("%w: fee must be greater than 0", ErrInvalidAmount)
	}
	lamports, err := fee.ToLamports(feeSOL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	blockhash, err := b.ledger.LatestBlockhash(ctx)
	if err != nil {
		b.log.Error("payment: failed to fetch blockhash", "error", err)
		return "", fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	instruction := system.NewTransferInstruction(
		lamports,
		payerKey,
		b.operator,
	).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		blockhash,
		solana.TransactionPayer(payerKey),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	// Serialization expects one slot per required signer
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	b.log.Debug("payment: built transaction", "payer", payerKey.String(), "lamports", lamports)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// ParseAddress validates a base58 account address
func ParseAddress(address string) (solana.PublicKey, error) {
	if address == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: address is empty", ErrInvalidAddress)
	}
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return key, nil
}
