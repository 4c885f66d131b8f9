// Package ledger wraps the Solana RPC client behind the small set of reads and
// writes the rest of the service needs.
package ledger

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrNotFound is returned when the ledger has no record of a transaction
var ErrNotFound = errors.New("ledger: not found")

// Transaction is the settled view of a transaction needed to judge a payment
type Transaction struct {
	Signature    string
	Slot         uint64
	AccountKeys  []string
	PreBalances  []uint64
	PostBalances []uint64
	HasMeta      bool
	Failed       bool
}

// Client is the ledger surface used by the payment builder and verifier
type Client interface {
	// LatestBlockhash returns the freshness token every transaction must carry
	LatestBlockhash(ctx context.Context) (solana.Hash, error)

	// Transaction fetches a transaction by signature, or ErrNotFound
	Transaction(ctx context.Context, signature solana.Signature) (*Transaction, error)

	// RecentSignatures lists up to limit signatures touching address, newest first
	RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error)
}

// Submitter signs-and-sends transactions and waits for them to land
type Submitter interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
}
