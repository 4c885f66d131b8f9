package payment_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"

	"tokenmint/pkg/ledger"
)

type fakeLedger struct {
	mu           sync.Mutex
	blockhash    solana.Hash
	blockhashErr error
	txs          map[solana.Signature]*ledger.Transaction
	txErr        map[solana.Signature]error
	history      []solana.Signature
	historyErr   error
	fetched      []solana.Signature
	limits       []int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		blockhash: solana.HashFromBytes(make([]byte, 32)),
		txs:       make(map[solana.Signature]*ledger.Transaction),
		txErr:     make(map[solana.Signature]error),
	}
}

func (f *fakeLedger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return f.blockhash, f.blockhashErr
}

func (f *fakeLedger) Transaction(ctx context.Context, sig solana.Signature) (*ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, sig)
	if err, ok := f.txErr[sig]; ok {
		return nil, err
	}
	tx, ok := f.txs[sig]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return tx, nil
}

func (f *fakeLedger) RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

// add records a transfer of lamports from payer to receiver under a fresh signature
func (f *fakeLedger) add(seed byte, payer, receiver solana.PublicKey, lamports uint64) solana.Signature {
	sig := testSignature(seed)
	f.txs[sig] = &ledger.Transaction{
		Signature:    sig.String(),
		AccountKeys:  []string{payer.String(), receiver.String(), solana.SystemProgramID.String()},
		PreBalances:  []uint64{10_000_000_000, 0, 1},
		PostBalances: []uint64{10_000_000_000 - lamports, lamports, 1},
		HasMeta:      true,
	}
	return sig
}

func testSignature(seed byte) solana.Signature {
	var sig solana.Signature
	for i := range sig {
		sig[i] = seed + byte(i)
	}
	return sig
}

func newAddress() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
