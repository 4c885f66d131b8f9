package mint_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tokenmint/pkg/fee"
	"tokenmint/pkg/ledger"
	"tokenmint/pkg/mint"
	"tokenmint/pkg/payment"
	"tokenmint/pkg/token"
	"tokenmint/pkg/types"
)

type fakeLedger struct {
	txs map[solana.Signature]*ledger.Transaction
}

func (f *fakeLedger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (f *fakeLedger) Transaction(ctx context.Context, sig solana.Signature) (*ledger.Transaction, error) {
	tx, ok := f.txs[sig]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return tx, nil
}

func (f *fakeLedger) RecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]solana.Signature, error) {
	return nil, nil
}

func (f *fakeLedger) pay(seed byte, from, to solana.PublicKey, lamports uint64) string {
	var sig solana.Signature
	for i := range sig {
		sig[i] = seed ^ byte(i*7)
	}
	f.txs[sig] = &ledger.Transaction{
		Signature:    sig.String(),
		AccountKeys:  []string{from.String(), to.String(), solana.SystemProgramID.String()},
		PreBalances:  []uint64{5_000_000_000, 0, 1},
		PostBalances: []uint64{5_000_000_000 - lamports, lamports, 1},
		HasMeta:      true,
	}
	return sig.String()
}

type fakeProgram struct {
	mu          sync.Mutex
	failStep    string
	unconfirmed bool // CreateMint fails after sending, returning the mint
	calls       []string
	mint        solana.PublicKey
	authorities map[solana.PublicKey]*token.Authorities
	metadata    []token.Metadata
	minted      uint64
}

func newFakeProgram() *fakeProgram {
	return &fakeProgram{authorities: make(map[solana.PublicKey]*token.Authorities)}
}

func (p *fakeProgram) step(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, name)
	if p.failStep == name {
		return errors.New("transaction simulation failed")
	}
	return nil
}

func (p *fakeProgram) sig(n byte) solana.Signature {
	var s solana.Signature
	s[0] = n
	s[1] = byte(len(p.calls))
	return s
}

func (p *fakeProgram) CreateMint(ctx context.Context, owner solana.PrivateKey, decimals uint8) (solana.PublicKey, solana.Signature, error) {
	if err := p.step(mint.StepCreateMint); err != nil {
		if p.unconfirmed {
			p.mint = solana.NewWallet().PublicKey()
			return p.mint, solana.Signature{}, errors.New("transaction not confirmed: context deadline exceeded")
		}
		return solana.PublicKey{}, solana.Signature{}, err
	}
	p.mint = solana.NewWallet().PublicKey()
	pub := owner.PublicKey()
	p.authorities[p.mint] = &token.Authorities{Mint: &pub, Freeze: &pub}
	return p.mint, p.sig(1), nil
}

func (p *fakeProgram) GetOrCreateAssociatedAccount(ctx context.Context, owner solana.PrivateKey, m solana.PublicKey) (solana.PublicKey, solana.Signature, error) {
	if err := p.step(mint.StepCreateTokenAccount); err != nil {
		return solana.PublicKey{}, solana.Signature{}, err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner.PublicKey(), m)
	return ata, p.sig(2), err
}

func (p *fakeProgram) MintTo(ctx context.Context, owner solana.PrivateKey, m, destination solana.PublicKey, amount uint64) (solana.Signature, error) {
	if err := p.step(mint.StepMintTo); err != nil {
		return solana.Signature{}, err
	}
	p.minted = amount
	return p.sig(3), nil
}

func (p *fakeProgram) CreateMetadata(ctx context.Context, owner solana.PrivateKey, m solana.PublicKey, md token.Metadata) (solana.Signature, error) {
	if err := p.step(mint.StepCreateMetadata); err != nil {
		return solana.Signature{}, err
	}
	p.metadata = append(p.metadata, md)
	return p.sig(4), nil
}

func (p *fakeProgram) SetAuthority(ctx context.Context, owner solana.PrivateKey, m solana.PublicKey, authority token.Authority, newAuthority *solana.PublicKey) (solana.Signature, error) {
	step := mint.StepRevokeMintAuthority
	if authority == token.AuthorityFreeze {
		step = mint.StepRevokeFreeze
	}
	if err := p.step(step); err != nil {
		return solana.Signature{}, err
	}
	a := p.authorities[m]
	if authority == token.AuthorityMint {
		a.Mint = newAuthority
	} else {
		a.Freeze = newAuthority
	}
	return p.sig(5), nil
}

func (p *fakeProgram) MintAuthorities(ctx context.Context, m solana.PublicKey) (token.Authorities, error) {
	if err := p.step(mint.StepReadMint); err != nil {
		return token.Authorities{}, err
	}
	a, ok := p.authorities[m]
	if !ok {
		return token.Authorities{}, ledger.ErrNotFound
	}
	return *a, nil
}

type fixture struct {
	ledger   *fakeLedger
	program  *fakeProgram
	operator solana.PublicKey
	payer    solana.PublicKey
	owner    solana.PrivateKey
	calc     *fee.Calculator
	orch     *mint.Orchestrator
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   &fakeLedger{txs: make(map[solana.Signature]*ledger.Transaction)},
		program:  newFakeProgram(),
		operator: solana.NewWallet().PublicKey(),
		owner:    solana.NewWallet().PrivateKey,
	}
	f.payer = f.owner.PublicKey()

	var err error
	f.calc, err = fee.NewCalculator(fee.Schedule{
		Base:      decimal.RequireFromString("0.1"),
		Surcharge: decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)

	verifier, err := payment.NewVerifier(payment.VerifierConfig{
		Ledger:   f.ledger,
		Operator: f.operator,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	f.orch, err = mint.NewOrchestrator(mint.OrchestratorConfig{
		Verifier:   verifier,
		Program:    f.program,
		Calculator: f.calc,
		Logger:     discardLogger(),
	})
	require.NoError(t, err)
	return f
}

// request builds a mint request paid with exactly the scheduled fee
func (f *fixture) request(opts types.FeeOptions) types.MintRequest {
	quote := f.calc.ComputeFee(opts)
	ref := f.ledger.pay(1, f.payer, f.operator, quote.Lamports)
	return types.MintRequest{
		Owner:            f.owner,
		Name:             "Test Token",
		Symbol:           "TEST",
		Decimals:         6,
		InitialSupply:    decimal.NewFromInt(1_000_000),
		Options:          opts,
		Payer:            f.payer.String(),
		PaymentReference: ref,
		DeclaredFee:      quote.Total,
	}
}
