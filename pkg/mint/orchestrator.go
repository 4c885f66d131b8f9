// Package mint gates SPL token creation on a verified fee payment.
package mint

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"tokenmint/pkg/fee"
	"tokenmint/pkg/metrics"
	"tokenmint/pkg/payment"
	"tokenmint/pkg/token"
	"tokenmint/pkg/types"
)

// MaxDecimals bounds token precision so supply scaling stays within uint64
const MaxDecimals = 9

// PaymentVerifier checks a payment reference against an expected transfer
type PaymentVerifier interface {
	VerifyByReference(ctx context.Context, reference, sender, receiver string, minLamports uint64) (payment.MatchResult, error)
	Operator() solana.PublicKey
}

// OrchestratorConfig configures an Orchestrator
type OrchestratorConfig struct {
	Verifier   PaymentVerifier
	Program    token.Program
	Calculator *fee.Calculator
	Logger     *slog.Logger
}

// Orchestrator verifies the fee payment and then drives the token program
// through mint creation, issuance, metadata and authority revocation
type Orchestrator struct {
	verifier   PaymentVerifier
	program    token.Program
	calculator *fee.Calculator
	log        *slog.Logger
}

// NewOrchestrator creates a new mint orchestrator
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("payment verifier is required")
	}
	if cfg.Program == nil {
		return nil, errors.New("token program is required")
	}
	if cfg.Calculator == nil {
		return nil, errors.New("fee calculator is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Orchestrator{
		verifier:   cfg.Verifier,
		program:    cfg.Program,
		calculator: cfg.Calculator,
		log:        cfg.Logger,
	}, nil
}

// CreateToken runs the mint state machine for req. Payment problems return
// a *payment.PaymentMismatchError before anything is created; failures after
// that return a *MintOperationError and leave prior steps in place.
func (o *Orchestrator) CreateToken(ctx context.Context, req types.MintRequest) (*types.MintResult, error) {
	supply, err := validateRequest(req)
	if err != nil {
		metrics.RecordMint("rejected", "validate")
		return nil, err
	}

	quote := o.calculator.ComputeFee(req.Options)
	if !req.DeclaredFee.IsZero() && !req.DeclaredFee.Equal(quote.Total) {
		o.log.Warn("mint: declared fee differs from schedule",
			"declared", req.DeclaredFee.String(),
			"required", quote.Total.String(),
			"payer", req.Payer)
	}

	// Verify
	match, err := o.verifier.VerifyByReference(ctx, req.PaymentReference, req.Payer, o.verifier.Operator().String(), quote.Lamports)
	if err != nil {
		metrics.RecordMint("rejected", "verify")
		return nil, err
	}
	if err := match.Err(); err != nil {
		o.log.Info("mint: payment rejected", "reference", req.PaymentReference, "reason", match.Reason)
		metrics.RecordMint("rejected", string(match.Reason))
		return nil, err
	}

	owner := req.Owner
	ownerPub := owner.PublicKey()
	result := &types.MintResult{}
	fail := func(step string, err error) (*types.MintResult, error) {
		o.log.Error("mint: operation failed", "step", step, "mint", result.Mint, "error", err)
		metrics.RecordMint("failed", step)
		return nil, &MintOperationError{Step: step, Mint: result.Mint, Err: err}
	}
	record := func(sig solana.Signature) {
		if sig != (solana.Signature{}) {
			result.Signatures = append(result.Signatures, sig.String())
		}
	}

	// Create mint
	// A send that times out can still land, so keep any address handed back
	mintAddr, sig, err := o.program.CreateMint(ctx, owner, req.Decimals)
	if !mintAddr.IsZero() {
		result.Mint = mintAddr.String()
	}
	if err != nil {
		return fail(StepCreateMint, err)
	}
	record(sig)

	// Provision holding account
	ata, sig, err := o.program.GetOrCreateAssociatedAccount(ctx, owner, mintAddr)
	if err != nil {
		return fail(StepCreateTokenAccount, err)
	}
	result.TokenAccount = ata.String()
	record(sig)

	// Issue supply
	sig, err = o.program.MintTo(ctx, owner, mintAddr, ata, supply)
	if err != nil {
		return fail(StepMintTo, err)
	}
	record(sig)

	// Attach metadata while the owner still holds mint authority
	md := token.Metadata{
		Name:    req.Name,
		Symbol:  req.Symbol,
		Mutable: !req.Options.RevokeMetadata,
	}
	if req.Options.CustomMetadata {
		md.URI = req.MetadataURI
	}
	sig, err = o.program.CreateMetadata(ctx, owner, mintAddr, md)
	if err != nil {
		return fail(StepCreateMetadata, err)
	}
	record(sig)

	// Revoke authorities
	if req.Options.RevokeMint {
		sig, err = o.program.SetAuthority(ctx, owner, mintAddr, token.AuthorityMint, nil)
		if err != nil {
			return fail(StepRevokeMintAuthority, err)
		}
		record(sig)
	}
	if req.Options.RevokeFreeze {
		sig, err = o.program.SetAuthority(ctx, owner, mintAddr, token.AuthorityFreeze, nil)
		if err != nil {
			return fail(StepRevokeFreeze, err)
		}
		record(sig)
	}

	// Every write has landed; a failed read-back must not fail the mint
	authorities, err := o.program.MintAuthorities(ctx, mintAddr)
	if err != nil {
		o.log.Warn("mint: failed to read back authorities", "step", StepReadMint, "mint", result.Mint, "error", err)
		authorities = expectedAuthorities(ownerPub, req.Options)
	}
	result.MintAuthority = keyString(authorities.Mint)
	result.FreezeAuthority = keyString(authorities.Freeze)

	o.log.Info("mint: token created",
		"mint", result.Mint,
		"tokenAccount", result.TokenAccount,
		"owner", ownerPub.String(),
		"supply", supply)
	metrics.RecordMint("success", "")

	return result, nil
}

// validateRequest checks req and returns the initial supply in base units
func validateRequest(req types.MintRequest) (uint64, error) {
	if len(req.Owner) != 64 {
		return 0, invalid("owner secret key is required")
	}
	md := token.Metadata{Name: req.Name, Symbol: req.Symbol, URI: req.MetadataURI}
	if err := md.Validate(); err != nil {
		return 0, invalid("%v", err)
	}
	if req.Options.CustomMetadata && req.MetadataURI == "" {
		return 0, invalid("customMetadata requires a metadata uri")
	}
	if req.Decimals > MaxDecimals {
		return 0, invalid("decimals must be at most %d", MaxDecimals)
	}
	if _, err := payment.ParseAddress(req.Payer); err != nil {
		return 0, invalid("payer: %v", err)
	}
	if req.PaymentReference == "" {
		return 0, invalid("payment reference is required")
	}
	return scaleSupply(req.InitialSupply, req.Decimals)
}

// scaleSupply converts a whole-token supply to base units
func scaleSupply(supply decimal.Decimal, decimals uint8) (uint64, error) {
	if !supply.IsPositive() {
		return 0, invalid("initial supply must be greater than 0")
	}
	units := supply.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return 0, invalid("initial supply has more than %d decimal places", decimals)
	}
	if !units.BigInt().IsUint64() {
		return 0, invalid("initial supply is too large")
	}
	return units.BigInt().Uint64(), nil
}

// expectedAuthorities is what the mint holds after the requested revocations
func expectedAuthorities(owner solana.PublicKey, opts types.FeeOptions) token.Authorities {
	var a token.Authorities
	if !opts.RevokeMint {
		a.Mint = &owner
	}
	if !opts.RevokeFreeze {
		f := owner
		a.Freeze = &f
	}
	return a
}

func keyString(key *solana.PublicKey) *string {
	if key == nil {
		return nil
	}
	s := key.String()
	return &s
}
