package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"

	"tokenmint/pkg/ledger"
)

// mintAccountSize is the length of an SPL mint account
const mintAccountSize = 82

// SolanaConfig configures a SolanaProgram
type SolanaConfig struct {
	Ledger ledger.Submitter
	Logger *slog.Logger
}

// SolanaProgram implements Program by submitting one transaction per
// operation through the ledger submitter
type SolanaProgram struct {
	ledger ledger.Submitter
	log    *slog.Logger
}

var _ Program = (*SolanaProgram)(nil)

// NewSolanaProgram creates a new token program driver
func NewSolanaProgram(cfg SolanaConfig) (*SolanaProgram, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("ledger submitter is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &SolanaProgram{
		ledger: cfg.Ledger,
		log:    cfg.Logger,
	}, nil
}

// CreateMint allocates a fresh mint account and initializes it
func (p *SolanaProgram) CreateMint(ctx context.Context, owner solana.PrivateKey, decimals uint8) (solana.PublicKey, solana.Signature, error) {
	mintKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("failed to generate mint key: %w", err)
	}
	mint := mintKey.PublicKey()
	ownerPub := owner.PublicKey()

	rent, err := p.ledger.MinimumBalanceForRentExemption(ctx, mintAccountSize)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, err
	}

	instructions := []solana.Instruction{
		system.NewCreateAccountInstruction(
			rent,
			mintAccountSize,
			solana.TokenProgramID,
			ownerPub, // funder
			mint,
		).Build(),
		tokenprog.NewInitializeMintInstruction(
			decimals,
			ownerPub, // mint authority
			ownerPub, // freeze authority
			mint,
			solana.SysVarRentPubkey,
		).Build(),
	}

	sig, err := p.send(ctx, owner, instructions, mintKey)
	if err != nil {
		return mint, solana.Signature{}, err
	}

	p.log.Info("token: mint created", "mint", mint.String(), "decimals", decimals, "signature", sig.String())
	return mint, sig, nil
}

// GetOrCreateAssociatedAccount returns the owner's associated token account for mint
func (p *SolanaProgram) GetOrCreateAssociatedAccount(ctx context.Context, owner solana.PrivateKey, mint solana.PublicKey) (solana.PublicKey, solana.Signature, error) {
	ownerPub := owner.PublicKey()

	ata, _, err := solana.FindAssociatedTokenAddress(ownerPub, mint)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	_, err = p.ledger.AccountData(ctx, ata)
	if err == nil {
		p.log.Debug("token: reusing associated token account", "account", ata.String())
		return ata, solana.Signature{}, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return ata, solana.Signature{}, fmt.Errorf("failed to check associated token account: %w", err)
	}

	instruction := associatedtokenaccount.NewCreateInstruction(
		ownerPub, // payer
		ownerPub, // wallet
		mint,
	).Build()

	sig, err := p.send(ctx, owner, []solana.Instruction{instruction})
	if err != nil {
		return ata, solana.Signature{}, err
	}

	p.log.Info("token: associated token account created", "account", ata.String(), "signature", sig.String())
	return ata, sig, nil
}

// MintTo issues amount base units into destination
func (p *SolanaProgram) MintTo(ctx context.Context, owner solana.PrivateKey, mint, destination solana.PublicKey, amount uint64) (solana.Signature, error) {
	instruction := tokenprog.NewMintToInstruction(
		amount,
		mint,
		destination,
		owner.PublicKey(),
		[]solana.PublicKey{}, // no multisig
	).Build()

	sig, err := p.send(ctx, owner, []solana.Instruction{instruction})
	if err != nil {
		return solana.Signature{}, err
	}

	p.log.Info("token: supply issued", "mint", mint.String(), "amount", amount, "signature", sig.String())
	return sig, nil
}

// CreateMetadata attaches a token metadata account to mint
func (p *SolanaProgram) CreateMetadata(ctx context.Context, owner solana.PrivateKey, mint solana.PublicKey, md Metadata) (solana.Signature, error) {
	if err := md.Validate(); err != nil {
		return solana.Signature{}, err
	}

	instruction, err := newCreateMetadataInstruction(owner.PublicKey(), mint, md)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := p.send(ctx, owner, []solana.Instruction{instruction})
	if err != nil {
		return solana.Signature{}, err
	}

	p.log.Info("token: metadata attached", "mint", mint.String(), "mutable", md.Mutable, "signature", sig.String())
	return sig, nil
}

// SetAuthority reassigns or, when newAuthority is nil, revokes an authority of mint
func (p *SolanaProgram) SetAuthority(ctx context.Context, owner solana.PrivateKey, mint solana.PublicKey, authority Authority, newAuthority *solana.PublicKey) (solana.Signature, error) {
	var kind tokenprog.AuthorityType
	switch authority {
	case AuthorityMint:
		kind = tokenprog.AuthorityMintTokens
	case AuthorityFreeze:
		kind = tokenprog.AuthorityFreezeAccount
	default:
		return solana.Signature{}, fmt.Errorf("unsupported authority: %d", authority)
	}

	builder := tokenprog.NewSetAuthorityInstructionBuilder().
		SetAuthorityType(kind).
		SetSubjectAccount(mint).
		SetAuthorityAccount(owner.PublicKey())
	if newAuthority != nil {
		builder = builder.SetNewAuthority(*newAuthority)
	}

	sig, err := p.send(ctx, owner, []solana.Instruction{builder.Build()})
	if err != nil {
		return solana.Signature{}, err
	}

	p.log.Info("token: authority updated", "mint", mint.String(), "authority", authority.String(), "revoked", newAuthority == nil, "signature", sig.String())
	return sig, nil
}

// MintAuthorities reads and decodes the mint account
func (p *SolanaProgram) MintAuthorities(ctx context.Context, mint solana.PublicKey) (Authorities, error) {
	data, err := p.ledger.AccountData(ctx, mint)
	if err != nil {
		return Authorities{}, fmt.Errorf("failed to read mint account: %w", err)
	}
	return decodeMintAuthorities(data)
}

func decodeMintAuthorities(data []byte) (Authorities, error) {
	if len(data) < mintAccountSize {
		return Authorities{}, fmt.Errorf("invalid mint account data: %d bytes", len(data))
	}

	var m tokenprog.Mint
	if err := bin.NewBinDecoder(data).Decode(&m); err != nil {
		return Authorities{}, fmt.Errorf("failed to decode mint account: %w", err)
	}
	if !m.IsInitialized {
		return Authorities{}, fmt.Errorf("mint account is not initialized")
	}

	return Authorities{
		Mint:   m.MintAuthority,
		Freeze: m.FreezeAuthority,
	}, nil
}

// send builds a transaction paid by owner, signs it with owner and any
// extra signers, and waits for confirmation
func (p *SolanaProgram) send(ctx context.Context, owner solana.PrivateKey, instructions []solana.Instruction, extra ...solana.PrivateKey) (solana.Signature, error) {
	blockhash, err := p.ledger.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	ownerPub := owner.PublicKey()
	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(ownerPub),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	signers := append([]solana.PrivateKey{owner}, extra...)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if key.Equals(signers[i].PublicKey()) {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return p.ledger.SendAndConfirm(ctx, tx)
}
