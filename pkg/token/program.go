// Package token drives the SPL token, associated token account and token
// metadata programs on behalf of a request-scoped owner key.
package token

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Authority identifies a mint-level authority that can be reassigned
type Authority int

const (
	AuthorityMint Authority = iota
	AuthorityFreeze
)

func (a Authority) String() string {
	switch a {
	case AuthorityMint:
		return "mint"
	case AuthorityFreeze:
		return "freeze"
	default:
		return "unknown"
	}
}

// Metadata is the on-chain descriptive data attached to a mint
type Metadata struct {
	Name    string
	Symbol  string
	URI     string
	Mutable bool
}

// Authorities is the current authority state of a mint. Nil means revoked.
type Authorities struct {
	Mint   *solana.PublicKey
	Freeze *solana.PublicKey
}

// Program is the token-program surface used by the mint orchestrator. Every
// operation is signed by owner, which also pays for it.
type Program interface {
	// CreateMint creates a mint with owner as both mint and freeze authority
	CreateMint(ctx context.Context, owner solana.PrivateKey, decimals uint8) (solana.PublicKey, solana.Signature, error)

	// GetOrCreateAssociatedAccount returns owner's associated token account for
	// mint, creating it when missing. The signature is zero when reused.
	GetOrCreateAssociatedAccount(ctx context.Context, owner solana.PrivateKey, mint solana.PublicKey) (solana.PublicKey, solana.Signature, error)

	// MintTo issues amount base units of mint into destination
	MintTo(ctx context.Context, owner solana.PrivateKey, mint, destination solana.PublicKey, amount uint64) (solana.Signature, error)

	// CreateMetadata attaches a metadata account to mint
	CreateMetadata(ctx context.Context, owner solana.PrivateKey, mint solana.PublicKey, md Metadata) (solana.Signature, error)

	// SetAuthority reassigns an authority of mint. A nil newAuthority revokes it.
	SetAuthority(ctx context.Context, owner solana.PrivateKey, mint solana.PublicKey, authority Authority, newAuthority *solana.PublicKey) (solana.Signature, error)

	// MintAuthorities reads the current authorities of mint
	MintAuthorities(ctx context.Context, mint solana.PublicKey) (Authorities, error)
}
