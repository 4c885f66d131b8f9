package token

import (
	"fmt"
	"unicode/utf8"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/gagliardetto/solana-go"
)

// Limits enforced by the token metadata program
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

// Validate checks md against the metadata program's field limits
func (md Metadata) Validate() error {
	if md.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(md.Name) > MaxNameLength {
		return fmt.Errorf("name exceeds %d bytes", MaxNameLength)
	}
	if md.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(md.Symbol) > MaxSymbolLength {
		return fmt.Errorf("symbol exceeds %d bytes", MaxSymbolLength)
	}
	if len(md.URI) > MaxURILength {
		return fmt.Errorf("metadata uri exceeds %d bytes", MaxURILength)
	}
	if !utf8.ValidString(md.Name) || !utf8.ValidString(md.Symbol) || !utf8.ValidString(md.URI) {
		return fmt.Errorf("metadata must be valid UTF-8")
	}
	return nil
}

// MetadataAddress derives the metadata account of mint
func MetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, err := token_metadata.GetTokenMetaPubkey(common.PublicKeyFromBytes(mint.Bytes()))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata address: %w", err)
	}
	return solana.PublicKeyFromBytes(addr.Bytes()), nil
}

// newCreateMetadataInstruction builds a CreateMetadataAccountV3 instruction
// where owner is mint authority, update authority and payer
func newCreateMetadataInstruction(owner, mint solana.PublicKey, md Metadata) (solana.Instruction, error) {
	metadataAddr, err := MetadataAddress(mint)
	if err != nil {
		return nil, err
	}

	ownerKey := common.PublicKeyFromBytes(owner.Bytes())
	ix := token_metadata.CreateMetadataAccountV3(token_metadata.CreateMetadataAccountV3Param{
		Metadata:                common.PublicKeyFromBytes(metadataAddr.Bytes()),
		Mint:                    common.PublicKeyFromBytes(mint.Bytes()),
		MintAuthority:           ownerKey,
		UpdateAuthority:         ownerKey,
		Payer:                   ownerKey,
		UpdateAuthorityIsSigner: true,
		IsMutable:               md.Mutable,
		Data: token_metadata.DataV2{
			Name:                 md.Name,
			Symbol:               md.Symbol,
			Uri:                  md.URI,
			SellerFeeBasisPoints: 0,
			Creators: &[]token_metadata.Creator{
				{
					Address:  ownerKey,
					Verified: true,
					Share:    100,
				},
			},
		},
	})

	return fromSDKInstruction(ix), nil
}

// fromSDKInstruction converts an instruction built with the blocto SDK
func fromSDKInstruction(ix types.Instruction) solana.Instruction {
	accounts := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		accounts = append(accounts, solana.NewAccountMeta(
			solana.PublicKeyFromBytes(a.PubKey.Bytes()),
			a.IsWritable,
			a.IsSigner,
		))
	}
	return solana.NewInstruction(
		solana.PublicKeyFromBytes(ix.ProgramID.Bytes()),
		accounts,
		ix.Data,
	)
}
