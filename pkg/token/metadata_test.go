package token

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataAddress_MatchesDerivation(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	got, err := MetadataAddress(mint)
	require.NoError(t, err)

	want, _, err := solana.FindTokenMetadataAddress(mint)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewCreateMetadataInstruction(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ix, err := newCreateMetadataInstruction(owner, mint, Metadata{Name: "Test", Symbol: "TST", URI: "https://example.com/t.json"})
	require.NoError(t, err)

	assert.Equal(t, solana.TokenMetadataProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.GreaterOrEqual(t, len(accounts), 5)

	metadataAddr, err := MetadataAddress(mint)
	require.NoError(t, err)
	assert.Equal(t, metadataAddr, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, mint, accounts[1].PublicKey)

	var ownerSigns bool
	for _, a := range accounts {
		if a.PublicKey.Equals(owner) && a.IsSigner {
			ownerSigns = true
		}
	}
	assert.True(t, ownerSigns, "owner must sign as mint authority and payer")

	data, err := ix.Data()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		md      Metadata
		wantErr bool
	}{
		{name: "valid", md: Metadata{Name: "Token", Symbol: "TKN"}},
		{name: "missing name", md: Metadata{Symbol: "TKN"}, wantErr: true},
		{name: "missing symbol", md: Metadata{Name: "Token"}, wantErr: true},
		{name: "long name", md: Metadata{Name: strings.Repeat("a", MaxNameLength+1), Symbol: "TKN"}, wantErr: true},
		{name: "long symbol", md: Metadata{Name: "Token", Symbol: strings.Repeat("S", MaxSymbolLength+1)}, wantErr: true},
		{name: "long uri", md: Metadata{Name: "Token", Symbol: "TKN", URI: strings.Repeat("u", MaxURILength+1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.md.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
