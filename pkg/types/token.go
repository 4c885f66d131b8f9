package types

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// FeeOptions holds the optional, individually charged features of a mint
type FeeOptions struct {
	RevokeMint     bool `json:"revokeMintAuthority"`
	RevokeFreeze   bool `json:"revokeFreezeAuthority"`
	RevokeMetadata bool `json:"revokeMetadata"`
	CustomMetadata bool `json:"customMetadata"`
}

// Count returns the number of enabled options
func (o FeeOptions) Count() int {
	n := 0
	for _, on := range []bool{o.RevokeMint, o.RevokeFreeze, o.RevokeMetadata, o.CustomMetadata} {
		if on {
			n++
		}
	}
	return n
}

// FeeQuote is the price of a mint for a given set of options
type FeeQuote struct {
	Total    decimal.Decimal // in SOL
	Lamports uint64
	Options  int
}

// PaymentClaim describes a transfer as recorded by the ledger
type PaymentClaim struct {
	Payer     string `json:"payer"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"` // lamports
	Reference string `json:"reference"`
}

// MintRequest carries everything needed to mint a token for a paying user.
// Owner is the caller's signing key and must never leave the request.
type MintRequest struct {
	Owner            solana.PrivateKey
	Name             string
	Symbol           string
	Decimals         uint8
	InitialSupply    decimal.Decimal
	Options          FeeOptions
	MetadataURI      string
	Payer            string
	PaymentReference string
	DeclaredFee      decimal.Decimal
}

// MintResult is the outcome of a successful mint
type MintResult struct {
	Mint            string   `json:"mint"`
	TokenAccount    string   `json:"tokenAccount"`
	MintAuthority   *string  `json:"mintAuthority"`
	FreezeAuthority *string  `json:"freezeAuthority"`
	Signatures      []string `json:"signatures,omitempty"`
}
