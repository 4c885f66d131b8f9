package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidSecretKey is returned when owner secret material cannot be decoded
var ErrInvalidSecretKey = errors.New("invalid secret key")

// ParseSecretKey decodes an ed25519 keypair given either as base58 or as a
// solana-keygen JSON array of 64 bytes. The embedded public key must match
// the one derived from the seed.
func ParseSecretKey(secret string) (solana.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSecretKey)
	}

	var raw []byte
	var err error
	if strings.HasPrefix(secret, "[") {
		raw, err = decodeKeypairJSON([]byte(secret))
	} else {
		raw, err = base58.Decode(secret)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}

	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSecretKey, len(raw), ed25519.PrivateKeySize)
	}

	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidSecretKey)
	}

	return solana.PrivateKey(raw), nil
}

// decodeKeypairJSON decodes a [u8;64] keypair file body
func decodeKeypairJSON(data []byte) ([]byte, error) {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("unmarshal keypair json: %w", err)
	}

	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}
