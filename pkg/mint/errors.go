package mint

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when a mint request fails validation
	ErrInvalidRequest = errors.New("invalid mint request")

	// ErrRequestInProgress is returned when the same idempotency key is still being processed
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")

	// ErrPaymentAlreadyUsed is returned when the payment reference was claimed by another request
	ErrPaymentAlreadyUsed = errors.New("payment reference already used")

	// ErrPreviousAttemptFailed is returned when replaying a key whose mint failed part way
	ErrPreviousAttemptFailed = errors.New("previous attempt with this idempotency key failed")

	// ErrKeyReused is returned when an idempotency key is replayed with a different payment
	ErrKeyReused = errors.New("idempotency key was used for a different payment")
)

// Orchestration steps that touch the token program
const (
	StepCreateMint          = "create_mint"
	StepCreateTokenAccount  = "create_token_account"
	StepMintTo              = "mint_to"
	StepCreateMetadata      = "create_metadata"
	StepRevokeMintAuthority = "revoke_mint_authority"
	StepRevokeFreeze        = "revoke_freeze_authority"
	StepReadMint            = "read_mint"
)

// MintOperationError reports a failure after payment verification passed.
// Nothing done before the failing step is rolled back; Mint is set when the
// mint account already exists on chain.
type MintOperationError struct {
	Step string
	Mint string
	Err  error
}

func (e *MintOperationError) Error() string {
	if e.Mint != "" {
		return fmt.Sprintf("mint operation %s failed for mint %s: %v", e.Step, e.Mint, e.Err)
	}
	return fmt.Sprintf("mint operation %s failed: %v", e.Step, e.Err)
}

func (e *MintOperationError) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
