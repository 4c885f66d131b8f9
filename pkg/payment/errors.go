package payment

import (
	"errors"
	"fmt"

	"tokenmint/pkg/types"
)

var (
	// ErrInvalidAddress is returned when an account address is not a valid public key
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidAmount is returned for non-positive amounts or amounts finer than a lamport
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidReference is returned when a transaction reference is not a valid signature
	ErrInvalidReference = errors.New("invalid payment reference")

	// ErrNetworkUnavailable is returned when the freshness token cannot be fetched
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrUpstreamUnavailable is returned when the ledger cannot answer a verification query
	ErrUpstreamUnavailable = errors.New("ledger unavailable")
)

// PaymentMismatchError reports why a payment reference does not satisfy an expected payment
type PaymentMismatchError struct {
	Reason Reason
	Claim  *types.PaymentClaim
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("payment mismatch: %s", e.Reason)
}

// Message returns a user-actionable description of the mismatch
func (e *PaymentMismatchError) Message() string {
	switch e.Reason {
	case ReasonNotFound:
		return "payment transaction was not found on the ledger"
	case ReasonIncomplete:
		return "payment transaction is not settled yet"
	case ReasonFailed:
		return "payment transaction failed on chain"
	case ReasonSenderMismatch:
		return "payment was not sent from the declared payer address"
	case ReasonReceiverMismatch:
		return "payment was not sent to the operator address"
	case ReasonAmountMismatch:
		return "payment amount is lower than the required fee"
	default:
		return "payment does not match"
	}
}
