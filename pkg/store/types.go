package store

import (
	"time"

	"tokenmint/pkg/types"
)

// State is the lifecycle state of a mint record
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// IsValid reports whether s is a known state
func (s State) IsValid() bool {
	switch s {
	case StateProcessing, StateCompleted, StateFailed:
		return true
	}
	return false
}

// MintRecord tracks one idempotent create-token request. It never holds
// owner secret material.
type MintRecord struct {
	ID               string            `json:"id"`
	Key              string            `json:"key"`
	PaymentReference string            `json:"paymentReference"`
	Payer            string            `json:"payer"`
	State            State             `json:"state"`
	Result           *types.MintResult `json:"result,omitempty"`
	FailedStep       string            `json:"failedStep,omitempty"`
	Mint             string            `json:"mint,omitempty"`
	Error            string            `json:"error,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	ExpiresAt        time.Time         `json:"expiresAt"`
}

// Expired reports whether the record has outlived its retention at now
func (r *MintRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (r *MintRecord) clone() *MintRecord {
	c := *r
	if r.Result != nil {
		res := *r.Result
		res.Signatures = append([]string(nil), r.Result.Signatures...)
		c.Result = &res
	}
	return &c
}
