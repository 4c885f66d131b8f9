package mint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tokenmint/pkg/store"
	"tokenmint/pkg/types"
)

// Minter creates a token for a verified payment
type Minter interface {
	CreateToken(ctx context.Context, req types.MintRequest) (*types.MintResult, error)
}

// ServiceConfig configures a Service
type ServiceConfig struct {
	Minter  Minter
	Records *store.Manager
	Logger  *slog.Logger
}

// Service makes CreateToken safe to retry. Each idempotency key and each
// payment reference can drive at most one mint attempt while its record lives.
type Service struct {
	minter  Minter
	records *store.Manager
	log     *slog.Logger
}

// NewService creates a new idempotent mint service
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Minter == nil {
		return nil, errors.New("minter is required")
	}
	if cfg.Records == nil {
		return nil, errors.New("record manager is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		minter:  cfg.Minter,
		records: cfg.Records,
		log:     cfg.Logger,
	}, nil
}

// CreateToken mints under idempotency key, defaulting the key to the payment
// reference. A completed key returns its stored result with replayed set.
// Rejections before any on-chain write release the key; failures after one
// keep it, so the same payment cannot start a second mint.
func (s *Service) CreateToken(ctx context.Context, key string, req types.MintRequest) (result *types.MintResult, replayed bool, err error) {
	if req.PaymentReference == "" {
		return nil, false, invalid("payment reference is required")
	}
	if key == "" {
		key = req.PaymentReference
	}

	rec, err := s.records.Acquire(key, req.PaymentReference, req.Payer)
	switch {
	case errors.Is(err, store.ErrKeyExists):
		return s.replay(rec, req)
	case errors.Is(err, store.ErrReferenceInUse):
		s.log.Warn("mint: payment reference reused", "reference", req.PaymentReference, "key", key)
		return nil, false, ErrPaymentAlreadyUsed
	case err != nil:
		return nil, false, fmt.Errorf("failed to record request: %w", err)
	}

	result, err = s.minter.CreateToken(ctx, req)
	if err != nil {
		var opErr *MintOperationError
		if errors.As(err, &opErr) {
			if ferr := s.records.Fail(key, opErr.Step, opErr.Mint, opErr.Err); ferr != nil {
				s.log.Error("mint: failed to record failure", "key", key, "error", ferr)
			}
			return nil, false, err
		}
		if rerr := s.records.Release(key); rerr != nil {
			s.log.Error("mint: failed to release record", "key", key, "error", rerr)
		}
		return nil, false, err
	}

	if cerr := s.records.Complete(key, result); cerr != nil {
		s.log.Error("mint: failed to record result", "key", key, "mint", result.Mint, "error", cerr)
	}
	return result, false, nil
}

func (s *Service) replay(rec *store.MintRecord, req types.MintRequest) (*types.MintResult, bool, error) {
	if rec.PaymentReference != req.PaymentReference {
		return nil, false, ErrKeyReused
	}

	switch rec.State {
	case store.StateCompleted:
		s.log.Info("mint: replaying completed request", "key", rec.Key, "mint", rec.Mint)
		return rec.Result, true, nil
	case store.StateProcessing:
		return nil, false, ErrRequestInProgress
	default:
		return nil, false, &MintOperationError{
			Step: rec.FailedStep,
			Mint: rec.Mint,
			Err:  fmt.Errorf("%w: %s", ErrPreviousAttemptFailed, rec.Error),
		}
	}
}

// Records returns live idempotency records in state, newest first
func (s *Service) Records(state store.State) []*store.MintRecord {
	return s.records.List(state)
}
