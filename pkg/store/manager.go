package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"tokenmint/pkg/metrics"
	"tokenmint/pkg/types"
)

const (
	DefaultTTL           = 72 * time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

var (
	// ErrNotFound is returned when no live record exists for a key
	ErrNotFound = errors.New("record not found")

	// ErrKeyExists is returned by Acquire when the key already has a live record
	ErrKeyExists = errors.New("idempotency key already used")

	// ErrReferenceInUse is returned by Acquire when another key holds the payment reference
	ErrReferenceInUse = errors.New("payment reference already used")

	// ErrInvalidTransition is returned when a record is not in the expected state
	ErrInvalidTransition = errors.New("invalid record state transition")
)

// ManagerConfig configures a Manager
type ManagerConfig struct {
	Storage *Storage
	TTL     time.Duration
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

// Manager provides the idempotency record lifecycle on top of Storage
type Manager struct {
	storage *Storage
	ttl     time.Duration
	clock   clockwork.Clock
	log     *slog.Logger
}

// NewManager creates a new record manager
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	m := &Manager{
		storage: cfg.Storage,
		ttl:     cfg.TTL,
		clock:   cfg.Clock,
		log:     cfg.Logger,
	}
	metrics.IdempotencyRecords.Set(float64(m.storage.Count()))
	return m, nil
}

// Acquire creates a processing record for key. When key already has a live
// record, that record is returned with ErrKeyExists. When a different key
// holds the same payment reference, that record is returned with
// ErrReferenceInUse.
func (m *Manager) Acquire(key, reference, payer string) (*MintRecord, error) {
	if key == "" {
		return nil, errors.New("idempotency key is required")
	}

	now := m.clock.Now().UTC()
	var out *MintRecord

	err := m.storage.update(func(records map[string]*MintRecord) (bool, error) {
		changed := false

		if existing, ok := records[key]; ok {
			if !existing.Expired(now) {
				out = existing.clone()
				return false, ErrKeyExists
			}
			delete(records, key)
			changed = true
		}

		for _, r := range records {
			if r.PaymentReference == reference && !r.Expired(now) {
				out = r.clone()
				return changed, ErrReferenceInUse
			}
		}

		rec := &MintRecord{
			ID:               uuid.New().String(),
			Key:              key,
			PaymentReference: reference,
			Payer:            payer,
			State:            StateProcessing,
			CreatedAt:        now,
			UpdatedAt:        now,
			ExpiresAt:        now.Add(m.ttl),
		}
		records[key] = rec
		out = rec.clone()
		return true, nil
	})
	m.refreshGauge()

	if errors.Is(err, ErrKeyExists) || errors.Is(err, ErrReferenceInUse) {
		return out, err
	}
	if err != nil {
		return nil, err
	}

	m.log.Debug("store: record acquired", "id", out.ID, "key", key)
	return out, nil
}

// Complete stores the result of a successful mint
func (m *Manager) Complete(key string, result *types.MintResult) error {
	return m.transition(key, func(r *MintRecord) {
		r.State = StateCompleted
		r.Result = result
		if result != nil {
			r.Mint = result.Mint
		}
	})
}

// Fail marks the record failed. The payment reference stays claimed until
// the record expires.
func (m *Manager) Fail(key, step, mint string, cause error) error {
	return m.transition(key, func(r *MintRecord) {
		r.State = StateFailed
		r.FailedStep = step
		r.Mint = mint
		if cause != nil {
			r.Error = cause.Error()
		}
	})
}

// Release deletes a processing record so the key and payment reference can
// be used again
func (m *Manager) Release(key string) error {
	err := m.storage.update(func(records map[string]*MintRecord) (bool, error) {
		r, ok := records[key]
		if !ok {
			return false, ErrNotFound
		}
		if r.State != StateProcessing {
			return false, fmt.Errorf("%w: cannot release %s record", ErrInvalidTransition, r.State)
		}
		delete(records, key)
		return true, nil
	})
	m.refreshGauge()
	return err
}

// Get returns the live record for key
func (m *Manager) Get(key string) (*MintRecord, error) {
	now := m.clock.Now()
	var out *MintRecord
	m.storage.view(func(records map[string]*MintRecord) {
		if r, ok := records[key]; ok && !r.Expired(now) {
			out = r.clone()
		}
	})
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

// List returns live records, newest first. An empty state returns all.
func (m *Manager) List(state State) []*MintRecord {
	now := m.clock.Now()
	out := make([]*MintRecord, 0)
	m.storage.view(func(records map[string]*MintRecord) {
		for _, r := range records {
			if r.Expired(now) {
				continue
			}
			if state != "" && r.State != state {
				continue
			}
			out = append(out, r.clone())
		}
	})

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Sweep deletes expired records and returns how many were removed
func (m *Manager) Sweep() (int, error) {
	now := m.clock.Now()
	removed := 0
	err := m.storage.update(func(records map[string]*MintRecord) (bool, error) {
		for key, r := range records {
			if r.Expired(now) {
				delete(records, key)
				removed++
			}
		}
		return removed > 0, nil
	})
	m.refreshGauge()
	return removed, err
}

// RunSweeper removes expired records every interval until ctx is done
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			removed, err := m.Sweep()
			if err != nil {
				m.log.Error("store: sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				m.log.Info("store: expired records removed", "count", removed)
			}
		}
	}
}

func (m *Manager) transition(key string, apply func(r *MintRecord)) error {
	now := m.clock.Now().UTC()
	return m.storage.update(func(records map[string]*MintRecord) (bool, error) {
		r, ok := records[key]
		if !ok {
			return false, ErrNotFound
		}
		if r.State != StateProcessing {
			return false, fmt.Errorf("%w: record is %s", ErrInvalidTransition, r.State)
		}
		apply(r)
		r.UpdatedAt = now
		return true, nil
	})
}

func (m *Manager) refreshGauge() {
	metrics.IdempotencyRecords.Set(float64(m.storage.Count()))
}
