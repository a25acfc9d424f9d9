package businessflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/estate-registry/config"
	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/repository"
	"go.uber.org/zap"
)

// Allocation is one number handed out by the allocator together with its formatted identifier
type Allocation struct {
	CompanyID      uint               `json:"company_id"`
	Kind           models.CounterKind `json:"kind"`
	SequenceNumber int64              `json:"sequence_number"`
	FormattedID    string             `json:"formatted_id"`
}

// SequenceAllocator hands out gap-free, per-company sequence numbers
type SequenceAllocator interface {
	// Allocate reserves the next number in its own transaction, or in the one carried by ctx
	Allocate(ctx context.Context, companyID uint, kind models.CounterKind) (*Allocation, error)
	// WithAllocation reserves the next number and runs fn in the same transaction.
	// When fn fails the transaction rolls back and the number is not consumed.
	WithAllocation(ctx context.Context, companyID uint, kind models.CounterKind, fn func(txCtx context.Context, a *Allocation) error) (*Allocation, error)
}

// SequenceAllocatorImpl implements SequenceAllocator on top of the company_sequences table
type SequenceAllocatorImpl struct {
	companyRepo  repository.CompanyRepository
	sequenceRepo repository.CompanySequenceRepository
	tx           repository.Transactor
	cfg          config.AllocationConfig
	logger       *zap.Logger
}

func NewSequenceAllocator(
	companyRepo repository.CompanyRepository,
	sequenceRepo repository.CompanySequenceRepository,
	tx repository.Transactor,
	cfg config.AllocationConfig,
	logger *zap.Logger,
) *SequenceAllocatorImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockMode == "" {
		cfg.LockMode = config.LockModeRowLock
	}
	return &SequenceAllocatorImpl{
		companyRepo:  companyRepo,
		sequenceRepo: sequenceRepo,
		tx:           tx,
		cfg:          cfg,
		logger:       logger.Named("sequence_allocator"),
	}
}

func (a *SequenceAllocatorImpl) Allocate(ctx context.Context, companyID uint, kind models.CounterKind) (*Allocation, error) {
	return a.WithAllocation(ctx, companyID, kind, nil)
}

func (a *SequenceAllocatorImpl) WithAllocation(
	ctx context.Context,
	companyID uint,
	kind models.CounterKind,
	fn func(txCtx context.Context, a *Allocation) error,
) (*Allocation, error) {
	if !kind.IsValid() {
		allocationsTotal.WithLabelValues(kind.String(), outcomeRejected).Inc()
		return nil, NewBusinessError("UNKNOWN_COUNTER_KIND", "Unknown counter kind", fmt.Errorf("%w: %q", ErrUnknownCounterKind, kind))
	}
	if companyID == 0 {
		allocationsTotal.WithLabelValues(kind.String(), outcomeRejected).Inc()
		return nil, NewBusinessError("INVALID_TENANT", "Company id is required", ErrInvalidTenant)
	}

	attempts := a.cfg.MaxRetries + 1
	tried := 0
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		tried = attempt
		start := time.Now()

		var alloc *Allocation
		err := a.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			var err error
			alloc, err = a.next(txCtx, companyID, kind)
			if err != nil {
				return err
			}
			if fn != nil {
				return fn(txCtx, alloc)
			}
			return nil
		})
		allocationDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())

		if err == nil {
			allocationsTotal.WithLabelValues(kind.String(), outcomeSuccess).Inc()
			return alloc, nil
		}

		if !IsConcurrentUpdateConflict(err) {
			outcome := outcomeFailed
			if IsInvalidTenant(err) {
				outcome = outcomeRejected
			}
			allocationsTotal.WithLabelValues(kind.String(), outcome).Inc()
			return nil, err
		}

		lastErr = err
		allocationConflicts.WithLabelValues(kind.String()).Inc()
		a.logger.Warn("Sequence allocation conflict",
			zap.Uint("company_id", companyID),
			zap.String("kind", kind.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts))

		// A lock timeout aborts the caller's transaction; only a fresh one could retry
		if errors.Is(err, repository.ErrLockTimeout) && repository.InTransaction(ctx) {
			break
		}

		if attempt < attempts && a.cfg.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
	}

	allocationsTotal.WithLabelValues(kind.String(), outcomeUnavailable).Inc()
	a.logger.Error("Sequence allocation gave up",
		zap.Uint("company_id", companyID),
		zap.String("kind", kind.String()),
		zap.Int("attempts", tried),
		zap.Error(lastErr))

	return nil, NewBusinessError(
		"ALLOCATION_UNAVAILABLE",
		"Sequence allocation is temporarily unavailable, retry later",
		fmt.Errorf("%w after %d attempts: %w", ErrAllocationUnavailable, tried, lastErr),
	)
}

// next reads, increments and writes the counter row inside the transaction carried by ctx
func (a *SequenceAllocatorImpl) next(ctx context.Context, companyID uint, kind models.CounterKind) (*Allocation, error) {
	company, err := a.companyRepo.ByID(ctx, companyID)
	if err != nil {
		return nil, NewBusinessError("ALLOCATION_FAILED", "Failed to load company", err)
	}
	if company == nil {
		return nil, NewBusinessErrorf("INVALID_TENANT", "Company %d does not exist", ErrInvalidTenant, companyID)
	}
	if !company.Active() {
		return nil, NewBusinessErrorf("INVALID_TENANT", "Company %d is inactive", fmt.Errorf("%w: %w", ErrInvalidTenant, ErrCompanyInactive), companyID)
	}

	if a.cfg.LockTimeout > 0 {
		if err := a.sequenceRepo.SetLockTimeout(ctx, a.cfg.LockTimeout.Milliseconds()); err != nil {
			return nil, NewBusinessError("ALLOCATION_FAILED", "Failed to set lock timeout", err)
		}
	}

	var seq *models.CompanySequence
	if a.cfg.LockMode == config.LockModeOptimistic {
		seq, err = a.sequenceRepo.Get(ctx, companyID, kind)
	} else {
		seq, err = a.sequenceRepo.LockForUpdate(ctx, companyID, kind)
	}
	if err != nil {
		if errors.Is(err, repository.ErrLockTimeout) {
			return nil, fmt.Errorf("%w: %w", ErrConcurrentUpdateConflict, err)
		}
		return nil, NewBusinessError("ALLOCATION_FAILED", "Failed to read sequence counter", err)
	}

	next := seq.LastValue + 1
	if err := a.sequenceRepo.CompareAndSwap(ctx, seq.ID, seq.LastValue, next); err != nil {
		if errors.Is(err, repository.ErrConcurrentUpdate) || errors.Is(err, repository.ErrLockTimeout) {
			return nil, fmt.Errorf("%w: %w", ErrConcurrentUpdateConflict, err)
		}
		return nil, NewBusinessError("ALLOCATION_FAILED", "Failed to advance sequence counter", err)
	}

	uid, err := FormatUID(CompanyPrefix(company), kind, next)
	if err != nil {
		return nil, NewBusinessError("UNKNOWN_COUNTER_KIND", "Unknown counter kind", err)
	}

	return &Allocation{
		CompanyID:      companyID,
		Kind:           kind,
		SequenceNumber: next,
		FormattedID:    uid,
	}, nil
}
