package usecase

import (
	"context"
	"os"
	"time"

	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/sheetflow/pkg/batch/core/metrics"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// DefaultLockManager implements LockManager over a LeaseRepository.
// Mutual exclusion comes from the store's uniqueness constraint; there is no
// in-process locking.
type DefaultLockManager struct {
	leaseRepo  repository.LeaseRepository
	clock      clock.Clock
	defaultTTL time.Duration
	holder     string
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
}

// NewDefaultLockManager creates a DefaultLockManager.
func NewDefaultLockManager(
	leaseRepo repository.LeaseRepository,
	clk clock.Clock,
	lockCfg config.LockConfig,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *DefaultLockManager {
	holder := lockCfg.Holder
	if holder == "" {
		if hostname, err := os.Hostname(); err == nil {
			holder = hostname
		}
	}
	return &DefaultLockManager{
		leaseRepo:  leaseRepo,
		clock:      clk,
		defaultTTL: lockCfg.DefaultTTL(),
		holder:     holder,
		recorder:   recorder,
		tracer:     tracer,
	}
}

func lockKindOrDefault(lockKind string) string {
	if lockKind == "" {
		return config.DefaultLockKind
	}
	return lockKind
}

func (m *DefaultLockManager) Acquire(ctx context.Context, tenantID, batchID, lockKind string, ttl time.Duration) (bool, error) {
	const op = "DefaultLockManager.Acquire"
	if tenantID == "" || batchID == "" {
		return false, exception.NewSheetError(op, "tenant id and batch id are required", nil, false, false)
	}
	lockKind = lockKindOrDefault(lockKind)
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	ctx, end := m.tracer.StartSpan(ctx, op, map[string]interface{}{"tenant_id": tenantID, "batch_id": batchID, "lock_kind": lockKind})
	defer end()
	start := time.Now()
	defer func() { m.recorder.RecordDuration(ctx, "lock_acquire", time.Since(start), nil) }()

	now := m.clock.Now()

	// Best effort: a failed sweep must not turn into a failed acquire.
	if removed, err := m.leaseRepo.DeleteExpiredLeases(ctx, now); err != nil {
		logger.Warnf("%s: inline sweep failed, continuing: %v", op, err)
	} else if removed > 0 {
		m.recorder.RecordLeasesExpired(ctx, removed)
		logger.Infof("%s: swept %d expired lease(s)", op, removed)
	}

	lease := model.NewLease(tenantID, batchID, lockKind, m.holder, now, ttl)
	acquired, err := m.leaseRepo.InsertLease(ctx, lease)
	if err != nil {
		m.tracer.RecordError(ctx, op, err)
		return false, err
	}
	m.recorder.RecordLockAcquire(ctx, lockKind, acquired)

	if acquired {
		logger.Infof("Acquired %s", lease)
	} else {
		logger.Infof("Lock '%s' for tenant '%s' is held by another batch; batch '%s' not admitted", lockKind, tenantID, batchID)
	}
	return acquired, nil
}

func (m *DefaultLockManager) Release(ctx context.Context, tenantID, batchID, lockKind string) (bool, error) {
	const op = "DefaultLockManager.Release"
	lockKind = lockKindOrDefault(lockKind)

	ctx, end := m.tracer.StartSpan(ctx, op, map[string]interface{}{"tenant_id": tenantID, "batch_id": batchID, "lock_kind": lockKind})
	defer end()

	released, err := m.leaseRepo.DeleteLease(ctx, tenantID, batchID, lockKind, m.clock.Now())
	if err != nil {
		m.tracer.RecordError(ctx, op, err)
		return false, err
	}
	m.recorder.RecordLockRelease(ctx, lockKind, released)

	if released {
		logger.Infof("Released lock '%s' for tenant '%s' (batch: %s)", lockKind, tenantID, batchID)
	} else {
		logger.Debugf("%s: no lease held by batch '%s' for tenant '%s'", op, batchID, tenantID)
	}
	return released, nil
}

func (m *DefaultLockManager) Sweep(ctx context.Context) (int64, error) {
	const op = "DefaultLockManager.Sweep"
	ctx, end := m.tracer.StartSpan(ctx, op, nil)
	defer end()

	removed, err := m.leaseRepo.DeleteExpiredLeases(ctx, m.clock.Now())
	if err != nil {
		m.tracer.RecordError(ctx, op, err)
		return removed, err
	}
	m.recorder.RecordLeasesExpired(ctx, removed)
	logger.Infof("Swept %d expired lease(s)", removed)
	return removed, nil
}

func (m *DefaultLockManager) Inspect(ctx context.Context, tenantID, lockKind string) (*model.Lease, error) {
	lease, err := m.leaseRepo.FindLease(ctx, tenantID, lockKindOrDefault(lockKind))
	if err != nil || lease == nil {
		return nil, err
	}
	if lease.IsExpiredAt(m.clock.Now()) {
		return nil, nil
	}
	return lease, nil
}

var _ LockManager = (*DefaultLockManager)(nil)
