package sql

import (
	"context"
	"fmt"
	"time"

	coreAdapter "github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
	model "github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/sheetflow/pkg/batch/core/tx"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// SQLLeaseRepository implements repository.LeaseRepository.
// sheet_lease only holds live rows, so its primary key on (tenant_id, lock_kind)
// is the mutual exclusion.
type SQLLeaseRepository struct {
	sqlStore
}

// NewSQLLeaseRepository creates a lease repository on the named connection.
func NewSQLLeaseRepository(dbResolver coreAdapter.ResourceConnectionResolver, dbName string) *SQLLeaseRepository {
	return &SQLLeaseRepository{sqlStore{dbResolver: dbResolver, dbName: dbName, module: "SQLLeaseRepository"}}
}

func (r *SQLLeaseRepository) InsertLease(ctx context.Context, lease *model.Lease) (bool, error) {
	const op = "SQLLeaseRepository.InsertLease"
	entity := fromDomainLease(lease)

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return false, err
	}

	rowsAffected, err := executor.ExecuteUpsert(ctx, entity, entity.TableName(), []string{"tenant_id", "lock_kind"}, nil)
	if err != nil {
		if executor.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, storeError(op, fmt.Sprintf("failed to insert lease (tenant: %s, kind: %s)", lease.TenantID, lease.LockKind), executor, err)
	}
	return rowsAffected == 1, nil
}

func (r *SQLLeaseRepository) DeleteLease(ctx context.Context, tenantID, batchID, lockKind string, now time.Time) (bool, error) {
	const op = "SQLLeaseRepository.DeleteLease"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return false, err
	}

	var entities []LeaseEntity
	query := map[string]interface{}{"tenant_id": tenantID, "batch_id": batchID, "lock_kind": lockKind}
	if err := executor.ExecuteQuery(ctx, &entities, query); err != nil {
		return false, storeError(op, fmt.Sprintf("failed to find lease (tenant: %s, batch: %s)", tenantID, batchID), executor, err)
	}
	if len(entities) == 0 {
		return false, nil
	}

	rowsAffected, err := executor.ExecuteDeleteWhere(ctx, &LeaseEntity{}, LeaseEntity{}.TableName(),
		"tenant_id = ? AND batch_id = ? AND lock_kind = ?", tenantID, batchID, lockKind)
	if err != nil {
		return false, storeError(op, fmt.Sprintf("failed to delete lease (tenant: %s, batch: %s)", tenantID, batchID), executor, err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	r.appendHistory(ctx, executor, &entities[0], model.LeaseStatusReleased, now)
	return true, nil
}

func (r *SQLLeaseRepository) DeleteExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	const op = "SQLLeaseRepository.DeleteExpiredLeases"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return 0, err
	}

	var expired []LeaseEntity
	if err := executor.ExecuteQueryWhere(ctx, &expired, "expires_at <= ?", []interface{}{now}, "expires_at asc"); err != nil {
		return 0, storeError(op, "failed to find expired leases", executor, err)
	}

	var removed int64
	for i := range expired {
		lease := &expired[i]
		// The expiry condition is repeated so a lease re-acquired since the
		// select is left alone.
		rowsAffected, err := executor.ExecuteDeleteWhere(ctx, &LeaseEntity{}, lease.TableName(),
			"tenant_id = ? AND lock_kind = ? AND batch_id = ? AND expires_at <= ?",
			lease.TenantID, lease.LockKind, lease.BatchID, now)
		if err != nil {
			return removed, storeError(op, fmt.Sprintf("failed to delete expired lease (tenant: %s)", lease.TenantID), executor, err)
		}
		if rowsAffected != 1 {
			continue
		}
		removed++
		r.appendHistory(ctx, executor, lease, model.LeaseStatusExpired, now)
	}
	return removed, nil
}

func (r *SQLLeaseRepository) FindLease(ctx context.Context, tenantID, lockKind string) (*model.Lease, error) {
	const op = "SQLLeaseRepository.FindLease"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}

	var entities []LeaseEntity
	err = executor.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"tenant_id": tenantID, "lock_kind": lockKind}, "", 1)
	if err != nil {
		return nil, storeError(op, fmt.Sprintf("failed to find lease (tenant: %s, kind: %s)", tenantID, lockKind), executor, err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return toDomainLease(&entities[0]), nil
}

// appendHistory is audit only; a failure never undoes the removal.
func (r *SQLLeaseRepository) appendHistory(ctx context.Context, executor tx.TxExecutor, lease *LeaseEntity, status model.LeaseStatus, removedAt time.Time) {
	history := toLeaseHistory(lease, status, removedAt)
	if _, err := executor.ExecuteUpdate(ctx, history, "CREATE", history.TableName(), nil); err != nil {
		logger.Warnf("SQLLeaseRepository: failed to record %s lease history (tenant: %s, batch: %s): %v", status, lease.TenantID, lease.BatchID, err)
	}
}

var _ repository.LeaseRepository = (*SQLLeaseRepository)(nil)
