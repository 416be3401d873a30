// Package orchestrator runs one input file through the pipeline under the
// tenant lock and records every step in the batch ledger.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/pipeline"
	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	"github.com/tigerroll/sheetflow/pkg/batch/core/config"
	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// StepSupersede is the ledger step that deactivates the previous generation.
const StepSupersede = "supersede"

// ErrTenantBusy is returned when another batch holds the tenant lock.
var ErrTenantBusy = errors.New("tenant is locked by another batch")

// Trigger starts one batch.
type Trigger struct {
	TenantID   string
	StorageRef string
	ObjectName string
	Size       int64
	// RunRef is copied into the batch as the external run reference.
	RunRef string
}

// Outcome reports a finished batch.
type Outcome struct {
	BatchID string
	Status  model.BatchStatus
	Summary *model.BatchSummary
}

// Orchestrator sequences the pipeline stages of a batch. Write stages produce
// the new generation; publish stages run once it is in place.
type Orchestrator struct {
	locks   usecase.LockManager
	ledger  usecase.BatchLedger
	purge   usecase.PurgeService
	write   []pipeline.Stage
	publish []pipeline.Stage
	policy  string
	retry   config.RetryConfig
}

// New creates an orchestrator.
func New(locks usecase.LockManager, ledger usecase.BatchLedger, purge usecase.PurgeService, write, publish []pipeline.Stage, policy string, retryCfg config.RetryConfig) *Orchestrator {
	return &Orchestrator{
		locks:   locks,
		ledger:  ledger,
		purge:   purge,
		write:   write,
		publish: publish,
		policy:  policy,
		retry:   retryCfg,
	}
}

// Run processes one file. It returns ErrTenantBusy without creating a batch
// when the tenant is locked. A failed batch is completed as FAILED, its
// records are rolled back and the stage error is returned with the outcome.
func (o *Orchestrator) Run(ctx context.Context, trig Trigger) (*Outcome, error) {
	const op = "Orchestrator.Run"

	batchID := model.NewID()
	attempt := 0
	acquired, err := retryWithData(ctx, o.retry, op, func() (bool, error) {
		attempt++
		ok, err := o.locks.Acquire(ctx, trig.TenantID, batchID, "", 0)
		if err == nil && !ok && attempt > 1 {
			// An earlier attempt may have committed before its error.
			return o.holdsLock(ctx, trig.TenantID, batchID)
		}
		return ok, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: acquire lock for tenant '%s': %w", op, trig.TenantID, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%s: tenant '%s': %w", op, trig.TenantID, ErrTenantBusy)
	}
	defer o.release(ctx, trig.TenantID, batchID)

	metadata := model.Metadata{"storage": trig.StorageRef}
	if trig.RunRef != "" {
		metadata[model.MetadataExternalRunRef] = trig.RunRef
	}
	attempt = 0
	if _, err := retryWithData(ctx, o.retry, op, func() (*model.Batch, error) {
		attempt++
		batch, err := o.ledger.CreateBatch(ctx, batchID, trig.TenantID, model.InputRef{Name: trig.ObjectName, Size: trig.Size}, metadata)
		if attempt > 1 && errors.Is(err, repository.ErrDuplicateBatch) {
			// batchID is fresh, so the existing row is ours from an earlier attempt.
			return o.ledger.GetBatch(ctx, batchID)
		}
		return batch, err
	}); err != nil {
		return nil, fmt.Errorf("%s: create batch: %w", op, err)
	}
	logger.Infof("%s: batch %s started for tenant '%s' (%s).", op, batchID, trig.TenantID, trig.ObjectName)

	in := pipeline.Input{TenantID: trig.TenantID, BatchID: batchID, StorageRef: trig.StorageRef, ObjectName: trig.ObjectName}
	if live, runErr := o.runStages(ctx, in); runErr != nil {
		return o.fail(ctx, in, live, runErr)
	}

	if err := retryDo(ctx, o.retry, op, func() error {
		return o.ledger.CompleteBatch(ctx, batchID, model.BatchStatusCompleted, nil)
	}); err != nil {
		return nil, fmt.Errorf("%s: complete batch %s: %w", op, batchID, err)
	}
	return o.outcome(ctx, batchID, model.BatchStatusCompleted), nil
}

// runStages runs the steps of the batch. live reports whether the batch's
// records replaced the previous generation before the error, in which case
// they are the tenant's only active data and must not be rolled back.
func (o *Orchestrator) runStages(ctx context.Context, in pipeline.Input) (live bool, err error) {
	if o.policy == config.SupersedeBeforeWrite {
		if err := o.runStep(ctx, in.BatchID, StepSupersede, func(ctx context.Context) (int64, error) {
			return o.purge.PurgeTenant(ctx, in.TenantID)
		}); err != nil {
			return false, err
		}
	}
	for _, stage := range o.write {
		if err := o.runStep(ctx, in.BatchID, stage.Name(), func(ctx context.Context) (int64, error) {
			return stage.Execute(ctx, in)
		}); err != nil {
			return false, err
		}
	}
	if o.policy == config.SupersedeAfterCommit {
		if err := o.runStep(ctx, in.BatchID, StepSupersede, func(ctx context.Context) (int64, error) {
			return o.supersedePrevious(ctx, in)
		}); err != nil {
			return false, err
		}
		live = true
	}
	for _, stage := range o.publish {
		if err := o.runStep(ctx, in.BatchID, stage.Name(), func(ctx context.Context) (int64, error) {
			return stage.Execute(ctx, in)
		}); err != nil {
			return live, err
		}
	}
	return live, nil
}

// supersedePrevious deactivates the records of every earlier batch of the tenant.
func (o *Orchestrator) supersedePrevious(ctx context.Context, in pipeline.Input) (int64, error) {
	batches, err := o.ledger.ListBatches(ctx, in.TenantID, 0)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, b := range batches {
		if b.ID == in.BatchID {
			continue
		}
		n, err := o.purge.PurgeBatch(ctx, b.ID)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// runStep records a step around fn. The step's own error wins over a ledger error.
func (o *Orchestrator) runStep(ctx context.Context, batchID, name string, fn func(ctx context.Context) (int64, error)) error {
	const op = "Orchestrator.runStep"

	step, err := retryWithData(ctx, o.retry, op, func() (*model.ProcessingStep, error) {
		return o.ledger.RecordStep(ctx, batchID, name)
	})
	if err != nil {
		return fmt.Errorf("record step '%s': %w", name, err)
	}

	started := time.Now()
	count, runErr := fn(ctx)
	completeErr := retryDo(ctx, o.retry, op, func() error {
		return o.ledger.CompleteStep(ctx, step.ID, count, runErr)
	})

	if runErr != nil {
		logger.Errorf("%s: step '%s' of batch %s failed after %v: %v", op, name, batchID, time.Since(started), runErr)
		return fmt.Errorf("step '%s': %w", name, runErr)
	}
	if completeErr != nil {
		return fmt.Errorf("complete step '%s': %w", name, completeErr)
	}
	logger.Infof("%s: step '%s' of batch %s processed %d records in %v.", op, name, batchID, count, time.Since(started))
	return nil
}

// fail completes the batch as FAILED and rolls back what it wrote, unless its
// records are already the tenant's active generation.
func (o *Orchestrator) fail(ctx context.Context, in pipeline.Input, live bool, runErr error) (*Outcome, error) {
	const op = "Orchestrator.fail"
	ctx = context.WithoutCancel(ctx)

	if err := retryDo(ctx, o.retry, op, func() error {
		return o.ledger.CompleteBatch(ctx, in.BatchID, model.BatchStatusFailed, runErr)
	}); err != nil {
		logger.Errorf("%s: could not mark batch %s FAILED: %v", op, in.BatchID, err)
	}
	if live {
		logger.Warnf("%s: batch %s failed after superseding the previous generation; its records stay active.", op, in.BatchID)
		return o.outcome(ctx, in.BatchID, model.BatchStatusFailed), runErr
	}
	if n, err := o.purge.PurgeBatch(ctx, in.BatchID); err != nil {
		logger.Errorf("%s: rollback of batch %s failed: %v", op, in.BatchID, err)
	} else {
		logger.Warnf("%s: rolled back batch %s (%d raw cells deactivated).", op, in.BatchID, n)
	}
	return o.outcome(ctx, in.BatchID, model.BatchStatusFailed), runErr
}

func (o *Orchestrator) outcome(ctx context.Context, batchID string, status model.BatchStatus) *Outcome {
	out := &Outcome{BatchID: batchID, Status: status}
	summary, err := o.ledger.Summarize(ctx, batchID)
	if err != nil {
		logger.Warnf("Orchestrator: failed to summarize batch %s: %v", batchID, err)
		return out
	}
	out.Summary = summary
	return out
}

func (o *Orchestrator) holdsLock(ctx context.Context, tenantID, batchID string) (bool, error) {
	lease, err := o.locks.Inspect(ctx, tenantID, "")
	if err != nil {
		return false, err
	}
	return lease != nil && lease.BatchID == batchID, nil
}

// release frees the tenant lock even when ctx was cancelled.
func (o *Orchestrator) release(ctx context.Context, tenantID, batchID string) {
	const op = "Orchestrator.release"
	ctx = context.WithoutCancel(ctx)

	released, err := retryWithData(ctx, o.retry, op, func() (bool, error) {
		return o.locks.Release(ctx, tenantID, batchID, "")
	})
	switch {
	case err != nil:
		logger.Errorf("%s: failed to release lock of tenant '%s' (batch %s); it expires with its TTL: %v", op, tenantID, batchID, err)
	case !released:
		logger.Warnf("%s: lock of tenant '%s' was no longer held by batch %s.", op, tenantID, batchID)
	}
}

func retryOptions(ctx context.Context, cfg config.RetryConfig, op string) []retry.Option {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(time.Duration(cfg.InitialIntervalMs) * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(exception.IsTemporary),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnf("%s: store unavailable (attempt %d/%d): %v", op, n+1, attempts, err)
		}),
	}
}

func retryDo(ctx context.Context, cfg config.RetryConfig, op string, fn func() error) error {
	return retry.Do(fn, retryOptions(ctx, cfg, op)...)
}

func retryWithData[T any](ctx context.Context, cfg config.RetryConfig, op string, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn, retryOptions(ctx, cfg, op)...)
}
