package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// Runner processes one trigger.
type Runner interface {
	Run(ctx context.Context, trig Trigger) (*Outcome, error)
}

// ScanResult counts the outcome of a scan.
type ScanResult struct {
	Completed int
	Failed    int
	Busy      int
}

// Scanner turns the objects below a prefix into triggers. The first path
// segment after the prefix is the tenant. Files of one tenant run one after
// another in name order; tenants run in parallel.
type Scanner struct {
	resolver storage.StorageConnectionResolver
	runner   Runner
}

// NewScanner creates a scanner.
func NewScanner(resolver storage.StorageConnectionResolver, runner Runner) *Scanner {
	return &Scanner{resolver: resolver, runner: runner}
}

// Triggers lists the pending files below prefix grouped by tenant.
func (s *Scanner) Triggers(ctx context.Context, storageRef, prefix string) (map[string][]Trigger, error) {
	conn, err := s.resolver.ResolveStorageConnection(ctx, storageRef)
	if err != nil {
		return nil, err
	}

	byTenant := make(map[string][]Trigger)
	err = conn.ListObjects(ctx, "", prefix, func(objectName string) error {
		rel := strings.TrimPrefix(objectName, prefix)
		tenantID, _, found := strings.Cut(rel, "/")
		if !found || tenantID == "" {
			logger.Warnf("Scanner: '%s' is not below a tenant directory, skipped.", objectName)
			return nil
		}
		info, err := conn.Stat(ctx, "", objectName)
		if err != nil {
			return err
		}
		byTenant[tenantID] = append(byTenant[tenantID], Trigger{
			TenantID:   tenantID,
			StorageRef: storageRef,
			ObjectName: objectName,
			Size:       info.Size,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Scanner: failed to list '%s' on '%s': %w", prefix, storageRef, err)
	}
	return byTenant, nil
}

// Scan runs every pending file below prefix. A busy tenant is skipped and
// picked up by the next scan.
func (s *Scanner) Scan(ctx context.Context, storageRef, prefix string) (ScanResult, error) {
	byTenant, err := s.Triggers(ctx, storageRef, prefix)
	if err != nil {
		return ScanResult{}, err
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result ScanResult
		errs   *multierror.Error
	)
	for tenantID, triggers := range byTenant {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, trig := range triggers {
				if ctx.Err() != nil {
					return
				}
				outcome, err := s.runner.Run(ctx, trig)

				mu.Lock()
				switch {
				case errors.Is(err, ErrTenantBusy):
					result.Busy++
					logger.Infof("Scanner: tenant '%s' is busy, leaving '%s' for the next scan.", tenantID, trig.ObjectName)
				case err != nil:
					result.Failed++
					batchID := ""
					if outcome != nil {
						batchID = outcome.BatchID
					}
					errs = multierror.Append(errs, fmt.Errorf("%s (batch %s): %w", trig.ObjectName, batchID, err))
				default:
					result.Completed++
				}
				mu.Unlock()

				if errors.Is(err, ErrTenantBusy) {
					return
				}
			}
		}()
	}
	wg.Wait()
	return result, errs.ErrorOrNil()
}
