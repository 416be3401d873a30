package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/app"
	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
)

type tenantStatus struct {
	TenantID string         `json:"tenant_id"`
	Lock     *model.Lease   `json:"lock,omitempty"`
	Batches  []*model.Batch `json:"batches"`
}

type batchStatus struct {
	Batch   *model.Batch            `json:"batch"`
	Summary *model.BatchSummary     `json:"summary"`
	Steps   []*model.ProcessingStep `json:"steps"`
}

func newStatusCmd(opts *options) *cobra.Command {
	var tenantID, batchID, state string
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a tenant's lock and recent batches, or one batch's steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" && batchID == "" {
				return fmt.Errorf("--tenant or --batch is required")
			}
			var filter model.BatchStatus
			if state != "" {
				parsed, err := model.ParseBatchStatus(strings.ToUpper(state))
				if err != nil {
					return err
				}
				filter = parsed
			}
			return opts.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
				if batchID != "" {
					return showBatch(ctx, cmd.OutOrStdout(), opts, svc, batchID)
				}
				return showTenant(ctx, cmd.OutOrStdout(), opts, svc, tenantID, filter, limit)
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant to show")
	cmd.Flags().StringVar(&batchID, "batch", "", "Batch to show")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of recent batches")
	cmd.Flags().StringVar(&state, "state", "", "Only show batches in this status (STARTED, IN_PROGRESS, COMPLETED, FAILED)")
	return cmd
}

func showTenant(ctx context.Context, out io.Writer, opts *options, svc *app.Services, tenantID string, state model.BatchStatus, limit int) error {
	lease, err := svc.Locks.Inspect(ctx, tenantID, "")
	if err != nil {
		return err
	}
	batches, err := listBatches(ctx, svc, tenantID, state, limit)
	if err != nil {
		return err
	}
	status := tenantStatus{TenantID: tenantID, Lock: lease, Batches: batches}
	return opts.print(out, status, func(w io.Writer) {
		if lease != nil {
			fmt.Fprintf(w, "locked by batch %s (%s) until %s\n", lease.BatchID, lease.Holder, lease.ExpiresAt.Format(time.RFC3339))
		} else {
			fmt.Fprintln(w, "not locked")
		}
		for _, b := range batches {
			fmt.Fprintf(w, "%s  %-11s  %s  records=%d  %s\n", b.StartedAt.Format(time.RFC3339), b.Status, b.ID, b.RecordCount, b.InputIdentifier)
			if b.LastError != "" {
				fmt.Fprintf(w, "    error: %s\n", b.LastError)
			}
		}
	})
}

// listBatches returns the newest limit batches of the tenant, only those in
// state when it is set.
func listBatches(ctx context.Context, svc *app.Services, tenantID string, state model.BatchStatus, limit int) ([]*model.Batch, error) {
	if state == "" {
		return svc.Ledger.ListBatches(ctx, tenantID, limit)
	}
	all, err := svc.Ledger.ListBatches(ctx, tenantID, 0)
	if err != nil {
		return nil, err
	}
	batches := make([]*model.Batch, 0, len(all))
	for _, b := range all {
		if b.Status != state {
			continue
		}
		batches = append(batches, b)
		if limit > 0 && len(batches) == limit {
			break
		}
	}
	return batches, nil
}

func showBatch(ctx context.Context, out io.Writer, opts *options, svc *app.Services, batchID string) error {
	batch, err := svc.Ledger.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	summary, err := svc.Ledger.Summarize(ctx, batchID)
	if err != nil {
		return err
	}
	steps, err := svc.Ledger.ListSteps(ctx, batchID)
	if err != nil {
		return err
	}
	status := batchStatus{Batch: batch, Summary: summary, Steps: steps}
	return opts.print(out, status, func(w io.Writer) {
		fmt.Fprintf(w, "batch %s (tenant %s): %s, %d records\n", batch.ID, batch.TenantID, batch.Status, batch.RecordCount)
		for _, s := range steps {
			fmt.Fprintf(w, "  %-10s %-9s records=%d", s.StepName, s.Status, s.RecordsProcessed)
			if s.ErrorMessage != "" {
				fmt.Fprintf(w, " error=%s", s.ErrorMessage)
			}
			fmt.Fprintln(w)
		}
	})
}
