package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/app"
)

type purgeResult struct {
	Scope       string `json:"scope"`
	ID          string `json:"id"`
	Deactivated int64  `json:"raw_cells_deactivated"`
}

func newPurgeCmd(opts *options) *cobra.Command {
	var tenantID, batchID string
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Deactivate the active records of a tenant or a batch",
		Long: `purge flips the active flag of records to false. Rows are never deleted,
so history stays readable through the batch. Purging twice is harmless.`,
		Example: `  sheetflow purge --tenant school-42
  sheetflow purge --batch 3f0c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (tenantID == "") == (batchID == "") {
				return errors.New("exactly one of --tenant or --batch is required")
			}
			return opts.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
				result := purgeResult{Scope: "tenant", ID: tenantID}
				var err error
				if batchID != "" {
					result = purgeResult{Scope: "batch", ID: batchID}
					result.Deactivated, err = svc.Purge.PurgeBatch(ctx, batchID)
				} else {
					result.Deactivated, err = svc.Purge.PurgeTenant(ctx, tenantID)
				}
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s: %d raw cells deactivated\n", result.Scope, result.ID, result.Deactivated)
				})
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant to purge")
	cmd.Flags().StringVar(&batchID, "batch", "", "Batch to roll back")
	return cmd
}
