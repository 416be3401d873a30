package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/app"
	"github.com/tigerroll/sheetflow/example/sheetflow/internal/orchestrator"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		tenantID   string
		objectName string
		storageRef string
		runRef     string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one file for a tenant",
		Example: `  # Process a file already uploaded to the landing storage
  sheetflow run --tenant school-42 --file incoming/school-42/roster.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
				ref := storageRef
				if ref == "" {
					ref = svc.Cfg.Sheetflow.Infrastructure.StorageRef
				}
				trig := orchestrator.Trigger{TenantID: tenantID, StorageRef: ref, ObjectName: objectName, RunRef: runRef}
				if conn, err := svc.Storage.ResolveStorageConnection(ctx, ref); err == nil {
					if info, err := conn.Stat(ctx, "", objectName); err == nil {
						trig.Size = info.Size
					}
				}

				outcome, runErr := svc.Orchestrator.Run(ctx, trig)
				if errors.Is(runErr, orchestrator.ErrTenantBusy) {
					return runErr
				}
				if outcome != nil {
					if err := opts.print(cmd.OutOrStdout(), outcome, func(w io.Writer) { printOutcome(w, outcome) }); err != nil {
						return err
					}
				}
				return runErr
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant the file belongs to")
	cmd.Flags().StringVar(&objectName, "file", "", "Object name of the input file")
	cmd.Flags().StringVar(&storageRef, "storage", "", "Storage connection (default infrastructure.storage_ref)")
	cmd.Flags().StringVar(&runRef, "run-ref", "", "External run reference recorded on the batch")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printOutcome(w io.Writer, outcome *orchestrator.Outcome) {
	fmt.Fprintf(w, "batch %s: %s\n", outcome.BatchID, outcome.Status)
	if s := outcome.Summary; s != nil {
		fmt.Fprintf(w, "  steps: %d (%d completed, %d failed), records: %d\n", s.TotalSteps, s.CompletedSteps, s.FailedSteps, s.TotalRecords)
	}
}
