package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/app"
)

func newScanCmd(opts *options) *cobra.Command {
	var storageRef, prefix string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Process every pending file below a prefix",
		Long: `scan lists the objects below the incoming prefix and runs each one.
The first path segment after the prefix names the tenant. Tenants that are
locked by another batch are left for the next scan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
				ref, p := storageRef, prefix
				if ref == "" {
					ref = svc.Cfg.Sheetflow.Infrastructure.StorageRef
				}
				if p == "" {
					p = svc.Cfg.Sheetflow.Pipeline.IncomingPrefix
				}
				result, scanErr := svc.Scanner.Scan(ctx, ref, p)
				if err := opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
					fmt.Fprintf(w, "completed: %d, failed: %d, busy: %d\n", result.Completed, result.Failed, result.Busy)
				}); err != nil {
					return err
				}
				return scanErr
			})
		},
	}
	cmd.Flags().StringVar(&storageRef, "storage", "", "Storage connection (default infrastructure.storage_ref)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Prefix to scan (default pipeline.incoming_prefix)")
	return cmd
}
