// Package cli implements the sheetflow command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/app"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

// StartFunc starts the application container and fills svc.
type StartFunc func(ctx context.Context, svc *app.Services) (stop func(), err error)

type options struct {
	start       StartFunc
	jsonOutput  bool
	autoMigrate bool
}

// NewRootCommand builds the command tree.
func NewRootCommand(envFilePath string, embeddedConfig config.EmbeddedConfig) *cobra.Command {
	return newRootCommand(func(ctx context.Context, svc *app.Services) (func(), error) {
		return app.Start(ctx, envFilePath, embeddedConfig, svc)
	})
}

func newRootCommand(start StartFunc) *cobra.Command {
	opts := &options{start: start}

	root := &cobra.Command{
		Use:   "sheetflow",
		Short: "Per-tenant spreadsheet ingestion",
		Long: `sheetflow ingests spreadsheet files per tenant. Files of one tenant are
processed one at a time under a tenant lock; tenants run in parallel.
Every batch and step is recorded in the ledger, and superseded or failed
batches are rolled back by deactivating their records.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output in JSON format")
	root.PersistentFlags().BoolVar(&opts.autoMigrate, "migrate", false, "Apply pending schema migrations before running")

	root.AddCommand(
		newRunCmd(opts),
		newScanCmd(opts),
		newPurgeCmd(opts),
		newSweepCmd(opts),
		newStatusCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// withServices starts the container, runs fn and stops the container.
func (o *options) withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var svc app.Services
	stop, err := o.start(ctx, &svc)
	if err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer stop()

	if o.autoMigrate {
		if err := svc.Migrations.Up(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return fn(ctx, &svc)
}

func (o *options) print(w io.Writer, value interface{}, text func(w io.Writer)) error {
	if o.jsonOutput {
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	text(w)
	return nil
}
