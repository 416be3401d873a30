package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tigerroll/sheetflow/example/sheetflow/internal/app"
)

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the store schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					if err := svc.Migrations.Up(ctx); err != nil {
						return err
					}
					cmd.Println("schema is up to date")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll the schema back completely",
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					return svc.Migrations.Down(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withServices(cmd, func(ctx context.Context, svc *app.Services) error {
					version, dirty, err := svc.Migrations.Version(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}
