package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.io/infrasutra/threadparse/internal/janitor"
	"github.io/infrasutra/threadparse/internal/metrics"
)

func newPurgeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired conversations now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			j, err := janitor.New(db, cfg.PurgeSchedule, metrics.New(), opts.logger(cmd))
			if err != nil {
				return err
			}
			deleted, err := j.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired conversations\n", deleted)
			return nil
		},
	}
}
