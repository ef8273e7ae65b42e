package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var (
		common commonFlags
		down   bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down, revert) the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := common.load(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			st, err := common.openStore(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			if down {
				err = st.MigrateDown(cmd.Context())
			} else {
				err = st.Migrate(cmd.Context())
			}
			if err != nil {
				return err
			}
			v, err := st.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}

	common.register(cmd)
	cmd.Flags().BoolVar(&down, "down", false, "revert every migration")
	return cmd
}
