package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/histdb/pkg/object"
	"github.com/odvcencio/histdb/pkg/store"
)

func newCatBlobCmd() *cobra.Command {
	var common commonFlags

	cmd := &cobra.Command{
		Use:   "cat-blob <hash>",
		Short: "Write a stored blob's content to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := object.ParseHash(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(common.dbPath); err != nil {
				return fmt.Errorf("cat-blob: %w", err)
			}
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

			return st.View(cmd.Context(), func(tx *store.Tx) error {
				data, err := tx.ReadBlob(cmd.Context(), h)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}

	common.register(cmd)
	return cmd
}
