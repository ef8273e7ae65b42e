package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "histdb 0.1.0-dev"

func main() {
	root := &cobra.Command{
		Use:   "histdb",
		Short: "Incrementally mirror git history into SQLite",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newIngestCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newCatBlobCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
