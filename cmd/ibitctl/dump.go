package main

import (
	"os"

	"github.com/spf13/cobra"
)

func initDump(root *cobra.Command, params *globalParams) {
	cmd := &cobra.Command{
		Use:   "dump <dir>",
		Short: "Write a partition's active rows as JSON lines",
		Long: `Write a partition's active rows as JSON lines.

One JSON object per active row, keyed by column name. CATEGORY codes
are resolved through the column's dictionary; TEXT and BLOB values are
sliced out of their offset side file. Diagnostic tooling only — the
dump holds the partition's read lock for its whole run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, _, err := openPartition(args[0], params)
			if err != nil {
				return err
			}
			defer p.Close()
			return p.Dump(os.Stdout)
		},
	}
	root.AddCommand(cmd)
}
