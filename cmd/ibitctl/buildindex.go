package main

import (
	"github.com/spf13/cobra"

	"github.com/ibitd/ibitd/partition"
)

type buildIndexParams struct {
	threads int
	pattern string
	spec    string
}

func initBuildIndex(root *cobra.Command, params *globalParams) {
	bp := &buildIndexParams{}
	cmd := &cobra.Command{
		Use:   "build-index <dir>",
		Short: "Build bitmap indexes for a partition's columns",
		Long: `Build bitmap indexes for a partition's columns.

Spawns a work-stealing pool of worker goroutines that pull column
indices from a shared counter and build each column's index. --pattern
restricts the build to columns whose name matches; the default builds
every numeric column.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doBuildIndex(args[0], params, bp)
		},
	}
	cmd.Flags().IntVarP(&bp.threads, "threads", "t", 0, "worker goroutines (0 = partition default)")
	cmd.Flags().StringVar(&bp.pattern, "pattern", "", "column name pattern to index (empty = all)")
	cmd.Flags().StringVar(&bp.spec, "spec", "default", "index specification passed to the column builds")
	root.AddCommand(cmd)
}

func doBuildIndex(dir string, params *globalParams, bp *buildIndexParams) error {
	p, log, _, err := openPartition(dir, params)
	if err != nil {
		return err
	}
	defer p.Close()

	var opt []partition.IndexSpec
	if bp.pattern == "" {
		opt = []partition.IndexSpec{{Spec: bp.spec}}
	} else {
		opt = []partition.IndexSpec{{NamePattern: bp.pattern}, {Spec: bp.spec}}
	}

	if err := p.BuildIndexes(opt, bp.threads); err != nil {
		return err
	}
	log.Infof("built indexes for partition %s", p.Name)
	return nil
}
