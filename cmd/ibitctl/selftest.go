package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibitd/ibitd/partition"
	"github.com/ibitd/ibitd/selftest"
)

type selftestParams struct {
	column string
	depth  int
	seed   int64
	build  bool
}

func initSelftest(root *cobra.Command, params *globalParams) {
	sp := &selftestParams{}
	cmd := &cobra.Command{
		Use:   "selftest <dir>",
		Short: "Cross-check index and scan answers on a partition",
		Long: `Cross-check index and scan answers on a partition.

Runs the recursive range-subdivision check on one numeric column,
asserting that the index path and a forced full scan agree bit for bit
and that every node's hit count equals the sum of its children's, then
samples a RID roundtrip. The <partition>.longTests, .randomTests and
.testIndexSpeed resource keys (settable with --set) widen the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doSelftest(args[0], params, sp)
		},
	}
	cmd.Flags().StringVarP(&sp.column, "column", "c", "", "numeric column to check (default: first numeric column)")
	cmd.Flags().IntVarP(&sp.depth, "depth", "d", 0, "subdivision depth (default from resource keys)")
	cmd.Flags().Int64Var(&sp.seed, "seed", 1, "random seed for sampling")
	cmd.Flags().BoolVar(&sp.build, "build-indexes", true, "build bitmap indexes before checking")
	root.AddCommand(cmd)
}

func doSelftest(dir string, params *globalParams, sp *selftestParams) error {
	p, log, res, err := openPartition(dir, params)
	if err != nil {
		return err
	}
	defer p.Close()

	colName := sp.column
	if colName == "" {
		for _, c := range p.Columns {
			if c.Type.IsNumeric() {
				colName = c.Name
				break
			}
		}
	}
	if colName == "" {
		return fmt.Errorf("partition %s has no numeric column to self-test", p.Name)
	}

	if sp.build {
		if err := p.BuildIndexes([]partition.IndexSpec{{Spec: "default"}}, 0); err != nil {
			return err
		}
	}

	cfg := selftest.FromResource(res, p.Name)
	if sp.depth > 0 {
		cfg.Depth = sp.depth
	}
	rng := rand.New(rand.NewSource(sp.seed))

	report, err := selftest.RunRangeCheck(p, colName, cfg.Depth, rng)
	if err != nil {
		return err
	}
	selftest.RenderTree(os.Stdout, report)
	for _, m := range report.Mismatches {
		fmt.Fprintln(os.Stderr, m)
	}

	if cfg.RandomRanges > 0 {
		mismatches, err := selftest.RunRandomAgreement(p, colName, cfg.RandomRanges, rng)
		if err != nil {
			return err
		}
		for _, m := range mismatches {
			fmt.Fprintln(os.Stderr, m)
		}
		report.Mismatches = append(report.Mismatches, mismatches...)
	}

	if cfg.TimeIndex {
		speed, err := selftest.RunIndexSpeed(p, colName)
		if err != nil {
			return err
		}
		fmt.Printf("index path: %v, scan path: %v\n", speed.Index, speed.Scan)
	}

	ok := true
	if p.Rids != nil {
		var failures []string
		ok, failures = selftest.RunRidRoundtrip(p, 32, rng)
		for _, f := range failures {
			fmt.Fprintln(os.Stderr, f)
		}
	}

	if len(report.Mismatches) > 0 || !report.SumOK || !ok {
		return fmt.Errorf("self-test failed on partition %s column %s", p.Name, colName)
	}
	log.Infof("self-test passed on partition %s column %s", p.Name, colName)
	return nil
}
