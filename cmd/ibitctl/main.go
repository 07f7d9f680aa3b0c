// Command ibitctl is the partition maintenance tool: it inspects a
// partition directory's header, runs the property-based self-test,
// builds bitmap indexes, and dumps active rows. It is deliberately not
// a query frontend — the SQL-like parser and the higher-level table
// surfaces live outside this module.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/ilog"
	"github.com/ibitd/ibitd/partition"
	"github.com/ibitd/ibitd/resource"
)

type globalParams struct {
	logLevel string
	sets     []string
}

// addGlobalFlags registers the flags shared by every subcommand.
func addGlobalFlags(fs *pflag.FlagSet, params *globalParams) {
	fs.StringVarP(&params.logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	fs.StringArrayVar(&params.sets, "set", nil, "resource store key=value override (repeatable)")
}

// newEnv builds the logger, resource store, and file manager a
// subcommand runs against, honoring the global flags.
func newEnv(params *globalParams) (ilog.Logger, *resource.Store, *fileman.Manager, error) {
	log := ilog.New()
	if err := log.SetLevel(params.logLevel); err != nil {
		return nil, nil, nil, err
	}

	res := resource.New()
	for _, kv := range params.sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, nil, nil, fmt.Errorf("malformed --set %q, want key=value", kv)
		}
		res.Set(k, v)
	}

	m, err := fileman.New(fileman.Options{Log: log})
	if err != nil {
		return nil, nil, nil, err
	}
	return log, res, m, nil
}

// resolveDir resolves a partition argument that is not itself a
// directory against the configured data roots, in the order the
// resource store documents them: activeDir, DataDir, DataDir1, DataDir2.
func resolveDir(res *resource.Store, arg string) string {
	if fi, err := os.Stat(arg); err == nil && fi.IsDir() {
		return arg
	}
	for _, key := range []string{resource.KeyActiveDir, resource.KeyDataDir, resource.KeyDataDir1, resource.KeyDataDir2} {
		root, ok := res.String(key)
		if !ok {
			continue
		}
		candidate := filepath.Join(root, arg)
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return candidate
		}
	}
	return arg
}

// openPartition opens dir with the shared environment.
func openPartition(dir string, params *globalParams) (*partition.Partition, ilog.Logger, *resource.Store, error) {
	log, res, m, err := newEnv(params)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := partition.Open(resolveDir(res, dir), partition.Options{Manager: m, Resource: res, Log: log})
	if err != nil {
		return nil, nil, nil, err
	}
	return p, log, res, nil
}

func command() *cobra.Command {
	params := &globalParams{}
	root := &cobra.Command{
		Use:           "ibitctl",
		Short:         "Inspect and maintain ibitd data partitions",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	addGlobalFlags(root.PersistentFlags(), params)

	initInspect(root, params)
	initSelftest(root, params)
	initBuildIndex(root, params)
	initDump(root, params)
	return root
}

func main() {
	if err := command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
