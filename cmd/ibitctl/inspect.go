package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ibitd/ibitd/metadata"
)

func initInspect(root *cobra.Command, params *globalParams) {
	cmd := &cobra.Command{
		Use:   "inspect <dir>",
		Short: "Summarize a partition directory's header",
		Long: `Summarize a partition directory's header.

Reads -part.txt (or the legacy table.tdc) and prints the partition's
name, row count, state, meta tags, and column list. The directory is
never modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, res, _, err := newEnv(params)
			if err != nil {
				return err
			}
			return doInspect(resolveDir(res, args[0]))
		},
	}
	root.AddCommand(cmd)
}

func doInspect(dir string) error {
	h, path, err := metadata.Parse(dir)
	if err != nil {
		return err
	}

	fmt.Printf("header:      %s\n", path)
	fmt.Printf("name:        %s\n", h.Name)
	if h.Description != "" {
		fmt.Printf("description: %s\n", h.Description)
	}
	fmt.Printf("rows:        %d\n", h.NumberOfRows)
	if h.State != "" {
		fmt.Printf("state:       %s\n", h.State)
	}
	if h.Timestamp != "" {
		fmt.Printf("timestamp:   %s\n", h.Timestamp)
	}
	for _, tag := range h.MetaTags {
		fmt.Printf("tag:         %s=%s\n", tag.Name, tag.Value)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "column", "type"})
	for i, c := range h.Columns {
		table.Append([]string{strconv.Itoa(i), c.Name, c.Type.String()})
	}
	table.Render()
	return nil
}
