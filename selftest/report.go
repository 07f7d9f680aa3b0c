package selftest

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

func formatMismatch(box Box2D, parent, childSum int) string {
	return fmt.Sprintf("box [%g,%g)x[%g,%g): parent counted %d, children sum to %d",
		box.Lo0, box.Hi0, box.Lo1, box.Hi1, parent, childSum)
}

// RenderTree writes report's 1-D subdivision tree as a table, one row
// per node, to w — the `ibitctl selftest` CLI command's summary view.
func RenderTree(w io.Writer, report *Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"range", "count", "depth"})
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		table.Append([]string{
			fmt.Sprintf("[%g, %g)", n.Lo, n.Hi),
			strconv.Itoa(n.Count),
			strconv.Itoa(depth),
		})
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(report.Root, 0)
	table.Render()
}

// RenderTree2D writes a ConcurrentReport's 2-D subdivision tree as a
// table, one row per node, to w.
func RenderTree2D(w io.Writer, report *ConcurrentReport) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"box", "count", "depth"})
	var walk func(n *Node2D, depth int)
	walk = func(n *Node2D, depth int) {
		table.Append([]string{
			fmt.Sprintf("[%g,%g)x[%g,%g)", n.Box.Lo0, n.Box.Hi0, n.Box.Lo1, n.Box.Hi1),
			strconv.Itoa(n.Count),
			strconv.Itoa(depth),
		})
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(report.Root, 0)
	table.Render()
}
