package selftest

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ibitd/ibitd/partition"
	"github.com/ibitd/ibitd/predicate"
)

// Box2D is a rectangular range over two columns, evaluated as the AND
// of two independent RangePredicates.
type Box2D struct {
	Lo0, Hi0 float64
	Lo1, Hi1 float64
}

// Node2D is one node of the binary-subdivided query tree from spec.md
// §4.9's concurrent mode. Count is filled in by RunConcurrentCheck;
// before that it is zero.
type Node2D struct {
	Box      Box2D
	Count    int
	Children []*Node2D
}

// buildTree2D builds the full query tree up front (no evaluation yet),
// splitting the wider of the two dimensions in half at each level.
func buildTree2D(box Box2D, depth int) *Node2D {
	n := &Node2D{Box: box}
	if depth <= 0 {
		return n
	}
	w0, w1 := box.Hi0-box.Lo0, box.Hi1-box.Lo1
	if w0 >= w1 {
		if w0 < 2 {
			return n
		}
		mid := box.Lo0 + w0/2
		n.Children = []*Node2D{
			buildTree2D(Box2D{box.Lo0, mid, box.Lo1, box.Hi1}, depth-1),
			buildTree2D(Box2D{mid, box.Hi0, box.Lo1, box.Hi1}, depth-1),
		}
		return n
	}
	if w1 < 2 {
		return n
	}
	mid := box.Lo1 + w1/2
	n.Children = []*Node2D{
		buildTree2D(Box2D{box.Lo0, box.Hi0, box.Lo1, mid}, depth-1),
		buildTree2D(Box2D{box.Lo0, box.Hi0, mid, box.Hi1}, depth-1),
	}
	return n
}

// flatten collects every node of the tree into a single slice, the
// shared work list for the race.
func flatten(n *Node2D, out *[]*Node2D) {
	*out = append(*out, n)
	for _, c := range n.Children {
		flatten(c, out)
	}
}

// ConcurrentReport is the outcome of RunConcurrentCheck.
type ConcurrentReport struct {
	Root       *Node2D
	NumWorkers int
	SumOK      bool
	Mismatches []string
}

// RunConcurrentCheck implements spec.md §4.9's concurrent mode: builds
// a binary-subdivided 2D range-pair tree, races nthr worker goroutines
// (default runtime.NumCPU()-1, floored at 1) over the flattened node
// list pulling from a shared atomic counter (the same work-stealing
// idiom as partition.BuildIndexes), and after every worker finishes
// checks that each node's count equals the sum of its children's.
//
// Callers in a _test.go file should wrap this call with
// `defer leaktest.Check(t)()` to catch a worker goroutine that outlives
// its query; this function has no *testing.T dependency itself.
func RunConcurrentCheck(p *partition.Partition, col0, col1 string, box Box2D, depth, nthr int) (*ConcurrentReport, error) {
	if nthr <= 0 {
		nthr = runtime.NumCPU() - 1
	}
	if nthr < 1 {
		nthr = 1
	}

	root := buildTree2D(box, depth)
	var nodes []*Node2D
	flatten(root, &nodes)

	var counter int64
	var wg sync.WaitGroup
	errs := make([]error, len(nodes))

	worker := func() {
		defer wg.Done()
		for {
			i := int(atomic.AddInt64(&counter, 1)) - 1
			if i >= len(nodes) {
				return
			}
			n := nodes[i]
			count, err := evaluateBox(p, col0, col1, n.Box)
			if err != nil {
				errs[i] = err
				continue
			}
			n.Count = count
		}
	}

	for i := 0; i < nthr; i++ {
		wg.Add(1)
		go worker()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	report := &ConcurrentReport{Root: root, NumWorkers: nthr, SumOK: true}
	checkSums(root, report)
	return report, nil
}

func evaluateBox(p *partition.Partition, col0, col1 string, box Box2D) (int, error) {
	r0 := predicate.RangePredicate{
		Column: col0,
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpGE, Value: box.Lo0},
		Upper:  predicate.Bound{Defined: true, Op: predicate.OpLT, Value: box.Hi0},
	}
	r1 := predicate.RangePredicate{
		Column: col1,
		Lower:  predicate.Bound{Defined: true, Op: predicate.OpGE, Value: box.Lo1},
		Upper:  predicate.Bound{Defined: true, Op: predicate.OpLT, Value: box.Hi1},
	}
	hits0, err := p.Evaluate(partition.Query{Range: &r0})
	if err != nil {
		return 0, err
	}
	hits1, err := p.Evaluate(partition.Query{Range: &r1})
	if err != nil {
		return 0, err
	}
	return hits0.And(hits1).Count(), nil
}

func checkSums(n *Node2D, report *ConcurrentReport) {
	if len(n.Children) == 0 {
		return
	}
	sum := 0
	for _, c := range n.Children {
		checkSums(c, report)
		sum += c.Count
	}
	if sum != n.Count {
		report.SumOK = false
		report.Mismatches = append(report.Mismatches, nodeMismatch(n, sum))
	}
}

func nodeMismatch(n *Node2D, sum int) string {
	return formatMismatch(n.Box, n.Count, sum)
}
