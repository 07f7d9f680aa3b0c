package selftest

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"

	"github.com/ibitd/ibitd/column"
	"github.com/ibitd/ibitd/fileman"
	"github.com/ibitd/ibitd/ilog"
	"github.com/ibitd/ibitd/metadata"
	"github.com/ibitd/ibitd/partition"
	"github.com/ibitd/ibitd/resource"
	"github.com/ibitd/ibitd/scan"
)

// buildTestPartition writes a two-column numeric partition with RIDs
// and opens it with indexes built, the fixture every check below runs
// against.
func buildTestPartition(t *testing.T, n int) *partition.Partition {
	t.Helper()
	dir := t.TempDir()

	h := &metadata.Header{
		Name:            filepath.Base(dir),
		NumberOfRows:    int64(n),
		NumberOfColumns: 2,
		State:           "STABLE",
		Columns: []metadata.ColumnHeader{
			{Name: "u", Type: column.Int},
			{Name: "v", Type: column.Int},
		},
	}
	require.NoError(t, metadata.Write(filepath.Join(dir, "-part.txt"), h))

	var bu, bv bytes.Buffer
	for i := 0; i < n; i++ {
		bu.Write(scan.EncodeInt32(int32((i * 31) % 97)))
		bv.Write(scan.EncodeInt32(int32((i * 7) % 53)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u"), bu.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v"), bv.Bytes(), 0o644))

	rids := make([]byte, n*20)
	for i := 0; i < n; i++ {
		off := i * 20
		binary.NativeEndian.PutUint64(rids[off:off+8], 1)
		binary.NativeEndian.PutUint64(rids[off+8:off+16], uint64(1000+i))
		binary.NativeEndian.PutUint32(rids[off+16:off+20], uint32(i))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "-rids"), rids, 0o644))

	m, err := fileman.New(fileman.Options{Log: ilog.NoOp()})
	require.NoError(t, err)
	p, err := partition.Open(dir, partition.Options{Manager: m, Log: ilog.NoOp()})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	require.NoError(t, p.BuildIndexes([]partition.IndexSpec{{Spec: "default"}}, 2))
	return p
}

func TestRangeCheckSubdivisionSumsAndAgreement(t *testing.T) {
	p := buildTestPartition(t, 512)
	rng := rand.New(rand.NewSource(1))

	report, err := RunRangeCheck(p, "u", 3, rng)
	require.NoError(t, err)
	require.True(t, report.SumOK)
	require.Empty(t, report.Mismatches)
	require.NotNil(t, report.Root)
	// The root range is [min, max), so rows holding the maximum value
	// sit outside it; everything else must be counted.
	require.Greater(t, report.Root.Count, 0)
	require.Less(t, report.Root.Count, p.ActiveMask().Count())

	var out bytes.Buffer
	RenderTree(&out, report)
	require.Contains(t, out.String(), "COUNT")
}

func TestRangeCheckUnknownColumn(t *testing.T) {
	p := buildTestPartition(t, 16)
	_, err := RunRangeCheck(p, "nope", 2, rand.New(rand.NewSource(1)))
	require.Error(t, err)
}

func TestConcurrentCheckSumsHold(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	p := buildTestPartition(t, 512)
	box := Box2D{Lo0: 0, Hi0: 97, Lo1: 0, Hi1: 53}

	report, err := RunConcurrentCheck(p, "u", "v", box, 4, 3)
	require.NoError(t, err)
	require.True(t, report.SumOK, "mismatches: %v", report.Mismatches)
	require.Equal(t, 3, report.NumWorkers)

	var out bytes.Buffer
	RenderTree2D(&out, report)
	require.Contains(t, out.String(), "BOX")
}

func TestRidRoundtripSample(t *testing.T) {
	p := buildTestPartition(t, 64)
	ok, failures := RunRidRoundtrip(p, 16, rand.New(rand.NewSource(7)))
	require.True(t, ok, "failures: %v", failures)
}

func TestRandomAgreement(t *testing.T) {
	p := buildTestPartition(t, 256)
	mismatches, err := RunRandomAgreement(p, "u", 20, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestIndexSpeedReports(t *testing.T) {
	p := buildTestPartition(t, 256)
	report, err := RunIndexSpeed(p, "u")
	require.NoError(t, err)
	require.NotNil(t, report)
}

func TestConfigFromResource(t *testing.T) {
	res := resource.New()
	cfg := FromResource(res, "p")
	require.Equal(t, 3, cfg.Depth)
	require.Zero(t, cfg.RandomRanges)
	require.False(t, cfg.TimeIndex)

	res.Set(resource.PartitionKey("p", resource.SuffixLongTests), true)
	res.Set(resource.PartitionKey("p", resource.SuffixRandomTests), 25)
	res.Set(resource.PartitionKey("p", resource.SuffixTestIndexSpeed), true)
	cfg = FromResource(res, "p")
	require.Equal(t, 6, cfg.Depth)
	require.Equal(t, 25, cfg.RandomRanges)
	require.True(t, cfg.TimeIndex)

	require.Equal(t, Config{Depth: 3}, FromResource(nil, "p"))
}
