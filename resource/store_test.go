package resource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnknownKeysAreIgnored(t *testing.T) {
	s := New()

	_, ok := s.String("no-such-key")
	require.False(t, ok)
	_, ok = s.Bool("no-such-key")
	require.False(t, ok)
	_, ok = s.Int("no-such-key")
	require.False(t, ok)

	require.Equal(t, "fallback", s.StringOr("no-such-key", "fallback"))
	require.True(t, s.BoolOr("no-such-key", true))
}

func TestSetOverrides(t *testing.T) {
	s := New()
	s.Set(KeyBackupDir, "/mnt/backup")
	s.Set(KeyExportBitmapCsr, true)

	v, ok := s.String(KeyBackupDir)
	require.True(t, ok)
	require.Equal(t, "/mnt/backup", v)
	require.True(t, s.BoolOr(KeyExportBitmapCsr, false))
}

func TestPartitionKeyForm(t *testing.T) {
	require.Equal(t, "orders.useBackupDir", PartitionKey("orders", SuffixUseBackupDir))

	s := New()
	s.Set(PartitionKey("orders", SuffixFillRIDs), true)
	require.True(t, s.BoolOr(PartitionKey("orders", SuffixFillRIDs), false))
	require.False(t, s.BoolOr(PartitionKey("other", SuffixFillRIDs), false))
}
