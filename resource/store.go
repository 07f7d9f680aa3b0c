// Package resource implements the process-wide configuration/resource
// store consulted for the keys listed in spec.md §6. It is not a CLI
// flag set — it is a named-key lookup service that the partition,
// fileman, and selftest packages consult directly.
package resource

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store is a named-key configuration lookup backed by viper. Unknown
// keys are ignored (return their zero value and ok=false) rather than
// erroring, matching spec.md §6's "unknown keys are ignored."
type Store struct {
	v *viper.Viper
}

// New returns an empty Store. Values are set programmatically via Set;
// New also enables viper's AutomaticEnv (no prefix, "." mapped to "_"),
// so a key that was not Set is read from the process environment.
func New() *Store {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return &Store{v: v}
}

// Set assigns a value for key, overriding any environment-derived value.
func (s *Store) Set(key string, value interface{}) {
	s.v.Set(key, value)
}

// String returns the string value for key, and whether it was set.
func (s *Store) String(key string) (string, bool) {
	if !s.v.IsSet(key) {
		return "", false
	}
	return s.v.GetString(key), true
}

// StringOr returns the string value for key, or def if unset.
func (s *Store) StringOr(key, def string) string {
	if v, ok := s.String(key); ok {
		return v
	}
	return def
}

// Bool returns the boolean value for key, and whether it was set.
func (s *Store) Bool(key string) (bool, bool) {
	if !s.v.IsSet(key) {
		return false, false
	}
	return s.v.GetBool(key), true
}

// BoolOr returns the boolean value for key, or def if unset.
func (s *Store) BoolOr(key string, def bool) bool {
	if v, ok := s.Bool(key); ok {
		return v
	}
	return def
}

// Int returns the integer value for key, and whether it was set.
func (s *Store) Int(key string) (int, bool) {
	if !s.v.IsSet(key) {
		return 0, false
	}
	return s.v.GetInt(key), true
}

// PartitionKey builds the "<partition>.<suffix>" key form used by the
// per-partition configuration keys in spec.md §6 (useBackupDir,
// ShadowDir, fillRIDs, longTests, randomTests, testIndexSpeed,
// compressBackup).
func PartitionKey(partition, suffix string) string {
	return fmt.Sprintf("%s.%s", partition, suffix)
}

// Well-known top-level keys from spec.md §6.
const (
	KeyActiveDir       = "activeDir"
	KeyBackupDir       = "backupDir"
	KeyDataDir         = "DataDir"
	KeyDataDir1        = "DataDir1"
	KeyDataDir2        = "DataDir2"
	KeyIndexDir        = "indexDir"
	KeyExportBitmapCsr = "exportBitmapAsCsr"
)

// Well-known per-partition key suffixes from spec.md §6.
const (
	SuffixUseBackupDir   = "useBackupDir"
	SuffixShadowDir      = "ShadowDir"
	SuffixFillRIDs       = "fillRIDs"
	SuffixLongTests      = "longTests"
	SuffixRandomTests    = "randomTests"
	SuffixTestIndexSpeed = "testIndexSpeed"
	SuffixCompressBackup = "compressBackup"
)
