package searchcore

import (
	"errors"
	"fmt"
)

// Taxonomy members exposed at the façade boundary (spec §6, §7). Every
// error the façade returns to a caller is one of these, or wraps one.
var (
	// ErrConfigError marks an invalid configuration option.
	ErrConfigError = errors.New("searchcore: config error")
	// ErrSchemaMismatch marks an on-disk schema_hash that no longer
	// matches the compiled schema; requires Rebuild.
	ErrSchemaMismatch = errors.New("searchcore: schema mismatch, rebuild required")
	// ErrIndexCorruption marks an unrecoverable corruption in one
	// subsystem (lexical segment checksum, CVVI header CRC); that
	// subsystem goes offline until rebuilt.
	ErrIndexCorruption = errors.New("searchcore: index corruption")
	// ErrTimeout marks a search that exceeded its caller-supplied
	// deadline; distinct from a search failure.
	ErrTimeout = errors.New("searchcore: timeout")
	// ErrNotFound marks a delete_source for an unknown source_id.
	ErrNotFound = errors.New("searchcore: not found")
	// ErrBug marks an internal invariant violation (programming bug).
	ErrBug = errors.New("searchcore: internal invariant violated")
)

// wrap attaches op context to a taxonomy sentinel, keeping errors.Is
// usable at the boundary.
func wrap(sentinel error, op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return fmt.Errorf("%s: %w: %v", op, sentinel, cause)
}
