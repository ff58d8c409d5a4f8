// Package timespec parses user-facing time specifications for CLI flags.
package timespec

import (
	"fmt"
	"time"
)

// Parse turns a time specification into an absolute instant.
// Supports two formats:
//   - Go duration format: "1h", "30m", "1h30m" - relative to now, in the
//     past ("1h" means "1 hour ago")
//   - RFC3339 timestamps: "2026-09-01T13:00:00Z"
func Parse(spec string) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		return time.Now().Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2026-09-01T13:00:00Z')", spec)
}
