// Package lock serializes identity-changing operations across requests.
//
// Two OAuth callbacks for the same provider identity (a double click on the
// consent screen is enough) must not both observe "no owner" and insert two
// rows. Callers acquire every identity key they are about to read or write
// before running the link decision, and release them after the transaction
// commits.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrLockTimeout is returned when the keys could not be acquired before the
// wait budget or the context ran out.
var ErrLockTimeout = errors.New("identity lock: timed out waiting for lock")

// Locker acquires a set of keys atomically from the caller's point of view.
type Locker interface {
	// Acquire blocks until every key is held. The returned release func is
	// safe to call more than once.
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// normalizeKeys drops empties and duplicates and sorts, so two callers
// locking overlapping sets always acquire in the same order.
func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
