package board

import "context"

// Version is an opaque concurrency token attached to every store object.
// Its content is backend-defined (a generation number, an ETag, a UUID);
// callers only ever compare it implicitly by passing it back to Put.
type Version string

// NoVersion passed as the expected version to Put means "create new":
// the write fails with ErrAlreadyExists if the key already has an object.
const NoVersion Version = ""

// Store is the adapter contract over the external object store. The board
// requires optimistic-concurrency semantics from every implementation, even
// when the underlying backend offers no conditional-write primitive of its
// own - the adapter must synthesize one (see internal/store for the three
// shipped backends).
//
// Implementations must guarantee:
//
//   - Put with a stale expected version fails with ErrConflict and never
//     silently overwrites.
//   - A failed or in-flight Put is never partially observable: readers see
//     either the previous object or the complete new one, nothing between.
//   - Put with NoVersion fails with ErrAlreadyExists if the key exists.
//
// All methods honor context cancellation and deadlines; callers are expected
// to supply a timeout on every call. I/O failures map to ErrStoreUnavailable.
type Store interface {
	// Put writes payload under key if the store's current version matches
	// expected, returning the new version token.
	Put(ctx context.Context, key string, payload []byte, expected Version) (Version, error)

	// Get returns the payload and current version for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, Version, error)

	// List returns the keys under prefix, in unspecified order. The result
	// is a finite snapshot as of the scan; callers must re-list to observe
	// entries created afterwards.
	List(ctx context.Context, prefix string) ([]string, error)
}
