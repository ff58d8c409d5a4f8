// Package filestore implements the board store contract over a plain shared
// folder, the simplest backend the board supports. The filesystem offers no
// conditional-write primitive, so the adapter synthesizes one with a
// generation chain: each object version is an immutable file named
// {key}.g{N}, and a new version becomes visible through os.Link, which is
// atomic and fails when the target name already exists.
//
// The chain gives a genuine lock-free compare-and-swap:
//
//   - generation N can only be created by a writer that read generation N-1,
//     so generations appear strictly in order;
//   - two writers holding the same version token race to link the same
//     target name, and exactly one wins (the loser gets EEXIST);
//   - a generation file is fully written and synced before it is linked, so
//     readers never observe a partial object.
//
// The board never deletes messages, so old generations accumulate until an
// operator calls Compact.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dyluth/drey/pkg/board"
	"github.com/google/uuid"
)

const genSep = ".g"

// Store is a shared-folder implementation of board.Store.
// One directory per board namespace; safe for concurrent use by any number
// of processes sharing the folder (local disk or a POSIX network mount that
// honors link/EEXIST semantics).
type Store struct {
	dir string
}

// New creates a file store rooted at root, scoped to the given namespace.
// The namespace directory is created if missing (first-write provisioning).
func New(root, namespace string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	dir := filepath.Join(root, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create namespace directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

// Get returns the newest generation of key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, board.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, board.NoVersion, err
	}

	// A concurrent Compact can remove the file between the scan and the
	// read; one rescan absorbs that.
	for attempt := 0; attempt < 2; attempt++ {
		gen, err := s.currentGeneration(key)
		if err != nil {
			return nil, board.NoVersion, err
		}
		if gen == 0 {
			return nil, board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrNotFound)
		}

		payload, err := os.ReadFile(s.genPath(key, gen))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, board.NoVersion, storeErr("read "+key, err)
		}
		return payload, versionToken(gen), nil
	}

	return nil, board.NoVersion, storeErr("read "+key, fmt.Errorf("generation vanished twice"))
}

// Put writes payload as the next generation of key, conditional on expected
// being the current generation. NoVersion means create-new.
func (s *Store) Put(ctx context.Context, key string, payload []byte, expected board.Version) (board.Version, error) {
	if err := ctx.Err(); err != nil {
		return board.NoVersion, err
	}
	if strings.ContainsAny(key, "/\\") {
		return board.NoVersion, fmt.Errorf("invalid key %q", key)
	}

	current, err := s.currentGeneration(key)
	if err != nil {
		return board.NoVersion, err
	}

	var target int
	if expected == board.NoVersion {
		if current > 0 {
			return board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrAlreadyExists)
		}
		target = 1
	} else {
		expGen, err := generationFromToken(expected)
		if err != nil {
			return board.NoVersion, err
		}
		// Stale tokens are rejected up front; the link below closes the
		// race window between this check and the write.
		if expGen != current {
			return board.NoVersion, fmt.Errorf("key %s: expected generation %d, current %d: %w", key, expGen, current, board.ErrConflict)
		}
		target = expGen + 1
	}

	tmp := filepath.Join(s.dir, fmt.Sprintf(".tmp-%s", uuid.NewString()))
	if err := writeAndSync(tmp, payload); err != nil {
		return board.NoVersion, storeErr("stage "+key, err)
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, s.genPath(key, target)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			if expected == board.NoVersion {
				return board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrAlreadyExists)
			}
			return board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrConflict)
		}
		return board.NoVersion, storeErr("link "+key, err)
	}

	return versionToken(target), nil
}

// List returns the distinct keys under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, storeErr("list", err)
	}

	seen := make(map[string]struct{})
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		key, _, ok := splitGenName(name)
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys, nil
}

// Compact removes superseded generation files, keeping the newest two per
// key. Keeping two (not one) means a writer that passed the up-front
// current-generation check can never find its link target pruned out from
// under it. Compact is an operator action; the board never calls it.
func (s *Store) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return storeErr("compact", err)
	}

	gens := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		key, gen, ok := splitGenName(entry.Name())
		if !ok {
			continue
		}
		gens[key] = append(gens[key], gen)
	}

	for key, versions := range gens {
		if len(versions) <= 2 {
			continue
		}
		sort.Ints(versions)
		for _, gen := range versions[:len(versions)-2] {
			// Best effort: a racing compactor may get there first.
			_ = os.Remove(s.genPath(key, gen))
		}
	}

	return nil
}

// currentGeneration scans for the highest generation of key, 0 if absent.
func (s *Store) currentGeneration(key string) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, storeErr("scan "+key, err)
	}

	max := 0
	for _, entry := range entries {
		k, gen, ok := splitGenName(entry.Name())
		if !ok || k != key {
			continue
		}
		if gen > max {
			max = gen
		}
	}
	return max, nil
}

func (s *Store) genPath(key string, gen int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%s%d", key, genSep, gen))
}

// splitGenName parses "{key}.g{N}" into its parts.
func splitGenName(name string) (key string, gen int, ok bool) {
	idx := strings.LastIndex(name, genSep)
	if idx <= 0 {
		return "", 0, false
	}
	gen, err := strconv.Atoi(name[idx+len(genSep):])
	if err != nil || gen < 1 {
		return "", 0, false
	}
	return name[:idx], gen, true
}

func versionToken(gen int) board.Version {
	return board.Version(strconv.Itoa(gen))
}

func generationFromToken(v board.Version) (int, error) {
	gen, err := strconv.Atoi(string(v))
	if err != nil || gen < 1 {
		return 0, fmt.Errorf("malformed version token %q: %w", v, board.ErrConflict)
	}
	return gen, nil
}

// writeAndSync stages a file so its contents are durable before it becomes
// reachable through a generation name.
func writeAndSync(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, board.ErrStoreUnavailable, err)
}
