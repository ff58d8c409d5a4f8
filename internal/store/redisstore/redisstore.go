// Package redisstore implements the board store contract over Redis.
// Redis has no compare-and-swap write of its own, so the adapter keeps an
// opaque version token next to each payload and performs conditional writes
// with WATCH/MULTI/EXEC: the transaction aborts if the watched key changed
// between the version check and the write, which is exactly the conflict
// signal the board's claim protocol needs.
//
// All keys are namespaced drey:{namespace}:msg:{key} so multiple boards can
// safely coexist on a single Redis server.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/drey/pkg/board"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store is a Redis implementation of board.Store.
// The client is thread-safe and can be shared across goroutines.
type Store struct {
	rdb       *redis.Client
	namespace string
}

// New creates a Redis store for the given board namespace.
func New(opts *redis.Options, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &Store{
		rdb:       redis.NewClient(opts),
		namespace: namespace,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// objectKey returns the Redis key for a board object.
// Pattern: drey:{namespace}:msg:{key}
func (s *Store) objectKey(key string) string {
	return fmt.Sprintf("drey:%s:msg:%s", s.namespace, key)
}

// keyPrefix is the namespace portion shared by every object key.
func (s *Store) keyPrefix() string {
	return fmt.Sprintf("drey:%s:msg:", s.namespace)
}

// Get returns the payload and version token for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, board.Version, error) {
	vals, err := s.rdb.HGetAll(ctx, s.objectKey(key)).Result()
	if err != nil {
		return nil, board.NoVersion, storeErr("read "+key, err)
	}

	// HGetAll returns an empty map for missing keys.
	if len(vals) == 0 {
		return nil, board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrNotFound)
	}

	return []byte(vals["payload"]), board.Version(vals["version"]), nil
}

// Put conditionally writes payload under key. The WATCH covers the window
// between reading the stored version and the transactional write, so a
// concurrent writer aborts the EXEC and surfaces as a conflict.
func (s *Store) Put(ctx context.Context, key string, payload []byte, expected board.Version) (board.Version, error) {
	k := s.objectKey(key)
	newVersion := uuid.NewString()

	txn := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, k).Result()
		if err != nil {
			return err
		}
		exists := len(vals) > 0

		if expected == board.NoVersion {
			if exists {
				return fmt.Errorf("key %s: %w", key, board.ErrAlreadyExists)
			}
		} else {
			if !exists {
				return fmt.Errorf("key %s: %w", key, board.ErrNotFound)
			}
			if vals["version"] != string(expected) {
				return fmt.Errorf("key %s: %w", key, board.ErrConflict)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, "payload", payload, "version", newVersion)
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txn, k)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// The key changed under the WATCH. For a create that means
			// another creator won; for an update, a lost CAS race.
			if expected == board.NoVersion {
				return board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrAlreadyExists)
			}
			return board.NoVersion, fmt.Errorf("key %s: %w", key, board.ErrConflict)
		}
		if errors.Is(err, board.ErrAlreadyExists) || errors.Is(err, board.ErrConflict) || errors.Is(err, board.ErrNotFound) {
			return board.NoVersion, err
		}
		return board.NoVersion, storeErr("write "+key, err)
	}

	return board.Version(newVersion), nil
}

// List returns the board object keys under prefix via SCAN.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	match := s.keyPrefix() + prefix + "*"

	var keys []string
	iter := s.rdb.Scan(ctx, 0, match, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.keyPrefix()))
	}
	if err := iter.Err(); err != nil {
		return nil, storeErr("list", err)
	}

	return keys, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, board.ErrStoreUnavailable, err)
}
