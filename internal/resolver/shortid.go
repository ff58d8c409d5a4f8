// Package resolver expands short message ID prefixes into full IDs, so CLI
// users can type "drey claim task-3f8a2c" instead of the whole identifier.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/drey/pkg/board"
)

// MinPrefixLength is the minimum accepted prefix length. Message IDs start
// with their type name, so anything shorter than this cannot usefully narrow
// the search.
const MinPrefixLength = 6

// ResolveMessageID resolves a short ID prefix to a full message ID.
// An exact ID is verified and returned as-is; a prefix must match exactly one
// message on the board.
func ResolveMessageID(ctx context.Context, store board.Store, shortID string) (string, error) {
	if shortID == "" {
		return "", fmt.Errorf("message ID cannot be empty")
	}

	// An exact ID wins outright, even when it is also a prefix of others.
	_, _, err := store.Get(ctx, board.MessageKey(shortID))
	if err == nil {
		return shortID, nil
	}
	if !board.IsNotFound(err) {
		return "", fmt.Errorf("failed to look up message %s: %w", shortID, err)
	}

	if len(shortID) < MinPrefixLength {
		return "", fmt.Errorf("message ID prefix must be at least %d characters (got %d)", MinPrefixLength, len(shortID))
	}

	keys, err := store.List(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for message %s: %w", shortID, err)
	}

	var matches []string
	for _, key := range keys {
		if id, ok := board.MessageIDFromKey(key); ok && strings.HasPrefix(id, shortID) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no messages matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no messages found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple messages matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous ID '%s' matches %d messages", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous
// short IDs, listing up to 10 matches.
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous ID '%s' matches %d messages:\n", err.ShortID, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for i := 0; i < displayCount; i++ {
		fmt.Fprintf(&b, "  %s\n", err.Matches[i])
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the message.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
