package board

import "strings"

// Store key helpers
//
// A message is stored as a single object named {id}.json. Store
// implementations scope keys under a board namespace themselves, so the key
// schema here is backend-independent. Because IDs begin with the message
// type ("task-", "status-", ...), listing with a type prefix narrows a scan
// to one message type without fetching anything.

const keySuffix = ".json"

// MessageKey returns the store object key for a message ID.
func MessageKey(id string) string {
	return id + keySuffix
}

// MessageIDFromKey recovers the message ID from a store object key.
// Returns ok=false for keys that do not look like message objects.
func MessageIDFromKey(key string) (string, bool) {
	if !strings.HasSuffix(key, keySuffix) {
		return "", false
	}
	id := strings.TrimSuffix(key, keySuffix)
	if id == "" {
		return "", false
	}
	return id, true
}

// TypePrefix returns the listing prefix that matches all message objects of
// the given type. The empty MessageType matches every message.
func TypePrefix(t MessageType) string {
	if t == "" {
		return ""
	}
	return string(t) + "-"
}
