package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "library"

// Topics builds the topic names published by the library service.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.NewTopics("library")
//	topics.Change("book", "created")
//	// Returns: "library/book/created"
type Topics struct {
	Prefix string
}

// NewTopics returns a builder for the given prefix. Surrounding slashes are
// trimmed and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Change returns the topic for a record change of the given kind.
//
// Example: library/loan/updated
func (t Topics) Change(kind, action string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix(), kind, action)
}

// Borrow returns the topic carrying a notice for every new loan.
//
// Example: library/borrow
func (t Topics) Borrow() string {
	return t.prefix() + "/borrow"
}

// Announce returns the topic for the periodic collection announcement.
//
// Example: library/announce
func (t Topics) Announce() string {
	return t.prefix() + "/announce"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: library/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// AllTopics returns a pattern matching everything under the prefix.
//
// Pattern: library/#
func (t Topics) AllTopics() string {
	return t.prefix() + "/#"
}
