// Package model defines data structures for the storefront chat system.
package model

// Role represents the author of a raw conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Answer is one answer returned for a question, scored against the
// knowledge base.
type Answer struct {
	Text     string  `json:"text"`
	Title    string  `json:"title,omitempty"`
	SourceID string  `json:"sourceId,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// ConversationEntry is one chat turn: either a question with its answers
// (QA-style) or a raw user message (Role set, Answers empty).
//
// Timestamp is epoch milliseconds and doubles as the entry's identity key
// everywhere in the system: the pending queue, server-side deletes and the
// conversation list all match entries by it.
type ConversationEntry struct {
	Question  string   `json:"q"`
	Role      Role     `json:"role,omitempty"`
	Answers   []Answer `json:"answers,omitempty"`
	Timestamp int64    `json:"ts"`
}

// PendingItem wraps a ConversationEntry awaiting delivery to the server.
//
// Incr records whether a successful delivery should bump the server-side
// unread counter (1) or not (0). NextAttempt is epoch milliseconds; zero
// means eligible immediately.
type PendingItem struct {
	Entry       ConversationEntry `json:"entry"`
	Incr        int               `json:"incr"`
	Attempts    int               `json:"attempts"`
	NextAttempt int64             `json:"nextAttempt,omitempty"`
}
