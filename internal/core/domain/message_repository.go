//go:generate go run go.uber.org/mock/mockgen -source=message_repository.go -destination=../../../mocks/mock_message_repository.go -package=mocks
package domain

import (
	"context"
	"time"
)

// EntryKind distinguishes user-authored messages from synthesized presence entries.
type EntryKind string

const (
	EntryChat  EntryKind = "CHAT"
	EntryJoin  EntryKind = "JOIN"
	EntryLeave EntryKind = "LEAVE"
)

// ParseEntryKind validates a stored or client supplied kind.
func ParseEntryKind(s string) (EntryKind, bool) {
	switch k := EntryKind(s); k {
	case EntryChat, EntryJoin, EntryLeave:
		return k, true
	}
	return "", false
}

// ChatEntry is one append-only row of the message log.
// ID is assigned by the store on insert and grows with insertion order.
type ChatEntry struct {
	ID        int64     `json:"id"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Kind      EntryKind `json:"type"`
}

// NewJoinEntry builds the entry appended when a user comes online.
func NewJoinEntry(u User) ChatEntry {
	return ChatEntry{Sender: u, Content: u.Name + " joined", Kind: EntryJoin}
}

// NewLeaveEntry builds the entry appended when a user goes offline.
func NewLeaveEntry(u User) ChatEntry {
	return ChatEntry{Sender: u, Content: u.Name + " left", Kind: EntryLeave}
}

// MessageRepository is the message log.
type MessageRepository interface {
	// Append stores entry and returns it with the store-assigned id and timestamp.
	Append(ctx context.Context, entry ChatEntry) (ChatEntry, error)

	// Recent returns up to limit entries ordered by (createdAt desc, id desc).
	Recent(ctx context.Context, limit int) ([]ChatEntry, error)

	// Before returns up to limit entries with id < cursorID, newest first.
	// Callers wanting chronological order reverse the result.
	Before(ctx context.Context, cursorID int64, limit int) ([]ChatEntry, error)
}
