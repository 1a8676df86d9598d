package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/duynhne/chat-service/internal/core/domain"
)

const selectEntries = `
	SELECT m.id, m.content, m.type, m.created_at, u.id, u.name, u.email
	FROM chat_messages m
	JOIN users u ON u.id = m.sender_id
`

// PgxMessageRepository implements domain.MessageRepository using pgxpool.
//
// Pages are keyset-paginated on id. Ordering uses (created_at, id) because
// created_at can tie; id is assigned by the sequence and breaks ties
// deterministically.
type PgxMessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new PgxMessageRepository.
func NewMessageRepository(db DBTX) *PgxMessageRepository {
	return &PgxMessageRepository{db: db}
}

// Append inserts entry and returns it with the assigned id and created_at.
func (r *PgxMessageRepository) Append(ctx context.Context, entry domain.ChatEntry) (domain.ChatEntry, error) {
	query := `INSERT INTO chat_messages (sender_id, content, type) VALUES ($1, $2, $3) RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, entry.Sender.ID, entry.Content, string(entry.Kind)).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return domain.ChatEntry{}, err
	}

	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (r *PgxMessageRepository) Recent(ctx context.Context, limit int) ([]domain.ChatEntry, error) {
	if limit <= 0 {
		return []domain.ChatEntry{}, nil
	}
	query := selectEntries + `ORDER BY m.created_at DESC, m.id DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// Before returns up to limit entries with id < cursorID, newest first.
// cursorID does not need to exist; it is only an exclusive upper bound.
func (r *PgxMessageRepository) Before(ctx context.Context, cursorID int64, limit int) ([]domain.ChatEntry, error) {
	if limit <= 0 {
		return []domain.ChatEntry{}, nil
	}
	query := selectEntries + `WHERE m.id < $1 ORDER BY m.created_at DESC, m.id DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, cursorID, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]domain.ChatEntry, error) {
	defer rows.Close()

	entries := []domain.ChatEntry{}
	for rows.Next() {
		var (
			e    domain.ChatEntry
			kind string
		)
		err := rows.Scan(&e.ID, &e.Content, &kind, &e.CreatedAt, &e.Sender.ID, &e.Sender.Name, &e.Sender.Email)
		if err != nil {
			return nil, err
		}
		k, ok := domain.ParseEntryKind(kind)
		if !ok {
			return nil, fmt.Errorf("entry %d: unknown type %q", e.ID, kind)
		}
		e.Kind = k
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
