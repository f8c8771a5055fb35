package store

import (
	"context"
	"time"

	"github.com/rcliao/study-coach/internal/model"
)

// AppendTurn stores a conversation turn and evicts the oldest turns beyond
// the window. ULID ids give the insertion order a stable tiebreak.
func (s *SQLiteStore) AppendTurn(ctx context.Context, conversationID string, t model.Turn, window int) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.newID(), conversationID, t.Role, t.Content, t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return err
	}

	if window > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM turns WHERE conversation_id = ? AND id NOT IN (
				SELECT id FROM turns WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
			)`, conversationID, conversationID, window)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentTurns returns up to n most recent turns, oldest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, conversationID string, n int) ([]model.Turn, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM turns
			WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, conversationID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Turn
	for rows.Next() {
		var t model.Turn
		var createdAt string
		if err := rows.Scan(&t.Role, &t.Content, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
