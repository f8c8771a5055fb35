package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/containerd/errdefs"

	"github.com/rcliao/study-coach/internal/model"
)

// AddFeedback appends an immutable feedback record. Feedback on a RETIRED
// item is rejected with the current state attached.
func (s *SQLiteStore) AddFeedback(ctx context.Context, f *model.FeedbackRecord) error {
	if f.DifficultyRating != 0 &&
		(f.DifficultyRating < model.MinDifficultyRating || f.DifficultyRating > model.MaxDifficultyRating) {
		return fmt.Errorf("difficulty rating %d out of range [%d,%d]: %w",
			f.DifficultyRating, model.MinDifficultyRating, model.MaxDifficultyRating,
			errdefs.ErrInvalidArgument)
	}

	item, err := s.GetItem(ctx, f.ItemID)
	if err != nil {
		return err
	}
	if item.State == model.StateRetired {
		return fmt.Errorf("item %s is %s: %w", item.ID, item.State, errdefs.ErrConflict)
	}

	if f.ID == "" {
		f.ID = s.newID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	var rating *int
	if f.DifficultyRating != 0 {
		rating = &f.DifficultyRating
	}
	var comment *string
	if f.Comment != "" {
		comment = &f.Comment
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, item_id, user_id, correct, helpful, difficulty_rating, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ItemID, f.UserID, boolInt(f.Correct), boolInt(f.Helpful),
		rating, comment, f.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns feedback for an item, oldest first.
func (s *SQLiteStore) ListFeedback(ctx context.Context, itemID string) ([]model.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, user_id, correct, helpful, difficulty_rating, comment, created_at
		 FROM feedback WHERE item_id = ? ORDER BY created_at ASC, id ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FeedbackRecord
	for rows.Next() {
		var f model.FeedbackRecord
		var correct, helpful int
		var rating sql.NullInt64
		var comment sql.NullString
		var createdAt string
		if err := rows.Scan(&f.ID, &f.ItemID, &f.UserID, &correct, &helpful, &rating, &comment, &createdAt); err != nil {
			return nil, err
		}
		f.Correct = correct != 0
		f.Helpful = helpful != 0
		if rating.Valid {
			f.DifficultyRating = int(rating.Int64)
		}
		if comment.Valid {
			f.Comment = comment.String
		}
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}
