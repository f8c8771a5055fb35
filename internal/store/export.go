package store

import (
	"context"

	"github.com/rcliao/study-coach/internal/model"
)

// Export is a point-in-time dump of a material's generated items with
// their feedback and audit trail.
type Export struct {
	MaterialID string                 `json:"material_id"`
	Items      []model.GeneratedItem  `json:"items"`
	Feedback   []model.FeedbackRecord `json:"feedback"`
	Changes    []model.ChangeLogEntry `json:"changes"`
}

// ExportMaterial returns all items for a material alongside their feedback
// records and change log entries.
func (s *SQLiteStore) ExportMaterial(ctx context.Context, materialID string) (*Export, error) {
	items, err := s.QueryItems(ctx, ItemFilter{MaterialID: materialID})
	if err != nil {
		return nil, err
	}

	out := &Export{MaterialID: materialID, Items: items}
	for _, item := range items {
		fb, err := s.ListFeedback(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		out.Feedback = append(out.Feedback, fb...)

		changes, err := s.ListChanges(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		out.Changes = append(out.Changes, changes...)
	}
	return out, nil
}
