package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
	"go.uber.org/zap"

	"github.com/rcliao/study-coach/internal/excerpt"
	"github.com/rcliao/study-coach/internal/model"
	"github.com/rcliao/study-coach/internal/orchestrator"
	"github.com/rcliao/study-coach/internal/pipeline"
	"github.com/rcliao/study-coach/internal/store"
)

// Quality score weights. The score depends only on the correct and helpful
// fractions, so adding a positive record can never lower it and adding a
// negative record can never raise it, whatever the record's difficulty
// rating. Ratings inform revision prompts, not the score.
const (
	WeightCorrect = 0.4
	WeightHelpful = 0.6

	// MinFeedbackCount exempts items with too little evidence from scoring.
	MinFeedbackCount = 3

	// FloorRatio derives the unsalvageable floor from the revision
	// threshold: at or below threshold*FloorRatio an item is retired
	// instead of revised.
	FloorRatio = 0.5
)

// Score aggregates feedback into a quality score in [0,1].
func Score(feedback []model.FeedbackRecord) float64 {
	if len(feedback) == 0 {
		return 0
	}

	var correct, helpful int
	for _, f := range feedback {
		if f.Correct {
			correct++
		}
		if f.Helpful {
			helpful++
		}
	}

	total := float64(len(feedback))
	return WeightCorrect*float64(correct)/total +
		WeightHelpful*float64(helpful)/total
}

// Report summarizes one quality-control pass.
type Report struct {
	MaterialID string   `json:"material_id"`
	Total      int      `json:"total"`
	Revised    []string `json:"revised"`
	Retired    []string `json:"retired"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
}

// EvaluateQuality scores every item linked to a material and revises or
// retires low-quality ones. Idempotent under unchanged feedback: retired
// items are never re-evaluated, revised items only when feedback arrived
// after the revision. A failure on one item does not abort its siblings;
// the pass is cancellable between items.
func (s *Service) EvaluateQuality(ctx context.Context, materialID string, threshold float64) (*Report, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of range (0,1]: %w", threshold, errdefs.ErrInvalidArgument)
	}

	items, err := s.store.QueryItems(ctx, store.ItemFilter{MaterialID: materialID})
	if err != nil {
		return nil, err
	}

	report := &Report{MaterialID: materialID, Total: len(items)}
	floor := threshold * FloorRatio

	for i := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.evaluateItem(ctx, &items[i], threshold, floor, report); err != nil {
			report.Failed++
			s.log.Warn("quality evaluation failed for item",
				zap.String("item_id", items[i].ID), zap.Error(err))
		}
	}

	s.log.Info("quality pass complete",
		zap.String("material_id", materialID),
		zap.Int("revised", len(report.Revised)),
		zap.Int("retired", len(report.Retired)),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func (s *Service) evaluateItem(ctx context.Context, item *model.GeneratedItem,
	threshold, floor float64, report *Report) error {

	unlock := s.lockItem(item.ID)
	defer unlock()

	// Re-read under the lock so concurrent passes see committed state.
	current, err := s.store.GetItem(ctx, item.ID)
	if err != nil {
		return err
	}
	if current.State == model.StateRetired {
		report.Skipped++
		return nil
	}

	feedback, err := s.store.ListFeedback(ctx, current.ID)
	if err != nil {
		return err
	}
	if len(feedback) < MinFeedbackCount {
		report.Skipped++
		return nil
	}

	if current.State == model.StateRevised {
		lastChange, err := s.store.LastChangeAt(ctx, current.ID)
		if err != nil {
			return err
		}
		fresh := false
		for _, f := range feedback {
			if f.CreatedAt.After(lastChange) {
				fresh = true
				break
			}
		}
		if !fresh {
			report.Skipped++
			return nil
		}
	}

	score := Score(feedback)
	switch {
	case score <= floor:
		rationale := fmt.Sprintf("quality below floor (%.2f <= %.2f)", score, floor)
		if err := s.store.RetireItem(ctx, current.ID, rationale); err != nil {
			return err
		}
		report.Retired = append(report.Retired, current.ID)
	case score < threshold:
		if err := s.reviseItem(ctx, current, feedback, score); err != nil {
			return err
		}
		report.Revised = append(report.Revised, current.ID)
	default:
		report.Skipped++
	}
	return nil
}

// reviseItem asks the model for a replacement payload informed by the
// item's feedback, then commits the new document with its audit entry.
func (s *Service) reviseItem(ctx context.Context, item *model.GeneratedItem,
	feedback []model.FeedbackRecord, score float64) error {

	material, err := s.store.GetMaterial(ctx, item.MaterialID)
	if err != nil {
		return err
	}
	excerpts := excerpt.Leading(material.Content, excerptBudget/4, excerpt.DefaultOptions())

	var summaries []string
	for _, f := range feedback {
		line := fmt.Sprintf("- correct=%t helpful=%t", f.Correct, f.Helpful)
		if f.DifficultyRating > 0 {
			line += fmt.Sprintf(" difficulty=%d/5", f.DifficultyRating)
		}
		if f.Comment != "" {
			line += fmt.Sprintf(" comment=%q", f.Comment)
		}
		summaries = append(summaries, line)
	}

	req := pipeline.Request{Type: taskFor(item.Kind), Schema: revisionSchema}
	prompt := pipeline.New(
		pipeline.RevisionTemplate(item.Payload, summaries),
		pipeline.WithExcerpts(excerpts),
		pipeline.LengthGuard(),
	).Run(req)

	result, err := s.orch.Execute(ctx, req, prompt)
	if err != nil {
		var perr *orchestrator.ParseError
		if errors.As(err, &perr) {
			return fmt.Errorf("revision output unusable: %w", err)
		}
		return err
	}

	revised := *item
	revised.Payload = string(result.Structured)
	revised.State = model.StateRevised

	rationale := fmt.Sprintf("revised after quality score %.2f", score)
	return s.store.ReplaceItem(ctx, &revised, rationale)
}
