// Package dataset manages the generated-item dataset: generation,
// adversarial examples, feedback recording, and the feedback-driven
// quality-control loop.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/containerd/errdefs"
	"go.uber.org/zap"

	"github.com/rcliao/study-coach/internal/excerpt"
	"github.com/rcliao/study-coach/internal/model"
	"github.com/rcliao/study-coach/internal/orchestrator"
	"github.com/rcliao/study-coach/internal/pipeline"
	"github.com/rcliao/study-coach/internal/store"
)

// JSON shape hints passed to the orchestrator per item kind.
const (
	questionSchema  = `[{"question": "...", "type": "multiple_choice", "options": ["A", "B", "C", "D"], "correct_answer": 0, "topic": "..."}]`
	flashcardSchema = `[{"front": "...", "back": "...", "topic": "..."}]`
	summarySchema   = `["bullet point", "bullet point"]`

	adversarialSchema = `[{"question": "...", "type": "multiple_choice", "options": ["A", "B", "C", "D"], "correct_answer": 0, "topic": "...", "adversarial_type": "misconception"}]`

	revisionSchema = `{"question": "...", "options": ["A", "B", "C", "D"], "correct_answer": 0, "topic": "...", "improvement_notes": "..."}`
)

// excerptBudget caps material content injected into generation prompts.
const excerptBudget = 8000

// Service owns generated items and their feedback lifecycle.
type Service struct {
	store store.Store
	orch  *orchestrator.Orchestrator
	log   *zap.Logger

	// Entries are never evicted; the map is bounded by the items touched
	// in one process lifetime.
	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-item serialization
}

// New builds a dataset service.
func New(st store.Store, orch *orchestrator.Orchestrator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, orch: orch, log: log, locks: map[string]*sync.Mutex{}}
}

// lockItem serializes mutations per item id. The lock is never held across
// a model or store call that does not guard the item itself.
func (s *Service) lockItem(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// taskFor maps item kinds to task types: summaries are factual, question
// and flashcard generation are creative.
func taskFor(kind model.ItemKind) pipeline.TaskType {
	if kind == model.KindSummary {
		return pipeline.TaskFactual
	}
	return pipeline.TaskCreative
}

func schemaFor(kind model.ItemKind) string {
	switch kind {
	case model.KindFlashcard:
		return flashcardSchema
	case model.KindSummary:
		return summarySchema
	default:
		return questionSchema
	}
}

// GenerateItems creates count new items for a material, distributed across
// the requested kinds, and persists each with a "created" log entry.
func (s *Service) GenerateItems(ctx context.Context, materialID string, count int,
	kinds []model.ItemKind, difficulty string, topics []string) ([]model.GeneratedItem, error) {

	if count <= 0 {
		return nil, fmt.Errorf("count must be positive: %w", errdefs.ErrInvalidArgument)
	}
	if len(kinds) == 0 {
		kinds = []model.ItemKind{model.KindQuestion}
	}
	for _, k := range kinds {
		if !model.ValidKinds[k] {
			return nil, fmt.Errorf("unknown item kind %q: %w", k, errdefs.ErrInvalidArgument)
		}
	}
	if difficulty == "" {
		difficulty = "medium"
	}
	if !model.ValidDifficulties[difficulty] {
		return nil, fmt.Errorf("unknown difficulty %q: %w", difficulty, errdefs.ErrInvalidArgument)
	}

	material, err := s.store.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	excerpts := excerpt.Leading(material.Content, excerptBudget, excerpt.DefaultOptions())

	// Distribute count across kinds; earlier kinds absorb the remainder.
	perKind := map[model.ItemKind]int{}
	for i, k := range kinds {
		perKind[k] = count / len(kinds)
		if i < count%len(kinds) {
			perKind[k]++
		}
	}

	var all []model.GeneratedItem
	for _, kind := range kinds {
		n := perKind[kind]
		if n <= 0 {
			continue
		}

		var template pipeline.Stage
		switch kind {
		case model.KindFlashcard:
			template = pipeline.FlashcardTemplate(n, topics)
		case model.KindSummary:
			template = pipeline.SummaryTemplate(n)
		default:
			template = pipeline.QuestionTemplate(n, "multiple_choice", difficulty, topics)
		}

		req := pipeline.Request{Type: taskFor(kind), Schema: schemaFor(kind)}
		prompt := pipeline.New(template, pipeline.WithExcerpts(excerpts), pipeline.LengthGuard()).Run(req)

		result, err := s.orch.Execute(ctx, req, prompt)
		if err != nil {
			return all, fmt.Errorf("generate %s items: %w", kind, err)
		}

		items, err := s.persistGenerated(ctx, material.ID, kind, difficulty, result.Structured, n,
			"automatically generated from material", false, "")
		if err != nil {
			return all, err
		}
		all = append(all, items...)
	}

	s.log.Info("generated items",
		zap.String("material_id", materialID), zap.Int("count", len(all)))
	return all, nil
}

// GenerateAdversarial creates deliberately tricky items targeting known
// misconception patterns. Additive: new items join the same lifecycle.
func (s *Service) GenerateAdversarial(ctx context.Context, materialID string, count int,
	baseOnExisting bool) ([]model.GeneratedItem, error) {

	if count <= 0 {
		return nil, fmt.Errorf("count must be positive: %w", errdefs.ErrInvalidArgument)
	}

	material, err := s.store.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	excerpts := excerpt.Leading(material.Content, excerptBudget/2, excerpt.DefaultOptions())

	var samples []string
	if baseOnExisting {
		existing, err := s.store.QueryItems(ctx, store.ItemFilter{
			MaterialID: materialID, State: model.StateActive, Limit: 5,
		})
		if err != nil {
			return nil, err
		}
		for _, it := range existing {
			if it.Kind == model.KindQuestion {
				samples = append(samples, it.Payload)
			}
		}
	}

	req := pipeline.Request{Type: pipeline.TaskCreative, Schema: adversarialSchema}
	prompt := pipeline.New(
		pipeline.AdversarialTemplate(count, samples),
		pipeline.WithExcerpts(excerpts),
		pipeline.LengthGuard(),
	).Run(req)

	result, err := s.orch.Execute(ctx, req, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate adversarial items: %w", err)
	}

	items, err := s.persistGenerated(ctx, material.ID, model.KindQuestion, "hard",
		result.Structured, count, "generated adversarial example", true, "general")
	if err != nil {
		return items, err
	}

	s.log.Info("generated adversarial items",
		zap.String("material_id", materialID), zap.Int("count", len(items)))
	return items, nil
}

// persistGenerated fans a structured JSON array out into stored items.
func (s *Service) persistGenerated(ctx context.Context, materialID string, kind model.ItemKind,
	difficulty string, structured json.RawMessage, max int, rationale string,
	adversarial bool, defaultAdvType string) ([]model.GeneratedItem, error) {

	var elements []json.RawMessage
	if err := json.Unmarshal(structured, &elements); err != nil {
		// A single object still counts as one generated item.
		elements = []json.RawMessage{structured}
	}
	if len(elements) > max {
		elements = elements[:max]
	}

	var out []model.GeneratedItem
	for _, el := range elements {
		var meta struct {
			Topic           string `json:"topic"`
			AdversarialType string `json:"adversarial_type"`
		}
		json.Unmarshal(el, &meta)

		advType := ""
		if adversarial {
			advType = meta.AdversarialType
			if advType == "" {
				advType = defaultAdvType
			}
		}

		item := model.GeneratedItem{
			MaterialID:      materialID,
			Kind:            kind,
			Payload:         string(el),
			Topic:           meta.Topic,
			Difficulty:      difficulty,
			Adversarial:     adversarial,
			AdversarialType: advType,
			State:           model.StateActive,
		}
		if err := s.store.InsertItem(ctx, &item, rationale); err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

// RecordFeedback appends one immutable feedback record for an item.
func (s *Service) RecordFeedback(ctx context.Context, itemID, userID string,
	correct, helpful bool, difficultyRating int, comment string) (string, error) {

	if userID == "" {
		return "", fmt.Errorf("user id is required: %w", errdefs.ErrInvalidArgument)
	}

	f := model.FeedbackRecord{
		ItemID:           itemID,
		UserID:           userID,
		Correct:          correct,
		Helpful:          helpful,
		DifficultyRating: difficultyRating,
		Comment:          comment,
	}
	if err := s.store.AddFeedback(ctx, &f); err != nil {
		return "", err
	}
	return f.ID, nil
}
