package dataset

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"

	"github.com/rcliao/study-coach/internal/llm"
	"github.com/rcliao/study-coach/internal/model"
	"github.com/rcliao/study-coach/internal/orchestrator"
	"github.com/rcliao/study-coach/internal/store"
)

func TestScoreEmpty(t *testing.T) {
	if got := Score(nil); got != 0 {
		t.Errorf("empty feedback: got %v, want 0", got)
	}
}

func TestScoreAllPositive(t *testing.T) {
	fb := []model.FeedbackRecord{
		{Correct: true, Helpful: true},
		{Correct: true, Helpful: true},
	}
	if got, want := Score(fb), 1.0; !closeTo(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScoreMixed(t *testing.T) {
	// 3 of 10 correct and helpful: 0.4*0.3 + 0.6*0.3.
	var fb []model.FeedbackRecord
	for i := 0; i < 10; i++ {
		fb = append(fb, model.FeedbackRecord{Correct: i < 3, Helpful: i < 3})
	}
	if got, want := Score(fb), 0.3; !closeTo(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScoreAllNegative(t *testing.T) {
	fb := []model.FeedbackRecord{
		{Correct: false, Helpful: false, DifficultyRating: 5},
		{Correct: false, Helpful: false, DifficultyRating: 5},
		{Correct: false, Helpful: false, DifficultyRating: 5},
	}
	if got := Score(fb); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestScoreMonotonicUnderPositiveFeedback(t *testing.T) {
	fb := []model.FeedbackRecord{
		{Correct: false, Helpful: false},
		{Correct: true, Helpful: false, DifficultyRating: 4},
	}
	before := Score(fb)
	fb = append(fb, model.FeedbackRecord{Correct: true, Helpful: true})
	after := Score(fb)
	if after < before {
		t.Errorf("score decreased after positive feedback: %v -> %v", before, after)
	}
}

func TestScoreMonotonicRegardlessOfRating(t *testing.T) {
	// A positive record must never lower the score, even rated hardest.
	fb := []model.FeedbackRecord{
		{Correct: true, Helpful: true},
		{Correct: true, Helpful: true},
	}
	before := Score(fb)
	fb = append(fb, model.FeedbackRecord{Correct: true, Helpful: true, DifficultyRating: 5})
	if after := Score(fb); after < before {
		t.Errorf("hard-rated positive record decreased the score: %v -> %v", before, after)
	}

	// A negative record must never raise the score, even rated easiest.
	fb = []model.FeedbackRecord{
		{Correct: false, Helpful: false, DifficultyRating: 5},
		{Correct: false, Helpful: false, DifficultyRating: 5},
	}
	before = Score(fb)
	fb = append(fb, model.FeedbackRecord{Correct: false, Helpful: false, DifficultyRating: 1})
	if after := Score(fb); after > before {
		t.Errorf("easy-rated negative record increased the score: %v -> %v", before, after)
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func newTestService(t *testing.T, mock *llm.Mock, retries int) (*Service, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	orch := orchestrator.New(mock, retries, nil)
	return New(st, orch, nil), st
}

func seedScenario(t *testing.T, st *store.SQLiteStore) (*model.StudyMaterial, *model.GeneratedItem) {
	t.Helper()
	ctx := context.Background()
	m := &model.StudyMaterial{Title: "Thermo", Content: "Entropy always increases."}
	if err := st.PutMaterial(ctx, m); err != nil {
		t.Fatalf("put material: %v", err)
	}
	item := &model.GeneratedItem{
		MaterialID: m.ID,
		Kind:       model.KindQuestion,
		Payload:    `{"question": "What does entropy do?"}`,
	}
	if err := st.InsertItem(ctx, item, "seed"); err != nil {
		t.Fatalf("insert item: %v", err)
	}
	return m, item
}

func addFeedback(t *testing.T, st *store.SQLiteStore, itemID string, n int, correct, helpful bool, rating int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := st.AddFeedback(context.Background(), &model.FeedbackRecord{
			ItemID: itemID, UserID: "u1",
			Correct: correct, Helpful: helpful, DifficultyRating: rating,
		})
		if err != nil {
			t.Fatalf("add feedback: %v", err)
		}
	}
}

func TestEvaluateQualityThresholdValidation(t *testing.T) {
	svc, _ := newTestService(t, &llm.Mock{}, 0)
	for _, th := range []float64{0, -0.1, 1.5} {
		_, err := svc.EvaluateQuality(context.Background(), "m", th)
		if !errors.Is(err, errdefs.ErrInvalidArgument) {
			t.Errorf("threshold %v: expected validation error, got %v", th, err)
		}
	}
}

func TestEvaluateQualitySkipsSparseFeedback(t *testing.T) {
	svc, st := newTestService(t, &llm.Mock{}, 0)
	m, item := seedScenario(t, st)
	addFeedback(t, st, item.ID, MinFeedbackCount-1, false, false, 0)

	report, err := svc.EvaluateQuality(context.Background(), m.ID, 0.5)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if report.Skipped != 1 || len(report.Revised)+len(report.Retired) != 0 {
		t.Errorf("expected sparse item skipped: %+v", report)
	}

	got, _ := st.GetItem(context.Background(), item.ID)
	if got.State != model.StateActive {
		t.Errorf("sparse item must stay active, got %s", got.State)
	}
}

func TestEvaluateQualityRevises(t *testing.T) {
	mock := &llm.Mock{Responses: []string{
		`{"question": "Improved: what happens to entropy in a closed system?", "topic": "entropy"}`,
	}}
	svc, st := newTestService(t, mock, 0)
	m, item := seedScenario(t, st)

	// 3 of 10 positive: score 0.3, between floor 0.25 and threshold 0.5.
	addFeedback(t, st, item.ID, 3, true, true, 0)
	addFeedback(t, st, item.ID, 7, false, false, 0)

	report, err := svc.EvaluateQuality(context.Background(), m.ID, 0.5)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(report.Revised) != 1 || report.Revised[0] != item.ID {
		t.Fatalf("expected item revised: %+v", report)
	}

	got, err := st.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.State != model.StateRevised {
		t.Errorf("expected revised state, got %s", got.State)
	}
	if got.Payload == item.Payload {
		t.Error("expected payload replaced")
	}

	changes, _ := st.ListChanges(context.Background(), item.ID)
	if len(changes) != 2 || changes[1].Action != model.ActionUpdated {
		t.Errorf("expected an updated log entry, got %+v", changes)
	}
}

func TestEvaluateQualityRetires(t *testing.T) {
	svc, st := newTestService(t, &llm.Mock{}, 0)
	m, item := seedScenario(t, st)

	// Uniformly negative with the hardest rating: score 0, at or below floor.
	addFeedback(t, st, item.ID, 10, false, false, 5)

	report, err := svc.EvaluateQuality(context.Background(), m.ID, 0.5)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(report.Retired) != 1 || report.Retired[0] != item.ID {
		t.Fatalf("expected item retired: %+v", report)
	}

	got, _ := st.GetItem(context.Background(), item.ID)
	if got.State != model.StateRetired {
		t.Errorf("expected retired state, got %s", got.State)
	}
	changes, _ := st.ListChanges(context.Background(), item.ID)
	last := changes[len(changes)-1]
	if last.Action != model.ActionRemoved {
		t.Errorf("expected removed log entry, got %s", last.Action)
	}
}

func TestEvaluateQualityIdempotent(t *testing.T) {
	mock := &llm.Mock{Responses: []string{`{"question": "improved"}`}}
	svc, st := newTestService(t, mock, 0)
	m, revItem := seedScenario(t, st)
	addFeedback(t, st, revItem.ID, 3, true, true, 0)
	addFeedback(t, st, revItem.ID, 7, false, false, 0)

	retItem := &model.GeneratedItem{
		MaterialID: m.ID, Kind: model.KindQuestion, Payload: `{"question": "bad"}`,
	}
	if err := st.InsertItem(context.Background(), retItem, "seed"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	addFeedback(t, st, retItem.ID, 5, false, false, 5)

	if _, err := svc.EvaluateQuality(context.Background(), m.ID, 0.5); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	countChanges := func() int {
		a, _ := st.ListChanges(context.Background(), revItem.ID)
		b, _ := st.ListChanges(context.Background(), retItem.ID)
		return len(a) + len(b)
	}
	before := countChanges()

	report, err := svc.EvaluateQuality(context.Background(), m.ID, 0.5)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(report.Revised)+len(report.Retired) != 0 {
		t.Errorf("second pass with unchanged feedback must be a no-op: %+v", report)
	}
	if after := countChanges(); after != before {
		t.Errorf("second pass wrote %d extra change entries", after-before)
	}
}

// cancelClient cancels the pass from inside its first completion call.
type cancelClient struct {
	cancel context.CancelFunc
}

func (c *cancelClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.cancel()
	return "", context.Canceled
}

func TestEvaluateQualityStopsBetweenItemsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &cancelClient{cancel: cancel}
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := New(st, orchestrator.New(client, 0, nil), nil)

	// Two items in the revise band; the first one's revision call cancels
	// the pass, so the second must never be touched.
	m, first := seedScenario(t, st)
	addFeedback(t, st, first.ID, 3, true, true, 0)
	addFeedback(t, st, first.ID, 7, false, false, 0)

	second := &model.GeneratedItem{
		MaterialID: m.ID, Kind: model.KindQuestion, Payload: `{"question": "second"}`,
	}
	if err := st.InsertItem(context.Background(), second, "seed"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	addFeedback(t, st, second.ID, 3, true, true, 0)
	addFeedback(t, st, second.ID, 7, false, false, 0)

	report, err := svc.EvaluateQuality(ctx, m.ID, 0.5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Revised)+len(report.Retired) != 0 {
		t.Errorf("cancelled pass must not report mutations: %+v", report)
	}

	bg := context.Background()
	for _, id := range []string{first.ID, second.ID} {
		got, err := st.GetItem(bg, id)
		if err != nil {
			t.Fatalf("get item: %v", err)
		}
		if got.State != model.StateActive {
			t.Errorf("item %s mutated by cancelled pass: %s", id, got.State)
		}
		changes, _ := st.ListChanges(bg, id)
		if len(changes) != 1 {
			t.Errorf("item %s gained change entries: %d", id, len(changes))
		}
	}
}

func TestEvaluateQualityItemFailureDoesNotAbort(t *testing.T) {
	// The model keeps answering prose, so revision fails with a parse error.
	mock := &llm.Mock{Responses: []string{"cannot produce json"}}
	svc, st := newTestService(t, mock, 0)
	m, failing := seedScenario(t, st)
	addFeedback(t, st, failing.ID, 3, true, true, 0)
	addFeedback(t, st, failing.ID, 7, false, false, 0)

	healthy := &model.GeneratedItem{
		MaterialID: m.ID, Kind: model.KindQuestion, Payload: `{"question": "fine"}`,
	}
	if err := st.InsertItem(context.Background(), healthy, "seed"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	addFeedback(t, st, healthy.ID, 5, true, true, 0)

	report, err := svc.EvaluateQuality(context.Background(), m.ID, 0.5)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", report.Failed)
	}
	if report.Total != 2 {
		t.Errorf("expected both items visited, got %d", report.Total)
	}

	got, _ := st.GetItem(context.Background(), failing.ID)
	if got.State != model.StateActive {
		t.Errorf("failed revision must leave the item untouched, got %s", got.State)
	}
}
