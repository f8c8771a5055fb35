package coach

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcliao/study-coach/internal/llm"
	"github.com/rcliao/study-coach/internal/orchestrator"
	"github.com/rcliao/study-coach/internal/rules"
	"github.com/rcliao/study-coach/internal/store"
)

func newTestCoach(t *testing.T, mock *llm.Mock) (*Coach, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	orch := orchestrator.New(mock, 0, nil)
	return New(rules.NewHolder(rules.Default()), st, orch, 6, nil), st
}

func TestDispatchRuleReply(t *testing.T) {
	mock := &llm.Mock{}
	c, st := newTestCoach(t, mock)
	ctx := context.Background()

	resp, err := c.Dispatch(ctx, "conv-1", "Hello there")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.Escalated {
		t.Error("greeting must not escalate")
	}
	if resp.RuleID != "greet" {
		t.Errorf("expected greet rule, got %q", resp.RuleID)
	}
	if !strings.Contains(resp.Text, "Hi!") {
		t.Errorf("unexpected reply %q", resp.Text)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("rule reply must not call the model, got %d calls", len(mock.Calls))
	}

	turns, err := st.RecentTurns(ctx, "conv-1", 10)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("expected user+assistant turns, got %v", turns)
	}
}

func TestDispatchEscalatesOnNoMatch(t *testing.T) {
	mock := &llm.Mock{Responses: []string{"Entropy measures disorder."}}
	c, st := newTestCoach(t, mock)
	ctx := context.Background()

	resp, err := c.Dispatch(ctx, "conv-1", "explain entropy")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !resp.Escalated || resp.Degraded {
		t.Errorf("expected clean escalation: %+v", resp)
	}
	if resp.RuleID != "" {
		t.Errorf("no rule should be credited, got %q", resp.RuleID)
	}
	if resp.Text != "Entropy measures disorder." {
		t.Errorf("got %q", resp.Text)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(mock.Calls))
	}
	if mock.Calls[0].Temperature != orchestrator.TempFactual {
		t.Errorf("unmatched escalation should run factual, got temp %v", mock.Calls[0].Temperature)
	}

	turns, _ := st.RecentTurns(ctx, "conv-1", 10)
	if len(turns) != 2 {
		t.Errorf("expected both turns recorded, got %d", len(turns))
	}
}

func TestDispatchEscalationRule(t *testing.T) {
	b, err := rules.Load(strings.NewReader("brainstorm,ideas,5,escalate:creative"))
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	mock := &llm.Mock{Responses: []string{"Here are three ideas."}}
	c, _ := newTestCoach(t, mock)
	c.Reload(b)

	resp, err := c.Dispatch(context.Background(), "conv-1", "give me ideas")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !resp.Escalated || resp.RuleID != "brainstorm" {
		t.Errorf("expected rule-driven escalation: %+v", resp)
	}
	if mock.Calls[0].Temperature != orchestrator.TempCreative {
		t.Errorf("expected creative sampling, got %v", mock.Calls[0].Temperature)
	}
}

func TestDispatchDegradesWithoutPollutingHistory(t *testing.T) {
	mock := &llm.Mock{Err: context.DeadlineExceeded}
	c, st := newTestCoach(t, mock)
	ctx := context.Background()

	resp, err := c.Dispatch(ctx, "conv-1", "explain entropy")
	if err != nil {
		t.Fatalf("dispatch must not fail outright: %v", err)
	}
	if !resp.Degraded || resp.Text != FallbackReply {
		t.Errorf("expected degraded fallback: %+v", resp)
	}

	turns, _ := st.RecentTurns(ctx, "conv-1", 10)
	if len(turns) != 0 {
		t.Errorf("failed escalation must not append turns, got %d", len(turns))
	}
}

func TestDispatchUsesConversationContext(t *testing.T) {
	mock := &llm.Mock{Responses: []string{"First answer.", "Second answer."}}
	c, _ := newTestCoach(t, mock)
	ctx := context.Background()

	if _, err := c.Dispatch(ctx, "conv-1", "what is entropy"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := c.Dispatch(ctx, "conv-1", "give an example"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	second := mock.Calls[1].Prompt
	if !strings.Contains(second, "what is entropy") || !strings.Contains(second, "First answer.") {
		t.Errorf("expected prior turns in the second prompt:\n%s", second)
	}
}

func TestDispatchWindowBoundsContext(t *testing.T) {
	mock := &llm.Mock{Responses: []string{"ok"}}
	c, st := newTestCoach(t, mock) // window 6
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if _, err := c.Dispatch(ctx, "conv-1", "hello"); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	turns, err := st.RecentTurns(ctx, "conv-1", 100)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 6 {
		t.Errorf("expected context bounded to 6 turns, got %d", len(turns))
	}
}
