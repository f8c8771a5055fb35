// Package coach ties the rule matcher, conversation context, prompt
// pipeline, and model orchestrator into the dispatch engine.
package coach

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rcliao/study-coach/internal/model"
	"github.com/rcliao/study-coach/internal/orchestrator"
	"github.com/rcliao/study-coach/internal/pipeline"
	"github.com/rcliao/study-coach/internal/rules"
	"github.com/rcliao/study-coach/internal/store"
)

// FallbackReply is returned when escalation fails, so a conversation is
// never left without a reply.
const FallbackReply = "Sorry, I couldn't reach the study coach right now. Please try again in a moment."

// DefaultWindow bounds the per-conversation context, oldest turns evicted.
const DefaultWindow = 20

// Response is the outcome of one dispatched utterance.
type Response struct {
	Text      string `json:"text"`
	Escalated bool   `json:"escalated"`
	RuleID    string `json:"rule_id,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// Coach dispatches utterances: local rule reply or model escalation.
type Coach struct {
	rules  *rules.Holder
	store  store.Store
	orch   *orchestrator.Orchestrator
	window int
	log    *zap.Logger

	// Entries are never evicted; the map is bounded by the conversations
	// touched in one process lifetime.
	mu    sync.Mutex
	convs map[string]*sync.Mutex // per-conversation serialization
}

// New builds a coach. window <= 0 selects DefaultWindow.
func New(h *rules.Holder, st store.Store, orch *orchestrator.Orchestrator, window int, log *zap.Logger) *Coach {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coach{
		rules:  h,
		store:  st,
		orch:   orch,
		window: window,
		log:    log,
		convs:  map[string]*sync.Mutex{},
	}
}

// lockConv serializes operations on one conversation. The lock is never
// held across a model call.
func (c *Coach) lockConv(id string) func() {
	c.mu.Lock()
	l, ok := c.convs[id]
	if !ok {
		l = &sync.Mutex{}
		c.convs[id] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Dispatch evaluates the utterance against the rule base and either
// answers directly or escalates to the model path. Turns are appended to
// the context only after a response is produced, so a failed completion
// never pollutes history.
func (c *Coach) Dispatch(ctx context.Context, conversationID, utterance string) (*Response, error) {
	res := c.rules.Current().Match(utterance)

	if res.Matched && res.Rule.Action.Kind == rules.ActionReply {
		reply := res.Rule.Action.Template
		if err := c.appendTurns(ctx, conversationID, utterance, reply); err != nil {
			return nil, err
		}
		c.log.Debug("rule matched",
			zap.String("conversation_id", conversationID), zap.String("rule_id", res.Rule.ID))
		return &Response{Text: reply, RuleID: res.Rule.ID}, nil
	}

	task := pipeline.TaskFactual
	ruleID := ""
	if res.Matched {
		task = res.Rule.Action.Task
		ruleID = res.Rule.ID
	}
	return c.escalate(ctx, conversationID, utterance, task, ruleID)
}

func (c *Coach) escalate(ctx context.Context, conversationID, utterance string,
	task pipeline.TaskType, ruleID string) (*Response, error) {

	// Read the context window under the lock, release before the model call.
	unlock := c.lockConv(conversationID)
	turns, err := c.store.RecentTurns(ctx, conversationID, c.window)
	unlock()
	if err != nil {
		return nil, err
	}

	req := pipeline.Request{Type: task, Input: utterance}
	prompt := pipeline.New(
		pipeline.ChatTemplate(),
		pipeline.WithContext(turns),
		pipeline.LengthGuard(),
	).Run(req)

	result, err := c.orch.Execute(ctx, req, prompt)
	if err != nil {
		c.log.Warn("escalation failed, degrading to fallback",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return &Response{Text: FallbackReply, Escalated: true, RuleID: ruleID, Degraded: true}, nil
	}

	if err := c.appendTurns(ctx, conversationID, utterance, result.Text); err != nil {
		return nil, err
	}
	return &Response{Text: result.Text, Escalated: true, RuleID: ruleID}, nil
}

func (c *Coach) appendTurns(ctx context.Context, conversationID, utterance, reply string) error {
	unlock := c.lockConv(conversationID)
	defer unlock()

	if err := c.store.AppendTurn(ctx, conversationID, model.Turn{Role: "user", Content: utterance}, c.window); err != nil {
		return err
	}
	return c.store.AppendTurn(ctx, conversationID, model.Turn{Role: "assistant", Content: reply}, c.window)
}

// Reload swaps in a new rule base atomically.
func (c *Coach) Reload(b *rules.Base) {
	c.rules.Swap(b)
	c.log.Info("rule base reloaded", zap.Int("rules", b.Len()))
}
