// Package rules implements the rule base and the matcher that decides
// whether an utterance gets a direct reply or escalates to the model path.
package rules

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/containerd/errdefs"

	"github.com/rcliao/study-coach/internal/pipeline"
)

// ActionKind discriminates the rule action union.
type ActionKind int

const (
	// ActionReply answers directly with the rule's template.
	ActionReply ActionKind = iota
	// ActionEscalate hands the utterance to the model path.
	ActionEscalate
)

// Action is what a matched rule does: a literal reply template or an
// escalation carrying a task type.
type Action struct {
	Kind     ActionKind
	Template string
	Task     pipeline.TaskType
}

// Rule binds a trigger pattern to an action. Trigger evaluation is pure.
type Rule struct {
	ID       string
	Pattern  *regexp.Regexp
	Priority int
	Action   Action
}

// Base is an immutable ordered rule collection. Reload swaps the whole
// base at once; readers never observe a partial mutation.
type Base struct {
	rules []Rule // sorted: priority desc, insertion order on ties
}

// Result is the outcome of a match.
type Result struct {
	Matched bool
	Rule    *Rule
}

// Normalize folds case and whitespace for trigger evaluation.
func Normalize(utterance string) string {
	return strings.Join(strings.Fields(strings.ToLower(utterance)), " ")
}

// Match evaluates rules in priority order (descending, ties broken by
// insertion order) against the normalized utterance. The first match wins.
// Deterministic and side-effect-free.
func (b *Base) Match(utterance string) Result {
	text := Normalize(utterance)
	for i := range b.rules {
		if b.rules[i].Pattern.MatchString(text) {
			return Result{Matched: true, Rule: &b.rules[i]}
		}
	}
	return Result{}
}

// Len reports the number of loaded rules.
func (b *Base) Len() int { return len(b.rules) }

// New builds a base from rules, validating identifier uniqueness.
func New(rs []Rule) (*Base, error) {
	seen := map[string]bool{}
	for _, r := range rs {
		if r.ID == "" {
			return nil, fmt.Errorf("rule with empty id: %w", errdefs.ErrInvalidArgument)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rule id %q: %w", r.ID, errdefs.ErrInvalidArgument)
		}
		seen[r.ID] = true
	}
	sorted := make([]Rule, len(rs))
	copy(sorted, rs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &Base{rules: sorted}, nil
}

// Load reads rules from a tabular CSV source with columns
// id,pattern,priority,action. Any malformed row fails the whole load;
// no rule is silently skipped.
func Load(r io.Reader) (*Base, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rules: %v: %w", err, errdefs.ErrInvalidArgument)
	}

	var rs []Rule
	for i, rec := range records {
		if i == 0 && rec[0] == "id" {
			continue // header row
		}
		rule, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("rules row %d: %w", i+1, err)
		}
		rs = append(rs, rule)
	}
	return New(rs)
}

func parseRow(rec []string) (Rule, error) {
	id := strings.TrimSpace(rec[0])
	if id == "" {
		return Rule{}, fmt.Errorf("empty id: %w", errdefs.ErrInvalidArgument)
	}
	pat, err := regexp.Compile(strings.TrimSpace(rec[1]))
	if err != nil {
		return Rule{}, fmt.Errorf("pattern %q: %v: %w", rec[1], err, errdefs.ErrInvalidArgument)
	}
	prio, err := strconv.Atoi(strings.TrimSpace(rec[2]))
	if err != nil {
		return Rule{}, fmt.Errorf("priority %q: %w", rec[2], errdefs.ErrInvalidArgument)
	}
	action, err := parseAction(strings.TrimSpace(rec[3]))
	if err != nil {
		return Rule{}, err
	}
	return Rule{ID: id, Pattern: pat, Priority: prio, Action: action}, nil
}

// parseAction decodes "reply:<template>" or "escalate:<task type>".
func parseAction(s string) (Action, error) {
	kind, rest, _ := strings.Cut(s, ":")
	switch kind {
	case "reply":
		if rest == "" {
			return Action{}, fmt.Errorf("reply action needs a template: %w", errdefs.ErrInvalidArgument)
		}
		return Action{Kind: ActionReply, Template: rest}, nil
	case "escalate":
		task := pipeline.TaskType(rest)
		if rest == "" {
			task = pipeline.TaskDefault
		}
		if !pipeline.ValidTaskTypes[task] {
			return Action{}, fmt.Errorf("unknown task type %q: %w", rest, errdefs.ErrInvalidArgument)
		}
		return Action{Kind: ActionEscalate, Task: task}, nil
	}
	return Action{}, fmt.Errorf("unknown action %q: %w", s, errdefs.ErrInvalidArgument)
}

// Default returns the built-in rule base used when no CSV is supplied.
func Default() *Base {
	rs := []Rule{
		{
			ID:       "greet",
			Pattern:  regexp.MustCompile(`\b(hello|hi|hey)\b`),
			Priority: 10,
			Action:   Action{Kind: ActionReply, Template: "Hi! Ask me anything about your study material."},
		},
		{
			ID:       "thanks",
			Pattern:  regexp.MustCompile(`\bthanks?\b|\bthank you\b`),
			Priority: 10,
			Action:   Action{Kind: ActionReply, Template: "You're welcome. Keep studying!"},
		},
	}
	b, _ := New(rs)
	return b
}

// Holder publishes the current base to concurrent readers and supports
// point-in-time atomic swaps on reload.
type Holder struct {
	ptr atomic.Pointer[Base]
}

// NewHolder starts with the given base.
func NewHolder(b *Base) *Holder {
	h := &Holder{}
	h.ptr.Store(b)
	return h
}

// Current returns the active base.
func (h *Holder) Current() *Base { return h.ptr.Load() }

// Swap replaces the active base atomically.
func (h *Holder) Swap(b *Base) { h.ptr.Store(b) }
