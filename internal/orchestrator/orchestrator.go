// Package orchestrator selects sampling parameters per task type, issues
// completion requests, and recovers structured data from free-form model
// output with a bounded retry budget.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
	"go.uber.org/zap"

	"github.com/rcliao/study-coach/internal/llm"
	"github.com/rcliao/study-coach/internal/pipeline"
)

// Sampling temperatures per task type. The nucleus parameter is fixed.
// Explicit per-request overrides take precedence.
const (
	TempFactual  = 0.3
	TempCreative = 0.7
	TempDefault  = 0.5
	FixedTopP    = 0.95
)

// DefaultMaxTokens caps completions when the request does not.
const DefaultMaxTokens = 2000

// DefaultRetries bounds both transport retries and parse re-requests.
const DefaultRetries = 1

// Temperature maps a task type to its sampling temperature. The table is
// exhaustive over ValidTaskTypes; adding a task type is a schema change.
func Temperature(t pipeline.TaskType) float64 {
	switch t {
	case pipeline.TaskFactual:
		return TempFactual
	case pipeline.TaskCreative:
		return TempCreative
	default:
		return TempDefault
	}
}

// ParseError reports that model output was not schema-conforming after all
// extraction stages. Raw carries the model text so callers can degrade to
// unstructured output instead of failing the interaction.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("structured extraction failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Result is a completed task: raw model text plus, when a schema was
// supplied and extraction succeeded, the structured JSON value.
type Result struct {
	Text       string          `json:"text"`
	Structured json.RawMessage `json:"structured,omitempty"`
	Retries    int             `json:"retries"` // re-requests consumed
}

// Orchestrator executes task requests against a completion client.
// It mutates nothing beyond the outbound requests.
type Orchestrator struct {
	client  llm.Client
	retries int
	log     *zap.Logger
}

// New builds an orchestrator. retries < 0 selects DefaultRetries.
func New(client llm.Client, retries int, log *zap.Logger) *Orchestrator {
	if retries < 0 {
		retries = DefaultRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{client: client, retries: retries, log: log}
}

// Params resolves the sampling parameters for a request.
func Params(req pipeline.Request) (temp, topP float64) {
	temp = Temperature(req.Type)
	if req.Temp > 0 {
		temp = req.Temp
	}
	topP = FixedTopP
	if req.TopP > 0 {
		topP = req.TopP
	}
	return temp, topP
}

// Execute issues one completion for the assembled prompt. When the request
// carries a schema, structured extraction runs; exhausting the retry budget
// yields a *ParseError with the raw text attached. Transport failures are
// retried up to the same bounded budget, then surfaced.
func (o *Orchestrator) Execute(ctx context.Context, req pipeline.Request, prompt string) (*Result, error) {
	temp, topP := Params(req)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	raw, err := o.complete(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: temp,
		TopP:        topP,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}

	if req.Schema == "" {
		return &Result{Text: raw}, nil
	}

	if structured, ok := extractJSON(raw); ok {
		return &Result{Text: raw, Structured: structured}, nil
	}

	// Re-request demanding structured output, against the retry budget.
	retries := 0
	lastRaw := raw
	for retries < o.retries {
		retries++
		o.log.Debug("structured extraction failed, re-requesting",
			zap.Int("attempt", retries))
		again, err := o.complete(ctx, llm.Request{
			Prompt: prompt + "\n\nYour previous answer was not valid JSON. " +
				"Respond with ONLY valid JSON matching the requested shape, nothing else.",
			Temperature: temp,
			TopP:        topP,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return nil, err
		}
		lastRaw = again
		if structured, ok := extractJSON(again); ok {
			return &Result{Text: again, Structured: structured, Retries: retries}, nil
		}
	}

	return nil, &ParseError{
		Raw: lastRaw,
		Err: errors.New("no parseable JSON after retry budget"),
	}
}

// complete performs the request with bounded retries on transport failure.
func (o *Orchestrator) complete(ctx context.Context, req llm.Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		raw, err := o.client.Complete(ctx, req)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !errors.Is(err, errdefs.ErrUnavailable) || ctx.Err() != nil {
			break
		}
		o.log.Warn("model request failed, retrying",
			zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return "", lastErr
}
