// Package pipeline assembles final prompts from task requests by applying
// an ordered chain of stages. It is a pure request transformation: no
// knowledge of the transport used to reach the model service.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/rcliao/study-coach/internal/model"
)

// TaskType is a closed category determining sampling parameters.
type TaskType string

const (
	TaskFactual  TaskType = "factual"
	TaskCreative TaskType = "creative"
	TaskDefault  TaskType = "default"
)

// ValidTaskTypes are the allowed task types.
var ValidTaskTypes = map[TaskType]bool{
	TaskFactual:  true,
	TaskCreative: true,
	TaskDefault:  true,
}

// Request describes one generation task on its way to the model service.
type Request struct {
	Type      TaskType
	Input     string
	Schema    string  // JSON shape hint; empty means unstructured output
	MaxLen    int     // max prompt length in chars; 0 uses DefaultMaxLen
	MaxTokens int     // completion cap; 0 uses the orchestrator default
	Temp      float64 // explicit sampling override; 0 means task-type default
	TopP      float64 // explicit nucleus override; 0 means fixed default
}

// State is what stages transform. Instruction and Schema are never
// truncated; Context entries are dropped oldest-first under length pressure.
type State struct {
	Req         Request
	Instruction string
	Context     []string
	Excerpts    []string
}

// Stage transforms the prompt state. Stages run in a fixed declared order.
type Stage func(*State)

// DefaultMaxLen bounds assembled prompts when the request does not.
const DefaultMaxLen = 12000

// Pipeline is an ordered chain of stages.
type Pipeline struct {
	stages []Stage
}

// New builds a pipeline from stages, applied in the given order.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run applies every stage and renders the final prompt string.
func (p *Pipeline) Run(req Request) string {
	st := &State{Req: req}
	for _, stage := range p.stages {
		stage(st)
	}
	return render(st)
}

func render(st *State) string {
	var b strings.Builder
	b.WriteString(st.Instruction)
	for _, c := range st.Context {
		b.WriteString("\n")
		b.WriteString(c)
	}
	for _, e := range st.Excerpts {
		b.WriteString("\n")
		b.WriteString(e)
	}
	if st.Req.Schema != "" {
		b.WriteString("\n\nRespond with JSON only, matching this shape:\n")
		b.WriteString(st.Req.Schema)
	}
	return b.String()
}

// WithContext returns a stage injecting prior conversation turns,
// oldest first.
func WithContext(turns []model.Turn) Stage {
	return func(st *State) {
		for _, t := range turns {
			st.Context = append(st.Context, fmt.Sprintf("%s: %s", t.Role, t.Content))
		}
	}
}

// WithExcerpts returns a stage injecting material excerpts.
func WithExcerpts(excerpts []string) Stage {
	return func(st *State) {
		st.Excerpts = append(st.Excerpts, excerpts...)
	}
}

// LengthGuard returns a stage enforcing the max prompt length. It drops
// oldest context first, then trailing excerpts. The instruction and the
// schema hint are never cut.
func LengthGuard() Stage {
	return func(st *State) {
		max := st.Req.MaxLen
		if max <= 0 {
			max = DefaultMaxLen
		}
		for len(render(st)) > max && len(st.Context) > 0 {
			st.Context = st.Context[1:]
		}
		for len(render(st)) > max && len(st.Excerpts) > 0 {
			st.Excerpts = st.Excerpts[:len(st.Excerpts)-1]
		}
	}
}
