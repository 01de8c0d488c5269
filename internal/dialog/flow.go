package dialog

import (
	"context"
	"time"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/ivr"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/session"
)

// Flow names, one per PBX route
const (
	FlowLogin        = "login"
	FlowRegistration = "registration"
	FlowReceipt      = "receipt"
	FlowChild        = "child"
)

// Callback is one PBX request: who is calling and the single field answered.
// Key is empty when the request carries no answer.
type Callback struct {
	CallID string
	Phone  string
	Key    string
	Value  string
}

// Step is one question of a flow.
type Step struct {
	Name string

	// Prompt builds the question. The engine prefixes validation messages.
	Prompt func(t *turn) ivr.Prompt

	// Validate checks the answer and returns the value to keep. User errors
	// are *ValidationError; anything else is treated as a system failure.
	Validate func(t *turn, value string) (string, error)

	// Sensitive answers are never kept in the session.
	Sensitive bool

	// Complete replaces the default advance to the next step.
	Complete func(t *turn, value string) (ivr.Descriptor, string, error)
}

// Flow is an ordered table of steps.
type Flow struct {
	Name string

	// NeedsCustomer flows resolve the caller's phone before the first step.
	NeedsCustomer bool

	// FailTo returns the extension a failed flow transfers to.
	FailTo func(e *Engine) string

	steps []*Step
	index map[string]int
}

func newFlow(name string, needsCustomer bool, failTo func(e *Engine) string, steps ...*Step) *Flow {
	f := &Flow{
		Name:          name,
		NeedsCustomer: needsCustomer,
		FailTo:        failTo,
		steps:         steps,
		index:         make(map[string]int, len(steps)),
	}
	for i, s := range steps {
		f.index[s.Name] = i
	}
	return f
}

// Initial is the first step's name.
func (f *Flow) Initial() string {
	return f.steps[0].Name
}

// Step looks up a step by name.
func (f *Flow) Step(name string) (*Step, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.steps[i], true
}

// After returns the step following name, or nil for the last step.
func (f *Flow) After(name string) *Step {
	i, ok := f.index[name]
	if !ok || i+1 >= len(f.steps) {
		return nil
	}
	return f.steps[i+1]
}

// turn is the context of a single callback while the session lock is held.
type turn struct {
	ctx  context.Context
	e    *Engine
	flow *Flow
	sess *session.Session
	cb   Callback
}

func (t *turn) now() time.Time {
	return t.e.now()
}

func (t *turn) field(name string) string {
	return t.sess.Fields[name]
}
