// Package flow implements the guided voice conversations: onboarding,
// product creation, and product discovery. A Flow is a linear sequence of
// steps; each step asks one prompt and classifies the next utterance. All
// state mutation happens synchronously, one utterance at a time.
package flow

import (
	"context"
	"log"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
)

// Speaker voices prompts and feedback to the user.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// Submitter persists a flow's collected fields. Store-backed in production,
// a fake in tests.
type Submitter interface {
	Submit(ctx context.Context, fields map[string]string) error
}

// Input is one utterance delivered to the current step.
type Input struct {
	Transcript string
	Command    interpret.Command
}

type kind int

const (
	kindStay kind = iota
	kindAdvance
	kindGoto
	kindRestart
	kindComplete
)

// Directive is a step handler's verdict on an utterance.
type Directive struct {
	kind   kind
	target string
	Say    string
	Notice string
}

// Advance moves to the next step, speaking say first.
func Advance(say string) Directive { return Directive{kind: kindAdvance, Say: say} }

// Retry re-prompts the current step with a corrective message. Retries are
// bounded; exceeding the bound triggers the step's fallback when it has one.
func Retry(message string) Directive {
	return Directive{kind: kindStay, Say: message, Notice: message}
}

// Hold stays on the current step without counting against the retry bound,
// for steps that legitimately loop (browsing, contact).
func Hold(say string) Directive { return Directive{kind: kindStay, Say: say} }

// Goto jumps to the named step.
func Goto(target, say string) Directive { return Directive{kind: kindGoto, target: target, Say: say} }

// GotoNotice jumps to the named step carrying a user-facing error banner.
func GotoNotice(target, say, notice string) Directive {
	return Directive{kind: kindGoto, target: target, Say: say, Notice: notice}
}

// Restart returns to the flow's first data step, clearing every collected
// field. A full restart, not a partial edit.
func Restart(say string) Directive { return Directive{kind: kindRestart, Say: say} }

// Complete finishes the flow.
func Complete(say string) Directive { return Directive{kind: kindComplete, Say: say} }

// Step is one stop in a conversation. Ask builds the prompt, Handle
// classifies the reply. Skip marks a step redundant given what is already
// collected; Fallback fires when the retry bound is exhausted.
type Step struct {
	ID       string
	Ask      func(f *Flow) string
	Handle   func(ctx context.Context, f *Flow, in Input) Directive
	Skip     func(f *Flow) bool
	Fallback func(f *Flow) Directive
}

// maxStepRetries bounds re-prompts for a single step before its fallback
// (when present) takes over.
const maxStepRetries = 3

// Flow executes an ordered step sequence against successive utterances.
// Not safe for concurrent use; drive it from a single goroutine.
type Flow struct {
	name      string
	intro     string
	language  string
	steps     []Step
	restartTo string
	speaker   Speaker
	logger    *log.Logger

	idx     int
	fields  map[string]string
	retries map[string]int
	notice  string
	done    bool
}

func newFlow(name, intro, language, restartTo string, steps []Step, spk Speaker, logger *log.Logger) *Flow {
	return &Flow{
		name:      name,
		intro:     intro,
		language:  language,
		restartTo: restartTo,
		steps:     steps,
		speaker:   spk,
		logger:    logger,
		fields:    make(map[string]string),
		retries:   make(map[string]int),
	}
}

// Name identifies the flow ("onboarding", "product_create", "discovery").
func (f *Flow) Name() string { return f.name }

// CurrentStep returns the active step's ID, or "" once the flow is done.
func (f *Flow) CurrentStep() string {
	if f.done || f.idx >= len(f.steps) {
		return ""
	}
	return f.steps[f.idx].ID
}

// Done reports whether the flow has completed.
func (f *Flow) Done() bool { return f.done }

// Notice returns the current user-facing error banner, "" when clear.
func (f *Flow) Notice() string { return f.notice }

// Field returns one collected value.
func (f *Flow) Field(key string) string { return f.fields[key] }

// SetField records one collected value.
func (f *Flow) SetField(key, value string) { f.fields[key] = value }

// Fields returns a copy of everything collected so far.
func (f *Flow) Fields() map[string]string {
	out := make(map[string]string, len(f.fields))
	for k, v := range f.fields {
		out[k] = v
	}
	return out
}

// Begin speaks the flow's introduction and the first prompt.
func (f *Flow) Begin(ctx context.Context) {
	if f.intro != "" {
		f.speak(ctx, f.intro)
	}
	f.ask(ctx)
}

// Handle feeds one utterance to the current step and applies its verdict.
// Calling Handle on a completed flow is a no-op.
func (f *Flow) Handle(ctx context.Context, in Input) {
	if f.done || f.idx >= len(f.steps) {
		return
	}
	step := f.steps[f.idx]
	f.apply(ctx, step, step.Handle(ctx, f, in))
}

func (f *Flow) apply(ctx context.Context, step Step, d Directive) {
	switch d.kind {
	case kindStay:
		if d.Notice != "" {
			f.notice = d.Notice
			f.retries[step.ID]++
			if f.retries[step.ID] > maxStepRetries && step.Fallback != nil {
				f.retries[step.ID] = 0
				f.apply(ctx, step, step.Fallback(f))
				return
			}
		}
		f.speak(ctx, d.Say)
		f.ask(ctx)
	case kindAdvance:
		f.notice = ""
		delete(f.retries, step.ID)
		f.speak(ctx, d.Say)
		f.idx++
		f.skipRedundant()
		if f.idx >= len(f.steps) {
			f.done = true
			return
		}
		f.ask(ctx)
	case kindGoto:
		f.notice = d.Notice
		f.speak(ctx, d.Say)
		f.jump(d.target)
		f.ask(ctx)
	case kindRestart:
		f.notice = ""
		f.fields = make(map[string]string)
		f.retries = make(map[string]int)
		f.speak(ctx, d.Say)
		f.jump(f.restartTo)
		f.ask(ctx)
	case kindComplete:
		f.notice = ""
		f.speak(ctx, d.Say)
		f.done = true
	}
}

func (f *Flow) jump(stepID string) {
	for i, s := range f.steps {
		if s.ID == stepID {
			f.idx = i
			return
		}
	}
	f.logger.Printf("flow %s: unknown step %q, staying at %s", f.name, stepID, f.CurrentStep())
}

// skipRedundant moves past steps whose data is already collected, such as a
// price already extracted from the product description.
func (f *Flow) skipRedundant() {
	for f.idx < len(f.steps) {
		s := f.steps[f.idx]
		if s.Skip == nil || !s.Skip(f) {
			return
		}
		f.idx++
	}
}

func (f *Flow) ask(ctx context.Context) {
	if f.idx >= len(f.steps) {
		return
	}
	if prompt := f.steps[f.idx].Ask(f); prompt != "" {
		f.speak(ctx, prompt)
	}
}

func (f *Flow) speak(ctx context.Context, text string) {
	if text == "" || f.speaker == nil {
		return
	}
	if err := f.speaker.Speak(ctx, text, f.language); err != nil {
		f.logger.Printf("flow %s: speak: %v", f.name, err)
	}
}
