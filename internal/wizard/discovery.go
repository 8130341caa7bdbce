package wizard

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"

	"resumeflow/internal/errors"
	"resumeflow/internal/session"
	"resumeflow/internal/types"
)

// Answerer submits a discovery answer. A running *workflow.Tracker
// satisfies it and applies the answer optimistically.
type Answerer interface {
	SubmitAnswer(ctx context.Context, text string) error
}

// engineAnswerer submits straight to the engine when no tracker runs.
type engineAnswerer struct {
	engine   Engine
	threadID string
}

func (a engineAnswerer) SubmitAnswer(ctx context.Context, text string) error {
	return a.engine.SubmitAnswer(ctx, a.threadID, text)
}

// Discovery drives the discovery interview for one thread.
type Discovery struct {
	env      *Env
	threadID string
	answerer Answerer
	store    *session.DiscoveryStore
	recovery *session.Recovery[types.DiscoverySession]
	logger   *errors.Logger
}

// NewDiscovery creates the controller. A nil answerer submits directly to
// the engine.
func NewDiscovery(env *Env, threadID string, answerer Answerer) *Discovery {
	if answerer == nil {
		answerer = engineAnswerer{engine: env.Engine, threadID: threadID}
	}
	store := session.NewDiscoveryStore(env.KV, env.sessionOptions()...)
	return &Discovery{
		env:      env,
		threadID: threadID,
		answerer: answerer,
		store:    store,
		recovery: session.NewRecovery[types.DiscoverySession](store),
		logger:   env.logger().With("stage", "discovery", "thread_id", threadID),
	}
}

// Store exposes the session store, mainly for storage watching.
func (d *Discovery) Store() *session.DiscoveryStore { return d.store }

// Begin decides whether a stored interview should be offered for resuming.
// When there is nothing to resume a fresh session is started from state.
func (d *Discovery) Begin(state types.WorkflowState) session.Phase {
	phase := d.recovery.Evaluate(d.threadID)
	if phase == session.PhaseActive && d.store.Active() == nil {
		d.store.StartSession(d.threadID, session.DiscoverySeed{Prompts: state.DiscoveryPrompts})
		d.syncIfCurrent(state)
	}
	return phase
}

// Existing returns the session waiting to be resumed, if any.
func (d *Discovery) Existing() *types.DiscoverySession { return d.store.Existing() }

// Resume continues the stored interview.
func (d *Discovery) Resume(ctx context.Context) (*types.DiscoverySession, error) {
	s, err := d.recovery.Resume()
	if err != nil {
		return nil, err
	}
	d.env.metrics().RecordBusinessMetric(ctx, "session_recovered", attribute.String("stage", "discovery"))
	d.logger.Info("Resumed discovery session", "exchanges", s.Exchanges)
	return s, nil
}

// StartFresh discards the stored interview and starts an empty one.
func (d *Discovery) StartFresh(state types.WorkflowState) error {
	return d.recovery.StartFresh(func(threadID string) {
		d.store.StartSession(threadID, session.DiscoverySeed{Prompts: state.DiscoveryPrompts})
	})
}

// Session returns the active session, or nil.
func (d *Discovery) Session() *types.DiscoverySession { return d.store.Active() }

// PromptProgress reads the indicator from the interrupt payload when the
// engine provides one, and derives it from the local session otherwise.
func (d *Discovery) PromptProgress(state types.WorkflowState) types.PromptProgress {
	if len(state.InterruptPayload) > 0 {
		payload := gjson.ParseBytes(state.InterruptPayload)
		current := payload.Get("context.current_prompt_number")
		if !current.Exists() {
			current = payload.Get("context.prompt_number")
		}
		total := payload.Get("context.total_prompts")
		if current.Exists() && total.Exists() {
			return types.PromptProgress{Current: int(current.Int()), Total: int(total.Int())}
		}
	}

	s := d.store.Active()
	if s == nil {
		return types.PromptProgress{Current: 0, Total: len(state.DiscoveryPrompts)}
	}
	current := 0
	for _, m := range s.Messages {
		if m.Role == types.RoleAgent {
			current++
		}
	}
	if current == 0 {
		for _, p := range s.Prompts {
			if p.Asked {
				current++
			}
		}
	}
	return types.PromptProgress{Current: current, Total: max(len(s.Prompts), current)}
}

func (d *Discovery) CanConfirm() bool { return d.store.CanConfirm() }

// Remaining is the number of answers still needed before confirming.
func (d *Discovery) Remaining() int {
	s := d.store.Active()
	if s == nil {
		return d.store.MinExchanges()
	}
	return max(d.store.MinExchanges()-s.Exchanges, 0)
}

// Send records the answer locally and submits it. A failed submission is
// kept as the session's last error.
func (d *Discovery) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "answer cannot be empty", nil)
	}
	if d.store.Active() == nil {
		return errors.NewValidationError(errors.ErrCodeNoSession, "no discovery session is active", nil)
	}

	d.store.AddMessage(types.Message{Role: types.RoleUser, Content: text})
	d.env.metrics().RecordBusinessMetric(ctx, "discovery_exchange")

	err := d.env.track(ctx, "discovery", "send", func(ctx context.Context) error {
		return d.answerer.SubmitAnswer(ctx, text)
	})
	if err != nil {
		d.logger.LogError(err, "Failed to submit discovery answer")
		d.store.RecordError(UserMessage(err))
		return err
	}
	return nil
}

// Confirm finishes discovery. The threshold is checked again here so a
// stale prompt cannot confirm early.
func (d *Discovery) Confirm(ctx context.Context) error {
	if !d.store.CanConfirm() {
		return errors.NewValidationError(errors.ErrCodeConfirmBlocked, "more discovery answers are needed before confirming", nil).
			WithContext("remaining", d.Remaining())
	}
	err := d.env.track(ctx, "discovery", "confirm", func(ctx context.Context) error {
		return d.env.Engine.ConfirmDiscovery(ctx, d.threadID)
	})
	if err != nil {
		d.store.RecordError(UserMessage(err))
		return err
	}
	d.store.ConfirmDiscovery()
	d.logger.Info("Discovery confirmed")
	return nil
}

// Skip leaves discovery without the minimum number of answers.
func (d *Discovery) Skip(ctx context.Context) error {
	err := d.env.track(ctx, "discovery", "skip", func(ctx context.Context) error {
		return d.env.Engine.SkipDiscovery(ctx, d.threadID)
	})
	if err != nil {
		d.store.RecordError(UserMessage(err))
		return err
	}
	return nil
}

// Sync copies the engine's conversation into the local session.
func (d *Discovery) Sync(state types.WorkflowState) {
	d.syncIfCurrent(state)
}

func (d *Discovery) syncIfCurrent(state types.WorkflowState) {
	if d.store.Active() == nil {
		return
	}
	if state.DiscoveryMessages == nil && state.DiscoveryExchanges == 0 && !state.DiscoveryConfirmed {
		return
	}
	d.store.SyncFromBackend(state)
}

func (d *Discovery) DismissError() { d.store.DismissError() }
