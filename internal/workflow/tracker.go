package workflow

import (
	"context"
	"slices"
	"sync"
	"time"

	"resumeflow/internal/errors"
	"resumeflow/internal/types"

	"golang.org/x/sync/errgroup"
)

// Backend is the subset of the engine API the tracker drives.
type Backend interface {
	Status(ctx context.Context, threadID string) (*types.WorkflowState, error)
	SubmitAnswer(ctx context.Context, threadID, text string) error
	UpdateEditor(ctx context.Context, threadID, html string) error
	StartExport(ctx context.Context, threadID string) error
}

// PollRecorder receives one call per status poll.
type PollRecorder interface {
	RecordPoll(ctx context.Context, threadID string, duration time.Duration, err error)
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithTrackerLogger(logger *errors.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithPollRecorder(r PollRecorder) TrackerOption {
	return func(t *Tracker) { t.recorder = r }
}

func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithInitialState seeds the mirror, e.g. from a previous Status call.
func WithInitialState(state types.WorkflowState) TrackerOption {
	return func(t *Tracker) { t.initial = state }
}

// Tracker mirrors the engine state of one thread.
//
// A single goroutine owns the state and applies poll results and user
// mutations in arrival order, using MergeState for poll results. Published
// states are never modified afterwards; mutations replace any slice they
// change.
type Tracker struct {
	threadID string
	backend  Backend
	interval time.Duration
	logger   *errors.Logger
	recorder PollRecorder
	now      func() time.Time
	initial  types.WorkflowState

	inbox   chan any
	updates chan types.WorkflowState
	done    chan struct{}
	quit    chan struct{}

	startOnce sync.Once
	cancel    context.CancelFunc
	group     *errgroup.Group
}

type pollResult struct {
	state types.WorkflowState
}

type mutation struct {
	apply   func(*types.WorkflowState)
	applied chan struct{}
}

type snapshotRequest struct {
	reply chan types.WorkflowState
}

// NewTracker creates a tracker for threadID. Call Start to begin polling.
func NewTracker(backend Backend, threadID string, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		threadID: threadID,
		backend:  backend,
		interval: 2 * time.Second,
		logger:   errors.NewNopLogger(),
		now:      time.Now,
		initial:  types.WorkflowState{ThreadID: threadID},
		inbox:    make(chan any),
		updates:  make(chan types.WorkflowState, 1),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start launches the state owner and the poll loop. Subsequent calls are
// no-ops.
func (t *Tracker) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		ctx, t.cancel = context.WithCancel(ctx)
		t.group, ctx = errgroup.WithContext(ctx)
		t.group.Go(func() error { return t.run(ctx) })
		t.group.Go(func() error { return t.poll(ctx) })
	})
}

// Stop cancels both goroutines and waits for them.
func (t *Tracker) Stop() error {
	if t.cancel == nil {
		return nil
	}
	t.cancel()
	return t.group.Wait()
}

// Done is closed once a poll reports a terminal status.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Updates delivers the most recent state after every change. Slow readers
// only see the latest value.
func (t *Tracker) Updates() <-chan types.WorkflowState { return t.updates }

// Snapshot returns the current state.
func (t *Tracker) Snapshot(ctx context.Context) (types.WorkflowState, error) {
	req := snapshotRequest{reply: make(chan types.WorkflowState, 1)}
	if err := t.send(ctx, req); err != nil {
		return types.WorkflowState{}, err
	}
	select {
	case st := <-req.reply:
		return st, nil
	case <-ctx.Done():
		return types.WorkflowState{}, ctx.Err()
	}
}

// SubmitAnswer records the answer locally, then sends it to the engine.
func (t *Tracker) SubmitAnswer(ctx context.Context, text string) error {
	now := t.now()
	if err := t.mutate(ctx, func(s *types.WorkflowState) { applyAnswer(s, text, now) }); err != nil {
		return err
	}
	return t.backend.SubmitAnswer(ctx, t.threadID, text)
}

// UpdateResume replaces the draft HTML locally, then pushes it to the engine.
func (t *Tracker) UpdateResume(ctx context.Context, html string) error {
	if err := t.mutate(ctx, func(s *types.WorkflowState) { s.ResumeHTML = html }); err != nil {
		return err
	}
	return t.backend.UpdateEditor(ctx, t.threadID, html)
}

// ExportResume moves the local mirror to the export step and starts the
// export on the engine.
func (t *Tracker) ExportResume(ctx context.Context) error {
	err := t.mutate(ctx, func(s *types.WorkflowState) {
		s.CurrentStep = types.StepExport
		s.Status = types.StatusRunning
	})
	if err != nil {
		return err
	}
	return t.backend.StartExport(ctx, t.threadID)
}

// applyAnswer fills the last unanswered Q&A round and, during discovery,
// appends the answer as a user message.
func applyAnswer(s *types.WorkflowState, text string, now time.Time) {
	if n := len(s.QAHistory); n > 0 && s.QAHistory[n-1].Answer == "" {
		qa := slices.Clone(s.QAHistory)
		qa[n-1].Answer = text
		s.QAHistory = qa
	}
	if s.CurrentStep == types.StepDiscovery {
		msgs := make([]types.Message, 0, len(s.DiscoveryMessages)+1)
		msgs = append(msgs, s.DiscoveryMessages...)
		s.DiscoveryMessages = append(msgs, types.Message{
			Role:      types.RoleUser,
			Content:   text,
			Timestamp: now,
		})
		s.DiscoveryExchanges++
	}
	s.PendingQuestion = ""
}

func (t *Tracker) mutate(ctx context.Context, fn func(*types.WorkflowState)) error {
	m := mutation{apply: fn, applied: make(chan struct{})}
	if err := t.send(ctx, m); err != nil {
		return err
	}
	select {
	case <-m.applied:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) send(ctx context.Context, msg any) error {
	select {
	case t.inbox <- msg:
		return nil
	case <-t.quit:
		return errors.NewInternalError(errors.ErrCodeInvalidRequest, "tracker is not running", nil).
			WithContext("thread_id", t.threadID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) run(ctx context.Context) error {
	defer close(t.quit)
	state := t.initial

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-t.inbox:
			switch m := msg.(type) {
			case pollResult:
				state = MergeState(state, m.state)
				t.publish(state)
			case mutation:
				m.apply(&state)
				close(m.applied)
				t.publish(state)
			case snapshotRequest:
				m.reply <- state
			}
		}
	}
}

func (t *Tracker) publish(state types.WorkflowState) {
	select {
	case <-t.updates:
	default:
	}
	t.updates <- state
}

func (t *Tracker) poll(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if t.pollOnce(ctx) {
			close(t.done)
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// pollOnce reports whether the engine reached a terminal status.
func (t *Tracker) pollOnce(ctx context.Context) bool {
	start := time.Now()
	st, err := t.backend.Status(ctx, t.threadID)
	if t.recorder != nil {
		t.recorder.RecordPoll(ctx, t.threadID, time.Since(start), err)
	}
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("Status poll failed", "thread_id", t.threadID, "error", err.Error())
		}
		return false
	}

	select {
	case t.inbox <- pollResult{state: *st}:
	case <-ctx.Done():
		return false
	}
	return types.IsTerminalStatus(st.Status)
}
