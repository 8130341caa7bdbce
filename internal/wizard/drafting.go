package wizard

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"resumeflow/internal/errors"
	"resumeflow/internal/htmltext"
	"resumeflow/internal/preferences"
	"resumeflow/internal/session"
	"resumeflow/internal/types"
)

// ResumeEditor pushes editor content to the engine. A running
// *workflow.Tracker satisfies it.
type ResumeEditor interface {
	UpdateResume(ctx context.Context, html string) error
}

// Drafting drives the drafting editor for one thread.
type Drafting struct {
	env      *Env
	threadID string
	editor   ResumeEditor
	store    *session.DraftingStore
	logger   *errors.Logger
}

// NewDrafting creates the controller. A nil editor sends updates directly
// to the engine.
func NewDrafting(env *Env, threadID string, editor ResumeEditor) *Drafting {
	return &Drafting{
		env:      env,
		threadID: threadID,
		editor:   editor,
		store:    session.NewDraftingStore(env.KV, env.sessionOptions()...),
		logger:   env.logger().With("stage", "drafting", "thread_id", threadID),
	}
}

func (d *Drafting) Store() *session.DraftingStore { return d.store }

// Load fetches the engine's drafting state and attaches it to the local
// session, creating one when none is stored.
func (d *Drafting) Load(ctx context.Context) (*types.DraftingSession, error) {
	var state *types.DraftingState
	err := d.env.track(ctx, "drafting", "load", func(ctx context.Context) error {
		var err error
		state, err = d.env.Engine.DraftingState(ctx, d.threadID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if d.store.Active() == nil {
		if stored := d.store.Lookup(d.threadID); stored != nil {
			d.store.Resume(*stored)
		} else {
			d.store.StartSession(d.threadID, session.DraftingSeed{
				HTMLContent:    state.HTMLContent,
				Suggestions:    state.Suggestions,
				Versions:       state.Versions,
				CurrentVersion: state.CurrentVersion,
			})
		}
	}
	d.store.SyncFromBackend(*state)
	return d.store.Active(), nil
}

// Session returns the active session, or nil.
func (d *Drafting) Session() *types.DraftingSession { return d.store.Active() }

// ApprovalGate reports whether the draft can be approved, with a label
// naming the exact number of unresolved suggestions.
func (d *Drafting) ApprovalGate() types.ApprovalGate {
	pending := d.store.PendingCount()
	gate := types.ApprovalGate{Enabled: d.store.CanApprove(), Pending: pending}
	switch {
	case pending == 1:
		gate.Label = "Resolve 1 pending suggestion to approve"
	case pending > 1:
		gate.Label = fmt.Sprintf("Resolve %d pending suggestions to approve", pending)
	default:
		gate.Label = "Approve draft"
	}
	return gate
}

// Versions lists the history newest first. Only versions other than the
// current one can be restored.
func (d *Drafting) Versions() []types.VersionEntry {
	s := d.store.Active()
	if s == nil {
		return nil
	}
	out := make([]types.VersionEntry, 0, len(s.Versions))
	for _, v := range s.Versions {
		current := v.Version == s.CurrentVersion
		out = append(out, types.VersionEntry{DraftVersion: v, Current: current, Restorable: !current})
	}
	slices.SortStableFunc(out, func(a, b types.VersionEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Restore switches the draft back to version.
func (d *Drafting) Restore(ctx context.Context, version string) error {
	s := d.store.Active()
	if s == nil {
		return errors.NewValidationError(errors.ErrCodeNoSession, "no drafting session is active", nil)
	}
	idx := slices.IndexFunc(s.Versions, func(v types.DraftVersion) bool { return v.Version == version })
	if idx < 0 {
		return errors.NewValidationError(errors.ErrCodeRestoreBlocked, "unknown version", nil).
			WithContext("version", version)
	}
	if version == s.CurrentVersion {
		return errors.NewValidationError(errors.ErrCodeRestoreBlocked, "version is already current", nil).
			WithContext("version", version)
	}

	err := d.env.track(ctx, "drafting", "restore", func(ctx context.Context) error {
		return d.env.Engine.RestoreVersion(ctx, d.threadID, version)
	})
	if err != nil {
		d.store.RecordError(UserMessage(err))
		return err
	}
	d.store.SetCurrentVersion(version)
	d.store.UpdateContent(s.Versions[idx].HTMLContent)
	return nil
}

func (d *Drafting) Accept(ctx context.Context, suggestionID string) error {
	return d.resolve(ctx, suggestionID, true)
}

func (d *Drafting) Decline(ctx context.Context, suggestionID string) error {
	return d.resolve(ctx, suggestionID, false)
}

func (d *Drafting) resolve(ctx context.Context, id string, accept bool) error {
	s := d.store.Active()
	if s == nil {
		return errors.NewValidationError(errors.ErrCodeNoSession, "no drafting session is active", nil)
	}
	idx := slices.IndexFunc(s.Suggestions, func(sg types.Suggestion) bool { return sg.ID == id })
	if idx < 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "unknown suggestion", nil).
			WithContext("suggestion_id", id)
	}

	op, event := "decline", preferences.EventSuggestionDeclined
	call := d.env.Engine.DeclineSuggestion
	if accept {
		op, event = "accept", preferences.EventSuggestionAccepted
		call = d.env.Engine.AcceptSuggestion
	}

	err := d.env.track(ctx, "drafting", op, func(ctx context.Context) error {
		return call(ctx, d.threadID, id)
	})
	if err != nil {
		d.store.RecordError(UserMessage(err))
		return err
	}

	if accept {
		d.store.AcceptSuggestion(id)
	} else {
		d.store.DeclineSuggestion(id)
	}
	d.env.metrics().RecordBusinessMetric(ctx, "suggestion_resolved", attribute.String("resolution", op))

	sg := s.Suggestions[idx]
	d.recordPreference(preferences.Event{
		Type:     event,
		ThreadID: d.threadID,
		Subject:  sg.Location,
		Details: map[string]string{
			"suggestion_id": sg.ID,
			"original":      sg.OriginalText,
			"proposed":      sg.ProposedText,
		},
	})
	return nil
}

// Edit sends editor content to the engine after sanitizing it.
func (d *Drafting) Edit(ctx context.Context, html string) error {
	if d.store.Active() == nil {
		return errors.NewValidationError(errors.ErrCodeNoSession, "no drafting session is active", nil)
	}
	clean := htmltext.Sanitize(html)

	err := d.env.track(ctx, "drafting", "edit", func(ctx context.Context) error {
		if d.editor != nil {
			return d.editor.UpdateResume(ctx, clean)
		}
		return d.env.Engine.UpdateEditor(ctx, d.threadID, clean)
	})
	if err != nil {
		d.store.RecordError(UserMessage(err))
		return err
	}
	d.store.UpdateContent(clean)
	d.recordPreference(preferences.Event{Type: preferences.EventManualEdit, ThreadID: d.threadID})
	return nil
}

// Save stores html as a new version and refreshes the history from the
// engine.
func (d *Drafting) Save(ctx context.Context, html string) error {
	if d.store.Active() == nil {
		return errors.NewValidationError(errors.ErrCodeNoSession, "no drafting session is active", nil)
	}
	clean := htmltext.Sanitize(html)

	var state *types.DraftingState
	err := d.env.track(ctx, "drafting", "save", func(ctx context.Context) error {
		if err := d.env.Engine.SaveDraft(ctx, d.threadID, clean); err != nil {
			return err
		}
		var err error
		state, err = d.env.Engine.DraftingState(ctx, d.threadID)
		return err
	})
	if err != nil {
		d.store.RecordError(UserMessage(err))
		return err
	}
	d.store.SyncFromBackend(*state)
	return nil
}

// Approve finalizes the draft. It is refused while suggestions are pending.
func (d *Drafting) Approve(ctx context.Context) error {
	gate := d.ApprovalGate()
	if !gate.Enabled {
		return errors.NewValidationError(errors.ErrCodeApprovalBlock, gate.Label, nil).
			WithContext("pending", gate.Pending)
	}
	err := d.env.track(ctx, "drafting", "approve", func(ctx context.Context) error {
		return d.env.Engine.ApproveDraft(ctx, d.threadID)
	})
	if err != nil {
		d.store.RecordError(UserMessage(err))
		return err
	}
	d.store.MarkApproved()
	d.logger.Info("Draft approved")
	return nil
}

func (d *Drafting) PreviewPDF(ctx context.Context) (*types.Download, error) {
	var dl *types.Download
	err := d.env.track(ctx, "drafting", "preview", func(ctx context.Context) error {
		var err error
		dl, err = d.env.Engine.PreviewPDF(ctx, d.threadID)
		return err
	})
	return dl, err
}

func (d *Drafting) DismissError() { d.store.DismissError() }

func (d *Drafting) recordPreference(ev preferences.Event) {
	if d.env.Prefs == nil {
		return
	}
	d.env.Prefs.Record(ev)
}

// View assembles the session, approval gate and history for display.
func (d *Drafting) View() (types.DraftView, error) {
	s := d.store.Active()
	if s == nil {
		return types.DraftView{}, errors.NewValidationError(errors.ErrCodeNoSession, "no drafting session is active", nil)
	}
	return types.DraftView{Session: *s, Gate: d.ApprovalGate(), Versions: d.Versions()}, nil
}
