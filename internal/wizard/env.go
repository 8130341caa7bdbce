// Package wizard implements the optimization stages (research, discovery,
// drafting, export) on top of the engine client and the local session
// stores.
package wizard

import (
	"context"
	stderrors "errors"
	"fmt"

	"resumeflow/internal/config"
	"resumeflow/internal/errors"
	"resumeflow/internal/kvstore"
	"resumeflow/internal/observability"
	"resumeflow/internal/preferences"
	"resumeflow/internal/session"
	"resumeflow/internal/types"
	"resumeflow/internal/workflow"
)

// Engine is the workflow engine API the stages use. *workflow.Client
// implements it.
type Engine interface {
	workflow.Backend

	ConfirmDiscovery(ctx context.Context, threadID string) error
	SkipDiscovery(ctx context.Context, threadID string) error
	RerunGapAnalysis(ctx context.Context, threadID, profileMarkdown, jobMarkdown string) error

	DraftingState(ctx context.Context, threadID string) (*types.DraftingState, error)
	AcceptSuggestion(ctx context.Context, threadID, suggestionID string) error
	DeclineSuggestion(ctx context.Context, threadID, suggestionID string) error
	SaveDraft(ctx context.Context, threadID, html string) error
	RestoreVersion(ctx context.Context, threadID, version string) error
	ApproveDraft(ctx context.Context, threadID string) error
	PreviewPDF(ctx context.Context, threadID string) (*types.Download, error)

	Download(ctx context.Context, threadID string, format types.ExportFormat) (*types.Download, error)
	CopyText(ctx context.Context, threadID string) (string, error)
	ATSReport(ctx context.Context, threadID string) (*types.ATSReport, error)
	LinkedIn(ctx context.Context, threadID string) (*types.LinkedInSuggestions, error)
}

// Env carries everything the stages share. It is built once at startup and
// passed explicitly.
type Env struct {
	Config  *config.Config
	Logger  *errors.Logger
	Engine  Engine
	KV      kvstore.Store
	Prefs   *preferences.Store
	Metrics *observability.Metrics
}

func (e *Env) logger() *errors.Logger {
	if e.Logger == nil {
		return errors.NewNopLogger()
	}
	return e.Logger
}

func (e *Env) metrics() *observability.Metrics {
	if e.Metrics == nil {
		return &observability.Metrics{}
	}
	return e.Metrics
}

func (e *Env) policy() config.PolicyConfig {
	p := config.PolicyConfig{MinDiscoveryExchanges: 3, ExportProgressSteps: 5}
	if e.Config != nil {
		if n := e.Config.Workflow.Policy.MinDiscoveryExchanges; n > 0 {
			p.MinDiscoveryExchanges = n
		}
		if n := e.Config.Workflow.Policy.ExportProgressSteps; n > 0 {
			p.ExportProgressSteps = n
		}
	}
	return p
}

func (e *Env) sessionOptions() []session.Option {
	return []session.Option{
		session.WithLogger(e.logger()),
		session.WithMinExchanges(e.policy().MinDiscoveryExchanges),
	}
}

// Tracker creates a state tracker for threadID using the configured poll
// interval.
func (e *Env) Tracker(threadID string, opts ...workflow.TrackerOption) *workflow.Tracker {
	base := []workflow.TrackerOption{
		workflow.WithTrackerLogger(e.logger()),
		workflow.WithPollRecorder(e.metrics()),
	}
	if e.Config != nil {
		base = append(base, workflow.WithPollInterval(e.Config.Workflow.PollInterval))
	}
	return workflow.NewTracker(e.Engine, threadID, append(base, opts...)...)
}

// WatchStorage calls each reload function whenever another process rewrites
// the session file. It returns immediately when the store cannot be watched
// or watching is disabled, and otherwise blocks until ctx is done.
func (e *Env) WatchStorage(ctx context.Context, reloads ...func() bool) error {
	if e.Config != nil && !e.Config.Storage.Watch {
		return nil
	}
	w, ok := kvstore.AsWatcher(e.KV)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func() {
		for _, reload := range reloads {
			if reload() {
				e.logger().Debug("Reloaded session written by another process")
			}
		}
	})
}

// UserMessage turns an error into the text shown to the user and stored as a
// session's last error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if rl, ok := errors.AsRateLimit(err); ok {
		if rl.RetryAfter > 0 {
			return fmt.Sprintf("The optimization service is busy. Try again in %s.", rl.RetryAfter)
		}
		return "The optimization service is busy. Try again in a moment."
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.Code == errors.ErrCodeCircuitOpen {
			return "The optimization service is unavailable. Try again later."
		}
		return appErr.Message
	}
	return err.Error()
}

// track runs fn as a metered stage operation.
func (e *Env) track(ctx context.Context, stage, operation string, fn func(context.Context) error) error {
	return e.metrics().TrackStageOperation(ctx, stage, operation, fn)
}
