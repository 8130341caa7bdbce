package wizard

import (
	"context"
	"path/filepath"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"resumeflow/internal/common"
	"resumeflow/internal/errors"
	"resumeflow/internal/session"
	"resumeflow/internal/types"
)

// Exporter starts the export on the engine. A running *workflow.Tracker
// satisfies it.
type Exporter interface {
	ExportResume(ctx context.Context) error
}

// Export milestones recorded as progress steps.
const (
	milestoneStarted = 1
	milestoneATS     = 2
	milestoneReports = 3
	milestoneFile    = 4
)

// Export drives the export stage for one thread.
type Export struct {
	env      *Env
	threadID string
	exporter Exporter
	store    *session.ExportStore
	files    *common.FileProcessor
	logger   *errors.Logger
}

// NewExport creates the controller. A nil exporter calls the engine
// directly.
func NewExport(env *Env, threadID string, exporter Exporter) *Export {
	return &Export{
		env:      env,
		threadID: threadID,
		exporter: exporter,
		store:    session.NewExportStore(env.KV, env.sessionOptions()...),
		files:    common.NewFileProcessor(env.logger()),
		logger:   env.logger().With("stage", "export", "thread_id", threadID),
	}
}

func (e *Export) Store() *session.ExportStore { return e.store }

// Attach makes the stored export session for this thread active, or starts
// one seeded with the reports already present in state.
func (e *Export) Attach(state types.WorkflowState) *types.ExportSession {
	if e.store.Active() == nil {
		if stored := e.store.Lookup(e.threadID); stored != nil {
			e.store.Resume(*stored)
		} else {
			e.store.StartSession(e.threadID, types.ReportArtifacts{
				ATSReport: state.ATSReport,
				LinkedIn:  state.LinkedInSuggestions,
			})
		}
	}
	if state.ATSReport != nil || state.LinkedInSuggestions != nil || state.ExportCompleted {
		e.store.SyncFromBackend(state)
	}
	return e.store.Active()
}

// Session returns the active session, or nil.
func (e *Export) Session() *types.ExportSession { return e.store.Active() }

func (e *Export) Start(ctx context.Context) error {
	if err := e.requireSession(); err != nil {
		return err
	}
	err := e.env.track(ctx, "export", "start", func(ctx context.Context) error {
		if e.exporter != nil {
			return e.exporter.ExportResume(ctx)
		}
		return e.env.Engine.StartExport(ctx, e.threadID)
	})
	if err != nil {
		e.store.RecordError(UserMessage(err))
		return err
	}
	e.advance(milestoneStarted)
	return nil
}

// Download fetches the resume in format and writes it into dir. It returns
// the written path.
func (e *Export) Download(ctx context.Context, format types.ExportFormat, dir string) (string, error) {
	if err := e.requireSession(); err != nil {
		return "", err
	}
	if !slices.Contains(types.ExportFormats, format) {
		return "", errors.NewValidationError(errors.ErrCodeInvalidFormat, "unsupported export format", nil).
			WithContext("format", string(format))
	}

	var path string
	err := e.env.track(ctx, "export", "download", func(ctx context.Context) error {
		dl, err := e.env.Engine.Download(ctx, e.threadID, format)
		if err != nil {
			return err
		}
		path = filepath.Join(dir, dl.Filename)
		return e.files.WriteBytes(path, dl.Data)
	})
	if err != nil {
		e.store.RecordError(UserMessage(err))
		return "", err
	}

	e.store.RecordDownload(format, filepath.Base(path))
	e.advance(milestoneFile)
	e.env.metrics().RecordBusinessMetric(ctx, "download", attribute.String("format", string(format)))
	e.logger.Info("Resume downloaded", "format", format, "path", path)
	return path, nil
}

// CopyText returns the plain-text rendering of the final resume.
func (e *Export) CopyText(ctx context.Context) (string, error) {
	var text string
	err := e.env.track(ctx, "export", "copy_text", func(ctx context.Context) error {
		var err error
		text, err = e.env.Engine.CopyText(ctx, e.threadID)
		return err
	})
	if err != nil && e.store.Active() != nil {
		e.store.RecordError(UserMessage(err))
	}
	return text, err
}

// Reports fetches the ATS report and LinkedIn suggestions concurrently and
// stores them on the session.
func (e *Export) Reports(ctx context.Context) (types.ExportReports, error) {
	if err := e.requireSession(); err != nil {
		return types.ExportReports{}, err
	}

	var artifacts types.ReportArtifacts
	err := e.env.track(ctx, "export", "reports", func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			ats, err := e.env.Engine.ATSReport(ctx, e.threadID)
			artifacts.ATSReport = ats
			return err
		})
		g.Go(func() error {
			li, err := e.env.Engine.LinkedIn(ctx, e.threadID)
			artifacts.LinkedIn = li
			return err
		})
		return g.Wait()
	})
	if err != nil {
		e.store.RecordError(UserMessage(err))
		return types.ExportReports{}, err
	}

	e.store.SetReports(artifacts)
	e.advance(milestoneATS)
	e.advance(milestoneReports)
	return types.ExportReports{ThreadID: e.threadID, ATSReport: artifacts.ATSReport, LinkedIn: artifacts.LinkedIn}, nil
}

// Complete marks the export finished and fills the progress bar.
func (e *Export) Complete() error {
	if err := e.requireSession(); err != nil {
		return err
	}
	e.store.CompleteExport()
	e.store.AdvanceProgress(e.env.policy().ExportProgressSteps)
	return nil
}

// Progress reports the progress bar against the configured step count.
func (e *Export) Progress() types.ExportProgress {
	total := e.env.policy().ExportProgressSteps
	s := e.store.Active()
	if s == nil {
		return types.ExportProgress{Total: total}
	}
	step := min(s.ProgressStep, total)
	if s.ExportCompleted {
		step = total
	}
	return types.ExportProgress{
		Step:      step,
		Total:     total,
		Percent:   step * 100 / total,
		Completed: s.ExportCompleted,
	}
}

func (e *Export) DismissError() { e.store.DismissError() }

func (e *Export) advance(milestone int) {
	e.store.AdvanceProgress(min(milestone, e.env.policy().ExportProgressSteps))
}

func (e *Export) requireSession() error {
	if e.store.Active() == nil {
		return errors.NewValidationError(errors.ErrCodeNoSession, "no export session is active", nil)
	}
	return nil
}
