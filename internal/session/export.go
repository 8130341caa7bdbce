package session

import (
	"slices"
	"time"

	"resumeflow/internal/kvstore"
	"resumeflow/internal/types"
)

// ExportStore persists export progress and downloaded files.
type ExportStore struct {
	*Store[types.ExportSession]
}

func NewExportStore(kv kvstore.Store, opts ...Option) *ExportStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	hooks := recordHooks[types.ExportSession]{
		threadID: func(s *types.ExportSession) string { return s.ThreadID },
		resumable: func(s *types.ExportSession) bool {
			return !s.ExportCompleted && (s.ProgressStep > 0 || len(s.Downloads) > 0)
		},
		touch: func(s *types.ExportSession, t time.Time) { s.UpdatedAt = t },
	}
	return &ExportStore{Store: newStore(kv, kvstore.KeyExportSessions, hooks, o)}
}

func (e *ExportStore) StartSession(threadID string, seed types.ReportArtifacts) types.ExportSession {
	now := e.now()
	return e.start(types.ExportSession{
		ThreadID:        threadID,
		ReportArtifacts: seed,
		Downloads:       []types.DownloadRecord{},
		StartedAt:       now,
		UpdatedAt:       now,
	})
}

// AdvanceProgress moves the progress step forward; it never goes back.
func (e *ExportStore) AdvanceProgress(step int) {
	e.update(func(s *types.ExportSession) {
		s.ProgressStep = max(s.ProgressStep, step)
	})
}

func (e *ExportStore) RecordDownload(format types.ExportFormat, filename string) {
	rec := types.DownloadRecord{Format: format, Filename: filename, DownloadedAt: e.now()}
	e.update(func(s *types.ExportSession) {
		s.Downloads = append(slices.Clip(s.Downloads), rec)
	})
}

func (e *ExportStore) SetReports(artifacts types.ReportArtifacts) {
	e.update(func(s *types.ExportSession) { s.ReportArtifacts = artifacts })
}

func (e *ExportStore) RecordError(msg string) {
	e.update(func(s *types.ExportSession) { s.LastError = &msg })
}

func (e *ExportStore) DismissError() {
	e.update(func(s *types.ExportSession) { s.LastError = nil })
}

func (e *ExportStore) CompleteExport() {
	e.update(func(s *types.ExportSession) { s.ExportCompleted = true })
}

// SyncFromBackend copies the report artifacts and completion flag from the
// engine's snapshot.
func (e *ExportStore) SyncFromBackend(state types.WorkflowState) {
	e.updateThread(state.ThreadID, func(s *types.ExportSession) {
		s.ReportArtifacts = types.ReportArtifacts{
			ATSReport: state.ATSReport,
			LinkedIn:  state.LinkedInSuggestions,
		}
		s.ExportCompleted = state.ExportCompleted
	})
}
