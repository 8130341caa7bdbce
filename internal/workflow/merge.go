package workflow

import (
	"resumeflow/internal/types"
)

// MergeState folds a freshly polled snapshot into the previous state.
//
// Top-level progress fields always take the new value. Data fields keep the
// previous value whenever the new snapshot leaves them out: a nil slice or
// pointer, an empty string, a zero count or a false flag. An empty (but
// present) slice replaces the previous one, except for discovery messages
// while the workflow is still in the discovery step, where an empty list is
// treated as a partial snapshot.
func MergeState(prev, next types.WorkflowState) types.WorkflowState {
	out := types.WorkflowState{
		ThreadID:         fallback(next.ThreadID, prev.ThreadID),
		CurrentStep:      next.CurrentStep,
		Status:           next.Status,
		PendingQuestion:  next.PendingQuestion,
		QARound:          next.QARound,
		Progress:         next.Progress,
		Errors:           next.Errors,
		InterruptPayload: next.InterruptPayload,

		UserProfile:           fallbackPtr(next.UserProfile, prev.UserProfile),
		JobPosting:            fallbackPtr(next.JobPosting, prev.JobPosting),
		ProfileMarkdown:       fallback(next.ProfileMarkdown, prev.ProfileMarkdown),
		JobMarkdown:           fallback(next.JobMarkdown, prev.JobMarkdown),
		Research:              fallbackPtr(next.Research, prev.Research),
		GapAnalysis:           fallbackPtr(next.GapAnalysis, prev.GapAnalysis),
		QAHistory:             fallbackSlice(next.QAHistory, prev.QAHistory),
		DiscoveryPrompts:      fallbackSlice(next.DiscoveryPrompts, prev.DiscoveryPrompts),
		DiscoveryMessages:     fallbackSlice(next.DiscoveryMessages, prev.DiscoveryMessages),
		DiscoveredExperiences: fallbackSlice(next.DiscoveredExperiences, prev.DiscoveredExperiences),
		DiscoveryConfirmed:    next.DiscoveryConfirmed || prev.DiscoveryConfirmed,
		DiscoveryExchanges:    fallback(next.DiscoveryExchanges, prev.DiscoveryExchanges),
		ResumeHTML:            fallback(next.ResumeHTML, prev.ResumeHTML),
		Suggestions:           fallbackSlice(next.Suggestions, prev.Suggestions),
		DraftVersions:         fallbackSlice(next.DraftVersions, prev.DraftVersions),
		CurrentVersion:        fallback(next.CurrentVersion, prev.CurrentVersion),
		DraftApproved:         next.DraftApproved || prev.DraftApproved,
		ATSReport:             fallbackPtr(next.ATSReport, prev.ATSReport),
		LinkedInSuggestions:   fallbackPtr(next.LinkedInSuggestions, prev.LinkedInSuggestions),
		ExportCompleted:       next.ExportCompleted || prev.ExportCompleted,
	}

	if out.CurrentStep == types.StepDiscovery && next.DiscoveryMessages != nil &&
		len(next.DiscoveryMessages) == 0 && len(prev.DiscoveryMessages) > 0 {
		out.DiscoveryMessages = prev.DiscoveryMessages
	}

	return out
}

func fallback[T comparable](next, prev T) T {
	var zero T
	if next == zero {
		return prev
	}
	return next
}

func fallbackPtr[T any](next, prev *T) *T {
	if next == nil {
		return prev
	}
	return next
}

func fallbackSlice[T any](next, prev []T) []T {
	if next == nil {
		return prev
	}
	return next
}
