package wizard

import (
	"context"

	"resumeflow/internal/types"
)

type Research struct {
	env      *Env
	threadID string
}

func NewResearch(env *Env, threadID string) *Research {
	return &Research{env: env, threadID: threadID}
}

// Summary extracts the research view from state. Ready is set once the gap
// analysis is available.
func (r *Research) Summary(state types.WorkflowState) types.ResearchSummary {
	return types.ResearchSummary{
		ThreadID:        r.threadID,
		Profile:         state.UserProfile,
		Job:             state.JobPosting,
		ProfileMarkdown: state.ProfileMarkdown,
		JobMarkdown:     state.JobMarkdown,
		Research:        state.Research,
		GapAnalysis:     state.GapAnalysis,
		Ready:           state.GapAnalysis != nil,
	}
}

// RerunGapAnalysis asks the engine to redo the analysis. Empty markdown
// keeps the engine's current copy.
func (r *Research) RerunGapAnalysis(ctx context.Context, profileMarkdown, jobMarkdown string) error {
	return r.env.track(ctx, "research", "rerun_gap_analysis", func(ctx context.Context) error {
		return r.env.Engine.RerunGapAnalysis(ctx, r.threadID, profileMarkdown, jobMarkdown)
	})
}
