package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"resumeflow/internal/types"
)

func TestHasReplied(t *testing.T) {
	msgs := func(n int) []types.Message { return make([]types.Message, n) }
	const asked = "Tell me about a migration you led."

	tests := []struct {
		name  string
		state types.WorkflowState
		want  bool
	}{
		{
			name:  "stale poll still shows the answered question",
			state: types.WorkflowState{CurrentStep: types.StepDiscovery, PendingQuestion: asked, DiscoveryMessages: msgs(1)},
			want:  false,
		},
		{
			name:  "optimistic state without a new question",
			state: types.WorkflowState{CurrentStep: types.StepDiscovery, DiscoveryMessages: msgs(2)},
			want:  false,
		},
		{
			name:  "next question with the answer recorded",
			state: types.WorkflowState{CurrentStep: types.StepDiscovery, PendingQuestion: "What was the hardest part?", DiscoveryMessages: msgs(3)},
			want:  true,
		},
		{
			name:  "same question asked again after the answer",
			state: types.WorkflowState{CurrentStep: types.StepDiscovery, PendingQuestion: asked, DiscoveryMessages: msgs(3)},
			want:  true,
		},
		{
			name:  "new question but the answer is not in the transcript yet",
			state: types.WorkflowState{CurrentStep: types.StepDiscovery, PendingQuestion: "Other?", DiscoveryMessages: msgs(1)},
			want:  false,
		},
		{
			name:  "left discovery",
			state: types.WorkflowState{CurrentStep: types.StepDrafting},
			want:  true,
		},
		{
			name:  "failed",
			state: types.WorkflowState{CurrentStep: types.StepDiscovery, Status: types.StatusError},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasReplied(tt.state, asked, 2))
		})
	}
}
