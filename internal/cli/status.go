package cli

import (
	"fmt"

	"resumeflow/internal/types"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [thread-id]",
	Short: "Show the state of a workflow",
	Long: `Show the current step, status and progress of a workflow.
With --watch the command keeps polling the engine, printing a progress line on
every change, until the workflow completes or fails. --metrics additionally
exposes Prometheus metrics while watching.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: applyOutputFormat,
	RunE:    withRuntime(runStatus),
}

var statusFlags struct {
	Watch   bool
	Metrics bool
}

func init() {
	statusCmd.Flags().BoolVarP(&statusFlags.Watch, "watch", "w", false, "Poll until the workflow reaches a terminal state")
	statusCmd.Flags().BoolVar(&statusFlags.Metrics, "metrics", false, "Serve Prometheus metrics while watching")
}

func runStatus(cmd *cobra.Command, args []string, rt *runtime) error {
	threadID := args[0]
	if !statusFlags.Watch {
		state, err := rt.state(cmd.Context(), threadID)
		if err != nil {
			return fmt.Errorf("failed to fetch status: %w", err)
		}
		return render(cmd, state)
	}

	if statusFlags.Metrics {
		if err := rt.obs.StartPrometheus(); err != nil {
			return err
		}
	}

	final, err := watchWorkflow(cmd, rt, threadID)
	if err != nil {
		return err
	}
	return render(cmd, final)
}

// watchWorkflow prints a progress line per tracker update and returns the
// last state once the workflow is terminal or the command is interrupted.
func watchWorkflow(cmd *cobra.Command, rt *runtime, threadID string) (types.WorkflowState, error) {
	ctx := cmd.Context()
	tracker := rt.env.Tracker(threadID)
	tracker.Start(ctx)
	defer func() { _ = tracker.Stop() }()

	out := cmd.ErrOrStderr()
	var last types.WorkflowState
	for {
		select {
		case st := <-tracker.Updates():
			if st.Progress != last.Progress || st.Status != last.Status || st.CurrentStep != last.CurrentStep {
				fmt.Fprintln(out, progressLine(st))
			}
			last = st
		case <-tracker.Done():
			st, err := tracker.Snapshot(ctx)
			if err != nil {
				return last, err
			}
			if st.Progress != last.Progress || st.Status != last.Status {
				fmt.Fprintln(out, progressLine(st))
			}
			return st, nil
		case <-ctx.Done():
			return last, ctx.Err()
		}
	}
}
