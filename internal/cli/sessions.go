package cli

import (
	"fmt"

	"resumeflow/internal/types"
	"resumeflow/internal/wizard"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [thread-id]",
	Short: "Show or clear the locally stored sessions of a workflow",
	Long: `Show the discovery, drafting and export sessions stored on this machine
for a workflow. With --clear they are removed; the engine keeps its own state.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: applyOutputFormat,
	RunE:    withRuntime(runSessions),
}

var sessionsFlags struct {
	Clear bool
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsFlags.Clear, "clear", false, "Remove the stored sessions")
}

func runSessions(cmd *cobra.Command, args []string, rt *runtime) error {
	threadID := args[0]
	discovery := wizard.NewDiscovery(rt.env, threadID, nil).Store()
	drafting := wizard.NewDrafting(rt.env, threadID, nil).Store()
	export := wizard.NewExport(rt.env, threadID, nil).Store()

	if sessionsFlags.Clear {
		discovery.ClearSession(threadID)
		drafting.ClearSession(threadID)
		export.ClearSession(threadID)
		getLoggerFromContext(cmd.Context()).Info("Cleared local sessions", "thread_id", threadID)
		fmt.Fprintln(cmd.ErrOrStderr(), okStyle.Render("Local sessions cleared."))
	}

	return render(cmd, types.SessionsOverview{
		ThreadID:  threadID,
		Discovery: discovery.Lookup(threadID),
		Drafting:  drafting.Lookup(threadID),
		Export:    export.Lookup(threadID),
	})
}
