package cli

import (
	"fmt"

	"resumeflow/internal/common"
	"resumeflow/internal/wizard"

	"github.com/spf13/cobra"
)

var researchCmd = &cobra.Command{
	Use:   "research [thread-id]",
	Short: "Show research and gap analysis",
	Long: `Show the parsed profile, job posting, company research and gap analysis
of a workflow. With --rerun the gap analysis is started again, optionally with
an edited profile (--profile) or job description (--job) in markdown.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: applyOutputFormat,
	RunE:    withRuntime(runResearch),
}

var researchFlags struct {
	Rerun   bool
	Profile string
	Job     string
}

func init() {
	researchCmd.Flags().BoolVar(&researchFlags.Rerun, "rerun", false, "Run the gap analysis again")
	researchCmd.Flags().StringVar(&researchFlags.Profile, "profile", "", "Markdown file replacing the profile for --rerun")
	researchCmd.Flags().StringVar(&researchFlags.Job, "job", "", "Markdown file replacing the job description for --rerun")
}

func runResearch(cmd *cobra.Command, args []string, rt *runtime) error {
	ctx := cmd.Context()
	threadID := args[0]
	stage := wizard.NewResearch(rt.env, threadID)

	if researchFlags.Rerun {
		profileMD, err := readOptionalFile(cmd, researchFlags.Profile)
		if err != nil {
			return err
		}
		jobMD, err := readOptionalFile(cmd, researchFlags.Job)
		if err != nil {
			return err
		}
		if err := stage.RerunGapAnalysis(ctx, profileMD, jobMD); err != nil {
			return fmt.Errorf("failed to rerun gap analysis: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), okStyle.Render("Gap analysis restarted."))
	}

	state, err := rt.state(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}
	return render(cmd, stage.Summary(state))
}

// readOptionalFile reads path with the configured size limit. An empty path
// yields an empty string.
func readOptionalFile(cmd *cobra.Command, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	contents, err := common.NewFileProcessor(logger).WithMaxFileSize(cfg.App.MaxFileSize).ValidateAndReadFiles(path)
	if err != nil {
		return "", err
	}
	return contents[0], nil
}
