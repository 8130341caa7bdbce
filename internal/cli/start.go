package cli

import (
	"context"
	"fmt"

	"resumeflow/internal/common"
	"resumeflow/internal/errors"
	"resumeflow/internal/types"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start [resume-file] [job-description-file]",
	Short: "Start a new optimization workflow",
	Long: `Start a resume optimization workflow on the engine.
The command takes the path to your resume and the path to the job description.
Either file can be replaced by a URL with --profile-url or --job-url, in which
case the engine fetches the content itself. The new thread id is printed.`,
	Args:    cobra.MaximumNArgs(2),
	PreRunE: applyOutputFormat,
	RunE:    withRuntime(runStart),
}

var startFlags struct {
	ProfileURL string
	JobURL     string
}

func init() {
	startCmd.Flags().StringVar(&startFlags.ProfileURL, "profile-url", "", "Profile URL to use instead of a resume file")
	startCmd.Flags().StringVar(&startFlags.JobURL, "job-url", "", "Job posting URL to use instead of a job description file")
}

func runStart(cmd *cobra.Command, args []string, rt *runtime) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	input, err := buildStartInput(logger, cfg.App.MaxFileSize, args, startFlags.ProfileURL, startFlags.JobURL)
	if err != nil {
		return err
	}

	logger.Info("Starting optimization workflow",
		"profile_chars", len(input.ProfileText),
		"job_chars", len(input.JobText),
		"profile_url", input.ProfileURL != "",
		"job_url", input.JobURL != "")

	err = common.RunStageCommand(cmd.Context(), cmd.OutOrStdout(), logger, outputConfig,
		func(ctx context.Context) (*types.StartResult, error) {
			return rt.client.Start(ctx, input)
		})
	if err != nil {
		return fmt.Errorf("failed to start workflow: %w", err)
	}
	return nil
}

// buildStartInput pairs positional files with URL flags. A URL flag takes
// the place of the file at the same position.
func buildStartInput(logger *errors.Logger, maxFileSize int64, files []string, profileURL, jobURL string) (types.StartInput, error) {
	in := types.StartInput{ProfileURL: profileURL, JobURL: jobURL}

	var needProfile, needJob bool
	switch {
	case profileURL == "" && jobURL == "":
		needProfile, needJob = true, true
	case profileURL == "":
		needProfile = true
	case jobURL == "":
		needJob = true
	}
	want := 0
	if needProfile {
		want++
	}
	if needJob {
		want++
	}
	if len(files) != want {
		return in, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("expected %d file argument(s), got %d", want, len(files)), nil)
	}
	if len(files) == 0 {
		return in, nil
	}

	contents, err := common.ReadInput(logger, maxFileSize, files, func(c []string) ([]string, error) { return c, nil })
	if err != nil {
		return in, err
	}
	if needProfile {
		in.ProfileText, contents = contents[0], contents[1:]
	}
	if needJob {
		in.JobText = contents[0]
	}
	return in, nil
}
