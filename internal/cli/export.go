package cli

import (
	"fmt"

	"resumeflow/internal/common"
	"resumeflow/internal/types"
	"resumeflow/internal/wizard"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the approved resume",
	Long: `Export the approved resume: start the export, download it as PDF, DOCX,
plain text or JSON, copy its text, and read the ATS and LinkedIn reports.`,
}

var exportStartCmd = &cobra.Command{
	Use:   "start [thread-id]",
	Short: "Start the export on the engine",
	Args:  cobra.ExactArgs(1),
	RunE: withExport(func(cmd *cobra.Command, args []string, e *wizard.Export, _ types.WorkflowState) error {
		return e.Start(cmd.Context())
	}),
}

var exportDownloadCmd = &cobra.Command{
	Use:   "download [thread-id] [pdf|docx|txt|json]",
	Short: "Download the resume in a format",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 1 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		names := make([]string, 0, len(types.ExportFormats))
		for _, f := range types.ExportFormats {
			names = append(names, string(f))
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: withExport(func(cmd *cobra.Command, args []string, e *wizard.Export, state types.WorkflowState) error {
		format, err := common.ParseExportFormat(args[1])
		if err != nil {
			return err
		}
		dir := exportFlags.Dir
		if dir == "" {
			dir = getConfigFromContext(cmd.Context()).App.OutputDir
		}
		path, err := e.Download(cmd.Context(), format, dir)
		if err != nil {
			return err
		}
		if state.ExportCompleted {
			if err := e.Complete(); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	}),
}

var exportCopyTextCmd = &cobra.Command{
	Use:   "copy-text [thread-id]",
	Short: "Print the resume as plain text",
	Args:  cobra.ExactArgs(1),
	RunE: withExport(func(cmd *cobra.Command, args []string, e *wizard.Export, _ types.WorkflowState) error {
		text, err := e.CopyText(cmd.Context())
		if err != nil {
			return err
		}
		return common.NewOutputHandlerTo(cmd.OutOrStdout(), getLoggerFromContext(cmd.Context())).
			HandleText(text, outputConfig)
	}),
}

var exportReportCmd = &cobra.Command{
	Use:     "report [thread-id]",
	Short:   "Show the ATS report and LinkedIn suggestions",
	Args:    cobra.ExactArgs(1),
	PreRunE: applyOutputFormat,
	RunE: withExport(func(cmd *cobra.Command, args []string, e *wizard.Export, _ types.WorkflowState) error {
		reports, err := e.Reports(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd, reports)
	}),
}

var exportFlags struct {
	Dir string
}

func init() {
	exportDownloadCmd.Flags().StringVar(&exportFlags.Dir, "dir", "", "Directory to write the file to (default from config)")

	exportCmd.AddCommand(exportStartCmd, exportDownloadCmd, exportCopyTextCmd, exportReportCmd)
}

// withExport attaches the export session of args[0] before running fn and
// prints the export progress afterwards.
func withExport(fn func(*cobra.Command, []string, *wizard.Export, types.WorkflowState) error) func(*cobra.Command, []string) error {
	return withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
		state, err := rt.state(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch status: %w", err)
		}
		e := wizard.NewExport(rt.env, args[0], nil)
		e.Attach(state)

		if err := fn(cmd, args, e, state); err != nil {
			return err
		}
		p := e.Progress()
		fmt.Fprintf(cmd.ErrOrStderr(), "Export %s (step %d of %d)\n", progressBar(p.Percent), p.Step, p.Total)
		return nil
	})
}
