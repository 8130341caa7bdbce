package cli

import (
	"fmt"

	"resumeflow/internal/common"
	"resumeflow/internal/errors"
	"resumeflow/internal/utils"
	"resumeflow/internal/wizard"

	"github.com/spf13/cobra"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Review and edit the drafted resume",
	Long: `Review the drafted resume, resolve the engine's suggestions, edit the
HTML, manage versions and approve the draft for export.`,
}

var draftShowCmd = &cobra.Command{
	Use:     "show [thread-id]",
	Short:   "Show the draft, pending suggestions and versions",
	Args:    cobra.ExactArgs(1),
	PreRunE: applyOutputFormat,
	RunE: withDrafting(func(cmd *cobra.Command, args []string, d *wizard.Drafting) error {
		return renderDraft(cmd, d)
	}),
}

var draftAcceptCmd = &cobra.Command{
	Use:     "accept [thread-id] [suggestion-id]",
	Short:   "Accept a suggestion",
	Args:    cobra.ExactArgs(2),
	PreRunE: applyOutputFormat,
	RunE: withDrafting(func(cmd *cobra.Command, args []string, d *wizard.Drafting) error {
		if err := d.Accept(cmd.Context(), args[1]); err != nil {
			return err
		}
		return renderDraft(cmd, d)
	}),
}

var draftDeclineCmd = &cobra.Command{
	Use:     "decline [thread-id] [suggestion-id]",
	Short:   "Decline a suggestion",
	Args:    cobra.ExactArgs(2),
	PreRunE: applyOutputFormat,
	RunE: withDrafting(func(cmd *cobra.Command, args []string, d *wizard.Drafting) error {
		if err := d.Decline(cmd.Context(), args[1]); err != nil {
			return err
		}
		return renderDraft(cmd, d)
	}),
}

var draftEditCmd = &cobra.Command{
	Use:   "edit [thread-id] [html-file]",
	Short: "Replace the draft with the contents of an HTML file",
	Long: `Replace the draft with the contents of an HTML file. The markup is
sanitized before it is sent to the engine. Use save to record a version.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: applyOutputFormat,
	RunE: withDrafting(func(cmd *cobra.Command, args []string, d *wizard.Drafting) error {
		html, err := readHTMLFile(cmd, args[1])
		if err != nil {
			return err
		}
		if err := d.Edit(cmd.Context(), html); err != nil {
			return err
		}
		return renderDraft(cmd, d)
	}),
}

var draftSaveCmd = &cobra.Command{
	Use:     "save [thread-id] [html-file]",
	Short:   "Save the draft as a new version",
	Long:    "Save the draft as a new version. Without a file the current draft is saved.",
	Args:    cobra.RangeArgs(1, 2),
	PreRunE: applyOutputFormat,
	RunE: withDrafting(func(cmd *cobra.Command, args []string, d *wizard.Drafting) error {
		html := d.Session().HTMLContent
		if len(args) == 2 {
			var err error
			if html, err = readHTMLFile(cmd, args[1]); err != nil {
				return err
			}
		}
		if err := d.Save(cmd.Context(), html); err != nil {
			return err
		}
		return renderDraft(cmd, d)
	}),
}

var draftRestoreCmd = &cobra.Command{
	Use:     "restore [thread-id] [version]",
	Short:   "Restore an earlier version",
	Args:    cobra.ExactArgs(2),
	PreRunE: applyOutputFormat,
	RunE: withDrafting(func(cmd *cobra.Command, args []string, d *wizard.Drafting) error {
		if err := d.Restore(cmd.Context(), args[1]); err != nil {
			return err
		}
		return renderDraft(cmd, d)
	}),
}

var draftApproveCmd = &cobra.Command{
	Use:   "approve [thread-id]",
	Short: "Approve the draft and continue to export",
	Long:  "Approve the draft and continue to export. Every suggestion must be accepted or declined first.",
	Args:  cobra.ExactArgs(1),
	RunE: withDrafting(func(cmd *cobra.Command, args []string, d *wizard.Drafting) error {
		if err := d.Approve(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Draft approved."))
		return nil
	}),
}

var draftPreviewCmd = &cobra.Command{
	Use:   "preview [thread-id] [out.pdf]",
	Short: "Write a PDF preview of the draft",
	Args:  cobra.ExactArgs(2),
	RunE: withDrafting(func(cmd *cobra.Command, args []string, d *wizard.Drafting) error {
		dl, err := d.PreviewPDF(cmd.Context())
		if err != nil {
			return err
		}
		logger := getLoggerFromContext(cmd.Context())
		if err := common.NewFileProcessor(logger).WriteBytes(args[1], dl.Data); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), args[1])
		return nil
	}),
}

func init() {
	draftCmd.AddCommand(draftShowCmd, draftAcceptCmd, draftDeclineCmd, draftEditCmd,
		draftSaveCmd, draftRestoreCmd, draftApproveCmd, draftPreviewCmd)
}

// withDrafting loads the drafting session of args[0] before running fn. A
// load failure stops the command.
func withDrafting(fn func(*cobra.Command, []string, *wizard.Drafting) error) func(*cobra.Command, []string) error {
	return withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
		d := wizard.NewDrafting(rt.env, args[0], nil)
		if _, err := d.Load(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load draft: %w", err)
		}
		return fn(cmd, args, d)
	})
}

func renderDraft(cmd *cobra.Command, d *wizard.Drafting) error {
	view, err := d.View()
	if err != nil {
		return err
	}
	return render(cmd, view)
}

// readHTMLFile reads an editor HTML file. Other extensions are rejected before
// the file is opened.
func readHTMLFile(cmd *cobra.Command, path string) (string, error) {
	if err := checkHTMLFile(path); err != nil {
		return "", err
	}
	return readOptionalFile(cmd, path)
}

func checkHTMLFile(path string) error {
	if !utils.IsHTMLFile(path) {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat, "draft files must be .html or .htm", nil).
			WithContext("file", path)
	}
	return nil
}
