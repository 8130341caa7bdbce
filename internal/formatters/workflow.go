package formatters

import (
	"fmt"
	"strings"

	"resumeflow/internal/htmltext"
	"resumeflow/internal/types"
)

// writeList writes items one per line with prefix, or none when empty.
func writeList(b *strings.Builder, prefix string, items []string) {
	if len(items) == 0 {
		b.WriteString(prefix + "(none)\n")
		return
	}
	for _, it := range items {
		b.WriteString(prefix + it + "\n")
	}
}

// StartTextFormatter handles text formatting for a started workflow
type StartTextFormatter struct{}

func (f *StartTextFormatter) Format(data any) (string, error) {
	r, err := deref[types.StartResult](data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Thread: %s\nStep:   %s\nStatus: %s\n", r.ThreadID, r.CurrentStep, r.Status), nil
}

func (f *StartTextFormatter) SupportedType() string { return "StartResult" }

// StartMarkdownFormatter handles markdown formatting for a started workflow
type StartMarkdownFormatter struct{}

func (f *StartMarkdownFormatter) Format(data any) (string, error) {
	r, err := deref[types.StartResult](data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("# Optimization started\n\n**Thread:** `%s`\n\n**Step:** %s (%s)\n",
		r.ThreadID, r.CurrentStep, r.Status), nil
}

func (f *StartMarkdownFormatter) SupportedType() string { return "StartResult" }

// StatusTextFormatter handles text formatting for workflow snapshots
type StatusTextFormatter struct{}

func (f *StatusTextFormatter) Format(data any) (string, error) {
	s, err := deref[types.WorkflowState](data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("=== WORKFLOW STATUS ===\n\n")
	output.WriteString(fmt.Sprintf("Thread:   %s\n", s.ThreadID))
	output.WriteString(fmt.Sprintf("Step:     %s\n", s.CurrentStep))
	output.WriteString(fmt.Sprintf("Status:   %s\n", s.Status))
	output.WriteString(fmt.Sprintf("Progress: %d%%\n", s.Progress))
	if s.CurrentStep == types.StepDiscovery {
		output.WriteString(fmt.Sprintf("Discovery exchanges: %d\n", s.DiscoveryExchanges))
	}
	if s.PendingQuestion != "" {
		output.WriteString("\nWaiting for your answer:\n")
		output.WriteString(s.PendingQuestion)
		output.WriteString("\n")
	}
	if len(s.Errors) > 0 {
		output.WriteString("\n=== ERRORS ===\n")
		writeList(&output, "- ", s.Errors)
	}
	return output.String(), nil
}

func (f *StatusTextFormatter) SupportedType() string { return "WorkflowState" }

// StatusMarkdownFormatter handles markdown formatting for workflow snapshots
type StatusMarkdownFormatter struct{}

func (f *StatusMarkdownFormatter) Format(data any) (string, error) {
	s, err := deref[types.WorkflowState](data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("# Workflow Status\n\n")
	output.WriteString("| Field | Value |\n|---|---|\n")
	output.WriteString(fmt.Sprintf("| Thread | `%s` |\n", s.ThreadID))
	output.WriteString(fmt.Sprintf("| Step | %s |\n", s.CurrentStep))
	output.WriteString(fmt.Sprintf("| Status | %s |\n", s.Status))
	output.WriteString(fmt.Sprintf("| Progress | %d%% |\n\n", s.Progress))
	if s.PendingQuestion != "" {
		output.WriteString("## Pending question\n\n> ")
		output.WriteString(s.PendingQuestion)
		output.WriteString("\n\n")
	}
	if len(s.Errors) > 0 {
		output.WriteString("## Errors\n\n")
		writeList(&output, "- ", s.Errors)
	}
	return output.String(), nil
}

func (f *StatusMarkdownFormatter) SupportedType() string { return "WorkflowState" }

// ResearchTextFormatter handles text formatting for research summaries
type ResearchTextFormatter struct{}

func (f *ResearchTextFormatter) Format(data any) (string, error) {
	r, err := deref[types.ResearchSummary](data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("=== PROFILE ===\n\n")
	if r.Profile != nil {
		output.WriteString(fmt.Sprintf("%s - %s\n", r.Profile.Name, r.Profile.Headline))
		output.WriteString("Skills:\n")
		writeList(&output, "  - ", r.Profile.Skills)
	} else {
		output.WriteString("Not extracted yet.\n")
	}

	output.WriteString("\n=== JOB ===\n\n")
	if r.Job != nil {
		output.WriteString(fmt.Sprintf("%s at %s\n", r.Job.Title, r.Job.Company))
		output.WriteString("Requirements:\n")
		writeList(&output, "  - ", r.Job.Requirements)
	} else {
		output.WriteString("Not extracted yet.\n")
	}

	if r.Research != nil {
		output.WriteString("\n=== RESEARCH ===\n\n")
		output.WriteString(r.Research.CompanyOverview)
		output.WriteString("\nTech stack:\n")
		writeList(&output, "  - ", r.Research.TechStack)
		output.WriteString("Hiring criteria:\n")
		writeList(&output, "  - ", r.Research.HiringCriteria)
	}

	output.WriteString("\n=== GAP ANALYSIS ===\n\n")
	if r.GapAnalysis == nil {
		output.WriteString("Gap analysis is still running.\n")
		return output.String(), nil
	}
	output.WriteString(fmt.Sprintf("Match score: %d/100\n\n", r.GapAnalysis.MatchScore))
	output.WriteString("Strengths:\n")
	writeList(&output, "  - ", r.GapAnalysis.Strengths)
	output.WriteString("Gaps:\n")
	writeList(&output, "  - ", r.GapAnalysis.Gaps)
	output.WriteString("Recommendations:\n")
	writeList(&output, "  - ", r.GapAnalysis.Recommendations)
	return output.String(), nil
}

func (f *ResearchTextFormatter) SupportedType() string { return "ResearchSummary" }

// ResearchMarkdownFormatter handles markdown formatting for research summaries
type ResearchMarkdownFormatter struct{}

func (f *ResearchMarkdownFormatter) Format(data any) (string, error) {
	r, err := deref[types.ResearchSummary](data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("# Research\n\n")
	if r.ProfileMarkdown != "" {
		output.WriteString("## Profile\n\n")
		output.WriteString(r.ProfileMarkdown)
		output.WriteString("\n\n")
	} else if r.Profile != nil {
		output.WriteString(fmt.Sprintf("## Profile\n\n**%s** - %s\n\n", r.Profile.Name, r.Profile.Headline))
	}
	if r.JobMarkdown != "" {
		output.WriteString("## Job\n\n")
		output.WriteString(r.JobMarkdown)
		output.WriteString("\n\n")
	} else if r.Job != nil {
		output.WriteString(fmt.Sprintf("## Job\n\n**%s** at %s\n\n", r.Job.Title, r.Job.Company))
	}
	if r.Research != nil && r.Research.CompanyOverview != "" {
		output.WriteString("## Company\n\n")
		output.WriteString(r.Research.CompanyOverview)
		output.WriteString("\n\n")
	}

	output.WriteString("## Gap Analysis\n\n")
	if r.GapAnalysis == nil {
		output.WriteString("_Still running._\n")
		return output.String(), nil
	}
	output.WriteString(fmt.Sprintf("**Match score:** %d/100\n\n", r.GapAnalysis.MatchScore))
	output.WriteString("### Strengths\n\n")
	writeList(&output, "- ", r.GapAnalysis.Strengths)
	output.WriteString("\n### Gaps\n\n")
	writeList(&output, "- ", r.GapAnalysis.Gaps)
	output.WriteString("\n### Recommendations\n\n")
	writeList(&output, "- ", r.GapAnalysis.Recommendations)
	return output.String(), nil
}

func (f *ResearchMarkdownFormatter) SupportedType() string { return "ResearchSummary" }

// DraftTextFormatter handles text formatting for the drafting editor
type DraftTextFormatter struct{}

func (f *DraftTextFormatter) Format(data any) (string, error) {
	v, err := deref[types.DraftView](data)
	if err != nil {
		return "", err
	}
	body, err := htmltext.ToText(v.Session.HTMLContent)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("=== DRAFT ===\n\n")
	output.WriteString(body)
	output.WriteString("\n\n=== SUGGESTIONS ===\n\n")
	pending := 0
	for _, sg := range v.Session.Suggestions {
		if sg.Status != types.SuggestionPending {
			continue
		}
		pending++
		output.WriteString(fmt.Sprintf("[%s] %s\n", sg.ID, sg.Location))
		output.WriteString("   - " + sg.OriginalText + "\n")
		output.WriteString("   + " + sg.ProposedText + "\n")
		if sg.Rationale != "" {
			output.WriteString("   Why: " + sg.Rationale + "\n")
		}
		output.WriteString("\n")
	}
	if pending == 0 {
		output.WriteString("No pending suggestions.\n\n")
	}

	output.WriteString("=== VERSIONS ===\n\n")
	for _, ver := range v.Versions {
		marker := " "
		if ver.Current {
			marker = "*"
		}
		output.WriteString(fmt.Sprintf("%s %-6s %-16s %s  %s\n", marker, ver.Version, ver.Trigger,
			ver.CreatedAt.Format("2006-01-02 15:04"), ver.Description))
	}
	output.WriteString(fmt.Sprintf("\n%s\n", v.Gate.Label))
	return output.String(), nil
}

func (f *DraftTextFormatter) SupportedType() string { return "DraftView" }

// DraftMarkdownFormatter handles markdown formatting for the drafting editor
type DraftMarkdownFormatter struct{}

func (f *DraftMarkdownFormatter) Format(data any) (string, error) {
	v, err := deref[types.DraftView](data)
	if err != nil {
		return "", err
	}
	body, err := htmltext.ToMarkdown(v.Session.HTMLContent)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString(body)
	output.WriteString("\n\n---\n\n## Suggestions\n\n")
	for _, sg := range v.Session.Suggestions {
		output.WriteString(fmt.Sprintf("- **%s** `%s` (%s): ~~%s~~ → %s\n",
			sg.Location, sg.ID, sg.Status, sg.OriginalText, sg.ProposedText))
	}
	if len(v.Session.Suggestions) == 0 {
		output.WriteString("_None._\n")
	}

	output.WriteString("\n## Versions\n\n| Version | Trigger | Created | Description |\n|---|---|---|---|\n")
	for _, ver := range v.Versions {
		name := ver.Version
		if ver.Current {
			name = "**" + name + "** (current)"
		}
		output.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", name, ver.Trigger,
			ver.CreatedAt.Format("2006-01-02 15:04"), ver.Description))
	}
	output.WriteString(fmt.Sprintf("\n**%s**\n", v.Gate.Label))
	return output.String(), nil
}

func (f *DraftMarkdownFormatter) SupportedType() string { return "DraftView" }

// ReportsTextFormatter handles text formatting for export reports
type ReportsTextFormatter struct{}

func (f *ReportsTextFormatter) Format(data any) (string, error) {
	r, err := deref[types.ExportReports](data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("=== ATS REPORT ===\n\n")
	if r.ATSReport != nil {
		output.WriteString(fmt.Sprintf("Score: %d/100\n\n", r.ATSReport.Score))
		output.WriteString("Matched keywords:\n")
		writeList(&output, "  - ", r.ATSReport.MatchedKeywords)
		output.WriteString("Missing keywords:\n")
		writeList(&output, "  - ", r.ATSReport.MissingKeywords)
		output.WriteString("Recommendations:\n")
		writeList(&output, "  - ", r.ATSReport.Recommendations)
	} else {
		output.WriteString("Not available.\n")
	}

	output.WriteString("\n=== LINKEDIN ===\n\n")
	if r.LinkedIn != nil {
		output.WriteString("Headline: " + r.LinkedIn.Headline + "\n\n")
		output.WriteString("About:\n" + r.LinkedIn.About + "\n\n")
		output.WriteString("Highlights:\n")
		writeList(&output, "  - ", r.LinkedIn.Highlights)
	} else {
		output.WriteString("Not available.\n")
	}
	return output.String(), nil
}

func (f *ReportsTextFormatter) SupportedType() string { return "ExportReports" }

// ReportsMarkdownFormatter handles markdown formatting for export reports
type ReportsMarkdownFormatter struct{}

func (f *ReportsMarkdownFormatter) Format(data any) (string, error) {
	r, err := deref[types.ExportReports](data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("# Export Reports\n\n## ATS Report\n\n")
	if r.ATSReport != nil {
		output.WriteString(fmt.Sprintf("**Score:** %d/100\n\n### Missing keywords\n\n", r.ATSReport.Score))
		writeList(&output, "- ", r.ATSReport.MissingKeywords)
		output.WriteString("\n### Recommendations\n\n")
		writeList(&output, "- ", r.ATSReport.Recommendations)
	} else {
		output.WriteString("_Not available._\n")
	}
	output.WriteString("\n## LinkedIn\n\n")
	if r.LinkedIn != nil {
		output.WriteString("**Headline:** " + r.LinkedIn.Headline + "\n\n")
		output.WriteString(r.LinkedIn.About + "\n\n")
		writeList(&output, "- ", r.LinkedIn.Highlights)
	} else {
		output.WriteString("_Not available._\n")
	}
	return output.String(), nil
}

func (f *ReportsMarkdownFormatter) SupportedType() string { return "ExportReports" }

// SessionsTextFormatter handles text formatting for local session state
type SessionsTextFormatter struct{}

func (f *SessionsTextFormatter) Format(data any) (string, error) {
	o, err := deref[types.SessionsOverview](data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("=== LOCAL SESSIONS FOR %s ===\n\n", o.ThreadID))
	for _, line := range sessionLines(o) {
		output.WriteString(line + "\n")
	}
	return output.String(), nil
}

func (f *SessionsTextFormatter) SupportedType() string { return "SessionsOverview" }

// SessionsMarkdownFormatter handles markdown formatting for local session state
type SessionsMarkdownFormatter struct{}

func (f *SessionsMarkdownFormatter) Format(data any) (string, error) {
	o, err := deref[types.SessionsOverview](data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# Local sessions for `%s`\n\n", o.ThreadID))
	for _, line := range sessionLines(o) {
		output.WriteString("- " + line + "\n")
	}
	return output.String(), nil
}

func (f *SessionsMarkdownFormatter) SupportedType() string { return "SessionsOverview" }

func sessionLines(o types.SessionsOverview) []string {
	lines := make([]string, 0, 3)
	if d := o.Discovery; d != nil {
		lines = append(lines, fmt.Sprintf("discovery: %d messages, %d exchanges, confirmed=%t%s",
			len(d.Messages), d.Exchanges, d.Confirmed, lastError(d.LastError)))
	} else {
		lines = append(lines, "discovery: none")
	}
	if d := o.Drafting; d != nil {
		lines = append(lines, fmt.Sprintf("drafting: version %s of %d, %d suggestions, approved=%t%s",
			d.CurrentVersion, len(d.Versions), len(d.Suggestions), d.Approved, lastError(d.LastError)))
	} else {
		lines = append(lines, "drafting: none")
	}
	if e := o.Export; e != nil {
		lines = append(lines, fmt.Sprintf("export: step %d, %d downloads, completed=%t%s",
			e.ProgressStep, len(e.Downloads), e.ExportCompleted, lastError(e.LastError)))
	} else {
		lines = append(lines, "export: none")
	}
	return lines
}

func lastError(msg *string) string {
	if msg == nil {
		return ""
	}
	return fmt.Sprintf(" (last error: %s)", *msg)
}
