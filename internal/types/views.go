package types

// Views assembled by the stage controllers and rendered by the CLI.

// ResearchSummary is the read-only view of the research and gap analysis
// steps
type ResearchSummary struct {
	ThreadID        string       `json:"threadId"`
	Profile         *UserProfile `json:"profile,omitempty"`
	Job             *JobPosting  `json:"job,omitempty"`
	ProfileMarkdown string       `json:"profileMarkdown,omitempty"`
	JobMarkdown     string       `json:"jobMarkdown,omitempty"`
	Research        *Research    `json:"research,omitempty"`
	GapAnalysis     *GapAnalysis `json:"gapAnalysis,omitempty"`
	Ready           bool         `json:"ready"`
}

// PromptProgress is the "question N of M" indicator
type PromptProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ApprovalGate is the state of the approve action
type ApprovalGate struct {
	Enabled bool   `json:"enabled"`
	Pending int    `json:"pending"`
	Label   string `json:"label"`
}

// VersionEntry is one row of the version history
type VersionEntry struct {
	DraftVersion
	Current    bool `json:"current"`
	Restorable bool `json:"restorable"`
}

// DraftView is what `draft show` renders
type DraftView struct {
	Session  DraftingSession `json:"session"`
	Gate     ApprovalGate    `json:"gate"`
	Versions []VersionEntry  `json:"versions"`
}

// ExportProgress is the export progress bar
type ExportProgress struct {
	Step      int  `json:"step"`
	Total     int  `json:"total"`
	Percent   int  `json:"percent"`
	Completed bool `json:"completed"`
}

// ExportReports groups the reports shown by `export report`
type ExportReports struct {
	ThreadID  string               `json:"threadId"`
	ATSReport *ATSReport           `json:"atsReport,omitempty"`
	LinkedIn  *LinkedInSuggestions `json:"linkedin,omitempty"`
}

// SessionsOverview is the locally stored state of every stage for a thread
type SessionsOverview struct {
	ThreadID  string            `json:"threadId"`
	Discovery *DiscoverySession `json:"discovery"`
	Drafting  *DraftingSession  `json:"drafting"`
	Export    *ExportSession    `json:"export"`
}
