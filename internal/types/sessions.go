package types

import "time"

// DiscoverySession is the locally persisted state of one discovery interview
type DiscoverySession struct {
	ThreadID    string                 `json:"threadId"`
	Messages    []Message              `json:"messages"`
	Experiences []DiscoveredExperience `json:"discoveredExperiences"`
	Prompts     []DiscoveryPrompt      `json:"prompts"`
	Confirmed   bool                   `json:"confirmed"`
	Exchanges   int                    `json:"exchanges"`
	StartedAt   time.Time              `json:"startedAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
	LastError   *string                `json:"lastError"`
}

// DraftingSession is the locally persisted state of the drafting editor
type DraftingSession struct {
	ThreadID       string         `json:"threadId"`
	HTMLContent    string         `json:"htmlContent"`
	Suggestions    []Suggestion   `json:"suggestions"`
	Versions       []DraftVersion `json:"versions"`
	CurrentVersion string         `json:"currentVersion"`
	Approved       bool           `json:"approved"`
	StartedAt      time.Time      `json:"startedAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	LastError      *string        `json:"lastError"`
}

// ReportArtifacts groups the reports produced at export
type ReportArtifacts struct {
	ATSReport *ATSReport           `json:"atsReport,omitempty"`
	LinkedIn  *LinkedInSuggestions `json:"linkedin,omitempty"`
}

// DownloadRecord remembers a file written during export
type DownloadRecord struct {
	Format       ExportFormat `json:"format"`
	Filename     string       `json:"filename"`
	DownloadedAt time.Time    `json:"downloadedAt"`
}

// ExportSession is the locally persisted state of the export stage
type ExportSession struct {
	ThreadID        string           `json:"threadId"`
	ReportArtifacts ReportArtifacts  `json:"reportArtifacts"`
	Downloads       []DownloadRecord `json:"downloads"`
	ProgressStep    int              `json:"progressStep"`
	ExportCompleted bool             `json:"exportCompleted"`
	StartedAt       time.Time        `json:"startedAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	LastError       *string          `json:"lastError"`
}
