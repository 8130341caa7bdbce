package types

import (
	"encoding/json"
	"time"
)

// Workflow steps reported by the engine in current_step
const (
	StepIngest      = "ingest"
	StepResearch    = "research"
	StepGapAnalysis = "gap_analysis"
	StepDiscovery   = "discovery"
	StepQA          = "qa"
	StepDrafting    = "drafting"
	StepEditor      = "editor"
	StepExport      = "export"
	StepCompleted   = "completed"
)

// Workflow statuses reported by the engine in status
const (
	StatusPending         = "pending"
	StatusRunning         = "running"
	StatusWaitingForInput = "waiting_input"
	StatusCompleted       = "completed"
	StatusError           = "error"
)

// IsTerminalStatus reports whether polling should stop for status.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusError
}

// MessageRole identifies the author of a discovery message
type MessageRole string

const (
	RoleAgent MessageRole = "agent"
	RoleUser  MessageRole = "user"
)

// Message is one entry of the discovery conversation
type Message struct {
	Role                 MessageRole `json:"role"`
	Content              string      `json:"content"`
	Timestamp            time.Time   `json:"timestamp"`
	PromptID             string      `json:"promptId,omitempty"`
	ExperiencesExtracted []string    `json:"experiencesExtracted,omitempty"`
}

// DiscoveredExperience is an experience surfaced during the interview
type DiscoveredExperience struct {
	ID                 string    `json:"id"`
	Description        string    `json:"description"`
	SourceQuote        string    `json:"sourceQuote"`
	MappedRequirements []string  `json:"mappedRequirements"`
	DiscoveredAt       time.Time `json:"discoveredAt"`
}

// DiscoveryPrompt is a question the engine plans to ask
type DiscoveryPrompt struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	IntentTag   string   `json:"intentTag,omitempty"`
	RelatedGaps []string `json:"relatedGaps,omitempty"`
	Priority    int      `json:"priority"`
	Asked       bool     `json:"asked"`
}

// VersionTrigger describes what produced a draft version
type VersionTrigger string

const (
	TriggerInitial        VersionTrigger = "initial"
	TriggerAccept         VersionTrigger = "accept"
	TriggerDecline        VersionTrigger = "decline"
	TriggerEdit           VersionTrigger = "edit"
	TriggerManualSave     VersionTrigger = "manual_save"
	TriggerAutoCheckpoint VersionTrigger = "auto_checkpoint"
	TriggerRestore        VersionTrigger = "restore"
)

// DraftVersion is an append-only snapshot of the drafted resume
type DraftVersion struct {
	Version     string         `json:"version"`
	HTMLContent string         `json:"htmlContent"`
	Trigger     VersionTrigger `json:"trigger"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// SuggestionStatus tracks the resolution of a drafting suggestion
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionDeclined SuggestionStatus = "declined"
)

// Suggestion is an AI-proposed edit to the draft
type Suggestion struct {
	ID           string           `json:"id"`
	Location     string           `json:"location"`
	OriginalText string           `json:"originalText"`
	ProposedText string           `json:"proposedText"`
	Rationale    string           `json:"rationale"`
	Status       SuggestionStatus `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	ResolvedAt   *time.Time       `json:"resolvedAt,omitempty"`
}

// QAPair is one question/answer round of the legacy Q&A step
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// UserProfile is the candidate profile extracted by the engine
type UserProfile struct {
	Name       string   `json:"name,omitempty"`
	Headline   string   `json:"headline,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Experience []string `json:"experience,omitempty"`
	Markdown   string   `json:"markdown,omitempty"`
}

// JobPosting is the target posting extracted by the engine
type JobPosting struct {
	Title        string   `json:"title,omitempty"`
	Company      string   `json:"company,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
	Preferred    []string `json:"preferred,omitempty"`
	Markdown     string   `json:"markdown,omitempty"`
}

// Research holds company and role research
type Research struct {
	CompanyOverview string   `json:"companyOverview,omitempty"`
	Culture         []string `json:"culture,omitempty"`
	TechStack       []string `json:"techStack,omitempty"`
	SimilarProfiles []string `json:"similarProfiles,omitempty"`
	HiringCriteria  []string `json:"hiringCriteria,omitempty"`
}

// GapAnalysis compares the profile against the posting requirements
type GapAnalysis struct {
	Strengths       []string `json:"strengths,omitempty"`
	Gaps            []string `json:"gaps,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	MatchScore      int      `json:"matchScore"`
}

// ATSReport is the applicant-tracking-system compatibility report
type ATSReport struct {
	Score           int      `json:"score"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty"`
	MissingKeywords []string `json:"missingKeywords,omitempty"`
	FormattingIssue []string `json:"formattingIssues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// LinkedInSuggestions is profile copy produced at export
type LinkedInSuggestions struct {
	Headline   string   `json:"headline,omitempty"`
	About      string   `json:"about,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// WorkflowState is the in-memory mirror of the engine's status snapshot.
// Slices and pointers are nil when the engine omitted the field.
type WorkflowState struct {
	ThreadID        string   `json:"threadId"`
	CurrentStep     string   `json:"currentStep"`
	Status          string   `json:"status"`
	PendingQuestion string   `json:"pendingQuestion,omitempty"`
	QARound         int      `json:"qaRound"`
	Progress        int      `json:"progress"`
	Errors          []string `json:"errors,omitempty"`
	// InterruptPayload is kept verbatim; its shape varies per interrupt type.
	InterruptPayload json.RawMessage `json:"interruptPayload,omitempty"`

	UserProfile           *UserProfile           `json:"userProfile,omitempty"`
	JobPosting            *JobPosting            `json:"jobPosting,omitempty"`
	ProfileMarkdown       string                 `json:"profileMarkdown,omitempty"`
	JobMarkdown           string                 `json:"jobMarkdown,omitempty"`
	Research              *Research              `json:"research,omitempty"`
	GapAnalysis           *GapAnalysis           `json:"gapAnalysis,omitempty"`
	QAHistory             []QAPair               `json:"qaHistory,omitempty"`
	DiscoveryPrompts      []DiscoveryPrompt      `json:"discoveryPrompts,omitempty"`
	DiscoveryMessages     []Message              `json:"discoveryMessages,omitempty"`
	DiscoveredExperiences []DiscoveredExperience `json:"discoveredExperiences,omitempty"`
	DiscoveryConfirmed    bool                   `json:"discoveryConfirmed"`
	DiscoveryExchanges    int                    `json:"discoveryExchanges"`
	ResumeHTML            string                 `json:"resumeHtml,omitempty"`
	Suggestions           []Suggestion           `json:"suggestions,omitempty"`
	DraftVersions         []DraftVersion         `json:"draftVersions,omitempty"`
	CurrentVersion        string                 `json:"currentVersion,omitempty"`
	DraftApproved         bool                   `json:"draftApproved"`
	ATSReport             *ATSReport             `json:"atsReport,omitempty"`
	LinkedInSuggestions   *LinkedInSuggestions   `json:"linkedinSuggestions,omitempty"`
	ExportCompleted       bool                   `json:"exportCompleted"`
}

// DraftingState is the payload of GET drafting/state
type DraftingState struct {
	ThreadID       string         `json:"threadId"`
	HTMLContent    string         `json:"htmlContent"`
	Suggestions    []Suggestion   `json:"suggestions"`
	Versions       []DraftVersion `json:"versions"`
	CurrentVersion string         `json:"currentVersion"`
	Approved       bool           `json:"approved"`
}

// StartInput is the material submitted to begin a workflow
type StartInput struct {
	ProfileText string `json:"profileText,omitempty"`
	ProfileURL  string `json:"profileUrl,omitempty"`
	JobText     string `json:"jobText,omitempty"`
	JobURL      string `json:"jobUrl,omitempty"`
}

// StartResult is the engine's answer to a start request
type StartResult struct {
	ThreadID    string `json:"threadId"`
	CurrentStep string `json:"currentStep"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
}

// ExportFormat is a downloadable resume format
type ExportFormat string

const (
	FormatPDF  ExportFormat = "pdf"
	FormatDOCX ExportFormat = "docx"
	FormatTXT  ExportFormat = "txt"
	FormatJSON ExportFormat = "json"
)

// ExportFormats lists every format the engine can render
var ExportFormats = []ExportFormat{FormatPDF, FormatDOCX, FormatTXT, FormatJSON}

// Download is a file returned by the export endpoints
type Download struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}
