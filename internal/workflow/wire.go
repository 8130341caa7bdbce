package workflow

import (
	"encoding/json"
	"strings"
	"time"

	"resumeflow/internal/types"
)

// Everything the engine sends or receives is declared here in its snake_case
// form and converted to the internal model in one place.

type startRequest struct {
	LinkedInURL string `json:"linkedin_url,omitempty"`
	ResumeText  string `json:"resume_text,omitempty"`
	JobURL      string `json:"job_url,omitempty"`
	JobText     string `json:"job_text,omitempty"`
}

type startResponse struct {
	ThreadID    string `json:"thread_id"`
	CurrentStep string `json:"current_step"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
}

type answerRequest struct {
	Text string `json:"text"`
}

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

type rerunRequest struct {
	ProfileMarkdown string `json:"profile_markdown,omitempty"`
	JobMarkdown     string `json:"job_markdown,omitempty"`
}

type htmlRequest struct {
	HTMLContent string `json:"html_content"`
}

type restoreRequest struct {
	Version string `json:"version"`
}

type copyTextResponse struct {
	Text string `json:"text"`
}

// wireTime accepts RFC 3339 as well as the zone-less ISO timestamps some
// engines emit; zone-less values are read as UTC.
type wireTime struct{ time.Time }

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range wireTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t wireTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

type wireMessage struct {
	Role                 string   `json:"role"`
	Content              string   `json:"content"`
	Timestamp            wireTime `json:"timestamp"`
	PromptID             string   `json:"prompt_id,omitempty"`
	ExperiencesExtracted []string `json:"experiences_extracted,omitempty"`
}

type wireExperience struct {
	ID                 string   `json:"id"`
	Description        string   `json:"description"`
	SourceQuote        string   `json:"source_quote"`
	MappedRequirements []string `json:"mapped_requirements"`
	DiscoveredAt       wireTime `json:"discovered_at"`
}

type wirePrompt struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	IntentTag   string   `json:"intent_tag,omitempty"`
	RelatedGaps []string `json:"related_gaps,omitempty"`
	Priority    int      `json:"priority"`
	Asked       bool     `json:"asked"`
}

type wireSuggestion struct {
	ID           string    `json:"id"`
	Location     string    `json:"location"`
	OriginalText string    `json:"original_text"`
	ProposedText string    `json:"proposed_text"`
	Rationale    string    `json:"rationale"`
	Status       string    `json:"status"`
	CreatedAt    wireTime  `json:"created_at"`
	ResolvedAt   *wireTime `json:"resolved_at,omitempty"`
}

type wireVersion struct {
	Version     string   `json:"version"`
	HTMLContent string   `json:"html_content"`
	Trigger     string   `json:"trigger"`
	Description string   `json:"description"`
	CreatedAt   wireTime `json:"created_at"`
}

type wireQA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type wireProfile struct {
	Name       string   `json:"name"`
	Headline   string   `json:"headline"`
	Summary    string   `json:"summary"`
	Skills     []string `json:"skills"`
	Experience []string `json:"experience"`
	Markdown   string   `json:"markdown"`
}

type wireJob struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Requirements []string `json:"requirements"`
	Preferred    []string `json:"preferred"`
	Markdown     string   `json:"markdown"`
}

type wireResearch struct {
	CompanyOverview string   `json:"company_overview"`
	Culture         []string `json:"culture"`
	TechStack       []string `json:"tech_stack"`
	SimilarProfiles []string `json:"similar_profiles"`
	HiringCriteria  []string `json:"hiring_criteria"`
}

type wireGap struct {
	Strengths       []string `json:"strengths"`
	Gaps            []string `json:"gaps"`
	Recommendations []string `json:"recommendations"`
	MatchScore      int      `json:"match_score"`
}

type wireATS struct {
	Score            int      `json:"score"`
	MatchedKeywords  []string `json:"matched_keywords"`
	MissingKeywords  []string `json:"missing_keywords"`
	FormattingIssues []string `json:"formatting_issues"`
	Recommendations  []string `json:"recommendations"`
}

type wireLinkedIn struct {
	Headline   string   `json:"headline"`
	About      string   `json:"about"`
	Highlights []string `json:"highlights"`
}

type statusData struct {
	UserProfile           *wireProfile     `json:"user_profile"`
	JobPosting            *wireJob         `json:"job_posting"`
	ProfileMarkdown       string           `json:"profile_markdown"`
	JobMarkdown           string           `json:"job_markdown"`
	Research              *wireResearch    `json:"research"`
	GapAnalysis           *wireGap         `json:"gap_analysis"`
	QAHistory             []wireQA         `json:"qa_history"`
	DiscoveryPrompts      []wirePrompt     `json:"discovery_prompts"`
	DiscoveryMessages     []wireMessage    `json:"discovery_messages"`
	DiscoveredExperiences []wireExperience `json:"discovered_experiences"`
	DiscoveryConfirmed    bool             `json:"discovery_confirmed"`
	DiscoveryExchanges    int              `json:"discovery_exchanges"`
	ResumeHTML            string           `json:"resume_html"`
	Suggestions           []wireSuggestion `json:"suggestions"`
	DraftVersions         []wireVersion    `json:"draft_versions"`
	CurrentVersion        string           `json:"current_version"`
	DraftApproved         bool             `json:"draft_approved"`
	ATSReport             *wireATS         `json:"ats_report"`
	LinkedInSuggestions   *wireLinkedIn    `json:"linkedin_suggestions"`
	ExportCompleted       bool             `json:"export_completed"`
}

type statusResponse struct {
	ThreadID         string          `json:"thread_id"`
	CurrentStep      string          `json:"current_step"`
	Status           string          `json:"status"`
	PendingQuestion  string          `json:"pending_question"`
	QARound          int             `json:"qa_round"`
	Progress         int             `json:"progress"`
	Errors           []string        `json:"errors"`
	InterruptPayload json.RawMessage `json:"interrupt_payload"`
	Data             statusData      `json:"data"`
}

type draftingStateResponse struct {
	ThreadID       string           `json:"thread_id"`
	HTMLContent    string           `json:"html_content"`
	Suggestions    []wireSuggestion `json:"suggestions"`
	Versions       []wireVersion    `json:"versions"`
	CurrentVersion string           `json:"current_version"`
	Approved       bool             `json:"approved"`
}

// toState is the single conversion from the engine's status payload to the
// internal model. Absent arrays and objects stay nil so the merge can tell
// "omitted" from "present".
func toState(r statusResponse) types.WorkflowState {
	d := r.Data
	st := types.WorkflowState{
		ThreadID:              r.ThreadID,
		CurrentStep:           r.CurrentStep,
		Status:                r.Status,
		PendingQuestion:       r.PendingQuestion,
		QARound:               r.QARound,
		Progress:              r.Progress,
		Errors:                r.Errors,
		ProfileMarkdown:       d.ProfileMarkdown,
		JobMarkdown:           d.JobMarkdown,
		QAHistory:             mapSlice(d.QAHistory, toQA),
		DiscoveryPrompts:      mapSlice(d.DiscoveryPrompts, toPrompt),
		DiscoveryMessages:     mapSlice(d.DiscoveryMessages, toMessage),
		DiscoveredExperiences: mapSlice(d.DiscoveredExperiences, toExperience),
		DiscoveryConfirmed:    d.DiscoveryConfirmed,
		DiscoveryExchanges:    d.DiscoveryExchanges,
		ResumeHTML:            d.ResumeHTML,
		Suggestions:           mapSlice(d.Suggestions, toSuggestion),
		DraftVersions:         mapSlice(d.DraftVersions, toVersion),
		CurrentVersion:        d.CurrentVersion,
		DraftApproved:         d.DraftApproved,
		ExportCompleted:       d.ExportCompleted,
	}
	if len(r.InterruptPayload) > 0 && string(r.InterruptPayload) != "null" {
		st.InterruptPayload = r.InterruptPayload
	}
	if p := d.UserProfile; p != nil {
		st.UserProfile = &types.UserProfile{
			Name: p.Name, Headline: p.Headline, Summary: p.Summary,
			Skills: p.Skills, Experience: p.Experience, Markdown: p.Markdown,
		}
	}
	if j := d.JobPosting; j != nil {
		st.JobPosting = &types.JobPosting{
			Title: j.Title, Company: j.Company,
			Requirements: j.Requirements, Preferred: j.Preferred, Markdown: j.Markdown,
		}
	}
	if rs := d.Research; rs != nil {
		st.Research = &types.Research{
			CompanyOverview: rs.CompanyOverview, Culture: rs.Culture, TechStack: rs.TechStack,
			SimilarProfiles: rs.SimilarProfiles, HiringCriteria: rs.HiringCriteria,
		}
	}
	if g := d.GapAnalysis; g != nil {
		st.GapAnalysis = &types.GapAnalysis{
			Strengths: g.Strengths, Gaps: g.Gaps,
			Recommendations: g.Recommendations, MatchScore: g.MatchScore,
		}
	}
	st.ATSReport = toATS(d.ATSReport)
	st.LinkedInSuggestions = toLinkedIn(d.LinkedInSuggestions)
	return st
}

func toDraftingState(r draftingStateResponse) types.DraftingState {
	return types.DraftingState{
		ThreadID:       r.ThreadID,
		HTMLContent:    r.HTMLContent,
		Suggestions:    mapSlice(r.Suggestions, toSuggestion),
		Versions:       mapSlice(r.Versions, toVersion),
		CurrentVersion: r.CurrentVersion,
		Approved:       r.Approved,
	}
}

func toQA(q wireQA) types.QAPair { return types.QAPair{Question: q.Question, Answer: q.Answer} }

func toMessage(m wireMessage) types.Message {
	return types.Message{
		Role:                 types.MessageRole(m.Role),
		Content:              m.Content,
		Timestamp:            m.Timestamp.Time,
		PromptID:             m.PromptID,
		ExperiencesExtracted: m.ExperiencesExtracted,
	}
}

func toExperience(e wireExperience) types.DiscoveredExperience {
	return types.DiscoveredExperience{
		ID:                 e.ID,
		Description:        e.Description,
		SourceQuote:        e.SourceQuote,
		MappedRequirements: e.MappedRequirements,
		DiscoveredAt:       e.DiscoveredAt.Time,
	}
}

func toPrompt(p wirePrompt) types.DiscoveryPrompt {
	return types.DiscoveryPrompt{
		ID: p.ID, Question: p.Question, IntentTag: p.IntentTag,
		RelatedGaps: p.RelatedGaps, Priority: p.Priority, Asked: p.Asked,
	}
}

func toSuggestion(s wireSuggestion) types.Suggestion {
	out := types.Suggestion{
		ID:           s.ID,
		Location:     s.Location,
		OriginalText: s.OriginalText,
		ProposedText: s.ProposedText,
		Rationale:    s.Rationale,
		Status:       types.SuggestionStatus(s.Status),
		CreatedAt:    s.CreatedAt.Time,
	}
	if out.Status == "" {
		out.Status = types.SuggestionPending
	}
	if s.ResolvedAt != nil && !s.ResolvedAt.IsZero() {
		t := s.ResolvedAt.Time
		out.ResolvedAt = &t
	}
	return out
}

func toVersion(v wireVersion) types.DraftVersion {
	return types.DraftVersion{
		Version:     v.Version,
		HTMLContent: v.HTMLContent,
		Trigger:     types.VersionTrigger(v.Trigger),
		Description: v.Description,
		CreatedAt:   v.CreatedAt.Time,
	}
}

func toATS(a *wireATS) *types.ATSReport {
	if a == nil {
		return nil
	}
	return &types.ATSReport{
		Score:           a.Score,
		MatchedKeywords: a.MatchedKeywords,
		MissingKeywords: a.MissingKeywords,
		FormattingIssue: a.FormattingIssues,
		Recommendations: a.Recommendations,
	}
}

func toLinkedIn(l *wireLinkedIn) *types.LinkedInSuggestions {
	if l == nil {
		return nil
	}
	return &types.LinkedInSuggestions{Headline: l.Headline, About: l.About, Highlights: l.Highlights}
}

// mapSlice converts in element-wise, keeping nil for an absent array and an
// empty slice for an empty one.
func mapSlice[W, T any](in []W, fn func(W) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, w := range in {
		out[i] = fn(w)
	}
	return out
}
