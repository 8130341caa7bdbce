package formatters

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/charmbracelet/glamour"

	"resumeflow/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// GlobalRegistry is the registry used by the CLI
var GlobalRegistry = NewFormatterRegistry()

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "StartResult", &StartTextFormatter{})
	registry.RegisterFormatter("markdown", "StartResult", &StartMarkdownFormatter{})
	registry.RegisterFormatter("text", "WorkflowState", &StatusTextFormatter{})
	registry.RegisterFormatter("markdown", "WorkflowState", &StatusMarkdownFormatter{})
	registry.RegisterFormatter("text", "ResearchSummary", &ResearchTextFormatter{})
	registry.RegisterFormatter("markdown", "ResearchSummary", &ResearchMarkdownFormatter{})
	registry.RegisterFormatter("text", "DraftView", &DraftTextFormatter{})
	registry.RegisterFormatter("markdown", "DraftView", &DraftMarkdownFormatter{})
	registry.RegisterFormatter("text", "ExportReports", &ReportsTextFormatter{})
	registry.RegisterFormatter("markdown", "ExportReports", &ReportsMarkdownFormatter{})
	registry.RegisterFormatter("text", "SessionsOverview", &SessionsTextFormatter{})
	registry.RegisterFormatter("markdown", "SessionsOverview", &SessionsMarkdownFormatter{})
	registry.RegisterFormatter("pretty", "any", &PrettyFormatter{registry: registry, wordWrap: 100})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.StartResult, *types.StartResult:
		return "StartResult"
	case types.WorkflowState, *types.WorkflowState:
		return "WorkflowState"
	case types.ResearchSummary, *types.ResearchSummary:
		return "ResearchSummary"
	case types.DraftView, *types.DraftView:
		return "DraftView"
	case types.ExportReports, *types.ExportReports:
		return "ExportReports"
	case types.SessionsOverview, *types.SessionsOverview:
		return "SessionsOverview"
	default:
		return "any"
	}
}

// deref lets formatters accept both values and pointers.
func deref[T any](data any) (T, error) {
	switch v := data.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("expected %T, got %T", zero, data)
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// PrettyFormatter renders the markdown output of a type for the terminal
type PrettyFormatter struct {
	registry *FormatterRegistry
	wordWrap int
}

func (pf *PrettyFormatter) Format(data any) (string, error) {
	md, err := pf.registry.Format(data, "markdown")
	if err != nil {
		// Types without a markdown view are shown as a JSON block
		js, jerr := (&JSONFormatter{}).Format(data)
		if jerr != nil {
			return "", jerr
		}
		md = "```json\n" + js + "\n```\n"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(pf.wordWrap),
	)
	if err != nil {
		return md, err
	}
	return r.Render(md)
}

func (pf *PrettyFormatter) SupportedType() string {
	return "any"
}
