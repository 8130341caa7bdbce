package common

import (
	"fmt"
	"slices"
	"strings"

	"resumeflow/internal/types"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ParseExportFormat maps a user-supplied name to an export format. Matching
// ignores case and a leading dot.
func ParseExportFormat(name string) (types.ExportFormat, error) {
	f := types.ExportFormat(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")))
	if slices.Contains(types.ExportFormats, f) {
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format '%s'. Supported formats: %v", name, types.ExportFormats)
}
