package observability

import (
	"strings"

	"resumeflow/internal/config"
)

// GetObservabilityConfig creates observability config from provided config
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		// Fallback to defaults if config not available
		return ObservabilityConfig{
			ServiceName:    "resumeflow",
			ServiceVersion: version,
			Enabled:        false,
			SampleRate:     1.0,
			Prometheus:     GetPrometheusConfig(cfg),
		}
	}

	obsConfig := cfg.Observability

	// Use app version if service version not specified
	serviceVersion := obsConfig.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	return ObservabilityConfig{
		ServiceName:    obsConfig.ServiceName,
		ServiceVersion: serviceVersion,
		Enabled:        obsConfig.Enabled,
		ConsoleOutput:  obsConfig.ConsoleOutput,
		PrettyPrint:    obsConfig.Console.PrettyPrint,
		SampleRate:     obsConfig.SampleRate,
		Prometheus:     GetPrometheusConfig(cfg),
	}
}

// routeTemplate replaces thread and suggestion ids in an engine path so
// metric labels stay low-cardinality.
func routeTemplate(path string) string {
	parts := strings.Split(path, "/")
	// "", "api", "optimize", ...
	if len(parts) < 4 || parts[1] != "api" || parts[2] != "optimize" {
		return path
	}
	switch parts[3] {
	case "start":
	case "status":
		if len(parts) > 4 {
			parts[4] = "{thread}"
		}
	default:
		parts[3] = "{thread}"
	}
	for i := 4; i < len(parts)-1; i++ {
		if parts[i] == "suggestion" {
			parts[i+1] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
