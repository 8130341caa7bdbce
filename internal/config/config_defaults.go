package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Workflow engine
	v.SetDefault("workflow.baseURL", "http://localhost:8000")
	v.SetDefault("workflow.timeout", 30*time.Second)
	v.SetDefault("workflow.pollInterval", 2*time.Second)
	v.SetDefault("workflow.adminToken", "")
	v.SetDefault("workflow.anonymousHeader", "X-Anonymous-ID")

	// Engagement policy shared with the engine
	v.SetDefault("workflow.policy.minDiscoveryExchanges", 3)
	v.SetDefault("workflow.policy.exportProgressSteps", 5)

	// Circuit breaker around engine calls
	v.SetDefault("workflow.circuitBreaker.enabled", true)
	v.SetDefault("workflow.circuitBreaker.maxRequests", 3)
	v.SetDefault("workflow.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("workflow.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("workflow.circuitBreaker.minRequests", 5)
	v.SetDefault("workflow.circuitBreaker.failureThreshold", 0.6)

	// Outbound rate limiting
	v.SetDefault("workflow.rateLimit.enabled", true)
	v.SetDefault("workflow.rateLimit.requestsPerMin", 120)
	v.SetDefault("workflow.rateLimit.burstCapacity", 10)

	// Local session storage
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.path", "") // Derived from $HOME when empty
	v.SetDefault("storage.watch", true)
	v.SetDefault("storage.watchDebounce", 250*time.Millisecond)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown", "pretty"})
	v.SetDefault("app.maxFileSize", 1024*1024) // 1MB
	v.SetDefault("app.outputDir", ".")

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.adminToken", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "resumeflow")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", false)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
