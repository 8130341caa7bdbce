package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// applyFallbacks fills in values that depend on other settings or the host
func (c *Config) applyFallbacks() {
	c.applyStorageDefaults()
	c.applyObservabilityDefaults()
}

// applyStorageDefaults derives the storage path when none is configured
func (c *Config) applyStorageDefaults() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Path != "" || c.Storage.Backend == "memory" {
		return
	}

	name := "state.json"
	if c.Storage.Backend == "sqlite" {
		name = "state.db"
	}

	base := "."
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".resumeflow")
	}
	c.Storage.Path = filepath.Join(base, name)
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}

	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = c.Observability.Console.Enabled
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"RESUMEFLOW_WORKFLOW_BASEURL",
		"RESUMEFLOW_WORKFLOW_ADMINTOKEN",
		"RESUMEFLOW_WORKFLOW_POLLINTERVAL",
		"RESUMEFLOW_STORAGE_BACKEND",
		"RESUMEFLOW_STORAGE_PATH",
		"RESUMEFLOW_APP_LOGLEVEL",
		"RESUMEFLOW_VAULT_ENABLED",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if strings.Contains(strings.ToLower(envVar), "token") {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Workflow Base URL: %s", c.Workflow.BaseURL)
	log.Printf("[CONFIG] Poll Interval: %s", c.Workflow.PollInterval)
	if c.Workflow.AdminToken != "" {
		log.Println("[CONFIG] Admin Token: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] Admin Token: ***NOT SET***")
	}
	log.Printf("[CONFIG] Min Discovery Exchanges: %d", c.Workflow.Policy.MinDiscoveryExchanges)
	log.Printf("[CONFIG] Export Progress Steps: %d", c.Workflow.Policy.ExportProgressSteps)
	log.Printf("[CONFIG] Storage: %s (%s)", c.Storage.Backend, c.Storage.Path)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}
