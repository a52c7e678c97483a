// =============================================================================
// Flowgate default configuration
// =============================================================================
// Sensible defaults for every configuration section, mirroring spec.md §3.
// =============================================================================
package config

import "time"

// DefaultConfig returns the baseline configuration before file/env overlays.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Redis:      DefaultRedisConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Pipeline:   DefaultPipelineConfig(),
		Sources:    DefaultSourcesConfig(),
		CRM:        DefaultCRMConfig(),
		LLM:        DefaultLLMConfig(),
		Notifier:   NotifierConfig{},
		Enrichment: DefaultEnrichmentConfig(),
	}
}

// DefaultServerConfig returns the default HTTP/metrics server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:            8080,
		MetricsPort:         9090,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		ShutdownTimeout:     15 * time.Second,
		AllowDebugEndpoints: false,
	}
}

// DefaultRedisConfig returns the default K/V store configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     20,
		MinIdleConns: 4,
		MaxRetries:   3,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "flowgate",
		SampleRate:   0.1,
	}
}

// DefaultPipelineConfig returns the spec.md §3 defaults: 30-day event TTL,
// 90-day idempotency TTL, 3 retries at [60s, 120s, 240s].
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		DryRun:                 false,
		EventTTL:               30 * 24 * time.Hour,
		IdempotencyTTL:         90 * 24 * time.Hour,
		MaxRetries:             3,
		RetryIntervalsSeconds:  []int{60, 120, 240},
		RetryIntervals:         []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second},
		WorkerCount:            4,
		CallTimeout:            30 * time.Second,
		CustomerDomains:        nil,
		MinDurationMinutes:     5,
		QualifyingTags:         nil,
		MeetingOverwritePolicy: "preserve_existing",
	}
}

// DefaultSourcesConfig returns the default (empty) per-source secrets.
// Empty secrets mean the verifier falls back to a pass-through, logged
// as a startup warning — see verify.NoopVerifier.
func DefaultSourcesConfig() SourcesConfig {
	return SourcesConfig{
		SignatureSkew: 5 * time.Minute,
	}
}

// crmDatacenters enumerates the recognized CRM_DATACENTER values and their
// API base URLs (spec.md §3: "one of an enumerated set").
var crmDatacenters = map[string]string{
	"na1": "https://api.na1.crm.example.com",
	"eu1": "https://api.eu1.crm.example.com",
	"ap1": "https://api.ap1.crm.example.com",
}

// CRMBaseURL resolves a CRM_DATACENTER value to its API base URL.
func CRMBaseURL(datacenter string) (string, bool) {
	url, ok := crmDatacenters[datacenter]
	return url, ok
}

// DefaultCRMConfig returns the default CRM client configuration.
func DefaultCRMConfig() CRMConfig {
	return CRMConfig{
		Datacenter:   "na1",
		BookedStatus: "demo_scheduled",
		Timeout:      15 * time.Second,
		RateLimitRPS: 5,
	}
}

// DefaultLLMConfig returns the default outbound LLM extraction configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:          "claude-3-5-sonnet-latest",
		Timeout:        60 * time.Second,
		TruncateBudget: 24000,
		RateLimitRPS:   2,
	}
}

// DefaultEnrichmentConfig returns the default manual-enrich sub-step
// configuration.
func DefaultEnrichmentConfig() EnrichmentConfig {
	return EnrichmentConfig{
		Timeout: 20 * time.Second,
	}
}
