// =============================================================================
// Flowgate configuration loader
// =============================================================================
// Unified config loading: YAML file + environment variable override.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("FLOWGATE").
//	    Load()
//
// Precedence: defaults -> YAML file -> environment variables.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Core configuration structure
// =============================================================================

// Config is the complete, immutable configuration for a flowgate process.
// It is built once at startup by Loader.Load and never mutated afterward —
// the "global settings singleton" the teacher framework used is replaced by
// this construction-time value, threaded explicitly into the HTTP server and
// worker pool.
type Config struct {
	Server       ServerConfig       `yaml:"server" env:"SERVER"`
	Redis        RedisConfig        `yaml:"redis" env:"REDIS"`
	Log          LogConfig          `yaml:"log" env:"LOG"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" env:"TELEMETRY"`
	Pipeline     PipelineConfig     `yaml:"pipeline" env:"PIPELINE"`
	Sources      SourcesConfig      `yaml:"sources" env:"SOURCES"`
	CRM          CRMConfig          `yaml:"crm" env:"CRM"`
	LLM          LLMConfig          `yaml:"llm" env:"LLM"`
	Notifier     NotifierConfig     `yaml:"notifier" env:"NOTIFIER"`
	Enrichment   EnrichmentConfig   `yaml:"enrichment" env:"ENRICHMENT"`
}

// ServerConfig controls the ingress HTTP server and the metrics server.
type ServerConfig struct {
	HTTPPort          int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort       int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	AllowDebugEndpoints bool        `yaml:"allow_debug_endpoints" env:"ALLOW_DEBUG_ENDPOINTS"`
}

// RedisConfig points at the K/V store backing the event store, idempotency
// guard, queue, and CRM token cache.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	MaxRetries   int    `yaml:"max_retries" env:"MAX_RETRIES"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OTel SDK.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// PipelineConfig covers the event/idempotency/queue knobs from spec.md §3.
type PipelineConfig struct {
	DryRun                 bool          `yaml:"dry_run" env:"DRY_RUN"`
	EventTTL               time.Duration `yaml:"event_ttl" env:"EVENT_TTL_SECONDS"`
	IdempotencyTTL         time.Duration `yaml:"idempotency_ttl" env:"IDEMPOTENCY_TTL_SECONDS"`
	MaxRetries             int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryIntervals         []time.Duration `yaml:"-" env:"-"`
	RetryIntervalsSeconds  []int         `yaml:"retry_intervals_seconds" env:"RETRY_INTERVALS"`
	WorkerCount            int           `yaml:"worker_count" env:"WORKER_COUNT"`
	CallTimeout            time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
	CustomerDomains        []string      `yaml:"customer_domains" env:"CUSTOMER_DOMAINS"`
	MinDurationMinutes     int           `yaml:"min_duration_minutes" env:"MIN_DURATION_MINUTES"`
	QualifyingTags         []string      `yaml:"qualifying_tags" env:"QUALIFYING_TAGS"`
	MeetingOverwritePolicy string        `yaml:"meeting_overwrite_policy" env:"MEETING_OVERWRITE_POLICY"`
}

// SourcesConfig carries the per-source HMAC/shared-secret configuration.
type SourcesConfig struct {
	CalendarSecret   string `yaml:"calendar_secret" env:"CALENDAR_SECRET"`
	MeetingsSecret   string `yaml:"meetings_secret" env:"MEETINGS_SECRET"`
	SupportSecret    string `yaml:"support_secret" env:"SUPPORT_SECRET"`
	EnrichAPIKey     string `yaml:"enrich_api_key" env:"ENRICH_API_KEY"`
	SignatureSkew    time.Duration `yaml:"signature_skew" env:"SIGNATURE_SKEW"`
}

// CRMConfig configures the outbound CRM client and its OAuth refresh flow.
type CRMConfig struct {
	Datacenter   string        `yaml:"datacenter" env:"DATACENTER"`
	ClientID     string        `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"CLIENT_SECRET"`
	RefreshToken string        `yaml:"refresh_token" env:"REFRESH_TOKEN"`
	BookedStatus string        `yaml:"booked_status" env:"BOOKED_STATUS"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
}

// LLMConfig configures the outbound extraction client.
type LLMConfig struct {
	BaseURL          string        `yaml:"base_url" env:"BASE_URL"`
	APIKey           string        `yaml:"api_key" env:"API_KEY"`
	Model            string        `yaml:"model" env:"MODEL"`
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
	TruncateBudget   int           `yaml:"truncate_budget" env:"TRUNCATE_BUDGET"`
	RateLimitRPS     float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
}

// NotifierConfig configures the best-effort chat notifier.
type NotifierConfig struct {
	WebhookURL string `yaml:"webhook_url" env:"WEBHOOK_URL"`
	Channel    string `yaml:"channel" env:"CHANNEL"`
}

// EnrichmentConfig configures the manual-enrich handler's best-effort
// sub-steps (contact enrichment, scraper, logo fetch).
type EnrichmentConfig struct {
	ContactAPIURL string        `yaml:"contact_api_url" env:"CONTACT_API_URL"`
	ContactAPIKey string        `yaml:"contact_api_key" env:"CONTACT_API_KEY"`
	ScraperURL    string        `yaml:"scraper_url" env:"SCRAPER_URL"`
	LogoURL       string        `yaml:"logo_url" env:"LOGO_URL"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader is a builder for Config.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "FLOWGATE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a config validator run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load builds a Config: defaults -> file -> env -> validate.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		switch field.Type().Elem().Kind() {
		case reflect.String:
			parts := splitAndTrim(value)
			field.Set(reflect.ValueOf(parts))
		case reflect.Int:
			parts := splitAndTrim(value)
			ints := make([]int, 0, len(parts))
			for _, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil {
					return err
				}
				ints = append(ints, n)
			}
			field.Set(reflect.ValueOf(ints))
		}
	}

	return nil
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads configuration, panicking on failure. Intended for tests and
// quick scripts; cmd/ingestor uses Load directly so it can exit(1) instead.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// normalize derives computed fields (e.g. RetryIntervals from the
// seconds-based YAML/env representation) after loading.
func (c *Config) normalize() {
	if len(c.Pipeline.RetryIntervalsSeconds) > 0 {
		c.Pipeline.RetryIntervals = make([]time.Duration, len(c.Pipeline.RetryIntervalsSeconds))
		for i, s := range c.Pipeline.RetryIntervalsSeconds {
			c.Pipeline.RetryIntervals[i] = time.Duration(s) * time.Second
		}
	}
}

// Validate checks the enumerated configuration fields from spec.md §3.
// When DryRun is false, required external-collaborator fields must be
// present — this is the "configuration errors surfaced at runtime" the
// PermanentError taxonomy refers to, checked once at startup instead.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "server.http_port must be a valid TCP port")
	}
	if c.Pipeline.MaxRetries < 0 {
		errs = append(errs, "pipeline.max_retries must be >= 0")
	}
	if len(c.Pipeline.RetryIntervals) != 0 && len(c.Pipeline.RetryIntervals) < c.Pipeline.MaxRetries {
		errs = append(errs, "pipeline.retry_intervals_seconds must have at least max_retries entries")
	}
	if c.Pipeline.WorkerCount <= 0 {
		errs = append(errs, "pipeline.worker_count must be positive")
	}
	if !c.Pipeline.DryRun {
		if c.CRM.ClientID == "" || c.CRM.ClientSecret == "" || c.CRM.RefreshToken == "" {
			errs = append(errs, "crm oauth credentials are required unless dry_run is true")
		}
		if _, ok := crmDatacenters[c.CRM.Datacenter]; !ok {
			errs = append(errs, fmt.Sprintf("crm.datacenter %q is not a recognized datacenter", c.CRM.Datacenter))
		}
	}
	switch c.Pipeline.MeetingOverwritePolicy {
	case "preserve_existing", "always_overwrite":
	default:
		errs = append(errs, "pipeline.meeting_overwrite_policy must be preserve_existing or always_overwrite")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
