// Package config provides configuration loading and the tool source registry
// for the version fetcher.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SourceType identifies the kind of upstream a tool's version is read from
type SourceType string

const (
	// SourceTypeGitHubRelease reads the latest release of a GitHub repository
	SourceTypeGitHubRelease SourceType = "github-release"

	// SourceTypeWebpage scrapes a release-notes page. Declared but not implemented.
	SourceTypeWebpage SourceType = "webpage"
)

// FailurePolicy decides what happens to a tool's entry when its fetch fails
type FailurePolicy string

const (
	// FailurePolicyKeepPrevious carries the previously persisted entry forward
	FailurePolicyKeepPrevious FailurePolicy = "keep-previous"

	// FailurePolicyDrop omits the entry for the run
	FailurePolicyDrop FailurePolicy = "drop"
)

const (
	// EnvPrefix is the prefix for environment overrides (TOOL_VERSIONS_OUTPUT, ...)
	EnvPrefix = "TOOL_VERSIONS"

	// DefaultOutputPath is where the site expects the version document
	DefaultOutputPath = "sites/devopsengineers/static/data/tool-versions.json"

	// DefaultAPIURL is the GitHub REST API host
	DefaultAPIURL = "https://api.github.com"

	// DefaultConcurrency caps simultaneous outbound requests
	DefaultConcurrency = 4

	// DefaultTimeout bounds a single adapter invocation
	DefaultTimeout = 10 * time.Second

	// DefaultMaxAttempts is the number of tries for transient upstream errors
	DefaultMaxAttempts = 2
)

// ToolSource describes where a tracked tool's version comes from
type ToolSource struct {
	// ID is the unique key of the tool in the output document (e.g. "kubernetes")
	ID string `yaml:"id"`

	// Locator is a repository path ("owner/repo") or URL depending on Type
	Locator string `yaml:"locator"`

	// Type selects the adapter used to fetch the version
	Type SourceType `yaml:"type"`
}

// RetryConfig bounds retries of transient upstream failures
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first one
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// InitialInterval is the first backoff delay (e.g. "500ms")
	InitialInterval string `yaml:"initialInterval,omitempty"`
}

// GitHubConfig configures the GitHub release adapter
type GitHubConfig struct {
	// APIURL is the REST API base URL, without trailing slash
	APIURL string `yaml:"apiURL,omitempty"`

	// Token is sent as a bearer token when set. Usually supplied through GITHUB_TOKEN.
	Token string `yaml:"-"`
}

// TelemetryConfig configures OpenTelemetry export
type TelemetryConfig struct {
	// Enabled turns on OTLP export of traces and metrics
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector address ("host:port")
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure allows plain HTTP to the collector
	Insecure bool `yaml:"insecure,omitempty"`

	// Sampling is the trace sampling ratio (0.0 to 1.0)
	Sampling float64 `yaml:"sampling,omitempty"`
}

// Config represents the root configuration structure
type Config struct {
	// Output is the path of the version document
	Output string `yaml:"output,omitempty"`

	// StatusFile, when set, records per-tool fetch status between runs
	StatusFile string `yaml:"statusFile,omitempty"`

	// MetricsFile, when set, receives run metrics in Prometheus text format
	MetricsFile string `yaml:"metricsFile,omitempty"`

	// OnFailure is the failure policy (keep-previous or drop)
	OnFailure FailurePolicy `yaml:"onFailure,omitempty"`

	// Concurrency caps simultaneous fetches
	Concurrency int `yaml:"concurrency,omitempty"`

	// Timeout bounds each fetch (e.g. "10s")
	Timeout string `yaml:"timeout,omitempty"`

	Retry     RetryConfig      `yaml:"retry,omitempty"`
	GitHub    GitHubConfig     `yaml:"github,omitempty"`
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`

	// Sources is the tool registry, in output order
	Sources []ToolSource `yaml:"tools"`
}

// DefaultTools returns the built-in registry
func DefaultTools() []ToolSource {
	return []ToolSource{
		{ID: "kubernetes", Locator: "kubernetes/kubernetes", Type: SourceTypeGitHubRelease},
		{ID: "docker", Locator: "https://docs.docker.com/engine/release-notes/", Type: SourceTypeWebpage},
		{ID: "terraform", Locator: "hashicorp/terraform", Type: SourceTypeGitHubRelease},
		{ID: "ansible", Locator: "ansible/ansible", Type: SourceTypeGitHubRelease},
		{ID: "jenkins", Locator: "jenkinsci/jenkins", Type: SourceTypeGitHubRelease},
	}
}

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path  string
	viper *viper.Viper
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// WithViper reads environment overrides from v instead of a fresh instance
func WithViper(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		if v == nil {
			return fmt.Errorf("viper instance is required")
		}
		cfg.viper = v
		return nil
	}
}

// NewEnvViper returns a viper instance bound to the TOOL_VERSIONS_* environment
func NewEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig builds the configuration from the built-in registry, an optional
// YAML file, and environment overrides, in that order of precedence.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}
	if loaderCfg.viper == nil {
		loaderCfg.viper = NewEnvViper()
	}

	cfg := &Config{}
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	cfg.applyEnv(loaderCfg.viper)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv(v *viper.Viper) {
	if s := v.GetString("output"); s != "" {
		c.Output = s
	}
	if s := v.GetString("status_file"); s != "" {
		c.StatusFile = s
	}
	if s := v.GetString("metrics_file"); s != "" {
		c.MetricsFile = s
	}
	if s := v.GetString("on_failure"); s != "" {
		c.OnFailure = FailurePolicy(s)
	}
	if v.IsSet("concurrency") {
		c.Concurrency = v.GetInt("concurrency")
	}
	if s := v.GetString("timeout"); s != "" {
		c.Timeout = s
	}
	if s := v.GetString("github_api_url"); s != "" {
		c.GitHub.APIURL = s
	}

	// The token is owned by whoever schedules the run; GITHUB_TOKEN is the
	// conventional name in CI.
	if s := os.Getenv("GITHUB_TOKEN"); s != "" {
		c.GitHub.Token = s
	}
}

func (c *Config) applyDefaults() {
	if c.Output == "" {
		c.Output = DefaultOutputPath
	}
	if c.OnFailure == "" {
		c.OnFailure = FailurePolicyKeepPrevious
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout == "" {
		c.Timeout = DefaultTimeout.String()
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = DefaultAPIURL
	}
	c.GitHub.APIURL = strings.TrimSuffix(c.GitHub.APIURL, "/")
	if len(c.Sources) == 0 {
		c.Sources = DefaultTools()
	}
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if len(c.Sources) == 0 {
		errs = append(errs, fmt.Errorf("at least one tool must be configured"))
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			errs = append(errs, fmt.Errorf("tool at index %d: id is required", i))
			continue
		}
		if _, dup := seen[src.ID]; dup {
			errs = append(errs, fmt.Errorf("tool %q: duplicate id", src.ID))
		}
		seen[src.ID] = struct{}{}
		if src.Locator == "" {
			errs = append(errs, fmt.Errorf("tool %q: locator is required", src.ID))
		}
		if src.Type == "" {
			errs = append(errs, fmt.Errorf("tool %q: type is required", src.ID))
		}
	}

	if c.Output == "" {
		errs = append(errs, fmt.Errorf("output path is required"))
	}

	switch c.OnFailure {
	case FailurePolicyKeepPrevious, FailurePolicyDrop:
	default:
		errs = append(errs, fmt.Errorf("onFailure must be %q or %q, got %q",
			FailurePolicyKeepPrevious, FailurePolicyDrop, c.OnFailure))
	}

	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}

	if d, err := time.ParseDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.maxAttempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.InitialInterval != "" {
		if _, err := time.ParseDuration(c.Retry.InitialInterval); err != nil {
			errs = append(errs, fmt.Errorf("invalid retry.initialInterval %q: %w", c.Retry.InitialInterval, err))
		}
	}

	if c.Telemetry != nil && (c.Telemetry.Sampling < 0 || c.Telemetry.Sampling > 1.0) {
		errs = append(errs, fmt.Errorf("telemetry.sampling must be between 0.0 and 1.0, got %f", c.Telemetry.Sampling))
	}

	return errors.Join(errs...)
}

// Tools returns a copy of the registry so callers cannot mutate it
func (c *Config) Tools() []ToolSource {
	out := make([]ToolSource, len(c.Sources))
	copy(out, c.Sources)
	return out
}

// GetTimeout returns the parsed per-fetch timeout
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// GetRetryInterval returns the parsed initial backoff, or zero for the client default
func (c *Config) GetRetryInterval() time.Duration {
	if c.Retry.InitialInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Retry.InitialInterval)
	if err != nil {
		return 0
	}
	return d
}
