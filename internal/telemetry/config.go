// Package telemetry sets up OpenTelemetry tracing and metrics for a fetch run.
// Traces and metrics go to an OTLP/HTTP collector when enabled; metrics can
// additionally be written as a Prometheus textfile for node_exporter.
package telemetry

import (
	"errors"
	"fmt"
)

const (
	// DefaultServiceName is the service name reported to the collector
	DefaultServiceName = "fetch-tool-versions"

	// DefaultEndpoint is the default OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling samples every run. A run is a single short trace, so
	// ratio sampling would drop most of them.
	DefaultSampling = 1.0
)

// Config represents the telemetry configuration of a run
type Config struct {
	// Enabled turns on OTLP export of traces and metrics
	Enabled bool

	// ServiceName identifies the binary; defaults to DefaultServiceName
	ServiceName string

	// ServiceVersion is the build version; defaults to "unknown"
	ServiceVersion string

	// Endpoint is the collector address in "host:port" form
	Endpoint string

	// Insecure allows plain HTTP to the collector
	Insecure bool

	// Sampling is the trace sampling ratio; 0 means DefaultSampling
	Sampling float64

	// MetricsFile, when set, receives the run's metrics in Prometheus text format
	MetricsFile string
}

// GetServiceName returns the service name, using default if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the endpoint, using default if not specified
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetSampling returns the sampling ratio. 0 is indistinguishable from unset
// in YAML and maps to DefaultSampling.
func (c *Config) GetSampling() float64 {
	if c.Sampling == 0.0 {
		return DefaultSampling
	}
	return c.Sampling
}

// Validate validates the telemetry configuration
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.Sampling < 0 || c.Sampling > 1.0 {
		errs = append(errs, fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling))
	}
	return errors.Join(errs...)
}
