package telemetry

import "io"

// Exporter names
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config holds configuration for the tracer
type Config struct {
	// ServiceName is the name of the service
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled determines whether tracing is enabled
	// When false, a noop tracer is used
	Enabled bool

	// Exporter selects where spans go: "stdout", "otlp" or "none".
	// "none" keeps spans in-process, which still gives log correlation.
	Exporter string

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317"
	Endpoint string

	// Insecure disables TLS for the OTLP connection
	Insecure bool

	// Output receives stdout-exported spans; nil means os.Stderr
	Output io.Writer

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns a sensible default configuration
// Tracing disabled by default for CLI tool
func DefaultConfig() Config {
	return Config{
		ServiceName:    "orchestra",
		ServiceVersion: "dev",
		Enabled:        false,
		Exporter:       ExporterNone,
		SampleRate:     1.0,
	}
}
