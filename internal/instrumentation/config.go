package instrumentation

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by DefaultConfig.
const (
	EnvServiceName       = "OTEL_SERVICE_NAME"
	EnvServiceInstanceID = "OTEL_SERVICE_INSTANCE_ID"
	EnvEnabled           = "INSTRUMENTATION_ENABLED"
	EnvMetricsExporter   = "METRICS_EXPORTER"
	EnvTracingExporter   = "TRACING_EXPORTER"
	EnvOTLPEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPInsecure      = "OTEL_EXPORTER_OTLP_INSECURE"
	EnvTraceSamplingRate = "OTEL_TRACES_SAMPLER_ARG"
	EnvMetricInterval    = "OTEL_METRIC_EXPORT_INTERVAL"
	EnvDetailedLabels    = "METRICS_DETAILED_LABELS"
	EnvAuditEnabled      = "AUDIT_LOGGING_ENABLED"
	EnvAuditIncludePII   = "AUDIT_LOGGING_INCLUDE_PII"
	EnvAuditLevel        = "AUDIT_LOGGING_LEVEL"
)

// Config holds the instrumentation settings. It is read from the
// environment once at startup.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID identifies this process; the hostname is used when
	// empty.
	ServiceInstanceID string

	// Enabled switches metrics, tracing and the audit stream on or off.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port of the collector, without scheme.
	OTLPEndpoint string

	// OTLPInsecure sends OTLP over plain HTTP. Spans carry recipient
	// domains, so keep this to local collectors.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based ratio in [0, 1].
	TraceSamplingRate float64

	// MetricInterval is the push interval of the otlp and stdout exporters.
	MetricInterval time.Duration

	// DetailedLabels adds the recipient domain to tool metrics.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII writes full recipient addresses instead of domains.
	IncludePII bool

	// LogLevel is the level of successful invocations: debug, info, warn
	// or error. Failures are always logged at warn.
	LogLevel string
}

// DefaultConfig reads Config from the process environment.
func DefaultConfig() Config {
	return ConfigFromEnv(os.Getenv)
}

// ConfigFromEnv builds a Config from getenv. Values that do not parse fall
// back to their defaults.
func ConfigFromEnv(getenv func(string) string) Config {
	env := envReader(getenv)
	return Config{
		ServiceName:       env.str(EnvServiceName, DefaultServiceName),
		ServiceVersion:    "unknown",
		ServiceInstanceID: env.str(EnvServiceInstanceID, ""),
		Enabled:           env.boolean(EnvEnabled, true),
		MetricsExporter:   strings.ToLower(env.str(EnvMetricsExporter, ExporterPrometheus)),
		TracingExporter:   strings.ToLower(env.str(EnvTracingExporter, ExporterNone)),
		OTLPEndpoint:      env.str(EnvOTLPEndpoint, ""),
		OTLPInsecure:      env.boolean(EnvOTLPInsecure, false),
		TraceSamplingRate: env.float(EnvTraceSamplingRate, 0.1),
		MetricInterval:    env.duration(EnvMetricInterval, DefaultMetricInterval),
		DetailedLabels:    env.boolean(EnvDetailedLabels, false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    env.boolean(EnvAuditEnabled, true),
			IncludePII: env.boolean(EnvAuditIncludePII, false),
			LogLevel:   strings.ToLower(env.str(EnvAuditLevel, "info")),
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}
	if c.MetricInterval < 0 {
		return fmt.Errorf("metric interval must not be negative, got %s", c.MetricInterval)
	}
	if err := oneOf("metrics exporter", c.MetricsExporter, ExporterPrometheus, ExporterOTLP, ExporterStdout); err != nil {
		return err
	}
	if err := oneOf("tracing exporter", c.TracingExporter, ExporterOTLP, ExporterStdout, ExporterNone); err != nil {
		return err
	}
	if err := oneOf("audit log level", c.AuditLogging.LogLevel, "debug", "info", "warn", "error"); err != nil {
		return err
	}

	if c.OTLPEndpoint == "" && (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required when an OTLP exporter is selected; set %s", EnvOTLPEndpoint)
	}
	return nil
}

// oneOf accepts the empty string, which leaves the default in place.
func oneOf(what, value string, allowed ...string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q, must be one of: %s", what, value, strings.Join(allowed, ", "))
}

type envReader func(string) string

func (e envReader) str(key, def string) string {
	if v := strings.TrimSpace(e(key)); v != "" {
		return v
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	b, err := strconv.ParseBool(e.str(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return b
}

func (e envReader) float(key string, def float64) float64 {
	f, err := strconv.ParseFloat(e.str(key, ""), 64)
	if err != nil {
		return def
	}
	return f
}

// duration accepts Go durations ("15s") and, as OTel does, plain
// milliseconds ("15000").
func (e envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Label values and names shared by metrics, spans and audit lines.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	DefaultServiceName = "gmail-sender"

	ServiceGmail = "gmail"
	ServiceOAuth = "oauth"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	DefaultMetricInterval = 10 * time.Second
)
