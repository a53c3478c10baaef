package instrumentation

import (
	"strings"
	"testing"
	"time"
)

// mapEnv turns a map into a getenv function.
func mapEnv(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	config := ConfigFromEnv(mapEnv(nil))

	if config.ServiceName != DefaultServiceName {
		t.Errorf("ServiceName = %q, want %q", config.ServiceName, DefaultServiceName)
	}
	if !config.Enabled {
		t.Error("expected instrumentation to be enabled by default")
	}
	if config.MetricsExporter != ExporterPrometheus {
		t.Errorf("MetricsExporter = %q, want %q", config.MetricsExporter, ExporterPrometheus)
	}
	if config.TracingExporter != ExporterNone {
		t.Errorf("TracingExporter = %q, want %q", config.TracingExporter, ExporterNone)
	}
	if config.TraceSamplingRate != 0.1 {
		t.Errorf("TraceSamplingRate = %f, want 0.1", config.TraceSamplingRate)
	}
	if config.MetricInterval != DefaultMetricInterval {
		t.Errorf("MetricInterval = %s, want %s", config.MetricInterval, DefaultMetricInterval)
	}
	if !config.AuditLogging.Enabled || config.AuditLogging.IncludePII {
		t.Errorf("AuditLogging = %+v, want enabled without PII", config.AuditLogging)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	config := ConfigFromEnv(mapEnv(map[string]string{
		EnvServiceName:       "mail-test",
		EnvEnabled:           "false",
		EnvMetricsExporter:   "STDOUT",
		EnvTracingExporter:   "otlp",
		EnvOTLPEndpoint:      "localhost:4318",
		EnvOTLPInsecure:      "true",
		EnvTraceSamplingRate: "0.5",
		EnvMetricInterval:    "30s",
		EnvDetailedLabels:    "1",
		EnvAuditIncludePII:   "true",
		EnvAuditLevel:        "Warn",
	}))

	if config.ServiceName != "mail-test" {
		t.Errorf("ServiceName = %q", config.ServiceName)
	}
	if config.Enabled {
		t.Error("expected Enabled to be false")
	}
	if config.MetricsExporter != ExporterStdout {
		t.Errorf("MetricsExporter = %q, want lower-cased stdout", config.MetricsExporter)
	}
	if config.TracingExporter != ExporterOTLP || config.OTLPEndpoint != "localhost:4318" || !config.OTLPInsecure {
		t.Errorf("unexpected OTLP settings: %+v", config)
	}
	if config.TraceSamplingRate != 0.5 {
		t.Errorf("TraceSamplingRate = %f, want 0.5", config.TraceSamplingRate)
	}
	if config.MetricInterval != 30*time.Second {
		t.Errorf("MetricInterval = %s, want 30s", config.MetricInterval)
	}
	if !config.DetailedLabels {
		t.Error("expected DetailedLabels")
	}
	if !config.AuditLogging.IncludePII || config.AuditLogging.LogLevel != "warn" {
		t.Errorf("AuditLogging = %+v", config.AuditLogging)
	}
}

func TestConfigFromEnv_UnparseableFallsBack(t *testing.T) {
	config := ConfigFromEnv(mapEnv(map[string]string{
		EnvEnabled:           "sometimes",
		EnvTraceSamplingRate: "half",
		EnvMetricInterval:    "soon",
		EnvAuditEnabled:      "nope",
	}))

	if !config.Enabled {
		t.Error("invalid bool should keep the default (true)")
	}
	if config.TraceSamplingRate != 0.1 {
		t.Errorf("TraceSamplingRate = %f, want default 0.1", config.TraceSamplingRate)
	}
	if config.MetricInterval != DefaultMetricInterval {
		t.Errorf("MetricInterval = %s, want default", config.MetricInterval)
	}
	if !config.AuditLogging.Enabled {
		t.Error("invalid bool should keep audit logging enabled")
	}
}

func TestEnvReader_Duration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "", want: time.Minute},
		{value: "15000", want: 15 * time.Second},
		{value: "2m", want: 2 * time.Minute},
		{value: "later", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			env := envReader(mapEnv(map[string]string{"D": tt.value}))
			if got := env.duration("D", time.Minute); got != tt.want {
				t.Errorf("duration(%q) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig_ReadsProcessEnv(t *testing.T) {
	t.Setenv(EnvServiceName, "from-process-env")
	t.Setenv(EnvTracingExporter, "")

	config := DefaultConfig()
	if config.ServiceName != "from-process-env" {
		t.Errorf("ServiceName = %q, want from-process-env", config.ServiceName)
	}
	if config.TracingExporter != ExporterNone {
		t.Errorf("TracingExporter = %q, want %q", config.TracingExporter, ExporterNone)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		errContains string
	}{
		{
			name:   "prometheus",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone},
		},
		{
			name:   "otlp with endpoint",
			config: Config{MetricsExporter: ExporterOTLP, TracingExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"},
		},
		{
			name:   "empty exporters",
			config: Config{},
		},
		{
			name:        "negative sampling rate",
			config:      Config{TraceSamplingRate: -0.5},
			errContains: "sampling rate",
		},
		{
			name:        "sampling rate above 1",
			config:      Config{TraceSamplingRate: 1.5},
			errContains: "sampling rate",
		},
		{
			name:        "negative metric interval",
			config:      Config{MetricInterval: -time.Second},
			errContains: "metric interval",
		},
		{
			name:        "unknown metrics exporter",
			config:      Config{MetricsExporter: "statsd"},
			errContains: "invalid metrics exporter",
		},
		{
			name:        "unknown tracing exporter",
			config:      Config{TracingExporter: "jaeger"},
			errContains: "invalid tracing exporter",
		},
		{
			name:        "unknown audit level",
			config:      Config{AuditLogging: AuditLoggingConfig{LogLevel: "trace"}},
			errContains: "invalid audit log level",
		},
		{
			name:        "otlp tracing without endpoint",
			config:      Config{TracingExporter: ExporterOTLP},
			errContains: EnvOTLPEndpoint,
		},
		{
			name:        "otlp metrics without endpoint",
			config:      Config{MetricsExporter: ExporterOTLP},
			errContains: "OTLP endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errContains)
			}
		})
	}
}
