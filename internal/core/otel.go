package core

import "time"

// OTelConfig configures OpenTelemetry trace export for a pipeline run.
type OTelConfig struct {
	// Enabled turns trace export on.
	Enabled bool `json:"enabled,omitempty"`
	// Endpoint is the OTLP collector endpoint. Endpoints containing
	// "/v1/traces" use the HTTP exporter, everything else gRPC.
	Endpoint string `json:"endpoint,omitempty"`
	// Headers are sent with every export request.
	Headers map[string]string `json:"headers,omitempty"`
	// Insecure disables transport security.
	Insecure bool `json:"insecure,omitempty"`
	// Timeout bounds each export request.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Resource holds extra resource attributes. Values may reference
	// run variables such as ${PIPELINE_NAME} and ${RUN_ID}.
	Resource map[string]any `json:"resource,omitempty"`
}
