package tracing

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/dmbot/internal/config"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetup_EnabledWithoutEndpoint(t *testing.T) {
	if _, err := Setup(context.Background(), config.TelemetryConfig{Enabled: true}, "test"); err == nil {
		t.Fatal("expected an error without endpoint")
	}
}

func TestProtocolAndScheme(t *testing.T) {
	tests := []struct {
		cfg      config.TelemetryConfig
		protocol string
		endpoint string
	}{
		{config.TelemetryConfig{Endpoint: "localhost:4317"}, "grpc", "localhost:4317"},
		{config.TelemetryConfig{Protocol: "HTTP", Endpoint: "https://otel.example.com:4318/"}, "http", "otel.example.com:4318"},
		{config.TelemetryConfig{Protocol: "grpc", Endpoint: "http://collector:4317"}, "grpc", "collector:4317"},
	}
	for _, tt := range tests {
		if got := protocol(tt.cfg); got != tt.protocol {
			t.Errorf("protocol(%+v) = %q, want %q", tt.cfg, got, tt.protocol)
		}
		if got := stripScheme(tt.cfg.Endpoint); got != tt.endpoint {
			t.Errorf("stripScheme(%q) = %q, want %q", tt.cfg.Endpoint, got, tt.endpoint)
		}
	}
}
