package tracing

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/browserbot/internal/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitUnsupportedProtocol(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{Enabled: true, Protocol: "udp"})
	if err == nil || !strings.Contains(err.Error(), "udp") {
		t.Fatalf("Init error = %v, want unsupported protocol", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown must never be nil")
	}
}

func TestProtocolDefault(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "grpc"},
		{"HTTP", "http"},
		{"grpc", "grpc"},
	}
	for _, tt := range tests {
		if got := protocol(config.TelemetryConfig{Protocol: tt.in}); got != tt.want {
			t.Errorf("protocol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInitHTTPExporter(t *testing.T) {
	// The HTTP exporter connects lazily, so creation succeeds without a collector.
	shutdown, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:  true,
		Protocol: "http",
		Endpoint: "127.0.0.1:4318",
		Insecure: true,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
