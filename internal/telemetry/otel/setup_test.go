package otel

import (
	"context"
	"testing"
)

func TestDialTarget(t *testing.T) {
	tests := []struct {
		name         string
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{name: "bare host port", endpoint: "localhost:4317", wantTarget: "localhost:4317", wantInsecure: true},
		{name: "http url", endpoint: "http://collector:4317", wantTarget: "collector:4317", wantInsecure: true},
		{name: "https url", endpoint: "https://collector:4317", wantTarget: "collector:4317", wantInsecure: false},
		{name: "https with override", endpoint: "https://collector:4317", override: true, wantTarget: "collector:4317", wantInsecure: true},
		{name: "path dropped", endpoint: "http://collector:4317/v1/traces", wantTarget: "collector:4317", wantInsecure: true},
		{name: "malformed", endpoint: "http://[bad", wantErr: true},
		{name: "missing host", endpoint: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, insecure, err := dialTarget(tt.endpoint, tt.override)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("dialTarget(%q) expected error, got target %q", tt.endpoint, target)
				}
				return
			}
			if err != nil {
				t.Fatalf("dialTarget(%q): %v", tt.endpoint, err)
			}
			if target != tt.wantTarget {
				t.Errorf("target = %q, want %q", target, tt.wantTarget)
			}
			if insecure != tt.wantInsecure {
				t.Errorf("insecure = %v, want %v", insecure, tt.wantInsecure)
			}
		})
	}
}

func TestNewProvidersNoopWhenEndpointEmpty(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "test-service", false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q): expected non-nil providers", endpoint)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("noop shutdown: %v", err)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("second shutdown: %v", err)
		}
	}
}

func TestNewProvidersRejectsInvalidEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"http://[bad", "http://"} {
		if _, err := NewProviders(ctx, endpoint, "test-service", false); err == nil {
			t.Errorf("NewProviders(%q): expected error", endpoint)
		}
	}
}
