package observability

import (
	"context"
	"testing"
)

func TestSetupIsNoopWhenDisabled(t *testing.T) {
	for name, cfg := range map[string]Config{
		"no endpoint": {},
		"disabled":    {OTelEndpoint: "http://localhost:4318", OTelDisabled: true},
	} {
		t.Run(name, func(t *testing.T) {
			if cfg.TracingEnabled() {
				t.Fatalf("expected tracing disabled for %+v", cfg)
			}
			shutdown, err := Setup(context.Background(), cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if err := shutdown(ctx); err != nil {
				t.Fatalf("noop shutdown should not error: %v", err)
			}
		})
	}
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so nothing is exported.
	shutdown, err := Setup(context.Background(), Config{OTelEndpoint: "http://192.0.2.1:4318"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
