package otel

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviders_Local(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		p, err := NewProviders(ctx, endpoint, "soc-portal", false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q) left a provider unset: %+v", endpoint, p)
		}
		if p.Tracer("http") == nil {
			t.Error("Tracer should not be nil")
		}
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
	var unset *Providers
	if unset.Tracer("http") == nil {
		t.Error("nil Providers should fall back to the global tracer")
	}
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		endpoint string
		force    bool
		target   string
		insecure bool
		err      bool
	}{
		{endpoint: "localhost:4317", target: "localhost:4317", insecure: true},
		{endpoint: "http://collector:4317/v1/traces", target: "collector:4317", insecure: true},
		{endpoint: "https://collector:4317", target: "collector:4317"},
		{endpoint: "https://collector:4317", force: true, target: "collector:4317", insecure: true},
		{endpoint: "://invalid", err: true},
		{endpoint: "http://[invalid", err: true},
		{endpoint: "http://", err: true},
	}
	for _, tc := range cases {
		col, err := parseEndpoint(tc.endpoint, tc.force)
		if tc.err {
			if err == nil {
				t.Errorf("parseEndpoint(%q) = %+v, want error", tc.endpoint, col)
			}
			if _, err := NewProviders(context.Background(), tc.endpoint, "soc-portal", false); err == nil {
				t.Errorf("NewProviders(%q) should reject the endpoint", tc.endpoint)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseEndpoint(%q): %v", tc.endpoint, err)
		}
		if col.target != tc.target || col.insecure != tc.insecure {
			t.Errorf("parseEndpoint(%q, %v) = %+v, want %s insecure=%v", tc.endpoint, tc.force, col, tc.target, tc.insecure)
		}
	}
}

func TestSetGlobal(t *testing.T) {
	ctx := context.Background()
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(ctx) }()

	prevTracer, prevMeter, prevProp := otel.GetTracerProvider(), otel.GetMeterProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
		otel.SetTextMapPropagator(prevProp)
	})

	(&Providers{TracerProvider: tp}).SetGlobal()
	if otel.GetTracerProvider() != tp {
		t.Error("TracerProvider should be installed")
	}
	if otel.GetMeterProvider() != prevMeter {
		t.Error("MeterProvider should be left alone when unset")
	}

	spanCtx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()
	header := http.Header{}
	otel.GetTextMapPropagator().Inject(spanCtx, propagation.HeaderCarrier(header))
	if header.Get("traceparent") == "" {
		t.Error("SetGlobal should install the trace-context propagator")
	}
}
