package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled ignores fields", Config{Protocol: "bogus", SampleRatio: 5}, false},
		{"http", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 1}, false},
		{"grpc", Config{Enabled: true, Protocol: ProtocolGRPC, SampleRatio: 0.5}, false},
		{"bad protocol", Config{Enabled: true, Protocol: "zipkin", SampleRatio: 1}, true},
		{"ratio too high", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 1.5}, true},
		{"ratio negative", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: -0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitDisabled(t *testing.T) {
	h, err := Init(context.Background(), DefaultConfig(), "test")
	require.NoError(t, err)
	require.NotNil(t, h.Tracer)
	assert.NoError(t, h.Shutdown(context.Background()))
}

func TestInitInvalid(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Protocol: "zipkin"}, "test")
	assert.Error(t, err)
}

func TestInitWithProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	h := InitWithProvider(tp)
	_, span := h.Tracer.Start(context.Background(), "audit")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "audit", spans[0].Name())
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
