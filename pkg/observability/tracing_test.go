package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracingExportsJobSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(TracingConfig{
		ServiceName:    "nebula-cdk-test",
		ServiceVersion: "test",
		SamplingRate:   1.0,
		Writer:         &buf,
	})
	require.NoError(t, err)

	_, span := StartJobSpan(context.Background(), "read:users", attribute.String("stream", "users"))
	EndSpan(span, errors.New("boom"))

	_, ok := StartJobSpan(context.Background(), "generate:users")
	EndSpan(ok, nil)

	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "read:users")
	assert.Contains(t, out, "generate:users")
	assert.Contains(t, out, "boom")
}
