package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_NoEndpointStillInstallsWorkingTracer(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "oocanad-test"})
	require.NoError(t, err)
	require.NotNil(t, p)
	defer p.Shutdown(context.Background())

	tracer := Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	defer span.End()
	assert.NotNil(t, span)
}

func TestProvider_ShutdownIsSafeOnNilProvider(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}
