package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "press-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	span, ctx := NewSpan(context.Background(), "unit")
	assert.NotNil(t, ctx)
	span.SetError(errors.New("ignored by noop span"))
	span.End()
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, ResultOK, ResultLabel(nil))
	assert.Equal(t, ResultError, ResultLabel(errors.New("x")))
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(CountRecomputes.WithLabelValues("like", ResultOK))
	CountRecomputes.WithLabelValues("like", ResultOK).Inc()
	assert.InDelta(t, before+1, testutil.ToFloat64(CountRecomputes.WithLabelValues("like", ResultOK)), 1e-9)
}
