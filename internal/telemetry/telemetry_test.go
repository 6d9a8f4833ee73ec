package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterPerRegistry(t *testing.T) {
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())

	a.TrainTotal.WithLabelValues(Outcome(nil)).Inc()
	a.TrainTotal.WithLabelValues(Outcome(errors.New("x"))).Inc()
	a.TrainTotal.WithLabelValues("ok").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.TrainTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.TrainTotal.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TrainTotal.WithLabelValues("ok")))
}

func TestTracerDisabledWithoutEndpoint(t *testing.T) {
	tp, err := InitTracer(context.Background(), "", "adforecast")
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, Shutdown(context.Background(), tp))

	_, span := StartSpan(context.Background(), "noop")
	EndSpan(span, errors.New("boom"))
}
