package flight

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dlog "github.com/gwillem/dronearm/internal/log"
	"github.com/gwillem/dronearm/pkg/motion"
)

func TestNewMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice on one registry should fail")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.recordMove()
		m.recordSubmit(ModeSync)
		m.recordOutcome(outcomeSucceeded, 0)
		m.recordStop()
		m.recordAcquisitionFailure()
	})
}

func TestDispatcher_RecordsMetrics(t *testing.T) {
	logger, _ := dlog.NewTestLogger(t)
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	ctrl := succeeding()
	d := newTestDispatcher(ctrl, &stubLimbs{}, logger)
	d.SetMetrics(m)
	ctx := context.Background()

	d.Move(ctx, []motion.Waypoint{motion.Neutral})
	d.Move(ctx, []motion.Waypoint{motion.Neutral}, NoWait())
	ctrl.result = &motion.Result{ErrorID: "FAILED"}
	d.Move(ctx, []motion.Waypoint{motion.Neutral})
	ctrl.result = nil
	d.Move(ctx, []motion.Waypoint{motion.Neutral})
	d.RequestStop()
	d.Move(ctx, nil)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.moves))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.submissions.WithLabelValues("sync")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("async")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues(outcomeSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues(outcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues(outcomeNoResult)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stops))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestDispatcher_RecordsAcquisitionFailures(t *testing.T) {
	logger, _ := dlog.NewTestLogger(t)
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	d := newTestDispatcher(succeeding(), &stubLimbs{err: errors.New("gone")}, logger)
	d.SetMetrics(m)
	d.Move(context.Background(), []motion.Waypoint{motion.Neutral})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.acquisitionFailures))
}
