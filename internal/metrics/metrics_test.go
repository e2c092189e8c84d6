package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewCollector()

	require.NotNil(t, collector)
	assert.NotNil(t, collector.trialsCreated)
	assert.NotNil(t, collector.trialsCompleted)
	assert.NotNil(t, collector.trialsPruned)
	assert.NotNil(t, collector.trialsFailed)
	assert.NotNil(t, collector.trialDuration)
	assert.NotNil(t, collector.trialsRunning)
	assert.NotNil(t, collector.stopTimeouts)
}

func TestRecordCreated(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			collector.RecordCreated()
		}
	})
}

func TestRecordCompletedPrunedFailed(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	durations := []float64{0.001, 0.01, 0.1, 1.0, 5.0}
	for _, d := range durations {
		assert.NotPanics(t, func() {
			collector.RecordCompleted(d)
			collector.RecordPruned(d)
			collector.RecordFailed(d)
		})
	}
}

func TestSetRunning(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	for _, n := range []int{0, 1, 10, 100} {
		assert.NotPanics(t, func() { collector.SetRunning(n) })
	}
}

func TestRecordStopTimeout(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordStopTimeout()
		collector.RecordStopTimeout()
	})
}

func TestConcurrentMetricUpdates(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	done := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func() {
			collector.RecordCreated()
			collector.RecordCompleted(0.1)
			collector.SetRunning(5)
			done <- true
		}()
	}
	for i := 0; i < 100; i++ {
		<-done
	}
}

func TestCollectorIsolation(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector1 := NewCollector()
	require.NotNil(t, collector1)

	assert.Panics(t, func() {
		NewCollector()
	}, "a second collector on the same registry should panic on duplicate registration")
}

func TestTrialLifecycleSequence(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordCreated()
		collector.SetRunning(1)
		collector.RecordCompleted(0.5)
		collector.SetRunning(0)
	})
}

func TestZeroAndNegativeValues(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordCompleted(0.0)
		collector.SetRunning(0)
		collector.SetRunning(-1)
	})
}
