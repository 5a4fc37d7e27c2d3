package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func freshCollector() *Collector {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	return NewCollector()
}

func TestNewCollector(t *testing.T) {
	c := freshCollector()

	assert.NotNil(t, c.endpointsUp)
	assert.NotNil(t, c.endpointsDown)
	assert.NotNil(t, c.load)
	assert.NotNil(t, c.tasksDispatched)
	assert.NotNil(t, c.tasksFinished)
	assert.NotNil(t, c.tasksKilled)
	assert.NotNil(t, c.invalidHandles)
	assert.NotNil(t, c.placementLatency)
}

func TestObserveEndpointLiveness(t *testing.T) {
	c := freshCollector()

	assert.NotPanics(t, func() {
		c.ObserveEndpointUp("A:9287")
		c.ObserveEndpointDown("B:9287")
	})
}

func TestObserveLoad(t *testing.T) {
	c := freshCollector()

	for _, load := range []float64{0, 2, 5, 7, 1000} {
		assert.NotPanics(t, func() {
			c.ObserveLoad("A:9287", load)
		})
	}
}

func TestIncDispatched(t *testing.T) {
	c := freshCollector()

	assert.NotPanics(t, func() {
		for i := 0; i < 10; i++ {
			c.IncDispatched("B:9287")
		}
	})
}

func TestIncFinishedKilledInvalid(t *testing.T) {
	c := freshCollector()

	assert.NotPanics(t, func() {
		c.IncFinished()
		c.IncKilled()
		c.IncInvalidHandle()
	})
}

func TestObservePlacementLatency(t *testing.T) {
	c := freshCollector()

	for _, latency := range []float64{0.0, 0.001, 0.03, 1.0, 5.0} {
		assert.NotPanics(t, func() {
			c.ObservePlacementLatency(latency)
		})
	}
}

func TestPlacementLifecycle(t *testing.T) {
	c := freshCollector()

	assert.NotPanics(t, func() {
		c.ObserveLoad("A:9287", 5)
		c.ObserveEndpointDown("A:9287")
		c.ObserveLoad("B:9287", 2)
		c.IncDispatched("B:9287")
		c.ObservePlacementLatency(0.02)
		c.IncFinished()
	}, "a full placement-then-delivery cycle should not panic")
}
