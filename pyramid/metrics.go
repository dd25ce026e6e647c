package pyramid

import (
	"github.com/rcrowley/go-metrics"
)

type layerMetrics struct {
	loadStart metrics.Counter
	load      metrics.Counter
	errors    metrics.Counter
	unload    metrics.Counter
	abort     metrics.Counter
	batches   metrics.Counter
	cached    metrics.Gauge
}

func newLayerMetrics(r metrics.Registry) *layerMetrics {
	return &layerMetrics{
		loadStart: metrics.GetOrRegisterCounter("tile.loadstart", r),
		load:      metrics.GetOrRegisterCounter("tile.load", r),
		errors:    metrics.GetOrRegisterCounter("tile.error", r),
		unload:    metrics.GetOrRegisterCounter("tile.unload", r),
		abort:     metrics.GetOrRegisterCounter("tile.abort", r),
		batches:   metrics.GetOrRegisterCounter("layer.load", r),
		cached:    metrics.GetOrRegisterGauge("tile.cached", r),
	}
}
