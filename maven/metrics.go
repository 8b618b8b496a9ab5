package maven

import (
	"github.com/pomgraph/pomgraph/internal/metrics"
)

const (
	metricsNamespace = "pomgraph"
	metricsSubsystem = "resolver"
)

// resolutionDurationHistogram tracks the duration of transitive model
// resolutions. [group, artifact].
var resolutionDurationHistogram = metrics.MustRegisterHistogramVec(
	metricsNamespace,
	metricsSubsystem,
	"model_resolution_duration_seconds",
	"Duration of transitive POM model resolutions in seconds.",
	[]float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	"group", "artifact",
)
