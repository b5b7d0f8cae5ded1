package treegen

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusLabel  = "status"
	errTypeLabel = "error_type"

	statusSuccess  = "success"
	statusError    = "error"
	statusCanceled = "canceled"
)

var (
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_generations_total",
		Help: "The number of tree generations.",
	}, []string{
		statusLabel,
		errTypeLabel,
	})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbor_generation_duration_seconds",
		Help:    "The time to grow a tree and build its mesh.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	metamers = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbor_metamers",
		Help:    "The number of live metamers of generated trees.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	budsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbor_buds_created",
		Help: "The number of buds created by all simulations.",
	})

	meshTriangles = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbor_mesh_triangles",
		Help:    "The number of triangles of generated meshes.",
		Buckets: prometheus.ExponentialBuckets(32, 4, 10),
	})
)

func instrumentGeneration(ctx context.Context, err error, duration time.Duration) {
	status := statusSuccess
	var errType string
	if err != nil {
		status = statusError
		errType = errors.Type(err)
		if ctx.Err() != nil {
			status = statusCanceled
		}
	}

	generationsTotal.
		With(prometheus.Labels{
			statusLabel:  status,
			errTypeLabel: errType,
		}).
		Inc()

	generationDuration.Observe(duration.Seconds())
}

func instrumentResult(res *Result) {
	metamers.Observe(float64(res.Stats.LiveMetamers))
	budsCreated.Add(float64(res.Stats.Buds))
	meshTriangles.Observe(float64(res.Stats.Triangles))
}
