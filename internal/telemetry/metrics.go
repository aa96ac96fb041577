package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "audiobridge_jobs_submitted_total", Help: "Jobs submitted per backend"},
		[]string{"backend"})
	JobsSucceeded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "audiobridge_jobs_succeeded_total", Help: "Jobs that reached terminal success"},
		[]string{"backend"})
	JobsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "audiobridge_jobs_failed_total", Help: "Jobs that reached terminal failure"},
		[]string{"backend"})
	JobsTimedOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "audiobridge_jobs_timed_out_total", Help: "Jobs abandoned at the local deadline"},
		[]string{"backend"})
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "audiobridge_polls_total", Help: "Status queries issued"},
		[]string{"backend"})
	PollRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "audiobridge_poll_retries_total", Help: "Transient poll errors retried"},
		[]string{"backend"})
	ArtifactsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "audiobridge_artifacts_fetched_total", Help: "Output files downloaded to disk"},
		[]string{"backend"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			JobsSucceeded,
			JobsFailed,
			JobsTimedOut,
			PollsTotal,
			PollRetries,
			ArtifactsFetched,
		)
	})
	return promhttp.Handler()
}
