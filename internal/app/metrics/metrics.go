// Package metrics exposes the Prometheus collectors for the economy core.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "economy", Subsystem: "http", Name: "inflight_requests",
		Help: "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy", Subsystem: "http", Name: "requests_total",
		Help: "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "economy", Subsystem: "http", Name: "request_duration_seconds",
		Help: "Duration of HTTP requests.", Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	playTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy", Subsystem: "play", Name: "total",
		Help: "Total number of play commands, by outcome.",
	}, []string{"outcome"})

	robTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy", Subsystem: "rob", Name: "total",
		Help: "Total number of rob attempts, by outcome.",
	}, []string{"outcome"})

	gamblingPayout = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy", Subsystem: "gambling", Name: "payout_total",
		Help: "Total wealth paid out by the gambling subsystem, by game.",
	}, []string{"game"})

	gamblingWager = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy", Subsystem: "gambling", Name: "wager_total",
		Help: "Total wealth wagered into the gambling subsystem, by game.",
	}, []string{"game"})

	missionClaims = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy", Subsystem: "missions", Name: "claims_total",
		Help: "Total number of mission batch claims, by period.",
	}, []string{"period"})

	schedulerTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy", Subsystem: "scheduler", Name: "ticks_total",
		Help: "Total number of scheduler job ticks, by job and outcome.",
	}, []string{"job", "outcome"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		playTotal,
		robTotal,
		gamblingPayout,
		gamblingWager,
		missionClaims,
		schedulerTicks,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordPlay records the outcome of a play command ("success", "failed").
func RecordPlay(outcome string) {
	playTotal.WithLabelValues(nonEmpty(outcome)).Inc()
}

// RecordRob records the outcome of a rob attempt ("success", "failed").
func RecordRob(outcome string) {
	robTotal.WithLabelValues(nonEmpty(outcome)).Inc()
}

// RecordGamblingRound records wager and payout for one round of a gambling
// game ("slots", "blackjack", "coinflip", "lottery").
func RecordGamblingRound(game string, wager, payout int64) {
	game = nonEmpty(game)
	if wager > 0 {
		gamblingWager.WithLabelValues(game).Add(float64(wager))
	}
	if payout > 0 {
		gamblingPayout.WithLabelValues(game).Add(float64(payout))
	}
}

// RecordMissionClaim records a mission batch claim for the given period
// ("daily", "weekly").
func RecordMissionClaim(period string) {
	missionClaims.WithLabelValues(nonEmpty(period)).Inc()
}

// RecordSchedulerTick records one run of a scheduled job.
func RecordSchedulerTick(job string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	schedulerTicks.WithLabelValues(nonEmpty(job), outcome).Inc()
}

func nonEmpty(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path parameters so high-cardinality IDs don't blow
// up label cardinality (e.g. /inventory/equip/abc123 -> /inventory/equip/:id).
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	paramTail := map[string]bool{
		"equip": true, "unequip": true, "sell": true, "purchase": true,
		"buy": true, "use": true, "claim": true,
	}
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		// /missions/claim/{period} carries a daily/weekly period, not an ID.
		if i > 0 && paramTail[parts[i-1]] && !(i == 2 && parts[0] == "missions") {
			out = append(out, ":id")
			continue
		}
		out = append(out, p)
	}
	return "/" + strings.Join(out, "/")
}
