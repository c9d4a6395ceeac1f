package metrics

import (
	"net/http"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for analyze requests.
const (
	OutcomeSuccess    = "success"
	OutcomeInvalid    = "invalid"
	OutcomeUpstream   = "upstream_error"
	OutcomeTransport  = "transport_error"
	OutcomeInternal   = "internal_error"
	OutcomeNoAnalysis = "no_analysis"
)

// OtherSymbol replaces symbol labels that fail symbolLabelPattern.
const OtherSymbol = "other"

// Symbols come from unauthenticated callers; anything outside this shape shares one series.
var symbolLabelPattern = regexp.MustCompile(`^[A-Za-z0-9.#_-]{1,32}$`)

// SymbolLabel maps a request symbol to a bounded label value. Empty stays empty.
func SymbolLabel(symbol string) string {
	if symbol == "" || symbolLabelPattern.MatchString(symbol) {
		return symbol
	}
	return OtherSymbol
}

// Recorder holds the service's Prometheus collectors on a private registry.
type Recorder struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	promptBytes     prometheus.Histogram
}

// New creates a recorder with its own registry plus Go/process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxanalyst_analyze_requests_total",
				Help: "Analyze requests by symbol and outcome",
			},
			[]string{"symbol", "outcome"},
		),
		upstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxanalyst_completion_duration_seconds",
				Help:    "Duration of completion service calls in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"model", "outcome"},
		),
		promptBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fxanalyst_prompt_bytes",
				Help:    "Size of compiled prompts in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 2, 10),
			},
		),
	}
}

// RecordRequest counts one analyze request.
func (r *Recorder) RecordRequest(symbol, outcome string) {
	if r == nil {
		return
	}
	r.requestsTotal.WithLabelValues(SymbolLabel(symbol), outcome).Inc()
}

// RecordCompletion records completion call latency in seconds.
func (r *Recorder) RecordCompletion(model, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.upstreamLatency.WithLabelValues(model, outcome).Observe(seconds)
}

func (r *Recorder) RecordPromptSize(n int) {
	if r == nil {
		return
	}
	r.promptBytes.Observe(float64(n))
}

// Handler exposes the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Requests exposes the request counter for assertions.
func (r *Recorder) Requests() *prometheus.CounterVec { return r.requestsTotal }
