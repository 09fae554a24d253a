// Package metrics holds the prometheus collectors recording proof generation
// and verification.
package metrics

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/drand/sigma/common/log"
)

// Verification results used as the "result" label.
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

var (
	// ProofMetrics is the registry holding every collector of this package.
	ProofMetrics = prometheus.NewRegistry()

	// ProofsGenerated counts proofs produced, by proof kind.
	ProofsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proofs_generated_total",
		Help: "Number of non-interactive proofs generated",
	}, []string{"kind"})

	// ProofsVerified counts verifications, by proof kind and result.
	ProofsVerified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proofs_verified_total",
		Help: "Number of non-interactive proofs verified",
	}, []string{"kind", "result"})

	// ChallengeConversionFailures counts challenges that did not map to a
	// scalar and forced the prover to start over.
	ChallengeConversionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "challenge_conversion_failures_total",
		Help: "Number of derived challenges which were not valid scalars",
	})

	// ProofGenerationDuration is the latency of a successful proof generation.
	ProofGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proof_generation_seconds",
		Help:    "Proof generation latency histogram",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	}, []string{"kind"})

	metricsBound sync.Once
)

// Bind registers the collectors on ProofMetrics. It is idempotent.
func Bind(l log.Logger) {
	metricsBound.Do(func() {
		collectors := []prometheus.Collector{
			ProofsGenerated,
			ProofsVerified,
			ChallengeConversionFailures,
			ProofGenerationDuration,
		}
		for _, c := range collectors {
			if err := ProofMetrics.Register(c); err != nil {
				l.Errorw("error in bindMetrics", "metrics", "bindMetrics", "err", err)
				return
			}
		}
	})
}

// Handler serves ProofMetrics in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(ProofMetrics, promhttp.HandlerOpts{})
}

// Start serves ProofMetrics on /metrics at metricsBind, which may be a bare
// port. Closing the returned listener stops the server.
func Start(logger log.Logger, metricsBind string) (net.Listener, error) {
	Bind(logger)

	if !strings.Contains(metricsBind, ":") {
		metricsBind = "127.0.0.1:" + metricsBind
	}
	//nolint:noctx
	l, err := net.Listen("tcp", metricsBind)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	logger.Infow("metric listener started", "addr", l.Addr())

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	s := http.Server{Addr: l.Addr().String(), ReadHeaderTimeout: 3 * time.Second, Handler: mux}
	go func() {
		logger.Debugw("", "metrics", "listen finished", "err", s.Serve(l))
	}()
	return l, nil
}

// WriteSummary prints the current value of every counter of ProofMetrics,
// one "name{labels} value" line each, sorted.
func WriteSummary(w io.Writer) error {
	families, err := ProofMetrics.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, f := range families {
		for _, m := range f.GetMetric() {
			var value float64
			switch f.GetType() {
			case dto.MetricType_COUNTER:
				value = m.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			lines = append(lines, fmt.Sprintf("%s%s %v", f.GetName(), labels(m), value))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func labels(m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
