// Package metrics exposes the agent's prometheus series.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "moonz"

var (
	cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Decision cycles by outcome",
		},
		[]string{"outcome"},
	)

	actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Executed actions by kind and outcome",
		},
		[]string{"action", "outcome"},
	)

	generationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Generation attempts by content type and outcome",
		},
		[]string{"type", "outcome"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Rejected candidates by failing rule",
		},
		[]string{"rule"},
	)

	llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM completions requested by purpose",
		},
		[]string{"purpose"},
	)

	memorySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engagement_memory_size",
			Help:      "Fingerprints currently held in engagement memory",
		},
	)

	breakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_breaker_transitions_total",
			Help:      "Platform circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)
)

func init() {
	prometheus.MustRegister(cycles, actions, generationAttempts, rejections, llmCalls, memorySize, breakerTransitions)
}

func RecordCycle(outcome string) { cycles.WithLabelValues(outcome).Inc() }

func RecordAction(action, outcome string) { actions.WithLabelValues(action, outcome).Inc() }

func RecordGenerationAttempt(contentType, outcome string) {
	generationAttempts.WithLabelValues(contentType, outcome).Inc()
}

func RecordRejection(rule string) { rejections.WithLabelValues(rule).Inc() }

func RecordLLMCall(purpose string) { llmCalls.WithLabelValues(purpose).Inc() }

func SetMemorySize(n int) { memorySize.Set(float64(n)) }

func RecordBreakerTransition(from, to string) { breakerTransitions.WithLabelValues(from, to).Inc() }

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
