package gcp

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"netviz/core-go/internal/metrics"
)

// GuardOptions tunes retries and circuit breaking around GCP calls.
type GuardOptions struct {
	RetryAttempts    uint
	RetryDelay       time.Duration
	BreakerFailures  uint32
	BreakerOpenFor   time.Duration
	BreakerHalfOpenN uint32
}

// Guard runs GCP calls through a per-service circuit breaker with bounded retry of transient
// failures. One Guard is shared by all requests.
type Guard struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	breakers map[string]*gobreaker.CircuitBreaker[any]
	attempts uint
	delay    time.Duration
}

func NewGuard(log zerolog.Logger, m *metrics.Metrics, opts GuardOptions) *Guard {
	attempts := opts.RetryAttempts
	if attempts == 0 {
		attempts = 3
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openFor := opts.BreakerOpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	halfOpen := opts.BreakerHalfOpenN
	if halfOpen == 0 {
		halfOpen = 1
	}

	g := &Guard{
		log:      log.With().Str("component", "gcp_guard").Logger(),
		metrics:  m,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		attempts: attempts,
		delay:    delay,
	}
	for _, svc := range []string{ServiceBigQuery, ServiceMonitoring, ServiceResourceManager, ServiceOAuth2} {
		g.breakers[svc] = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        svc,
			MaxRequests: halfOpen,
			Timeout:     openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			// Client errors (bad token, missing permission) say nothing about API health.
			IsSuccessful: func(err error) bool {
				return err == nil || !isTransient(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.log.Warn().Str("gcp_service", name).Str("from", from.String()).Str("to", to.String()).Msg("gcp circuit breaker state changed")
			},
		})
	}
	return g
}

func (g *Guard) breaker(service string) *gobreaker.CircuitBreaker[any] {
	if g == nil {
		return nil
	}
	return g.breakers[service]
}

// run executes fn with retry and breaker protection and records the outcome.
func run[T any](ctx context.Context, g *Guard, service, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	var out T

	attempt := func() error {
		cb := g.breaker(service)
		if cb == nil {
			v, err := fn(ctx)
			if err == nil {
				out = v
			}
			return err
		}
		v, err := cb.Execute(func() (any, error) {
			return fn(ctx)
		})
		if err != nil {
			return err
		}
		out = v.(T)
		return nil
	}

	attempts, delay := uint(1), time.Duration(0)
	if g != nil {
		attempts, delay = g.attempts, g.delay
	}
	err := retry.Do(
		attempt,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if breakerOpen(err) {
			outcome = "breaker_open"
		}
	}
	if g != nil {
		g.metrics.ObserveGCPCall(service, op, outcome, time.Since(start))
	}
	return out, err
}
