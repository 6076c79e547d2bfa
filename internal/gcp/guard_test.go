package gcp

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

func TestRun_retriesTransientThenSucceeds(t *testing.T) {
	g := NewGuard(zerolog.Nop(), nil, GuardOptions{RetryAttempts: 3, RetryDelay: time.Millisecond})
	calls := 0
	got, err := run(context.Background(), g, ServiceBigQuery, "jobs.query", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &googleapi.Error{Code: http.StatusInternalServerError}
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "done" || calls != 3 {
		t.Fatalf("expected done after 3 calls, got %q after %d", got, calls)
	}
}

func TestRun_doesNotRetryClientErrors(t *testing.T) {
	g := NewGuard(zerolog.Nop(), nil, GuardOptions{RetryAttempts: 3, RetryDelay: time.Millisecond})
	calls := 0
	want := &googleapi.Error{Code: http.StatusForbidden, Message: "denied"}
	_, err := run(context.Background(), g, ServiceMonitoring, "timeSeries.list", func(context.Context) (int, error) {
		calls++
		return 0, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestRun_breakerOpensAfterConsecutiveFailures(t *testing.T) {
	g := NewGuard(zerolog.Nop(), nil, GuardOptions{
		RetryAttempts:   1,
		BreakerFailures: 2,
		BreakerOpenFor:  time.Minute,
	})
	fail := func(context.Context) (int, error) {
		return 0, &googleapi.Error{Code: http.StatusServiceUnavailable}
	}
	for i := 0; i < 2; i++ {
		if _, err := run(context.Background(), g, ServiceResourceManager, "projects.list", fail); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}

	calls := 0
	_, err := run(context.Background(), g, ServiceResourceManager, "projects.list", func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	if !breakerOpen(err) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected call to be short-circuited, got %d calls", calls)
	}

	// Other services keep their own breaker.
	if _, err := run(context.Background(), g, ServiceBigQuery, "jobs.query", func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("expected bigquery breaker to stay closed, got %v", err)
	}
}

func TestRun_forbiddenDoesNotTripBreaker(t *testing.T) {
	g := NewGuard(zerolog.Nop(), nil, GuardOptions{RetryAttempts: 1, BreakerFailures: 1})
	for i := 0; i < 3; i++ {
		_, _ = run(context.Background(), g, ServiceOAuth2, "userinfo.get", func(context.Context) (int, error) {
			return 0, &googleapi.Error{Code: http.StatusForbidden}
		})
	}
	_, err := run(context.Background(), g, ServiceOAuth2, "userinfo.get", func(context.Context) (int, error) { return 1, nil })
	if err != nil {
		t.Fatalf("expected breaker to remain closed, got %v", err)
	}
}

func TestRun_nilGuardCallsThrough(t *testing.T) {
	got, err := run(context.Background(), nil, ServiceBigQuery, "jobs.query", func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("expected ok, got %q, %v", got, err)
	}
}

func TestGuard_breakerLogUsesGCPServiceKey(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).With().Str("service", "netviz").Logger()
	g := NewGuard(log, nil, GuardOptions{RetryAttempts: 1, BreakerFailures: 1, BreakerOpenFor: time.Minute})

	_, _ = run(context.Background(), g, ServiceResourceManager, "projects.list", func(context.Context) (int, error) {
		return 0, &googleapi.Error{Code: http.StatusServiceUnavailable}
	})

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, `"gcp_service":"resourcemanager"`) {
		t.Fatalf("expected breaker state change event, got %q", line)
	}
	if n := strings.Count(line, `"service":`); n != 1 {
		t.Fatalf("expected one service field, got %d in %s", n, line)
	}
}
