package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/swarm/internal/scheduler"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// ResilientExecutor wraps an ExecutorFunc with exponential backoff retries
// and a circuit breaker shared across all tasks it runs. Transient executor
// errors are retried; once the breaker trips, further attempts fail fast
// until the executor recovers.
type ResilientExecutor struct {
	inner    ExecutorFunc
	retryCfg RetryConfig
	breaker  *gobreaker.CircuitBreaker
}

// NewResilientExecutor wraps exec with retry and circuit breaker protection.
func NewResilientExecutor(exec ExecutorFunc, retryCfg RetryConfig) *ResilientExecutor {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "executor",
		MaxRequests: 3, // Allow 3 test requests in half-open state
		Interval:    0, // Don't clear counts automatically
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Don't count caller cancellation as executor failure
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	return &ResilientExecutor{
		inner:    exec,
		retryCfg: retryCfg,
		breaker:  cb,
	}
}

// Execute runs a task through the breaker with retries. It satisfies
// ExecutorFunc, so a ResilientExecutor drops into ExecuteParallel directly.
func (e *ResilientExecutor) Execute(ctx context.Context, task scheduler.SubTask) (scheduler.SubTaskResult, error) {
	var result scheduler.SubTaskResult

	operation := func() error {
		// Fail fast if the caller gave up
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		out, err := e.breaker.Execute(func() (interface{}, error) {
			return e.inner(ctx, task)
		})

		if err != nil {
			// Circuit is open; retrying immediately cannot help
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		result = out.(scheduler.SubTaskResult)

		// A clean error-free result that still reports failure is a task
		// level outcome, not an executor fault. Don't retry it.
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.retryCfg.InitialInterval
	policy.MaxInterval = e.retryCfg.MaxInterval
	policy.MaxElapsedTime = e.retryCfg.MaxElapsedTime
	policy.Multiplier = e.retryCfg.Multiplier
	policy.RandomizationFactor = e.retryCfg.RandomizationFactor

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return result, err
}
