package reasoning

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskpilot/internal/breaker"
	"github.com/taskpilot/internal/tools"
	"github.com/taskpilot/pkg/models"
)

// ResilientEngine guards an Engine with the shared circuit breaker and a
// hard per-call timeout. Only the reasoning capability is guarded this way;
// database and tool failures are a different failure domain and never touch
// the breaker.
type ResilientEngine struct {
	engine  Engine
	breaker *breaker.Breaker
	timeout time.Duration
}

// NewResilientEngine wraps engine with the shared breaker and timeout
func NewResilientEngine(engine Engine, b *breaker.Breaker, timeout time.Duration) *ResilientEngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResilientEngine{engine: engine, breaker: b, timeout: timeout}
}

// Decide performs one guarded reasoning call. Breaker-open fails fast with
// a service-unavailable error and no call is attempted. Timeouts surface as
// retryable timeout errors and count toward the breaker.
func (r *ResilientEngine) Decide(ctx context.Context, history []models.Message, catalog []tools.Spec) (*Decision, error) {
	if err := r.breaker.Allow(); err != nil {
		log.Warn().Msg("reasoning call rejected, breaker open")
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	decision, err := r.engine.Decide(callCtx, history, catalog)
	if err != nil {
		// A caller hanging up says nothing about the capability's health;
		// only the breaker's own deadline counts as a timeout.
		if ctx.Err() == context.Canceled {
			return nil, err
		}
		r.breaker.RecordFailure()
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, models.NewTimeoutError("reasoning call")
		}
		return nil, err
	}

	r.breaker.RecordSuccess()
	return decision, nil
}
