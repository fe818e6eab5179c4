// Package execution submits orders across a pool of redundant
// trade-submission providers under a per-provider circuit-breaker policy.
package execution

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"token-sniper/internal/config"
	"token-sniper/internal/domain"
	"token-sniper/internal/observability"
)

// maxChildOrders caps micro-execution splitting so a thin pool cannot
// explode one order into hundreds of dust clips.
const maxChildOrders = 10

// Coordinator owns the provider pool and turns ExecutionOrders into
// fills. Safe for concurrent use: per-provider health records carry their
// own locks and nothing else is shared.
type Coordinator struct {
	cfg      config.ExecutionConfig
	states   []*providerState
	reporter FailureReporter
	metrics  *observability.Metrics
	logger   zerolog.Logger

	// now is a clock hook for tests.
	now func() time.Time
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Config    config.ExecutionConfig
	Providers []Provider
	Reporter  FailureReporter // may be nil
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
	Now       func() time.Time // defaults to time.Now
}

// NewCoordinator creates a Coordinator over the given provider pool.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	states := make([]*providerState, 0, len(opts.Providers))
	for _, p := range opts.Providers {
		states = append(states, &providerState{
			provider: p,
			breaker: newBreaker(
				opts.Config.FailureThreshold,
				opts.Config.FailureWindow(),
				opts.Config.Cooldown(),
			),
			limiter: rate.NewLimiter(rate.Limit(opts.Config.ProviderRateLimit), int(math.Ceil(opts.Config.ProviderRateLimit))),
		})
	}

	return &Coordinator{
		cfg:      opts.Config,
		states:   states,
		reporter: opts.Reporter,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With().Str("component", "execution").Logger(),
		now:      now,
	}
}

// Submit executes one order, splitting it into child orders bounded by
// the configured clip fraction of available liquidity. congestion is the
// caller-observed network congestion signal feeding the fee policy.
//
// Partial fills are reported as-is: on-chain fills are irreversible, so
// nothing is ever rolled back. A whole-pool failure yields ExecFailed and
// is escalated to the failure reporter.
func (c *Coordinator) Submit(ctx context.Context, order *domain.ExecutionOrder, congestion float64) *domain.ExecutionResult {
	result := &domain.ExecutionResult{OrderID: order.OrderID}

	if c.metrics != nil {
		c.metrics.OrdersSubmitted.WithLabelValues(string(order.Side)).Inc()
	}

	clipSize, clipCount := c.clipPlan(order)

	for clip := 0; clip < clipCount; clip++ {
		if deadline := time.UnixMilli(order.DeadlineMs); c.now().After(deadline) {
			c.logger.Warn().Str("order_id", order.OrderID).Int("clip", clip).
				Msg("order deadline passed, cancelling remaining clips")
			return c.finish(order, result, statusForFills(result), domain.FailureTimeout)
		}

		fill, err := c.submitClip(ctx, order, clipSize, congestion)
		if err != nil {
			if ctx.Err() != nil {
				// Shutdown mid-order: the last call's final state was
				// not observed. Flag for manual reconciliation.
				return c.finish(order, result, domain.ExecUnknown, domain.FailureTimeout)
			}
			if errors.Is(err, errSlippageBreached) {
				// Remaining unsent children are cancelled; already
				// filled children stand.
				return c.finish(order, result, statusForFills(result), domain.FailureSlippage)
			}
			// Pool exhausted for this clip.
			return c.finish(order, result, statusForFills(result), domain.FailureExhausted)
		}

		result.Fills = append(result.Fills, *fill)
		if c.metrics != nil {
			c.metrics.ChildFills.Inc()
		}
	}

	// Every planned clip filled.
	return c.finish(order, result, domain.ExecFilled, "")
}

// clipPlan derives the micro-execution schedule: child size is capped at
// the configured fraction of observed liquidity.
func (c *Coordinator) clipPlan(order *domain.ExecutionOrder) (float64, int) {
	if order.LiquidityDepth <= 0 {
		return order.Size, 1
	}

	maxClip := order.LiquidityDepth * c.cfg.MaxClipFraction
	if maxClip <= 0 || order.Size <= maxClip {
		return order.Size, 1
	}

	count := int(math.Ceil(order.Size / maxClip))
	if count > maxChildOrders {
		count = maxChildOrders
	}
	return order.Size / float64(count), count
}

var (
	errSlippageBreached = errors.New("slippage bound breached")
	errPoolExhausted    = errors.New("provider pool exhausted")
)

// submitClip tries one child order against the pool in health-ranked
// order. Every retry against another provider escalates the priority fee.
func (c *Coordinator) submitClip(ctx context.Context, order *domain.ExecutionOrder, size, congestion float64) (*domain.Fill, error) {
	ranked := rankProviders(c.states, c.now())

	attempt := 0
	for _, ps := range ranked {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !ps.admit(c.now()) {
			// Breaker open or rate limited; skip without contacting.
			continue
		}

		name := ps.provider.Name()
		req := SubmitRequest{
			OrderID:     order.OrderID,
			Side:        order.Side,
			Mint:        order.Mint,
			Size:        size,
			RefPrice:    order.RefPrice,
			MaxSlippage: order.MaxSlippage,
			PriorityFee: PriorityFee(c.cfg.BasePriorityFee, congestion, order.Urgency, attempt),
		}
		attempt++

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout())
		start := c.now()
		receipt, err := ps.provider.Submit(callCtx, req)
		latency := c.now().Sub(start)
		cancel()

		if err != nil {
			ps.recordFailure(c.now())
			c.observeProvider(ps, name, latency, true)
			c.logger.Warn().Err(err).Str("provider", name).Str("order_id", order.OrderID).
				Msg("provider submission failed")
			continue
		}

		if slippageBreached(order, receipt.Price) {
			// The provider's min-out bound should have reverted this;
			// treat the clip as failed and stop sending children.
			ps.recordFailure(c.now())
			c.observeProvider(ps, name, latency, true)
			c.logger.Warn().Str("provider", name).Str("order_id", order.OrderID).
				Float64("ref_price", order.RefPrice).Float64("fill_price", receipt.Price).
				Msg("realized slippage outside bound, cancelling remaining children")
			return nil, errSlippageBreached
		}

		ps.recordSuccess(latency)
		c.observeProvider(ps, name, latency, false)

		return &domain.Fill{
			Price:    receipt.Price,
			Size:     receipt.Size,
			Provider: name,
			FilledAt: c.now().UnixMilli(),
		}, nil
	}

	return nil, errPoolExhausted
}

// slippageBreached checks a realized price against the order's bound.
// Buys fail above RefPrice*(1+max), sells below RefPrice*(1-max).
func slippageBreached(order *domain.ExecutionOrder, price float64) bool {
	if order.RefPrice <= 0 || order.MaxSlippage <= 0 {
		return false
	}
	if order.Side == domain.SideBuy {
		return price > order.RefPrice*(1+order.MaxSlippage)
	}
	return price < order.RefPrice*(1-order.MaxSlippage)
}

// finish stamps the result, updates metrics and escalates pool outcomes.
func (c *Coordinator) finish(order *domain.ExecutionOrder, result *domain.ExecutionResult, status domain.ExecutionStatus, failureKind string) *domain.ExecutionResult {
	result.Status = status
	result.CompletedAt = c.now().UnixMilli()
	if status != domain.ExecFilled {
		result.FailureKind = failureKind
	}

	switch status {
	case domain.ExecFilled, domain.ExecPartial:
		if c.reporter != nil {
			c.reporter.OnExecutionSuccess()
		}
	case domain.ExecFailed:
		if c.reporter != nil {
			c.reporter.OnExecutionFailure()
		}
		if c.metrics != nil {
			c.metrics.OrderFailures.WithLabelValues(result.FailureKind).Inc()
		}
		c.logger.Error().Str("order_id", order.OrderID).Str("kind", result.FailureKind).
			Msg("order failed across all providers")
	}

	return result
}

// statusForFills classifies a result by what actually filled.
func statusForFills(result *domain.ExecutionResult) domain.ExecutionStatus {
	if len(result.Fills) == 0 {
		return domain.ExecFailed
	}
	return domain.ExecPartial
}

func (c *Coordinator) observeProvider(ps *providerState, name string, latency time.Duration, failed bool) {
	if c.metrics == nil {
		return
	}
	c.metrics.ProviderLatency.WithLabelValues(name).Observe(latency.Seconds())
	if failed {
		c.metrics.ProviderFailures.WithLabelValues(name).Inc()
	}
	c.metrics.SetBreakerState(name, string(ps.snapshot().State))
}

// Health returns a snapshot of every provider's health record.
func (c *Coordinator) Health() []HealthSnapshot {
	out := make([]HealthSnapshot, 0, len(c.states))
	for _, ps := range c.states {
		out = append(out, ps.snapshot())
	}
	return out
}
