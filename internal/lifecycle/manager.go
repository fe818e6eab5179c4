package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"token-sniper/internal/config"
	"token-sniper/internal/domain"
	"token-sniper/internal/feed"
	"token-sniper/internal/idhash"
	"token-sniper/internal/journal"
	"token-sniper/internal/observability"
)

// Executor submits orders; satisfied by execution.Coordinator.
type Executor interface {
	Submit(ctx context.Context, order *domain.ExecutionOrder, congestion float64) *domain.ExecutionResult
}

// RiskSink receives position open/close notifications; satisfied by
// risk.Governor.
type RiskSink interface {
	OnOpen()
	OnClose(pnl float64)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Lifecycle config.LifecycleConfig
	Execution config.ExecutionConfig

	Executor   Executor
	Ticks      feed.TickSource
	Positions  journal.PositionStore
	Executions journal.ExecutionStore // may be nil
	Risk       RiskSink               // may be nil
	Metrics    *observability.Metrics // may be nil
	Logger     zerolog.Logger

	Now        func() time.Time // defaults to time.Now
	Congestion func() float64   // network congestion signal, defaults to 0
}

// Manager opens positions and runs one monitor goroutine per open
// position until it reaches a terminal state.
type Manager struct {
	machine *Machine
	execCfg config.ExecutionConfig

	executor   Executor
	ticks      feed.TickSource
	positions  journal.PositionStore
	executions journal.ExecutionStore
	risk       RiskSink
	metrics    *observability.Metrics
	logger     zerolog.Logger

	now        func() time.Time
	congestion func() float64

	mu   sync.Mutex
	open map[string]*domain.Position
	wg   sync.WaitGroup
}

// NewManager creates a Manager with no open positions.
func NewManager(opts ManagerOptions) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	congestion := opts.Congestion
	if congestion == nil {
		congestion = func() float64 { return 0 }
	}
	return &Manager{
		machine:    NewMachine(opts.Lifecycle),
		execCfg:    opts.Execution,
		executor:   opts.Executor,
		ticks:      opts.Ticks,
		positions:  opts.Positions,
		executions: opts.Executions,
		risk:       opts.Risk,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("component", "lifecycle").Logger(),
		now:        now,
		congestion: congestion,
		open:       make(map[string]*domain.Position),
	}
}

// Open attempts an entry for an admitted candidate. On a fill the
// position goes ACTIVE and a monitor goroutine takes ownership; on entry
// failure the position closes as ENTRY_FAILED and an error is returned.
// The caller must have cleared admission with the risk governor first.
func (m *Manager) Open(ctx context.Context, snap *domain.CandidateSnapshot) (*domain.Position, error) {
	now := m.now()
	orderID := uuid.NewString()
	posID := idhash.ComputePositionID(snap.Mint, orderID, now.UnixMilli())

	pos := m.machine.NewPosition(posID, snap.Mint)
	if err := m.positions.InsertPosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("lifecycle.Open: journal position: %w", err)
	}

	order := &domain.ExecutionOrder{
		OrderID:        orderID,
		PositionID:     posID,
		Side:           domain.SideBuy,
		Mint:           snap.Mint,
		Size:           m.execCfg.MaxPositionSize,
		RefPrice:       snap.Price,
		MaxSlippage:    m.execCfg.SlippageTolerance,
		LiquidityDepth: snap.LiquidityDepth,
		Urgency:        domain.UrgencyNormal,
		DeadlineMs:     now.Add(m.execCfg.OrderTTL()).UnixMilli(),
	}

	result := m.executor.Submit(ctx, order, m.congestion())
	m.journalExecution(ctx, result)

	if len(result.Fills) == 0 {
		tr := m.machine.AbortEntry(pos, m.now())
		m.journalTransition(ctx, pos, tr)
		m.logger.Warn().Str("mint", snap.Mint).Str("position_id", posID).
			Str("failure", result.FailureKind).Msg("entry failed, no position opened")
		return pos, fmt.Errorf("lifecycle.Open: entry for %s: %w", snap.Mint, domain.ErrExecutionFailed)
	}

	tr := m.machine.ApplyEntry(pos, result.AvgPrice(), result.FilledSize(), m.now())
	m.journalTransition(ctx, pos, tr)

	if m.risk != nil {
		m.risk.OnOpen()
	}
	if m.metrics != nil {
		m.metrics.PositionsOpened.Inc()
		m.metrics.OpenPositions.Inc()
	}
	m.logger.Info().Str("mint", snap.Mint).Str("position_id", posID).
		Float64("entry_price", pos.EntryPrice).Float64("size", pos.EntrySize).
		Msg("position opened")

	m.mu.Lock()
	m.open[posID] = pos
	m.mu.Unlock()

	m.wg.Add(1)
	go m.monitor(ctx, pos)

	return pos, nil
}

// OpenCount returns the number of positions currently monitored.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Wait blocks until every monitor goroutine has returned. Call after
// cancelling the context passed to Open.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// monitor consumes the position's tick stream until the position closes
// or the context is cancelled. It is the sole mutator of the position
// after Open returns.
func (m *Manager) monitor(ctx context.Context, pos *domain.Position) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.open, pos.PositionID)
		m.mu.Unlock()
	}()

	logger := m.logger.With().Str("position_id", pos.PositionID).Str("mint", pos.Mint).Logger()

	ticks, err := m.ticks.Subscribe(ctx, pos.Mint)
	if err != nil {
		logger.Error().Err(err).Msg("tick subscription failed, closing position unmanaged")
		tr := m.machine.Abort(pos, domain.CloseError, m.now())
		m.finalize(ctx, pos, []domain.PositionTransition{tr}, logger)
		return
	}
	defer m.ticks.Unsubscribe(pos.Mint)

	for {
		select {
		case <-ctx.Done():
			// Shutdown: the position stays open on chain and is picked
			// up from the journal on restart.
			logger.Info().Str("state", string(pos.State)).Msg("monitor stopping, position left open")
			return
		case tick, ok := <-ticks:
			if !ok {
				logger.Warn().Msg("tick stream closed, monitor stopping")
				return
			}
			if m.handleTick(ctx, pos, tick, logger) {
				return
			}
		}
	}
}

// handleTick applies one tick; returns true once the position is closed.
func (m *Manager) handleTick(ctx context.Context, pos *domain.Position, tick domain.PriceTick, logger zerolog.Logger) bool {
	decision := m.machine.Evaluate(pos, tick, m.now())
	for _, tr := range decision.Transitions {
		m.journalTransition(ctx, pos, tr)
		logger.Info().Str("to", string(tr.To)).Float64("price", tr.Price).
			Float64("trail_pct", pos.TrailPct).Msg("trailing stop armed")
	}

	switch decision.Action {
	case ActionPartialExit:
		m.executePartialExit(ctx, pos, decision, tick, logger)
		return pos.Terminal()
	case ActionFullExit:
		m.executeFullExit(ctx, pos, decision.Reason, tick, logger)
		return true
	}
	return false
}

func (m *Manager) executePartialExit(ctx context.Context, pos *domain.Position, decision Decision, tick domain.PriceTick, logger zerolog.Logger) {
	order := m.sellOrder(pos, decision.Fraction, tick.Price)
	result := m.executor.Submit(ctx, order, m.congestion())
	m.journalExecution(ctx, result)

	if len(result.Fills) == 0 {
		// Not fatal: the trigger will fire again on a later tick.
		logger.Warn().Str("trigger", decision.Trigger).Str("failure", result.FailureKind).
			Msg("partial exit failed, position unchanged")
		return
	}

	// Scale the intended fraction down by what actually filled.
	fraction := decision.Fraction * result.FilledSize() / order.Size
	trs := m.machine.ApplyPartialExit(pos, fraction, result.AvgPrice(), decision.Trigger, m.now())
	for _, tr := range trs {
		m.journalTransition(ctx, pos, tr)
	}
	logger.Info().Str("trigger", decision.Trigger).Float64("fraction", fraction).
		Float64("price", result.AvgPrice()).Float64("remaining", pos.RemainingFrac).
		Msg("partial exit filled")
}

func (m *Manager) executeFullExit(ctx context.Context, pos *domain.Position, reason domain.CloseReason, tick domain.PriceTick, logger zerolog.Logger) {
	order := m.sellOrder(pos, pos.RemainingFrac, tick.Price)
	result := m.executor.Submit(ctx, order, m.congestion())
	m.journalExecution(ctx, result)

	var trs []domain.PositionTransition
	switch {
	case result.Status == domain.ExecFilled:
		trs = append(trs, m.machine.ApplyClose(pos, reason, result.AvgPrice(), m.now()))
	case len(result.Fills) > 0:
		// Part of the exit filled; bank it, then flag the stranded
		// remainder for manual intervention.
		fraction := pos.RemainingFrac * result.FilledSize() / order.Size
		trs = append(trs, m.machine.ApplyPartialExit(pos, fraction, result.AvgPrice(), domain.PartialTriggerForced, m.now())...)
		trs = append(trs, m.machine.Abort(pos, domain.CloseError, m.now()))
	default:
		trs = append(trs, m.machine.Abort(pos, domain.CloseError, m.now()))
	}
	for _, tr := range trs {
		m.journalTransition(ctx, pos, tr)
	}

	m.finalize(ctx, pos, nil, logger)
}

// finalize reports a closed position to risk and metrics.
func (m *Manager) finalize(ctx context.Context, pos *domain.Position, extra []domain.PositionTransition, logger zerolog.Logger) {
	for _, tr := range extra {
		m.journalTransition(ctx, pos, tr)
	}

	if m.risk != nil {
		m.risk.OnClose(pos.RealizedPnL)
	}
	if m.metrics != nil {
		m.metrics.PositionsClosed.WithLabelValues(string(pos.Reason)).Inc()
		m.metrics.OpenPositions.Dec()
		m.metrics.RealizedPnL.Add(pos.RealizedPnL)
	}
	logger.Info().Str("reason", string(pos.Reason)).Float64("realized_pnl", pos.RealizedPnL).
		Msg("position closed")
}

// sellOrder builds a high-urgency exit for a fraction of the original
// size, valued at the current price.
func (m *Manager) sellOrder(pos *domain.Position, fraction, price float64) *domain.ExecutionOrder {
	now := m.now()
	return &domain.ExecutionOrder{
		OrderID:     uuid.NewString(),
		PositionID:  pos.PositionID,
		Side:        domain.SideSell,
		Mint:        pos.Mint,
		Size:        fraction * pos.EntrySize * (price / pos.EntryPrice),
		RefPrice:    price,
		MaxSlippage: m.execCfg.SlippageTolerance,
		Urgency:     domain.UrgencyHigh,
		DeadlineMs:  now.Add(m.execCfg.OrderTTL()).UnixMilli(),
	}
}

func (m *Manager) journalTransition(ctx context.Context, pos *domain.Position, tr domain.PositionTransition) {
	if err := m.positions.AppendTransition(ctx, &tr); err != nil {
		m.logger.Error().Err(err).Str("position_id", tr.PositionID).Msg("journal transition failed")
	}
	if err := m.positions.UpdatePosition(ctx, pos); err != nil {
		m.logger.Error().Err(err).Str("position_id", pos.PositionID).Msg("journal position update failed")
	}
}

func (m *Manager) journalExecution(ctx context.Context, result *domain.ExecutionResult) {
	if m.executions == nil {
		return
	}
	if err := m.executions.InsertExecution(ctx, result); err != nil {
		m.logger.Error().Err(err).Str("order_id", result.OrderID).Msg("journal execution failed")
	}
}
