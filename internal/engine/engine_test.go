package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-sniper/internal/config"
	"token-sniper/internal/domain"
	"token-sniper/internal/execution"
	"token-sniper/internal/feed/stub"
	"token-sniper/internal/idhash"
	"token-sniper/internal/journal/memory"
	"token-sniper/internal/observability"
	"token-sniper/internal/risk"
)

const (
	mintA = "So11111111111111111111111111111111111111112"
	mintB = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"

	waitFor  = 5 * time.Second
	pollTick = 5 * time.Millisecond
)

// poolProvider is a scriptable execution provider.
type poolProvider struct {
	name   string
	submit func(req execution.SubmitRequest) (*execution.SubmitReceipt, error)
}

func (p *poolProvider) Name() string { return p.name }

func (p *poolProvider) Submit(_ context.Context, req execution.SubmitRequest) (*execution.SubmitReceipt, error) {
	return p.submit(req)
}

func fillingProvider(name string) *poolProvider {
	return &poolProvider{
		name: name,
		submit: func(req execution.SubmitRequest) (*execution.SubmitReceipt, error) {
			return &execution.SubmitReceipt{Price: req.RefPrice, Size: req.Size}, nil
		},
	}
}

func failingProvider(name string) *poolProvider {
	return &poolProvider{
		name: name,
		submit: func(execution.SubmitRequest) (*execution.SubmitReceipt, error) {
			return nil, errors.New("rpc node down")
		},
	}
}

// blockingProvider parks every submission until released, simulating a
// slow fill.
type blockingProvider struct {
	name    string
	started chan string
	release chan struct{}
}

func newBlockingProvider(name string) *blockingProvider {
	return &blockingProvider{
		name:    name,
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
}

func (p *blockingProvider) Name() string { return p.name }

func (p *blockingProvider) Submit(ctx context.Context, req execution.SubmitRequest) (*execution.SubmitReceipt, error) {
	p.started <- req.Mint
	select {
	case <-p.release:
		return &execution.SubmitReceipt{Price: req.RefPrice, Size: req.Size}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testEngineConfig() *config.Config {
	cfg := config.Default()
	cfg.Execution.ProviderRateLimit = 1000
	cfg.Execution.SubmitTimeoutSeconds = 2
	// Exercise the full-exit path without the first-hit partial policy.
	cfg.Lifecycle.PartialExitMinGain = 10
	return cfg
}

// goodCandidate scores well above the admission threshold: dispersed
// holders, deep pool, no audit flags.
func goodCandidate(mint string, price float64) domain.CandidateSnapshot {
	return domain.CandidateSnapshot{
		Mint:               mint,
		CapturedAt:         time.Now().UnixMilli(),
		Price:              price,
		LiquidityDepth:     150_000,
		Volume24h:          200_000,
		HolderCount:        500,
		Top10Concentration: 0.20,
	}
}

type fixture struct {
	source   *stub.Source
	journal  *memory.Journal
	governor *risk.Governor
	engine   *Engine
	done     chan error
	cancel   context.CancelFunc

	stopOnce sync.Once
	runErr   error
}

// stop cancels the engine and waits for Run to return. Idempotent so
// tests can call it before the cleanup hook does.
func (f *fixture) stop(t *testing.T) error {
	f.stopOnce.Do(func() {
		f.cancel()
		select {
		case f.runErr = <-f.done:
		case <-time.After(waitFor):
			t.Error("engine did not stop")
		}
	})
	return f.runErr
}

func startEngine(t *testing.T, cfg *config.Config, providers []execution.Provider) *fixture {
	t.Helper()

	logger := zerolog.Nop()
	metrics := observability.NewMetrics("test")
	source := stub.New()
	j := memory.New()

	governor := risk.NewGovernor(risk.GovernorOptions{
		Config:  cfg.Risk,
		Metrics: metrics,
		Logger:  logger,
	})
	coordinator := execution.NewCoordinator(execution.CoordinatorOptions{
		Config:    cfg.Execution,
		Providers: providers,
		Reporter:  governor,
		Metrics:   metrics,
		Logger:    logger,
	})
	eng := New(Options{
		Config:      cfg,
		Candidates:  source,
		Ticks:       source,
		Executor:    coordinator,
		Assessments: j,
		Positions:   j,
		Executions:  j,
		TickJournal: j,
		Governor:    governor,
		Metrics:     metrics,
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	f := &fixture{source: source, journal: j, governor: governor, engine: eng, done: done, cancel: cancel}
	t.Cleanup(func() { f.stop(t) })
	return f
}

func (f *fixture) pushTicks(mint string, prices ...float64) {
	for _, p := range prices {
		f.source.PushTick(domain.PriceTick{Mint: mint, Price: p, TimestampMs: time.Now().UnixMilli()})
	}
}

func TestEngine_TrailingStopRideWithProviderFailover(t *testing.T) {
	cfg := testEngineConfig()
	f := startEngine(t, cfg, []execution.Provider{failingProvider("flaky"), fillingProvider("healthy")})

	f.source.PushCandidate(goodCandidate(mintA, 1.00))

	// Entry filled once the monitor subscribes to the tick stream.
	require.Eventually(t, func() bool { return f.source.Subscribed(mintA) }, waitFor, pollTick)
	assert.Equal(t, 1, f.engine.OpenCount())

	// Ride to 3.00, then retrace through the trailing stop.
	f.pushTicks(mintA, 1.50, 2.00, 3.00, 2.30)

	require.Eventually(t, func() bool {
		ps := f.journal.Positions()
		return len(ps) == 1 && ps[0].State == domain.StateClosed
	}, waitFor, pollTick)

	pos := f.journal.Positions()[0]
	assert.Equal(t, domain.CloseTrailingStop, pos.Reason)
	assert.InDelta(t, 130.0, pos.RealizedPnL, 1e-9)
	assert.Zero(t, pos.RemainingFrac)
	require.Eventually(t, func() bool { return f.governor.OpenPositions() == 0 }, waitFor, pollTick)

	// Failover: nothing filled on the dead provider.
	for _, r := range f.journal.Executions() {
		for _, fill := range r.Fills {
			assert.Equal(t, "healthy", fill.Provider)
		}
	}

	// Every consumed tick landed in the tick journal.
	require.Eventually(t, func() bool { return len(f.journal.Ticks()) == 4 }, waitFor, pollTick)
}

func TestEngine_RejectedCandidateOpensNothing(t *testing.T) {
	cfg := testEngineConfig()
	f := startEngine(t, cfg, []execution.Provider{fillingProvider("healthy")})

	snap := goodCandidate(mintA, 1.00)
	snap.Audit.Honeypot = true
	f.source.PushCandidate(snap)

	candidateID := idhash.ComputeAssessmentID(snap.Mint, snap.CapturedAt)
	require.Eventually(t, func() bool {
		_, err := f.journal.GetAssessment(context.Background(), candidateID)
		return err == nil
	}, waitFor, pollTick)

	a, err := f.journal.GetAssessment(context.Background(), candidateID)
	require.NoError(t, err)
	assert.False(t, a.Admit)
	assert.Zero(t, a.Score)

	assert.Empty(t, f.journal.Positions())
	assert.False(t, f.source.Subscribed(mintA))
}

func TestEngine_MalformedCandidateDropped(t *testing.T) {
	cfg := testEngineConfig()
	f := startEngine(t, cfg, []execution.Provider{fillingProvider("healthy")})

	f.source.PushCandidate(domain.CandidateSnapshot{Mint: "not-base58", Price: 1, CapturedAt: 1})

	// A valid candidate behind it still goes through, proving the bad one
	// was dropped rather than wedging the loop.
	f.source.PushCandidate(goodCandidate(mintA, 1.00))
	require.Eventually(t, func() bool { return f.source.Subscribed(mintA) }, waitFor, pollTick)
	assert.Len(t, f.journal.Positions(), 1)
}

func TestEngine_DrawdownHaltBlocksNewEntries(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Risk.DrawdownHaltThreshold = 50
	f := startEngine(t, cfg, []execution.Provider{fillingProvider("healthy")})

	f.source.PushCandidate(goodCandidate(mintA, 1.00))
	require.Eventually(t, func() bool { return f.source.Subscribed(mintA) }, waitFor, pollTick)

	// Stop-loss at -60% trips the 50-unit drawdown threshold.
	f.pushTicks(mintA, 0.40)
	require.Eventually(t, func() bool {
		halted, reason := f.governor.Halted()
		return halted && reason == risk.HaltDrawdown
	}, waitFor, pollTick)

	// The next admittable candidate is denied at the gate.
	snap := goodCandidate(mintB, 1.00)
	f.source.PushCandidate(snap)
	candidateID := idhash.ComputeAssessmentID(snap.Mint, snap.CapturedAt)
	require.Eventually(t, func() bool {
		_, err := f.journal.GetAssessment(context.Background(), candidateID)
		return err == nil
	}, waitFor, pollTick)

	assert.Len(t, f.journal.Positions(), 1)
	assert.False(t, f.source.Subscribed(mintB))
}

func TestEngine_AdmissionCapHoldsDuringSlowEntry(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Risk.MaxConcurrentPositions = 1
	// The entry is held open deliberately; keep the submit deadline out
	// of the way.
	cfg.Execution.SubmitTimeoutSeconds = 30
	slow := newBlockingProvider("slow")
	f := startEngine(t, cfg, []execution.Provider{slow})

	f.source.PushCandidate(goodCandidate(mintA, 1.00))
	select {
	case <-slow.started:
	case <-time.After(waitFor):
		t.Fatal("first entry never submitted")
	}

	// The second candidate arrives while the first entry is still
	// filling; the open count is stale but the slot is already taken.
	snap := goodCandidate(mintB, 1.00)
	f.source.PushCandidate(snap)
	candidateID := idhash.ComputeAssessmentID(snap.Mint, snap.CapturedAt)
	require.Eventually(t, func() bool {
		_, err := f.journal.GetAssessment(context.Background(), candidateID)
		return err == nil
	}, waitFor, pollTick)

	// Denied at the gate: no second entry goes out.
	select {
	case mint := <-slow.started:
		t.Fatalf("entry submitted for %s past the position cap", mint)
	case <-time.After(200 * time.Millisecond):
	}

	close(slow.release)
	require.Eventually(t, func() bool { return f.engine.OpenCount() == 1 }, waitFor, pollTick)
	assert.Equal(t, 1, f.governor.OpenPositions())
	assert.Len(t, f.journal.Positions(), 1)
}

func TestEngine_ConsecutiveExecutionFailuresHalt(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Risk.ConsecutiveFailureHalt = 2
	f := startEngine(t, cfg, []execution.Provider{failingProvider("dead1"), failingProvider("dead2")})

	f.source.PushCandidate(goodCandidate(mintA, 1.00))
	f.source.PushCandidate(goodCandidate(mintB, 1.00))

	require.Eventually(t, func() bool {
		halted, reason := f.governor.Halted()
		return halted && reason == risk.HaltConsecutiveFailures
	}, waitFor, pollTick)

	// Both entries failed before opening anything.
	require.Eventually(t, func() bool {
		ps := f.journal.Positions()
		if len(ps) != 2 {
			return false
		}
		for _, p := range ps {
			if p.Reason != domain.CloseEntryFailed {
				return false
			}
		}
		return true
	}, waitFor, pollTick)
	assert.Equal(t, 0, f.governor.OpenPositions())
}

func TestEngine_ShutdownLeavesPositionOpen(t *testing.T) {
	cfg := testEngineConfig()
	f := startEngine(t, cfg, []execution.Provider{fillingProvider("healthy")})

	f.source.PushCandidate(goodCandidate(mintA, 1.00))
	require.Eventually(t, func() bool { return f.source.Subscribed(mintA) }, waitFor, pollTick)

	assert.ErrorIs(t, f.stop(t), context.Canceled)

	// The journal still shows the position active for restart recovery.
	ps := f.journal.Positions()
	require.Len(t, ps, 1)
	assert.Equal(t, domain.StateActive, ps[0].State)
}
