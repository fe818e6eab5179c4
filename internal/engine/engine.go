// Package engine runs the candidate intake loop: every snapshot from the
// feed is scored, journaled, gated through the risk governor and, if it
// clears all three, handed to the lifecycle manager as a new position.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"token-sniper/internal/config"
	"token-sniper/internal/domain"
	"token-sniper/internal/feed"
	"token-sniper/internal/journal"
	"token-sniper/internal/lifecycle"
	"token-sniper/internal/observability"
	"token-sniper/internal/risk"
	"token-sniper/internal/scoring"
)

// Options configures an Engine.
type Options struct {
	Config *config.Config

	Candidates feed.CandidateSource
	Ticks      feed.TickSource
	Executor   lifecycle.Executor

	Assessments journal.AssessmentStore
	Positions   journal.PositionStore
	Executions  journal.ExecutionStore // may be nil
	TickJournal journal.TickStore      // may be nil, disables tick journaling

	Governor *risk.Governor
	Metrics  *observability.Metrics // may be nil
	Logger   zerolog.Logger

	Now        func() time.Time // defaults to time.Now
	Congestion func() float64   // defaults to 0
}

// Engine owns the intake loop and the lifecycle manager. One Engine per
// process; Run blocks until the context is cancelled and every open
// monitor has stopped.
type Engine struct {
	cfg *config.Config

	candidates  feed.CandidateSource
	assessments journal.AssessmentStore
	governor    *risk.Governor
	manager     *lifecycle.Manager
	metrics     *observability.Metrics
	logger      zerolog.Logger

	entries sync.WaitGroup
}

// New wires an Engine from its collaborators. The tick source is wrapped
// so every tick a monitor consumes is also journaled.
func New(opts Options) *Engine {
	ticks := opts.Ticks
	if opts.TickJournal != nil {
		ticks = newJournalingTicks(opts.Ticks, opts.TickJournal, opts.Logger)
	}

	manager := lifecycle.NewManager(lifecycle.ManagerOptions{
		Lifecycle:  opts.Config.Lifecycle,
		Execution:  opts.Config.Execution,
		Executor:   opts.Executor,
		Ticks:      ticks,
		Positions:  opts.Positions,
		Executions: opts.Executions,
		Risk:       opts.Governor,
		Metrics:    opts.Metrics,
		Logger:     opts.Logger,
		Now:        opts.Now,
		Congestion: opts.Congestion,
	})

	return &Engine{
		cfg:         opts.Config,
		candidates:  opts.Candidates,
		assessments: opts.Assessments,
		governor:    opts.Governor,
		manager:     manager,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With().Str("component", "engine").Logger(),
	}
}

// Run consumes candidates until ctx is cancelled or the candidate stream
// closes, then waits for in-flight entries and open-position monitors.
// Open positions are left open on shutdown; the journal carries enough
// to pick them up on restart.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().
		Float64("viability_threshold", e.cfg.Scoring.ViabilityThreshold).
		Int("max_positions", e.cfg.Risk.MaxConcurrentPositions).
		Msg("intake loop started")

	stream := e.candidates.Candidates()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case snap, ok := <-stream:
			if !ok {
				e.logger.Warn().Msg("candidate stream closed")
				break loop
			}
			e.handleCandidate(ctx, &snap)
		}
	}

	e.entries.Wait()
	e.manager.Wait()
	e.logger.Info().Msg("intake loop stopped")
	return ctx.Err()
}

// OpenCount reports the number of positions currently monitored.
func (e *Engine) OpenCount() int {
	return e.manager.OpenCount()
}

// handleCandidate runs one snapshot through score -> journal -> admit.
// The entry itself runs on its own goroutine so a slow fill never stalls
// the intake loop.
func (e *Engine) handleCandidate(ctx context.Context, snap *domain.CandidateSnapshot) {
	logger := e.logger.With().Str("mint", snap.Mint).Logger()

	assessment, err := scoring.Assess(snap, e.cfg.Scoring)
	if err != nil {
		if e.metrics != nil {
			e.metrics.CandidatesInvalid.Inc()
		}
		logger.Warn().Err(err).Msg("candidate dropped")
		return
	}
	if e.metrics != nil {
		e.metrics.CandidatesAssessed.Inc()
	}

	if err := e.assessments.InsertAssessment(ctx, assessment); err != nil {
		if errors.Is(err, journal.ErrDuplicateKey) {
			// Deterministic IDs: a replayed snapshot was already decided.
			logger.Debug().Str("candidate_id", assessment.CandidateID).Msg("candidate already assessed")
			return
		}
		logger.Error().Err(err).Msg("journal assessment failed, candidate dropped")
		return
	}

	if !assessment.Admit {
		if e.metrics != nil {
			e.metrics.CandidatesRejected.Inc()
		}
		logger.Info().Float64("score", assessment.Score).Msg("candidate rejected")
		return
	}
	if e.metrics != nil {
		e.metrics.CandidatesAdmitted.Inc()
	}

	if ok, reason := e.governor.TryAdmit(); !ok {
		logger.Info().Str("reason", reason).Float64("score", assessment.Score).
			Msg("admission denied")
		return
	}

	logger.Info().Float64("score", assessment.Score).Msg("candidate admitted, opening position")

	snapCopy := *snap
	e.entries.Add(1)
	go func() {
		defer e.entries.Done()
		if _, err := e.manager.Open(ctx, &snapCopy); err != nil {
			// Nothing opened: hand the admission slot back.
			e.governor.Release()
			if errors.Is(err, domain.ErrExecutionFailed) {
				return // already journaled and logged by the manager
			}
			logger.Error().Err(err).Msg("position open failed")
		}
	}()
}
