// Package memory provides an in-memory journal for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"token-sniper/internal/domain"
	"token-sniper/internal/journal"
)

// Journal is a thread-safe in-memory implementation of journal.Journal.
type Journal struct {
	mu sync.RWMutex

	assessments map[string]*domain.ViabilityAssessment
	positions   map[string]*domain.Position
	transitions map[string][]domain.PositionTransition
	executions  []domain.ExecutionResult
	ticks       []domain.PriceTick
}

// New creates an empty in-memory journal.
func New() *Journal {
	return &Journal{
		assessments: make(map[string]*domain.ViabilityAssessment),
		positions:   make(map[string]*domain.Position),
		transitions: make(map[string][]domain.PositionTransition),
	}
}

func (j *Journal) InsertAssessment(_ context.Context, a *domain.ViabilityAssessment) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.assessments[a.CandidateID]; ok {
		return fmt.Errorf("assessment %s: %w", a.CandidateID, journal.ErrDuplicateKey)
	}
	cp := *a
	j.assessments[a.CandidateID] = &cp
	return nil
}

func (j *Journal) GetAssessment(_ context.Context, candidateID string) (*domain.ViabilityAssessment, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	a, ok := j.assessments[candidateID]
	if !ok {
		return nil, fmt.Errorf("assessment %s: %w", candidateID, journal.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (j *Journal) InsertPosition(_ context.Context, p *domain.Position) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.positions[p.PositionID]; ok {
		return fmt.Errorf("position %s: %w", p.PositionID, journal.ErrDuplicateKey)
	}
	j.positions[p.PositionID] = clonePosition(p)
	return nil
}

func (j *Journal) UpdatePosition(_ context.Context, p *domain.Position) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.positions[p.PositionID]; !ok {
		return fmt.Errorf("position %s: %w", p.PositionID, journal.ErrNotFound)
	}
	j.positions[p.PositionID] = clonePosition(p)
	return nil
}

func (j *Journal) GetPosition(_ context.Context, positionID string) (*domain.Position, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	p, ok := j.positions[positionID]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", positionID, journal.ErrNotFound)
	}
	return clonePosition(p), nil
}

func (j *Journal) AppendTransition(_ context.Context, t *domain.PositionTransition) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.transitions[t.PositionID] = append(j.transitions[t.PositionID], *t)
	return nil
}

func (j *Journal) ListTransitions(_ context.Context, positionID string) ([]domain.PositionTransition, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	src := j.transitions[positionID]
	out := make([]domain.PositionTransition, len(src))
	copy(out, src)
	return out, nil
}

func (j *Journal) InsertExecution(_ context.Context, r *domain.ExecutionResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	cp := *r
	cp.Fills = append([]domain.Fill(nil), r.Fills...)
	j.executions = append(j.executions, cp)
	return nil
}

func (j *Journal) InsertTicks(_ context.Context, ticks []domain.PriceTick) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.ticks = append(j.ticks, ticks...)
	return nil
}

func (j *Journal) Ping(context.Context) error { return nil }
func (j *Journal) Close() error               { return nil }

// Positions returns a copy of every journaled position.
func (j *Journal) Positions() []*domain.Position {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]*domain.Position, 0, len(j.positions))
	for _, p := range j.positions {
		out = append(out, clonePosition(p))
	}
	return out
}

// Executions returns a copy of every journaled execution result.
func (j *Journal) Executions() []domain.ExecutionResult {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]domain.ExecutionResult, len(j.executions))
	copy(out, j.executions)
	return out
}

// Ticks returns a copy of every journaled tick.
func (j *Journal) Ticks() []domain.PriceTick {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]domain.PriceTick, len(j.ticks))
	copy(out, j.ticks)
	return out
}

func clonePosition(p *domain.Position) *domain.Position {
	cp := *p
	cp.Exits = append([]domain.PartialExit(nil), p.Exits...)
	return &cp
}
