// Package journal defines the append-only persistence sinks for engine
// records and their shared error values. Implementations live in the
// memory, postgres and clickhouse subpackages.
package journal

import (
	"context"

	"token-sniper/internal/domain"
)

// AssessmentStore persists viability assessments.
type AssessmentStore interface {
	InsertAssessment(ctx context.Context, a *domain.ViabilityAssessment) error
	GetAssessment(ctx context.Context, candidateID string) (*domain.ViabilityAssessment, error)
}

// PositionStore persists positions and their transition history. The
// transition log is append-only; positions are upserted as they mutate.
type PositionStore interface {
	InsertPosition(ctx context.Context, p *domain.Position) error
	UpdatePosition(ctx context.Context, p *domain.Position) error
	GetPosition(ctx context.Context, positionID string) (*domain.Position, error)
	AppendTransition(ctx context.Context, t *domain.PositionTransition) error
	ListTransitions(ctx context.Context, positionID string) ([]domain.PositionTransition, error)
}

// ExecutionStore persists execution results for audit and reconciliation.
type ExecutionStore interface {
	InsertExecution(ctx context.Context, r *domain.ExecutionResult) error
}

// TickStore persists market ticks in batches.
type TickStore interface {
	InsertTicks(ctx context.Context, ticks []domain.PriceTick) error
}

// Journal bundles every sink behind one handle.
type Journal interface {
	AssessmentStore
	PositionStore
	ExecutionStore
	TickStore

	Ping(ctx context.Context) error
	Close() error
}
