package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"token-sniper/internal/domain"
	"token-sniper/internal/journal"
)

// AssessmentStore implements journal.AssessmentStore using PostgreSQL.
type AssessmentStore struct {
	pool *Pool
}

// NewAssessmentStore creates a new AssessmentStore.
func NewAssessmentStore(pool *Pool) *AssessmentStore {
	return &AssessmentStore{pool: pool}
}

// Compile-time interface check.
var _ journal.AssessmentStore = (*AssessmentStore)(nil)

// InsertAssessment journals one assessment. Returns ErrDuplicateKey if
// the candidate was already assessed (deterministic IDs make replays
// land here).
func (s *AssessmentStore) InsertAssessment(ctx context.Context, a *domain.ViabilityAssessment) error {
	factors, err := json.Marshal(a.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	degraded, err := json.Marshal(a.Degraded)
	if err != nil {
		return fmt.Errorf("marshal degraded: %w", err)
	}

	query := `
		INSERT INTO assessments (
			candidate_id, mint, score, admitted, factors, degraded, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		a.CandidateID,
		a.Mint,
		a.Score,
		a.Admit,
		factors,
		degraded,
		a.EvaluatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return journal.ErrDuplicateKey
		}
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// GetAssessment retrieves an assessment by candidate ID. Returns
// ErrNotFound if it does not exist.
func (s *AssessmentStore) GetAssessment(ctx context.Context, candidateID string) (*domain.ViabilityAssessment, error) {
	query := `
		SELECT candidate_id, mint, score, admitted, factors, degraded, evaluated_at
		FROM assessments
		WHERE candidate_id = $1
	`

	var a domain.ViabilityAssessment
	var factors, degraded []byte

	err := s.pool.QueryRow(ctx, query, candidateID).Scan(
		&a.CandidateID,
		&a.Mint,
		&a.Score,
		&a.Admit,
		&factors,
		&degraded,
		&a.EvaluatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, journal.ErrNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	if err := json.Unmarshal(factors, &a.Factors); err != nil {
		return nil, fmt.Errorf("unmarshal factors: %w", err)
	}
	if err := json.Unmarshal(degraded, &a.Degraded); err != nil {
		return nil, fmt.Errorf("unmarshal degraded: %w", err)
	}
	return &a, nil
}
