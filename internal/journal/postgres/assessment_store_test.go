package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-sniper/internal/domain"
	"token-sniper/internal/journal"
)

func testAssessment(candidateID string) *domain.ViabilityAssessment {
	return &domain.ViabilityAssessment{
		CandidateID: candidateID,
		Mint:        "So11111111111111111111111111111111111111112",
		Score:       82.5,
		Admit:       true,
		Factors: []domain.ViabilityFactor{
			{Name: domain.FactorHolderConcentration, Weight: 1.0, Raw: 0.35, Delta: -10},
			{Name: domain.FactorLiquidityDepth, Weight: 1.0, Raw: 75_000, Delta: 3},
		},
		Degraded:    []string{domain.FactorWashTrading},
		EvaluatedAt: 1_700_000_000_000,
	}
}

func TestAssessmentStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssessmentStore(pool)
	ctx := context.Background()

	a := testAssessment("cand-1")
	require.NoError(t, store.InsertAssessment(ctx, a))

	got, err := store.GetAssessment(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, a.Mint, got.Mint)
	assert.Equal(t, a.Score, got.Score)
	assert.True(t, got.Admit)
	assert.Equal(t, a.Factors, got.Factors)
	assert.Equal(t, a.Degraded, got.Degraded)
	assert.Equal(t, a.EvaluatedAt, got.EvaluatedAt)
}

func TestAssessmentStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssessmentStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertAssessment(ctx, testAssessment("cand-1")))
	err := store.InsertAssessment(ctx, testAssessment("cand-1"))
	assert.ErrorIs(t, err, journal.ErrDuplicateKey)
}

func TestAssessmentStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAssessmentStore(pool)

	_, err := store.GetAssessment(context.Background(), "missing")
	assert.ErrorIs(t, err, journal.ErrNotFound)
}
