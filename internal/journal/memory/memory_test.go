package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-sniper/internal/domain"
	"token-sniper/internal/journal"
)

// The in-memory journal backs tests and dry runs; it must honor the same
// contract as the database-backed stores.
var _ journal.Journal = (*Journal)(nil)

func TestJournal_AssessmentContract(t *testing.T) {
	j := New()
	ctx := context.Background()

	a := &domain.ViabilityAssessment{CandidateID: "cand-1", Mint: "mintA", Score: 70, Admit: true}
	require.NoError(t, j.InsertAssessment(ctx, a))
	assert.ErrorIs(t, j.InsertAssessment(ctx, a), journal.ErrDuplicateKey)

	got, err := j.GetAssessment(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, 70.0, got.Score)

	_, err = j.GetAssessment(ctx, "missing")
	assert.ErrorIs(t, err, journal.ErrNotFound)
}

func TestJournal_PositionContract(t *testing.T) {
	j := New()
	ctx := context.Background()

	p := &domain.Position{PositionID: "pos-1", Mint: "mintA", State: domain.StateActive, RemainingFrac: 1}
	require.NoError(t, j.InsertPosition(ctx, p))
	assert.ErrorIs(t, j.InsertPosition(ctx, p), journal.ErrDuplicateKey)

	p.State = domain.StateClosed
	p.RemainingFrac = 0
	require.NoError(t, j.UpdatePosition(ctx, p))

	assert.ErrorIs(t, j.UpdatePosition(ctx, &domain.Position{PositionID: "missing"}), journal.ErrNotFound)

	got, err := j.GetPosition(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosed, got.State)

	_, err = j.GetPosition(ctx, "missing")
	assert.ErrorIs(t, err, journal.ErrNotFound)
}

func TestJournal_ReturnsCopies(t *testing.T) {
	j := New()
	ctx := context.Background()

	p := &domain.Position{
		PositionID:    "pos-1",
		State:         domain.StateTrailingArmed,
		RemainingFrac: 0.5,
		Exits: []domain.PartialExit{
			{Fraction: 0.5, Price: 2.3, Trigger: domain.PartialTriggerTrailing},
		},
	}
	require.NoError(t, j.InsertPosition(ctx, p))

	// Mutating the caller's copy must not leak into the journal.
	p.Exits[0].Price = 99
	p.State = domain.StateClosed

	got, err := j.GetPosition(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateTrailingArmed, got.State)
	assert.Equal(t, 2.3, got.Exits[0].Price)

	// Same for what Get hands back.
	got.Exits[0].Price = 77
	again, err := j.GetPosition(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, 2.3, again.Exits[0].Price)
}

func TestJournal_TransitionsAppendInOrder(t *testing.T) {
	j := New()
	ctx := context.Background()

	steps := []domain.PositionTransition{
		{PositionID: "pos-1", From: domain.StatePendingEntry, To: domain.StateActive, TimestampMs: 1},
		{PositionID: "pos-1", From: domain.StateActive, To: domain.StateClosed, Reason: domain.CloseStopLoss, TimestampMs: 2},
	}
	for i := range steps {
		require.NoError(t, j.AppendTransition(ctx, &steps[i]))
	}

	got, err := j.ListTransitions(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, steps, got)

	other, err := j.ListTransitions(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestJournal_ExecutionsAndTicks(t *testing.T) {
	j := New()
	ctx := context.Background()

	require.NoError(t, j.InsertExecution(ctx, &domain.ExecutionResult{
		OrderID: "order-1",
		Status:  domain.ExecFilled,
		Fills:   []domain.Fill{{Price: 1.0, Size: 100, Provider: "jito"}},
	}))
	require.NoError(t, j.InsertTicks(ctx, []domain.PriceTick{
		{Mint: "mintA", Price: 1.0, TimestampMs: 1},
		{Mint: "mintA", Price: 1.1, TimestampMs: 2},
	}))

	execs := j.Executions()
	require.Len(t, execs, 1)
	assert.Equal(t, "order-1", execs[0].OrderID)

	ticks := j.Ticks()
	require.Len(t, ticks, 2)
	assert.Equal(t, 1.1, ticks[1].Price)
}
