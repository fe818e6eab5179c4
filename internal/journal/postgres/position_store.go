package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-sniper/internal/domain"
	"token-sniper/internal/journal"
)

// PositionStore implements journal.PositionStore using PostgreSQL.
// Positions are upserted as they mutate; transitions are append-only.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ journal.PositionStore = (*PositionStore)(nil)

// InsertPosition adds a new position. Returns ErrDuplicateKey if the
// position ID exists.
func (s *PositionStore) InsertPosition(ctx context.Context, p *domain.Position) error {
	exits, err := json.Marshal(p.Exits)
	if err != nil {
		return fmt.Errorf("marshal exits: %w", err)
	}

	query := `
		INSERT INTO positions (
			position_id, mint, state, reason,
			entry_price, entry_size, remaining_frac,
			stop_loss_price, take_profit_price, trail_pct, high_water_mark,
			exits, opened_at, closed_at, realized_pnl, unrealized_pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = s.pool.Exec(ctx, query,
		p.PositionID, p.Mint, string(p.State), string(p.Reason),
		p.EntryPrice, p.EntrySize, p.RemainingFrac,
		p.StopLossPrice, p.TakeProfitPrice, p.TrailPct, p.HighWaterMark,
		exits, p.OpenedAt, p.ClosedAt, p.RealizedPnL, p.UnrealizedPnL,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return journal.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// UpdatePosition rewrites a position's mutable fields. Returns
// ErrNotFound if the position does not exist.
func (s *PositionStore) UpdatePosition(ctx context.Context, p *domain.Position) error {
	exits, err := json.Marshal(p.Exits)
	if err != nil {
		return fmt.Errorf("marshal exits: %w", err)
	}

	query := `
		UPDATE positions SET
			state = $2, reason = $3,
			entry_price = $4, entry_size = $5, remaining_frac = $6,
			stop_loss_price = $7, take_profit_price = $8, trail_pct = $9, high_water_mark = $10,
			exits = $11, opened_at = $12, closed_at = $13, realized_pnl = $14, unrealized_pnl = $15,
			updated_at = now()
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.PositionID, string(p.State), string(p.Reason),
		p.EntryPrice, p.EntrySize, p.RemainingFrac,
		p.StopLossPrice, p.TakeProfitPrice, p.TrailPct, p.HighWaterMark,
		exits, p.OpenedAt, p.ClosedAt, p.RealizedPnL, p.UnrealizedPnL,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return journal.ErrNotFound
	}
	return nil
}

// GetPosition retrieves a position by ID. Returns ErrNotFound if it
// does not exist.
func (s *PositionStore) GetPosition(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `
		SELECT position_id, mint, state, reason,
			entry_price, entry_size, remaining_frac,
			stop_loss_price, take_profit_price, trail_pct, high_water_mark,
			exits, opened_at, closed_at, realized_pnl, unrealized_pnl
		FROM positions
		WHERE position_id = $1
	`

	p, err := scanPosition(s.pool.QueryRow(ctx, query, positionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, journal.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// AppendTransition appends one transition record.
func (s *PositionStore) AppendTransition(ctx context.Context, t *domain.PositionTransition) error {
	query := `
		INSERT INTO position_transitions (
			position_id, from_state, to_state, reason, price, timestamp_ms
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		t.PositionID, string(t.From), string(t.To), string(t.Reason), t.Price, t.TimestampMs,
	)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// ListTransitions retrieves a position's transitions in append order.
func (s *PositionStore) ListTransitions(ctx context.Context, positionID string) ([]domain.PositionTransition, error) {
	query := `
		SELECT position_id, from_state, to_state, reason, price, timestamp_ms
		FROM position_transitions
		WHERE position_id = $1
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.PositionTransition
	for rows.Next() {
		var t domain.PositionTransition
		var from, to, reason string

		if err := rows.Scan(&t.PositionID, &from, &to, &reason, &t.Price, &t.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		t.From = domain.PositionState(from)
		t.To = domain.PositionState(to)
		t.Reason = domain.CloseReason(reason)
		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition rows: %w", err)
	}
	return out, nil
}

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var state, reason string
	var exits []byte

	err := row.Scan(
		&p.PositionID, &p.Mint, &state, &reason,
		&p.EntryPrice, &p.EntrySize, &p.RemainingFrac,
		&p.StopLossPrice, &p.TakeProfitPrice, &p.TrailPct, &p.HighWaterMark,
		&exits, &p.OpenedAt, &p.ClosedAt, &p.RealizedPnL, &p.UnrealizedPnL,
	)
	if err != nil {
		return nil, err
	}

	p.State = domain.PositionState(state)
	p.Reason = domain.CloseReason(reason)
	if err := json.Unmarshal(exits, &p.Exits); err != nil {
		return nil, fmt.Errorf("unmarshal exits: %w", err)
	}
	return &p, nil
}
