package clickhouse

import (
	"context"
	"fmt"

	"token-sniper/internal/domain"
	"token-sniper/internal/journal"
)

// TickStore implements journal.TickStore using ClickHouse.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ journal.TickStore = (*TickStore)(nil)

// InsertTicks appends a batch of ticks.
func (s *TickStore) InsertTicks(ctx context.Context, ticks []domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticks (
			mint, timestamp_ms, price, volatility, sell_volume_surge
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		surge := uint8(0)
		if t.SellVolumeSurge {
			surge = 1
		}
		if err := batch.Append(t.Mint, uint64(t.TimestampMs), t.Price, t.Volatility, surge); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// TicksByMint retrieves all ticks for a mint, ordered by timestamp ASC.
func (s *TickStore) TicksByMint(ctx context.Context, mint string) ([]domain.PriceTick, error) {
	query := `
		SELECT mint, timestamp_ms, price, volatility, sell_volume_surge
		FROM ticks
		WHERE mint = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query ticks by mint: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceTick
	for rows.Next() {
		var t domain.PriceTick
		var ts uint64
		var surge uint8

		if err := rows.Scan(&t.Mint, &ts, &t.Price, &t.Volatility, &surge); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		t.TimestampMs = int64(ts)
		t.SellVolumeSurge = surge != 0
		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}
	return out, nil
}
