package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"token-sniper/internal/domain"
	"token-sniper/internal/journal"
)

// ExecutionStore implements journal.ExecutionStore using ClickHouse.
type ExecutionStore struct {
	conn *Conn
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(conn *Conn) *ExecutionStore {
	return &ExecutionStore{conn: conn}
}

// Compile-time interface check.
var _ journal.ExecutionStore = (*ExecutionStore)(nil)

// InsertExecution appends one execution result. Child fills are kept as
// a JSON column: they are audit detail, never queried relationally.
func (s *ExecutionStore) InsertExecution(ctx context.Context, r *domain.ExecutionResult) error {
	fills, err := json.Marshal(r.Fills)
	if err != nil {
		return fmt.Errorf("marshal fills: %w", err)
	}

	query := `
		INSERT INTO executions (
			order_id, status, failure_kind, fill_count, filled_size, avg_price, fills, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		r.OrderID,
		string(r.Status),
		r.FailureKind,
		uint32(len(r.Fills)),
		r.FilledSize(),
		r.AvgPrice(),
		string(fills),
		uint64(r.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// ExecutionsByOrder retrieves journaled results for an order ID.
func (s *ExecutionStore) ExecutionsByOrder(ctx context.Context, orderID string) ([]domain.ExecutionResult, error) {
	query := `
		SELECT order_id, status, failure_kind, fills, completed_at
		FROM executions
		WHERE order_id = ?
		ORDER BY completed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query executions by order: %w", err)
	}
	defer rows.Close()

	var out []domain.ExecutionResult
	for rows.Next() {
		var r domain.ExecutionResult
		var status, fills string
		var completedAt uint64

		if err := rows.Scan(&r.OrderID, &status, &r.FailureKind, &fills, &completedAt); err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		r.Status = domain.ExecutionStatus(status)
		r.CompletedAt = int64(completedAt)
		if err := json.Unmarshal([]byte(fills), &r.Fills); err != nil {
			return nil, fmt.Errorf("unmarshal fills: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}
	return out, nil
}
