// Package feed defines the market-data sources the engine consumes and
// a websocket client implementing them against a streaming endpoint.
package feed

import (
	"context"

	"token-sniper/internal/domain"
)

// CandidateSource streams snapshots of newly observed pools. The channel
// closes when the source shuts down.
type CandidateSource interface {
	Candidates() <-chan domain.CandidateSnapshot
}

// TickSource delivers live price ticks per mint. Ticks for one mint
// arrive with monotonically non-decreasing timestamps; a subscription
// channel closes when the context is cancelled or Unsubscribe is called.
type TickSource interface {
	Subscribe(ctx context.Context, mint string) (<-chan domain.PriceTick, error)
	Unsubscribe(mint string)
}
