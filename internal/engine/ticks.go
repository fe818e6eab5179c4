package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"token-sniper/internal/domain"
	"token-sniper/internal/feed"
	"token-sniper/internal/journal"
)

const (
	tickFlushSize     = 64
	tickFlushInterval = 2 * time.Second
)

// journalingTicks forwards a tick subscription unchanged while batching
// every tick into the tick journal. Journal writes are best effort; a
// failed flush loses audit data, never price data.
type journalingTicks struct {
	src    feed.TickSource
	store  journal.TickStore
	logger zerolog.Logger

	mu    sync.Mutex
	stops map[string]chan struct{}
}

func newJournalingTicks(src feed.TickSource, store journal.TickStore, logger zerolog.Logger) *journalingTicks {
	return &journalingTicks{
		src:    src,
		store:  store,
		logger: logger.With().Str("component", "tick_journal").Logger(),
		stops:  make(map[string]chan struct{}),
	}
}

func (j *journalingTicks) Subscribe(ctx context.Context, mint string) (<-chan domain.PriceTick, error) {
	src, err := j.src.Subscribe(ctx, mint)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	j.mu.Lock()
	j.stops[mint] = stop
	j.mu.Unlock()

	out := make(chan domain.PriceTick)
	go j.forward(ctx, mint, src, out, stop)
	return out, nil
}

func (j *journalingTicks) Unsubscribe(mint string) {
	j.mu.Lock()
	if stop, ok := j.stops[mint]; ok {
		close(stop)
		delete(j.stops, mint)
	}
	j.mu.Unlock()

	j.src.Unsubscribe(mint)
}

// forward relays ticks until the source closes, the subscription is
// dropped or the context ends, flushing the journal buffer as it goes.
func (j *journalingTicks) forward(ctx context.Context, mint string, src <-chan domain.PriceTick, out chan<- domain.PriceTick, stop <-chan struct{}) {
	defer close(out)

	buf := make([]domain.PriceTick, 0, tickFlushSize)
	ticker := time.NewTicker(tickFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := j.store.InsertTicks(context.WithoutCancel(ctx), buf); err != nil {
			j.logger.Error().Err(err).Str("mint", mint).Int("ticks", len(buf)).
				Msg("tick flush failed")
		}
		buf = buf[:0]
	}
	defer flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			flush()
		case tick, ok := <-src:
			if !ok {
				return
			}
			buf = append(buf, tick)
			if len(buf) >= tickFlushSize {
				flush()
			}
			select {
			case out <- tick:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}
