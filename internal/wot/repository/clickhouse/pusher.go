package clickhouse

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
	"github.com/wotmesh/wotmesh-node/pkg/batcher"
)

// Pusher buffers statistic rows and flushes them to the warehouse in
// rate-limited batches. It implements chain.StatsPusher.
type Pusher struct {
	batcher *batcher.Batcher[model.BlockStat]
}

// NewPusher builds a Pusher over the repository.
func NewPusher(repo *Repository, logger *zap.Logger, flushSize int, flushInterval time.Duration, rps int) *Pusher {
	return &Pusher{
		batcher: batcher.New(logger.Named("stats"), repo.InsertBlockStats, flushSize, flushInterval, rps),
	}
}

// Start begins the background flushing loop.
func (p *Pusher) Start(ctx context.Context) {
	p.batcher.Start(ctx)
}

// Stop flushes the remaining rows and stops the loop.
func (p *Pusher) Stop() {
	p.batcher.Stop()
}

// PushStats queues the update's rows for batching.
func (p *Pusher) PushStats(ctx context.Context, update model.StatsUpdate) error {
	for _, row := range update.Blocks {
		if err := p.batcher.Add(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
