package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// InsertBlockStats stores block statistic rows in ClickHouse.
func (r *Repository) InsertBlockStats(ctx context.Context, stats []model.BlockStat) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_block_stats", r.currency, err, start)
	}()

	if len(stats) == 0 {
		return nil
	}

	const query = `
INSERT INTO wot_block_stats (
	currency,
	stat,
	block_number,
	median_time
) VALUES`

	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare block stats batch: %w", err)
	}

	for _, bs := range stats {
		if err = batch.Append(statRow(r.currency, bs)...); err != nil {
			return fmt.Errorf("append block stat: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert block stats: %w", err)
	}
	return nil
}
