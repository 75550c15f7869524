package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// Bookkeeper bulk-applies contiguous main-chain segments and keeps the
// per-block statistics fed, typically during initial sync.
type Bookkeeper struct {
	dal      chain.DAL
	chainCtx *ChainContext
	stats    chain.StatsPusher
	conf     model.Parameters
	logger   *zap.Logger
}

// NewBookkeeper builds a Bookkeeper.
func NewBookkeeper(dal chain.DAL, chainCtx *ChainContext, stats chain.StatsPusher, conf model.Parameters, logger *zap.Logger) (*Bookkeeper, error) {
	if dal == nil || chainCtx == nil {
		return nil, errors.New("bookkeeper dependencies are required")
	}
	return &Bookkeeper{
		dal:      dal,
		chainCtx: chainCtx,
		stats:    stats,
		conf:     conf,
		logger:   logger.Named("bookkeeper"),
	}, nil
}

// SaveBlocksInMainBranch applies a contiguous ascending segment to the main
// chain in one pass.
func (k *Bookkeeper) SaveBlocksInMainBranch(ctx context.Context, blocks []*model.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	if blocks[0].Number == 0 {
		if err := k.chainCtx.SaveParametersForRootBlock(ctx, blocks[0]); err != nil {
			return err
		}
	}

	var prev *model.Block
	if blocks[0].Number > 0 {
		stored, err := k.dal.GetBlock(ctx, blocks[0].Number-1)
		if err != nil {
			return fmt.Errorf("predecessor of segment: %w", err)
		}
		prev = stored
	}

	for i, b := range blocks {
		if i > 0 {
			prev = blocks[i-1]
		}
		if !b.FollowsBlock(prev) {
			return chain.NewInvalidBlock("segment block #%d does not follow #%d", b.Number, b.Number-1)
		}
		b.Fork = false
		computeDerived(b, prev, k.conf.DT)
	}

	resolve := k.segmentResolver(blocks)

	for _, b := range blocks {
		if err := applyMembers(ctx, k.dal, b); err != nil {
			return err
		}
	}
	for _, b := range blocks {
		fingerprintIssuers(b)
	}
	for _, b := range blocks {
		if err := applyMemberships(ctx, k.dal, b); err != nil {
			return err
		}
	}
	for _, b := range blocks {
		if err := applyCertifications(ctx, k.dal, b, resolve); err != nil {
			return err
		}
		if err := k.dal.ObsoleteLinks(ctx, b.MedianTime-k.conf.SigValidity); err != nil {
			return err
		}
	}
	for _, b := range blocks {
		if err := applyTransactions(ctx, k.dal, b); err != nil {
			return err
		}
		if err := applyDividend(ctx, k.dal, b); err != nil {
			return err
		}
	}

	if err := k.dal.SaveBunch(ctx, blocks); err != nil {
		return fmt.Errorf("save bunch: %w", err)
	}

	if err := k.pushStats(ctx, blocks); err != nil {
		k.logger.Warn("push stats failed", zap.Error(err))
	}

	k.logger.Info("main branch segment saved",
		zap.Int64("from", blocks[0].Number),
		zap.Int64("to", blocks[len(blocks)-1].Number))
	return nil
}

// segmentResolver serves blocks from the in-memory segment before falling
// back to storage.
func (k *Bookkeeper) segmentResolver(blocks []*model.Block) blockResolver {
	first := blocks[0].Number
	last := blocks[len(blocks)-1].Number
	return func(ctx context.Context, number int64) (*model.Block, error) {
		if number >= first && number <= last {
			return blocks[number-first], nil
		}
		return k.dal.GetBlockOrNil(ctx, number)
	}
}

// ObsoleteInMainBranch expires aged links and memberships against the given
// head.
func (k *Bookkeeper) ObsoleteInMainBranch(ctx context.Context, current *model.Block) error {
	if current == nil {
		return nil
	}
	if err := k.dal.ObsoleteLinks(ctx, current.MedianTime-k.conf.SigValidity); err != nil {
		return err
	}

	members, err := k.dal.GetMembers(ctx)
	if err != nil {
		return err
	}
	for _, member := range members {
		if member.CurrentMSN < 0 {
			continue
		}
		msBlock, err := k.dal.GetBlockOrNil(ctx, member.CurrentMSN)
		if err != nil {
			return err
		}
		if msBlock == nil {
			continue
		}
		if msBlock.MedianTime+k.conf.MSValidity < current.MedianTime {
			if err := flagIdentity(ctx, k.dal, member.Pubkey, func(i *model.Identity) {
				i.Member = false
			}); err != nil {
				return err
			}
			k.logger.Info("membership expired", zap.String("pubkey", member.Pubkey))
		}
	}
	return nil
}

// RecordBlock lands the statistic activity of a single admitted block.
func (k *Bookkeeper) RecordBlock(ctx context.Context, b *model.Block) error {
	return k.pushStats(ctx, []*model.Block{b})
}

// pushStats records, for every statistic, the blocks of the segment that are
// active for it, resuming after the last parsed block.
func (k *Bookkeeper) pushStats(ctx context.Context, blocks []*model.Block) error {
	if k.stats == nil || len(blocks) == 0 {
		return nil
	}
	update := model.StatsUpdate{LastParsedBlock: blocks[len(blocks)-1].Number}
	for _, stat := range model.StatNames {
		last, err := k.dal.GetStatLastParsed(ctx, stat)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			if b.Number <= last {
				continue
			}
			if model.StatTriggered(b, stat) {
				update.Blocks = append(update.Blocks, model.BlockStat{
					Stat:        stat,
					BlockNumber: b.Number,
					MedianTime:  b.MedianTime,
				})
			}
		}
		if err := k.dal.SaveStatLastParsed(ctx, stat, update.LastParsedBlock); err != nil {
			return err
		}
	}
	if len(update.Blocks) == 0 {
		return nil
	}
	return k.stats.PushStats(ctx, update)
}
