package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// Switcher evaluates the fork-choice policy: when a side branch is far
// enough ahead of the current head, the head suffix is reverted and the
// branch applied in its place. Apply failures are recovered locally by
// rolling back to the original chain; they never reach the submitter.
type Switcher struct {
	dal      chain.DAL
	chainCtx *ChainContext
	brancher *Brancher
	prover   ProverControl
	conf     model.Parameters
	metrics  SwitchMetrics
	logger   *zap.Logger
}

// NewSwitcher builds a Switcher.
func NewSwitcher(
	dal chain.DAL,
	chainCtx *ChainContext,
	brancher *Brancher,
	prover ProverControl,
	conf model.Parameters,
	metrics SwitchMetrics,
	logger *zap.Logger,
) (*Switcher, error) {
	if dal == nil || chainCtx == nil || brancher == nil {
		return nil, errors.New("switcher dependencies are required")
	}
	if metrics == nil {
		return nil, errors.New("switcher metrics is required")
	}
	return &Switcher{
		dal:      dal,
		chainCtx: chainCtx,
		brancher: brancher,
		prover:   prover,
		conf:     conf,
		metrics:  metrics,
		logger:   logger.Named("switcher"),
	}, nil
}

// TryToFork evaluates a switch and signals the prover when the head moved.
// Must run inside the single-writer lane.
func (s *Switcher) TryToFork(ctx context.Context, prevCurrent *model.Block) error {
	if err := s.eventuallySwitchOnSideChain(ctx, prevCurrent); err != nil {
		return err
	}
	current, err := s.dal.GetCurrentBlock(ctx)
	if err != nil {
		return err
	}
	if headMoved(prevCurrent, current) && s.prover != nil {
		s.prover.Cancel()
	}
	return nil
}

func headMoved(prev, current *model.Block) bool {
	if prev == nil || current == nil {
		return prev != current
	}
	return prev.Number != current.Number || prev.Hash != current.Hash
}

func (s *Switcher) eventuallySwitchOnSideChain(ctx context.Context, current *model.Block) error {
	if current == nil {
		return nil
	}
	started := time.Now()

	tips, err := s.brancher.Branches(ctx)
	if err != nil {
		s.metrics.ObserveSwitch(err, 0, false, started)
		return err
	}

	blocksGuard := int64(chain.SwitchOnBranchAheadByMinutes) * 60 / s.conf.AvgGenTime
	timeGuard := int64(chain.SwitchOnBranchAheadByMinutes) * 60

	var potentials []*model.Block
	for _, tip := range tips {
		if tip.Number == current.Number && tip.Hash == current.Hash {
			continue
		}
		blocksAhead := tip.Number - current.Number
		timeAhead := tip.MedianTime - current.MedianTime
		if blocksAhead >= blocksGuard && timeAhead >= timeGuard {
			potentials = append(potentials, tip)
		}
	}
	if len(potentials) > 0 {
		s.logger.Info("eligible side branches found", zap.Int("count", len(potentials)))
	}

	switched := false
	for _, p := range potentials {
		sideChain, err := s.wholeForkBranch(ctx, p)
		if err != nil {
			s.metrics.ObserveSwitch(err, len(potentials), false, started)
			return err
		}
		if len(sideChain) == 0 {
			continue
		}

		if applyErr := s.switchTo(ctx, sideChain); applyErr != nil {
			s.logger.Warn("side chain rejected, rolling back",
				zap.Int64("tip", p.Number),
				zap.String("hash", shortHash(p.Hash)),
				zap.Error(applyErr))
			if err := s.rollback(ctx, current, sideChain); err != nil {
				s.metrics.ObserveSwitch(err, len(potentials), false, started)
				return err
			}
			continue
		}

		switched = true
		s.logger.Info("switched on side chain",
			zap.Int64("from", current.Number),
			zap.Int64("to", p.Number),
			zap.String("hash", shortHash(p.Hash)))
		break
	}

	s.metrics.ObserveSwitch(nil, len(potentials), switched, started)
	return nil
}

// wholeForkBranch walks backward from the tip through the fork store until
// the predecessor is canonical, then returns the branch in ascending order.
// The canonical anchor is not included; a missing predecessor terminates the
// walk.
func (s *Switcher) wholeForkBranch(ctx context.Context, tip *model.Block) ([]*model.Block, error) {
	var reversed []*model.Block
	cur := tip
	for cur != nil && cur.Fork {
		reversed = append(reversed, cur)
		prev, err := s.dal.GetAbsoluteBlockByNumberAndHash(ctx, cur.Number-1, cur.PreviousHash)
		if err != nil {
			return nil, err
		}
		cur = prev
	}
	branch := make([]*model.Block, len(reversed))
	for i, b := range reversed {
		branch[len(reversed)-1-i] = b
	}
	return branch, nil
}

// switchTo reverts the head down to the branch base, then applies the branch
// block by block with full checks. Promoted blocks leave the fork store.
func (s *Switcher) switchTo(ctx context.Context, sideChain []*model.Block) error {
	base := sideChain[0].Number - 1
	if err := s.revertToBlock(ctx, base); err != nil {
		return err
	}
	for _, sb := range sideChain {
		promoted := *sb
		promoted.Wrong = false
		// AddBlock removes the promoted block from the fork store.
		if _, err := s.chainCtx.AddBlock(ctx, &promoted, true); err != nil {
			return fmt.Errorf("apply side block #%d: %w", sb.Number, err)
		}
	}
	return nil
}

func (s *Switcher) revertToBlock(ctx context.Context, number int64) error {
	for {
		current, err := s.dal.GetCurrentBlock(ctx)
		if err != nil {
			return err
		}
		if current == nil || current.Number <= number {
			return nil
		}
		if _, err := s.chainCtx.RevertCurrentBlock(ctx); err != nil {
			return err
		}
	}
}

// rollback restores the original chain after a failed switch and marks the
// rejected side chain wrong.
func (s *Switcher) rollback(ctx context.Context, oldHead *model.Block, sideChain []*model.Block) error {
	var result *multierror.Error

	// The reverted suffix of the original chain was preserved on the fork
	// store; walk it back from the old head and reapply it.
	revertedChain, err := s.wholeForkBranchFromRef(ctx, oldHead)
	if err != nil {
		result = multierror.Append(result, err)
	} else if len(revertedChain) > 0 {
		if err := s.switchTo(ctx, revertedChain); err != nil {
			result = multierror.Append(result, fmt.Errorf("reapply original chain: %w", err))
		}
	}

	for _, sb := range sideChain {
		sb.Fork = true
		sb.Wrong = true
		if err := s.dal.SaveSideBlock(ctx, sb); err != nil {
			result = multierror.Append(result, fmt.Errorf("mark block #%d wrong: %w", sb.Number, err))
		}
	}

	return result.ErrorOrNil()
}

// wholeForkBranchFromRef re-reads the old head from the fork store, since
// the in-memory copy predates its demotion to a side block.
func (s *Switcher) wholeForkBranchFromRef(ctx context.Context, oldHead *model.Block) ([]*model.Block, error) {
	stored, err := s.dal.GetAbsoluteBlockByNumberAndHash(ctx, oldHead.Number, oldHead.Hash)
	if err != nil {
		return nil, err
	}
	if stored == nil || !stored.Fork {
		// Already back on the canonical chain, nothing to reapply.
		return nil, nil
	}
	return s.wholeForkBranch(ctx, stored)
}
