package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// Brancher enumerates the maximal side branches anchored on the canonical
// chain.
type Brancher struct {
	dal    chain.DAL
	logger *zap.Logger
}

// NewBrancher builds a Brancher.
func NewBrancher(dal chain.DAL, logger *zap.Logger) (*Brancher, error) {
	if dal == nil {
		return nil, errors.New("brancher dal is required")
	}
	return &Brancher{dal: dal, logger: logger.Named("branches")}, nil
}

// Branches returns the tip of each longest side branch, followed by the
// current head. Consumers read the result as the candidate heads for fork
// choice.
func (br *Brancher) Branches(ctx context.Context) ([]*model.Block, error) {
	branches, err := br.sideBranches(ctx)
	if err != nil {
		return nil, err
	}
	tips := make([]*model.Block, 0, len(branches)+1)
	for _, branch := range branches {
		tips = append(tips, branch[len(branch)-1])
	}
	current, err := br.dal.GetCurrentBlock(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		tips = append(tips, current)
	}
	return tips, nil
}

// sideBranches computes the full set of longest side branches.
//
// Side blocks are split into forkables, whose predecessor is canonical, and
// others. Each forkable seeds a branch; every other block is then attached
// to the branch it extends, or splits an existing branch at an interior
// position. Splits are collected into a pending list and joined in before
// the next block is considered, so a branch can split repeatedly while the
// original keeps extending.
func (br *Brancher) sideBranches(ctx context.Context) ([][]*model.Block, error) {
	forks, err := br.dal.GetForkBlocks(ctx)
	if err != nil {
		return nil, err
	}
	if len(forks) == 0 {
		return nil, nil
	}
	sort.Slice(forks, func(i, j int) bool { return forks[i].Number < forks[j].Number })

	var forkables, others []*model.Block
	for _, b := range forks {
		anchor, err := br.dal.GetBlockByNumberAndHash(ctx, b.Number-1, b.PreviousHash)
		if err != nil {
			return nil, err
		}
		if anchor != nil {
			forkables = append(forkables, b)
		} else {
			others = append(others, b)
		}
	}

	branches := make([][]*model.Block, 0, len(forkables))
	for _, f := range forkables {
		branches = append(branches, []*model.Block{f})
	}

	for _, other := range others {
		var pending [][]*model.Block
		for i, branch := range branches {
			tip := branch[len(branch)-1]
			if other.Number == tip.Number+1 && other.PreviousHash == tip.Hash {
				branches[i] = append(branch, other)
				continue
			}
			if len(branch) < 2 {
				continue
			}
			d := other.Number - branch[0].Number
			if d >= 1 && d < int64(len(branch)) && branch[d-1].Hash == other.PreviousHash {
				split := make([]*model.Block, d, d+1)
				copy(split, branch[:d])
				split = append(split, other)
				pending = append(pending, split)
			}
		}
		branches = append(branches, pending...)
	}

	longest := 0
	for _, branch := range branches {
		if len(branch) > longest {
			longest = len(branch)
		}
	}
	var result [][]*model.Block
	for _, branch := range branches {
		if len(branch) == longest {
			result = append(result, branch)
		}
	}
	br.logger.Debug("side branches enumerated",
		zap.Int("forkables", len(forkables)),
		zap.Int("others", len(others)),
		zap.Int("longest", longest),
		zap.Int("branches", len(result)))
	return result, nil
}
