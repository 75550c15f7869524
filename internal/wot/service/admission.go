package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
	"github.com/wotmesh/wotmesh-node/pkg/fifolane"
)

// Admission is the single entry point for chain-mutating operations. Every
// submission runs alone on the FIFO lane, so submitters observe either the
// pre- or the post-state of a write, never an intermediate one.
type Admission struct {
	lane     *fifolane.Lane
	dal      chain.DAL
	chainCtx *ChainContext
	switcher *Switcher
	prover   ProverControl
	stats    StatsRecorder
	conf     model.Parameters
	metrics  AdmissionMetrics
	logger   *zap.Logger
}

// NewAdmission builds the admission pipeline.
func NewAdmission(
	lane *fifolane.Lane,
	dal chain.DAL,
	chainCtx *ChainContext,
	switcher *Switcher,
	prover ProverControl,
	stats StatsRecorder,
	conf model.Parameters,
	metrics AdmissionMetrics,
	logger *zap.Logger,
) (*Admission, error) {
	if lane == nil || dal == nil || chainCtx == nil || switcher == nil {
		return nil, errors.New("admission dependencies are required")
	}
	if metrics == nil {
		return nil, errors.New("admission metrics is required")
	}
	return &Admission{
		lane:     lane,
		dal:      dal,
		chainCtx: chainCtx,
		switcher: switcher,
		prover:   prover,
		stats:    stats,
		conf:     conf,
		metrics:  metrics,
		logger:   logger.Named("admission"),
	}, nil
}

// SubmitBlock admits a candidate block as a main-chain extension or a
// side-chain addition. Blocks are admitted in submission order.
func (a *Admission) SubmitBlock(ctx context.Context, b *model.Block, doCheck, forkAllowed bool) (*model.Block, error) {
	var admitted *model.Block
	err := a.lane.Do(ctx, "submitBlock", func(ctx context.Context) error {
		var err error
		admitted, err = a.submit(ctx, b, doCheck, forkAllowed)
		return err
	})
	return admitted, err
}

// RevertCurrentBlock reverts the head inside the lane.
func (a *Admission) RevertCurrentBlock(ctx context.Context) (*model.Block, error) {
	started := time.Now()
	var reverted *model.Block
	err := a.lane.Do(ctx, "revertCurrentBlock", func(ctx context.Context) error {
		var err error
		reverted, err = a.chainCtx.RevertCurrentBlock(ctx)
		if err == nil && a.prover != nil {
			a.prover.Cancel()
		}
		return err
	})
	a.metrics.ObserveRevert(err, started)
	return reverted, err
}

func (a *Admission) submit(ctx context.Context, b *model.Block, doCheck, forkAllowed bool) (*model.Block, error) {
	started := time.Now()

	fingerprintIssuers(b)

	existing, err := a.dal.GetBlockByNumberAndHash(ctx, b.Number, b.Hash)
	if err != nil {
		a.metrics.ObserveSubmit(err, false, started)
		return nil, err
	}
	if existing != nil {
		a.metrics.ObserveSubmit(chain.ErrAlreadyProcessed, false, started)
		return nil, chain.ErrAlreadyProcessed
	}

	current, err := a.dal.GetCurrentBlock(ctx)
	if err != nil {
		a.metrics.ObserveSubmit(err, false, started)
		return nil, err
	}

	if b.FollowsBlock(current) {
		added, err := a.chainCtx.AddBlock(ctx, b, doCheck)
		if err != nil {
			a.metrics.ObserveSubmit(err, false, started)
			return nil, err
		}
		if a.stats != nil {
			if err := a.stats.RecordBlock(ctx, added); err != nil {
				a.logger.Warn("record block stats failed", zap.Error(err))
			}
		}
		if a.prover != nil {
			a.prover.Cancel()
		}
		a.metrics.ObserveSubmit(nil, false, started)
		return added, nil
	}

	if !forkAllowed {
		a.metrics.ObserveSubmit(chain.ErrForkRejected, false, started)
		return nil, chain.ErrForkRejected
	}

	if current != nil && current.Number-b.Number+1 >= a.conf.ForkSize {
		a.metrics.ObserveSubmit(chain.ErrOutOfForkWindow, true, started)
		return nil, chain.ErrOutOfForkWindow
	}

	absolute, err := a.dal.GetAbsoluteBlockByNumberAndHash(ctx, b.Number, b.Hash)
	if err != nil {
		a.metrics.ObserveSubmit(err, true, started)
		return nil, err
	}
	side := absolute
	if side == nil {
		side, err = a.chainCtx.AddSideBlock(ctx, b, doCheck)
		if err != nil {
			a.metrics.ObserveSubmit(err, true, started)
			return nil, err
		}
	}

	if err := a.switcher.TryToFork(ctx, current); err != nil {
		a.logger.Warn("fork evaluation failed", zap.Error(err))
	}

	a.metrics.ObserveSubmit(nil, true, started)
	return side, nil
}

// fingerprintIssuers denormalizes the signing pubkey of each transaction
// onto its inputs.
func fingerprintIssuers(b *model.Block) {
	for ti := range b.Transactions {
		tx := &b.Transactions[ti]
		if len(tx.Issuers) == 0 {
			continue
		}
		for ii := range tx.Inputs {
			in := &tx.Inputs[ii]
			idx := in.IssuerIndex
			if idx < 0 || idx >= len(tx.Issuers) {
				idx = 0
			}
			in.Pubkey = tx.Issuers[idx]
		}
	}
}
