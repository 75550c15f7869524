package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/clock"
	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// Soft generation outcomes. None of them raises: StartGeneration reports
// the reason and the controller waits for the chain to move.
const (
	reasonNotParticipating  = "notParticipating"
	reasonNoSelfPubkey      = "noSelfPubkey"
	reasonNotMember         = "notMember"
	reasonWaitingForRoot    = "waitingForRoot"
	reasonDifficultyTooHigh = "difficultyTooHigh"
)

// Controller orchestrates proof-of-work generation: it decides when the
// node may prove, builds the candidate, runs the engine and feeds the result
// back through the admission pipeline.
type Controller struct {
	engine    *PowEngine
	generator chain.Generator
	dal       chain.DAL
	rules     chain.Rules
	conf      model.Parameters
	metrics   ProverMetrics
	logger    *zap.Logger

	submitter  BlockSubmitter
	continueCh chan struct{}
	lastWrong  bool
}

// NewController builds a generation Controller. The block submitter is bound
// separately because admission and generation reference each other.
func NewController(
	engine *PowEngine,
	generator chain.Generator,
	dal chain.DAL,
	rules chain.Rules,
	conf model.Parameters,
	metrics ProverMetrics,
	logger *zap.Logger,
) (*Controller, error) {
	if engine == nil || generator == nil || dal == nil || rules == nil {
		return nil, errors.New("controller dependencies are required")
	}
	if metrics == nil {
		return nil, errors.New("controller metrics is required")
	}
	return &Controller{
		engine:     engine,
		generator:  generator,
		dal:        dal,
		rules:      rules,
		conf:       conf,
		metrics:    metrics,
		logger:     logger.Named("prover"),
		continueCh: make(chan struct{}, 1),
	}, nil
}

// BindSubmitter attaches the admission pipeline.
func (c *Controller) BindSubmitter(s BlockSubmitter) {
	c.submitter = s
}

// Cancel preempts the in-flight proof and wakes a waiting generation loop.
// Admission calls it on every chain mutation.
func (c *Controller) Cancel() {
	c.engine.Cancel()
	select {
	case c.continueCh <- struct{}{}:
	default:
	}
}

// Computing reports whether a proof is in flight.
func (c *Controller) Computing() bool {
	return c.engine.Computing()
}

// Prove exposes the raw engine for manual proving.
func (c *Controller) Prove(ctx context.Context, b *model.Block, trial int64) (*model.Block, string, error) {
	return c.engine.Prove(ctx, b, trial)
}

// GenerateManualRoot builds (without admitting) the root block candidate.
func (c *Controller) GenerateManualRoot(ctx context.Context) (*model.Block, error) {
	return c.generator.ManualRoot(ctx)
}

// GenerateNext builds (without admitting) the next block candidate.
func (c *Controller) GenerateNext(ctx context.Context) (*model.Block, error) {
	return c.generator.NextBlock(ctx)
}

// StopPoWThenProcessAndRestartPoW preempts the engine so the chain mutation
// in flight is observed before the next proof starts.
func (c *Controller) StopPoWThenProcessAndRestartPoW() {
	c.Cancel()
}

// Run generates blocks until the context is canceled. Soft precondition
// failures park the loop until a chain mutation wakes it.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		block, reason, err := c.StartGeneration(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.logger.Warn("generation attempt failed", zap.Error(err))
			if sleepErr := clock.SleepWithContext(ctx, time.Second); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		if block != nil {
			continue
		}
		switch reason {
		case reasonNotParticipating, reasonNoSelfPubkey:
			// Permanent for this process lifetime.
			return nil
		case chain.PowCanceledReason:
			continue
		default:
			if err := c.waitForContinue(ctx); err != nil {
				return err
			}
		}
	}
}

// StartGeneration attempts to generate one block. It returns the admitted
// block, or a nil block with the soft reason that prevented generation.
func (c *Controller) StartGeneration(ctx context.Context) (*model.Block, string, error) {
	started := time.Now()
	block, reason, err := c.generateNext(ctx)
	c.metrics.ObserveProof(reason, err, started)
	if reason != "" {
		c.logger.Info("generation skipped", zap.String("reason", reason))
	}
	return block, reason, err
}

func (c *Controller) generateNext(ctx context.Context) (*model.Block, string, error) {
	if !c.conf.Participate {
		return nil, reasonNotParticipating, nil
	}
	self := c.conf.SelfPubkey
	if self == "" {
		return nil, reasonNoSelfPubkey, nil
	}

	current, err := c.dal.GetCurrentBlock(ctx)
	if err != nil {
		return nil, "", err
	}
	if current == nil {
		return nil, reasonWaitingForRoot, nil
	}
	isMember, err := c.dal.IsMember(ctx, self)
	if err != nil {
		return nil, "", err
	}
	if !isMember {
		return nil, reasonNotMember, nil
	}

	if current.Issuer == self && c.conf.PowDelay > 0 {
		preempted, err := c.engine.WaitBeforePoW(ctx, time.Duration(c.conf.PowDelay)*time.Second)
		if err != nil {
			return nil, "", err
		}
		if preempted {
			return nil, chain.PowCanceledReason, nil
		}
		// The chain may have moved during the wait.
		current, err = c.dal.GetCurrentBlock(ctx)
		if err != nil {
			return nil, "", err
		}
		if current == nil {
			return nil, reasonWaitingForRoot, nil
		}
	}

	trial, err := c.rules.TrialLevel(ctx, self)
	if err != nil {
		return nil, "", err
	}
	if trial > current.PowMin+chain.TrialExcessLimit {
		return nil, reasonDifficultyTooHigh, nil
	}

	var candidate *model.Block
	if c.lastWrong {
		candidate, err = c.generator.NextEmptyBlock(ctx)
	} else {
		candidate, err = c.generator.NextBlock(ctx)
	}
	if err != nil {
		return nil, "", err
	}

	return c.MakeNextBlock(ctx, candidate, trial)
}

// MakeNextBlock proves the candidate at the given trial level and submits
// the result.
func (c *Controller) MakeNextBlock(ctx context.Context, candidate *model.Block, trial int64) (*model.Block, string, error) {
	if c.submitter == nil {
		return nil, "", errors.New("no block submitter bound")
	}
	proved, reason, err := c.engine.Prove(ctx, candidate, trial)
	if err != nil {
		return nil, "", err
	}
	if reason != "" {
		return nil, reason, nil
	}

	admitted, err := c.submitter.SubmitBlock(ctx, proved, true, true)
	if err != nil {
		c.lastWrong = true
		c.logger.Warn("self-generated block rejected", zap.Error(err))
		return nil, "", err
	}
	c.lastWrong = false
	return admitted, "", nil
}

func (c *Controller) waitForContinue(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.continueCh:
		return nil
	}
}
