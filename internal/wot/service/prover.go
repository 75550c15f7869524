package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// nonceBatch is how many nonces are tried between cancellation checks.
const nonceBatch = 2048

// PowEngine searches block nonces. A single proof runs at a time; Cancel
// preempts it at the next batch boundary. The cancel token is the only
// state shared between the writer lane and the proof worker.
type PowEngine struct {
	logger *zap.Logger

	mu        sync.Mutex
	computing bool
	cancelCh  chan struct{}
}

// NewPowEngine builds a PowEngine.
func NewPowEngine(logger *zap.Logger) *PowEngine {
	return &PowEngine{
		logger:   logger.Named("pow"),
		cancelCh: make(chan struct{}),
	}
}

// Computing reports whether a proof is in flight.
func (e *PowEngine) Computing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computing
}

// Cancel preempts the in-flight proof and any proof wait. The token is
// rearmed by the next Prove call.
func (e *PowEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.cancelCh:
	default:
		close(e.cancelCh)
	}
}

func (e *PowEngine) arm() chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.cancelCh:
		e.cancelCh = make(chan struct{})
	default:
	}
	e.computing = true
	return e.cancelCh
}

func (e *PowEngine) done() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.computing = false
}

// Prove searches a nonce so the block hash carries trial leading zeros. It
// returns the sealed block, or a PowCanceledReason when preempted.
func (e *PowEngine) Prove(ctx context.Context, b *model.Block, trial int64) (*model.Block, string, error) {
	cancelCh := e.arm()
	defer e.done()

	if trial < 0 {
		trial = 0
	}
	prefix := strings.Repeat("0", int(trial))
	started := time.Now()

	nonce := int64(0)
	for {
		for i := 0; i < nonceBatch; i++ {
			b.Nonce = nonce
			hash := b.ComputeHash()
			if strings.HasPrefix(hash, prefix) {
				b.Hash = hash
				e.logger.Info("proof found",
					zap.Int64("number", b.Number),
					zap.Int64("trial", trial),
					zap.Int64("nonce", nonce),
					zap.Duration("elapsed", time.Since(started)))
				return b, "", nil
			}
			nonce++
		}

		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-cancelCh:
			e.logger.Debug("proof canceled", zap.Int64("number", b.Number), zap.Int64("nonce", nonce))
			return nil, chain.PowCanceledReason, nil
		default:
		}
	}
}

// WaitBeforePoW waits the delay before proving; cancellation or a head
// mutation cuts the wait short. It reports whether the wait was preempted.
func (e *PowEngine) WaitBeforePoW(ctx context.Context, delay time.Duration) (bool, error) {
	cancelCh := e.arm()
	defer e.done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-cancelCh:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}
