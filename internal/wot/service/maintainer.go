package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
)

// Maintainer periodically migrates old blocks to compacted storage. Only one
// migration runs at a time; failures are logged and the schedule continues.
type Maintainer struct {
	dal      chain.DAL
	interval time.Duration
	metrics  MaintainerMetrics
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewMaintainer builds a Maintainer with the default interval.
func NewMaintainer(dal chain.DAL, metrics MaintainerMetrics, logger *zap.Logger) (*Maintainer, error) {
	if dal == nil {
		return nil, errors.New("maintainer dal is required")
	}
	if metrics == nil {
		return nil, errors.New("maintainer metrics is required")
	}
	return &Maintainer{
		dal:      dal,
		interval: chain.MemoryCleanInterval,
		metrics:  metrics,
		logger:   logger.Named("maintainer"),
		stop:     make(chan struct{}),
	}, nil
}

// RegularCleanMemory starts the recurring migration schedule.
func (m *Maintainer) RegularCleanMemory(ctx context.Context) {
	m.wg.Add(1)
	go m.run(ctx)
}

// StopCleanMemory stops the schedule and waits for an in-flight run.
func (m *Maintainer) StopCleanMemory() {
	close(m.stop)
	m.wg.Wait()
}

func (m *Maintainer) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanOnce(ctx)
		}
	}
}

// cleanOnce runs one migration unless one is already in flight.
func (m *Maintainer) cleanOnce(ctx context.Context) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return
	}
	m.inFlight = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	started := time.Now()
	err := m.dal.MigrateOldBlocks(ctx)
	m.metrics.ObserveClean(err, started)
	if err != nil {
		m.logger.Warn("old block migration failed", zap.Error(err))
		return
	}
	m.logger.Debug("old blocks migrated", zap.Duration("elapsed", time.Since(started)))
}
