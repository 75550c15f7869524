// Package service implements the blockchain service core: chain context,
// admission pipeline, fork switching, bookkeeping, requirements evaluation,
// proof-of-work orchestration and storage maintenance.
package service

import (
	"context"
	"time"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// ProverControl preempts an in-flight proof of work. Any chain
	// mutation signals it so the prover restarts on the new head.
	ProverControl interface {
		Cancel()
	}

	// BlockSubmitter feeds a proved block back into the admission
	// pipeline.
	BlockSubmitter interface {
		SubmitBlock(ctx context.Context, b *model.Block, doCheck, forkAllowed bool) (*model.Block, error)
	}

	// StatsRecorder lands the statistic activity of newly admitted blocks.
	StatsRecorder interface {
		RecordBlock(ctx context.Context, b *model.Block) error
	}

	// AdmissionMetrics tracks admission outcomes.
	AdmissionMetrics interface {
		ObserveSubmit(err error, forked bool, started time.Time)
		ObserveRevert(err error, started time.Time)
	}

	// SwitchMetrics tracks fork-switch attempts.
	SwitchMetrics interface {
		ObserveSwitch(err error, candidates int, switched bool, started time.Time)
	}

	// ProverMetrics tracks proof-of-work runs.
	ProverMetrics interface {
		ObserveProof(reason string, err error, started time.Time)
	}

	// MaintainerMetrics tracks storage compaction runs.
	MaintainerMetrics interface {
		ObserveClean(err error, started time.Time)
	}
)
