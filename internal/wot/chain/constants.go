package chain

import "time"

// CheckMode selects how deep a block check goes.
type CheckMode int

const (
	// CheckStructureOnly validates structural invariants without
	// signatures or proof of work.
	CheckStructureOnly CheckMode = iota
	// CheckWithSignaturesAndPoW additionally verifies issuer signatures
	// and the proof of work.
	CheckWithSignaturesAndPoW
)

const (
	// SwitchOnBranchAheadByMinutes guards the fork switch: a side branch
	// must be ahead of the current head by this many minutes, both in
	// block count (scaled by the average generation time) and in median
	// time, before the node switches onto it.
	SwitchOnBranchAheadByMinutes = 30

	// MemoryCleanInterval is the period of the old-block migration task.
	MemoryCleanInterval = 5 * time.Minute

	// MaxBlocksBetween bounds a single blocks-between query.
	MaxBlocksBetween = 5000

	// TrialExcessLimit is how far above the current PoW floor the node is
	// willing to work; a personalized trial above powMin + TrialExcessLimit
	// skips generation until the chain moves.
	TrialExcessLimit = 2

	// PowCanceledReason is reported when an in-flight proof is preempted.
	PowCanceledReason = "powCanceled"
)
