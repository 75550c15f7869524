package chain

import (
	"context"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks/contracts.go -package=mocks

// Rules is the consensus rules engine. Validators are pure against the DAL:
// they read but never write.
type Rules interface {
	// CheckBlock validates the block at the requested depth and returns an
	// InvalidBlockError on rejection.
	CheckBlock(ctx context.Context, b *model.Block, mode CheckMode) error
	// TrialLevel computes the personalized proof-of-work difficulty for
	// the issuer's next block.
	TrialLevel(ctx context.Context, pubkey string) (int64, error)
	// IsOver3Hops reports whether the identity would sit more than three
	// hops away from part of the referential members, given the
	// provisional links and newcomers.
	IsOver3Hops(ctx context.Context, pubkey string, links []model.Link, newcomers []string, current *model.Block) (bool, error)
}

// PreJoinData is the snapshot of an identity before it joins.
type PreJoinData struct {
	Identity   *model.Identity
	Key        string
	UID        string
	Buid       string
	WasMember  bool
	CurrentMSN int64
}

// Generator pools pending documents into candidate blocks.
type Generator interface {
	// ManualRoot builds the root block from the pending pools.
	ManualRoot(ctx context.Context) (*model.Block, error)
	// NextBlock builds the next candidate block on top of the head.
	NextBlock(ctx context.Context) (*model.Block, error)
	// NextEmptyBlock builds a candidate carrying no documents.
	NextEmptyBlock(ctx context.Context) (*model.Block, error)
	// SinglePreJoinData snapshots one identity before joining.
	SinglePreJoinData(ctx context.Context, pubkey string) (*PreJoinData, error)
	// ComputeNewCerts resolves the pending certifications that would be
	// written for the pubkeys at the target block number.
	ComputeNewCerts(ctx context.Context, target int64, pubkeys []string) (map[string][]model.Certification, error)
	// NewCertsToLinks converts provisional certifications to provisional
	// WoT links.
	NewCertsToLinks(certs map[string][]model.Certification) []model.Link
}

// CertificationInfo is one certification of a requirements answer, with its
// remaining validity.
type CertificationInfo struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
	ExpiresIn int64  `json:"expiresIn"`
}

// IdentityRequirements is the per-identity membership status against a chain
// head.
type IdentityRequirements struct {
	Pubkey                     string              `json:"pubkey"`
	UID                        string              `json:"uid"`
	MetaTimestamp              string              `json:"meta_timestamp"`
	Outdistanced               bool                `json:"outdistanced"`
	Certifications             []CertificationInfo `json:"certifications"`
	MembershipPendingExpiresIn int64               `json:"membershipPendingExpiresIn"`
	MembershipExpiresIn        int64               `json:"membershipExpiresIn"`
}

// StatsPusher lands per-block statistic activity in the stats warehouse.
type StatsPusher interface {
	PushStats(ctx context.Context, update model.StatsUpdate) error
}
