package chain

import (
	"context"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks/dal.go -package=mocks

// DAL is the persistent data access layer consumed by the blockchain core.
// All writes happen inside the single-writer lane; reads may run
// concurrently with at most one writer.
type DAL interface {
	// Canonical chain.

	// GetCurrentBlock returns the chain head, or nil when the chain is
	// empty.
	GetCurrentBlock(ctx context.Context) (*model.Block, error)
	// GetPromoted returns the canonical block at the given number or
	// ErrBlockNotFound.
	GetPromoted(ctx context.Context, number int64) (*model.Block, error)
	// GetBlock is GetPromoted with the same error contract, kept separate
	// because callers holding the head use it for interior lookups.
	GetBlock(ctx context.Context, number int64) (*model.Block, error)
	// GetBlockOrNil returns nil instead of an error for unknown numbers.
	GetBlockOrNil(ctx context.Context, number int64) (*model.Block, error)
	// GetBlockByNumberAndHash looks up the canonical chain only; nil when
	// absent.
	GetBlockByNumberAndHash(ctx context.Context, number int64, hash string) (*model.Block, error)
	// GetAbsoluteBlockByNumberAndHash looks across main and side chains;
	// nil when absent.
	GetAbsoluteBlockByNumberAndHash(ctx context.Context, number int64, hash string) (*model.Block, error)
	// GetBlocksBetween returns canonical blocks in [from, to], ascending.
	GetBlocksBetween(ctx context.Context, from, to int64) ([]*model.Block, error)
	// SaveBlock inserts a main-chain block and promotes it to head.
	SaveBlock(ctx context.Context, b *model.Block) error
	// SaveBunch inserts a contiguous ascending main-chain segment.
	SaveBunch(ctx context.Context, blocks []*model.Block) error
	// DeleteCurrentBlock removes the head; the predecessor becomes head.
	DeleteCurrentBlock(ctx context.Context) error

	// Side chains.

	GetForkBlocks(ctx context.Context) ([]*model.Block, error)
	// SaveSideBlock persists a side block including its wrong flag.
	SaveSideBlock(ctx context.Context, b *model.Block) error
	// DeleteSideBlock removes a side block, typically after it has been
	// promoted onto the canonical chain.
	DeleteSideBlock(ctx context.Context, number int64, hash string) error
	// MigrateOldBlocks moves aged blocks to compacted storage.
	MigrateOldBlocks(ctx context.Context) error

	// Currency parameters.

	SaveParameters(ctx context.Context, p model.Parameters) error
	GetParameters(ctx context.Context) (*model.Parameters, error)

	// Identities.

	GetIdentityByPubkey(ctx context.Context, pubkey string) (*model.Identity, error)
	SaveIdentity(ctx context.Context, idty model.Identity) error
	DeleteIdentitiesWrittenOn(ctx context.Context, number int64) error
	GetMembers(ctx context.Context) ([]model.Identity, error)
	IsMember(ctx context.Context, pubkey string) (bool, error)

	// Memberships.

	SaveMembership(ctx context.Context, ms model.Membership) error
	DeleteMembershipsWrittenOn(ctx context.Context, number int64) error
	// LastJoinOfIdentity returns the latest written IN membership of the
	// pubkey, or nil.
	LastJoinOfIdentity(ctx context.Context, pubkey string) (*model.Membership, error)

	// Certifications and links.

	SaveCertification(ctx context.Context, c model.Certification) error
	DeleteCertificationsWrittenOn(ctx context.Context, number int64) error
	// GetCertificationExcludingBlock returns the most recent block whose
	// median time is old enough that certifications written before it have
	// expired, or nil when none has.
	GetCertificationExcludingBlock(ctx context.Context, currentMedianTime, sigValidity int64) (*model.Block, error)
	SaveLink(ctx context.Context, l model.Link) error
	DeleteLinksWrittenOn(ctx context.Context, number int64) error
	// ObsoleteLinks marks links with a timestamp strictly below the floor.
	ObsoleteLinks(ctx context.Context, minTimestamp int64) error
	// GetValidLinksTo returns non-obsolete links pointing at the pubkey.
	GetValidLinksTo(ctx context.Context, pubkey string) ([]model.Link, error)
	// GetValidLinksFrom returns non-obsolete links issued by the pubkey.
	GetValidLinksFrom(ctx context.Context, pubkey string) ([]model.Link, error)

	// Sources.

	SaveSource(ctx context.Context, s model.Source) error
	ConsumeSource(ctx context.Context, identifier string, index int) error
	UnconsumeSource(ctx context.Context, identifier string, index int) error
	DeleteSourcesWrittenOn(ctx context.Context, number int64) error
	GetAvailableSources(ctx context.Context, pubkey string) ([]model.Source, error)

	// Pending pools.

	GetPendingIdentities(ctx context.Context) ([]model.Identity, error)
	SavePendingIdentity(ctx context.Context, idty model.Identity) error
	GetPendingMemberships(ctx context.Context) ([]model.Membership, error)
	// PendingJoinOfIdentity returns the latest pending IN membership of
	// the pubkey, or nil.
	PendingJoinOfIdentity(ctx context.Context, pubkey string) (*model.Membership, error)
	SavePendingMembership(ctx context.Context, ms model.Membership) error
	GetPendingCertificationsTo(ctx context.Context, pubkey string) ([]model.Certification, error)
	SavePendingCertification(ctx context.Context, c model.Certification) error
	GetPendingTransactions(ctx context.Context) ([]model.Transaction, error)
	SavePendingTransaction(ctx context.Context, tx model.Transaction) error

	// Statistics bookkeeping.

	GetStatLastParsed(ctx context.Context, stat model.StatName) (int64, error)
	SaveStatLastParsed(ctx context.Context, stat model.StatName, number int64) error
}
