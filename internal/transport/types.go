// Package transport exposes the node's public operations over HTTP.
package transport

import (
	"context"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Blockchain answers read queries against the canonical chain.
	Blockchain interface {
		Current(ctx context.Context) (*model.Block, error)
		Promoted(ctx context.Context, number int64) (*model.Block, error)
		BlocksBetween(ctx context.Context, from, count int64) ([]*model.Block, error)
		GetCertificationsExcludingBlock(ctx context.Context) model.Ref
	}

	// Submitter admits and reverts blocks.
	Submitter interface {
		SubmitBlock(ctx context.Context, b *model.Block, doCheck, forkAllowed bool) (*model.Block, error)
		RevertCurrentBlock(ctx context.Context) (*model.Block, error)
	}

	// Brancher lists the fork-choice candidate heads.
	Brancher interface {
		Branches(ctx context.Context) ([]*model.Block, error)
	}

	// Requirements answers identity status queries.
	Requirements interface {
		OfIdentity(ctx context.Context, idty *model.Identity, current *model.Block) (*chain.IdentityRequirements, error)
		OfPendingIdentities(ctx context.Context, current *model.Block) ([]*chain.IdentityRequirements, error)
		ValidCerts(ctx context.Context, pubkey string, current *model.Block) ([]chain.CertificationInfo, error)
	}

	// Generation drives block generation by hand.
	Generation interface {
		GenerateManualRoot(ctx context.Context) (*model.Block, error)
		GenerateNext(ctx context.Context) (*model.Block, error)
		StopPoWThenProcessAndRestartPoW()
	}

	// Pool accepts pending documents.
	Pool interface {
		SavePendingIdentity(ctx context.Context, idty model.Identity) error
		SavePendingMembership(ctx context.Context, ms model.Membership) error
		SavePendingCertification(ctx context.Context, c model.Certification) error
		SavePendingTransaction(ctx context.Context, tx model.Transaction) error
		GetIdentityByPubkey(ctx context.Context, pubkey string) (*model.Identity, error)
	}
)
