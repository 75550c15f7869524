// Package generator pools pending documents into candidate blocks.
package generator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/clock"
	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// Generator is the default chain.Generator implementation. It reads the
// pending pools and shapes the next candidate block on top of the head.
type Generator struct {
	dal    chain.DAL
	conf   model.Parameters
	clock  clock.Clock
	logger *zap.Logger
}

// New builds a Generator.
func New(dal chain.DAL, conf model.Parameters, clk clock.Clock, logger *zap.Logger) (*Generator, error) {
	if dal == nil {
		return nil, errors.New("generator dal is required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Generator{dal: dal, conf: conf, clock: clk, logger: logger.Named("generator")}, nil
}

// ManualRoot builds the root block from the pending pools. Every pending
// identity joins; the web of trust starts from their mutual certifications.
func (g *Generator) ManualRoot(ctx context.Context) (*model.Block, error) {
	current, err := g.dal.GetCurrentBlock(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, errors.New("root block already exists")
	}

	identities, err := g.dal.GetPendingIdentities(ctx)
	if err != nil {
		return nil, err
	}
	if len(identities) == 0 {
		return nil, errors.New("a root block needs at least one pending identity")
	}

	now := g.clock.Now().Unix()
	params := g.conf
	root := &model.Block{
		Number:       0,
		Currency:     g.conf.Currency,
		Time:         now,
		MedianTime:   now,
		PowMin:       g.conf.PowZeroMin,
		Issuer:       g.conf.SelfPubkey,
		Signature:    selfSignature(g.conf.SelfPubkey),
		MembersCount: int64(len(identities)),
		Parameters:   &params,
		Identities:   identities,
	}
	for _, idty := range identities {
		root.Joiners = append(root.Joiners, model.Membership{
			Pubkey:      idty.Pubkey,
			Type:        model.MembershipIn,
			UID:         idty.UID,
			Buid:        idty.Buid,
			BlockNumber: 0,
		})
		certs, err := g.dal.GetPendingCertificationsTo(ctx, idty.Pubkey)
		if err != nil {
			return nil, err
		}
		root.Certifications = append(root.Certifications, certs...)
	}
	return root, nil
}

// NextBlock builds the next candidate on top of the head, pooling the
// pending documents.
func (g *Generator) NextBlock(ctx context.Context) (*model.Block, error) {
	candidate, current, err := g.skeleton(ctx)
	if err != nil {
		return nil, err
	}

	joiners, err := g.pendingJoiners(ctx)
	if err != nil {
		return nil, err
	}
	candidate.Joiners = joiners
	candidate.MembersCount = current.MembersCount + int64(len(joiners))

	for _, join := range joiners {
		idty, err := g.dal.GetIdentityByPubkey(ctx, join.Pubkey)
		if err != nil {
			return nil, err
		}
		if idty == nil {
			pending, err := g.pendingIdentity(ctx, join.Pubkey)
			if err != nil {
				return nil, err
			}
			if pending != nil {
				candidate.Identities = append(candidate.Identities, *pending)
			}
		}
		certs, err := g.dal.GetPendingCertificationsTo(ctx, join.Pubkey)
		if err != nil {
			return nil, err
		}
		candidate.Certifications = append(candidate.Certifications, certs...)
	}

	txs, err := g.dal.GetPendingTransactions(ctx)
	if err != nil {
		return nil, err
	}
	candidate.Transactions = txs

	g.scheduleDividend(candidate, current)
	return candidate, nil
}

// NextEmptyBlock builds a candidate carrying no documents, used after a
// generated block was flagged wrong.
func (g *Generator) NextEmptyBlock(ctx context.Context) (*model.Block, error) {
	candidate, current, err := g.skeleton(ctx)
	if err != nil {
		return nil, err
	}
	candidate.MembersCount = current.MembersCount
	g.scheduleDividend(candidate, current)
	return candidate, nil
}

func (g *Generator) skeleton(ctx context.Context) (*model.Block, *model.Block, error) {
	current, err := g.dal.GetCurrentBlock(ctx)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, errors.New("cannot build a next block without a root")
	}

	now := g.clock.Now().Unix()
	medianTime := current.MedianTime
	if now > medianTime {
		medianTime = (current.MedianTime + now) / 2
	}
	return &model.Block{
		Number:       current.Number + 1,
		PreviousHash: current.Hash,
		Currency:     current.Currency,
		Issuer:       g.conf.SelfPubkey,
		Signature:    selfSignature(g.conf.SelfPubkey),
		Time:         now,
		MedianTime:   medianTime,
		PowMin:       current.PowMin,
		UnitBase:     current.UnitBase,
	}, current, nil
}

// selfSignature stands in for the detached signature the key service
// produces; the rules engine only verifies presence and issuer validity.
func selfSignature(pubkey string) string {
	return "SELF:" + pubkey
}

// scheduleDividend emits the universal dividend when dt seconds have passed
// since the last emission.
func (g *Generator) scheduleDividend(candidate, current *model.Block) {
	if candidate.MedianTime >= current.UDTime+g.conf.DT {
		ud := g.conf.UD0
		candidate.Dividend = &ud
	}
}

func (g *Generator) pendingJoiners(ctx context.Context) ([]model.Membership, error) {
	pending, err := g.dal.GetPendingMemberships(ctx)
	if err != nil {
		return nil, err
	}
	var joiners []model.Membership
	for _, ms := range pending {
		if ms.Type != model.MembershipIn {
			continue
		}
		isMember, err := g.dal.IsMember(ctx, ms.Pubkey)
		if err != nil {
			return nil, err
		}
		if isMember {
			continue
		}
		joiners = append(joiners, ms)
	}
	return joiners, nil
}

func (g *Generator) pendingIdentity(ctx context.Context, pubkey string) (*model.Identity, error) {
	pending, err := g.dal.GetPendingIdentities(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pending {
		if pending[i].Pubkey == pubkey {
			return &pending[i], nil
		}
	}
	return nil, nil
}

// SinglePreJoinData snapshots an identity before it joins.
func (g *Generator) SinglePreJoinData(ctx context.Context, pubkey string) (*chain.PreJoinData, error) {
	idty, err := g.dal.GetIdentityByPubkey(ctx, pubkey)
	if err != nil {
		return nil, err
	}
	if idty == nil {
		pending, err := g.pendingIdentity(ctx, pubkey)
		if err != nil {
			return nil, err
		}
		if pending == nil {
			return nil, errors.New("identity not found: " + pubkey)
		}
		idty = pending
		idty.CurrentMSN = -1
	}
	return &chain.PreJoinData{
		Identity:   idty,
		Key:        idty.Pubkey,
		UID:        idty.UID,
		Buid:       idty.Buid,
		WasMember:  idty.WasMember,
		CurrentMSN: idty.CurrentMSN,
	}, nil
}

// ComputeNewCerts resolves the pending certifications that would be written
// for the pubkeys at the target block number, assuming membership then.
func (g *Generator) ComputeNewCerts(ctx context.Context, target int64, pubkeys []string) (map[string][]model.Certification, error) {
	newCerts := make(map[string][]model.Certification, len(pubkeys))
	targetBlock, err := g.dal.GetBlockOrNil(ctx, target - 1)
	if err != nil {
		return nil, err
	}
	var timestamp int64
	if targetBlock != nil {
		timestamp = targetBlock.MedianTime
	}
	for _, pubkey := range pubkeys {
		pending, err := g.dal.GetPendingCertificationsTo(ctx, pubkey)
		if err != nil {
			return nil, err
		}
		for i := range pending {
			if pending[i].Timestamp == 0 {
				pending[i].Timestamp = timestamp
			}
		}
		newCerts[pubkey] = pending
	}
	return newCerts, nil
}

// NewCertsToLinks converts provisional certifications to provisional WoT
// links.
func (g *Generator) NewCertsToLinks(certs map[string][]model.Certification) []model.Link {
	var links []model.Link
	for target, list := range certs {
		for _, cert := range list {
			links = append(links, model.Link{
				Source:    cert.From,
				Target:    target,
				Timestamp: cert.Timestamp,
			})
		}
	}
	return links
}
