package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// Requirements computes per-identity membership and certification status
// against a chain head.
type Requirements struct {
	dal       chain.DAL
	rules     chain.Rules
	generator chain.Generator
	conf      model.Parameters
	logger    *zap.Logger
}

// NewRequirements builds a Requirements evaluator.
func NewRequirements(dal chain.DAL, rules chain.Rules, generator chain.Generator, conf model.Parameters, logger *zap.Logger) (*Requirements, error) {
	if dal == nil || rules == nil || generator == nil {
		return nil, errors.New("requirements dependencies are required")
	}
	return &Requirements{
		dal:       dal,
		rules:     rules,
		generator: generator,
		conf:      conf,
		logger:    logger.Named("requirements"),
	}, nil
}

// OfIdentity evaluates one identity against the given head.
func (r *Requirements) OfIdentity(ctx context.Context, idty *model.Identity, current *model.Block) (*chain.IdentityRequirements, error) {
	if idty == nil {
		return nil, errors.New("identity is required")
	}
	if current == nil {
		return nil, errors.New("requirements need a current block")
	}

	pre, err := r.generator.SinglePreJoinData(ctx, idty.Pubkey)
	if err != nil {
		return nil, err
	}

	newCerts, err := r.generator.ComputeNewCerts(ctx, current.Number+1, []string{idty.Pubkey})
	if err != nil {
		return nil, err
	}
	provisionalLinks := r.generator.NewCertsToLinks(newCerts)

	persisted, err := r.dal.GetValidLinksTo(ctx, idty.Pubkey)
	if err != nil {
		return nil, err
	}

	currentTime := current.MedianTime
	certs := make([]chain.CertificationInfo, 0, len(persisted)+len(newCerts[idty.Pubkey]))
	for _, link := range persisted {
		certs = append(certs, chain.CertificationInfo{
			From:      link.Source,
			To:        idty.Pubkey,
			Timestamp: link.Timestamp,
			ExpiresIn: remaining(link.Timestamp+r.conf.SigValidity, currentTime),
		})
	}
	for _, cert := range newCerts[idty.Pubkey] {
		certs = append(certs, chain.CertificationInfo{
			From:      cert.From,
			To:        cert.To,
			Timestamp: cert.Timestamp,
			ExpiresIn: remaining(cert.Timestamp+r.conf.SigValidity, currentTime),
		})
	}

	outdistanced, err := r.rules.IsOver3Hops(ctx, idty.Pubkey, provisionalLinks, []string{idty.Pubkey}, current)
	if err != nil {
		return nil, err
	}

	membershipExpiresIn, err := r.membershipExpiry(ctx, pre.CurrentMSN, currentTime)
	if err != nil {
		return nil, err
	}
	pendingExpiresIn, err := r.pendingMembershipExpiry(ctx, idty.Pubkey, currentTime)
	if err != nil {
		return nil, err
	}

	return &chain.IdentityRequirements{
		Pubkey:                     idty.Pubkey,
		UID:                        firstNonEmpty(pre.UID, idty.UID),
		MetaTimestamp:              firstNonEmpty(pre.Buid, idty.Buid),
		Outdistanced:               outdistanced,
		Certifications:             certs,
		MembershipPendingExpiresIn: pendingExpiresIn,
		MembershipExpiresIn:        membershipExpiresIn,
	}, nil
}

// OfPendingIdentities evaluates every identity waiting in the pending pool.
func (r *Requirements) OfPendingIdentities(ctx context.Context, current *model.Block) ([]*chain.IdentityRequirements, error) {
	pending, err := r.dal.GetPendingIdentities(ctx)
	if err != nil {
		return nil, err
	}
	answers := make([]*chain.IdentityRequirements, 0, len(pending))
	for i := range pending {
		answer, err := r.OfIdentity(ctx, &pending[i], current)
		if err != nil {
			r.logger.Warn("requirements of pending identity failed",
				zap.String("pubkey", pending[i].Pubkey), zap.Error(err))
			continue
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

// ValidCerts returns the unified certification list of an identity: the
// persisted valid links plus the provisional pending certifications.
func (r *Requirements) ValidCerts(ctx context.Context, pubkey string, current *model.Block) ([]chain.CertificationInfo, error) {
	idty, err := r.dal.GetIdentityByPubkey(ctx, pubkey)
	if err != nil {
		return nil, err
	}
	if idty == nil {
		idty = &model.Identity{Pubkey: pubkey}
	}
	answer, err := r.OfIdentity(ctx, idty, current)
	if err != nil {
		return nil, err
	}
	return answer.Certifications, nil
}

func (r *Requirements) membershipExpiry(ctx context.Context, currentMSN, currentTime int64) (int64, error) {
	if currentMSN < 0 {
		return 0, nil
	}
	msBlock, err := r.dal.GetBlockOrNil(ctx, currentMSN)
	if err != nil {
		return 0, err
	}
	if msBlock == nil {
		return 0, nil
	}
	return remaining(msBlock.MedianTime+r.conf.MSValidity, currentTime), nil
}

func (r *Requirements) pendingMembershipExpiry(ctx context.Context, pubkey string, currentTime int64) (int64, error) {
	pendingJoin, err := r.dal.PendingJoinOfIdentity(ctx, pubkey)
	if err != nil {
		return 0, err
	}
	if pendingJoin == nil {
		return 0, nil
	}
	refBlock, err := r.dal.GetBlockOrNil(ctx, pendingJoin.BlockNumber)
	if err != nil {
		return 0, err
	}
	if refBlock == nil {
		return 0, nil
	}
	return remaining(refBlock.MedianTime+r.conf.MSValidity, currentTime), nil
}

func remaining(deadline, now int64) int64 {
	if deadline <= now {
		return 0
	}
	return deadline - now
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
