// Package rules implements the default consensus rules engine: block
// validation, personalized proof-of-work difficulty and the web-of-trust
// distance predicate.
package rules

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/utils"
	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// issuerFrame is how far back the personalized difficulty looks.
const issuerFrame = 100

// maxStepsBack is the WoT distance bound: every member of the referential
// set must reach the candidate within this many hops.
const maxStepsBack = 3

// Engine is the default chain.Rules implementation.
type Engine struct {
	dal    chain.DAL
	conf   model.Parameters
	logger *zap.Logger
}

// New builds an Engine.
func New(dal chain.DAL, conf model.Parameters, logger *zap.Logger) (*Engine, error) {
	if dal == nil {
		return nil, errors.New("rules engine dal is required")
	}
	return &Engine{dal: dal, conf: conf, logger: logger.Named("rules")}, nil
}

// CheckBlock validates the block. Structural checks always run; the deeper
// mode additionally verifies the proof of work and that the block carries a
// signature. The signature's cryptographic validity is not verified.
func (e *Engine) CheckBlock(ctx context.Context, b *model.Block, mode chain.CheckMode) error {
	if b == nil {
		return chain.NewInvalidBlock("missing block")
	}
	if b.Number < 0 {
		return chain.NewInvalidBlock("negative block number")
	}
	if b.Number > 0 && b.PreviousHash == "" {
		return chain.NewInvalidBlock("block #%d has no previous hash", b.Number)
	}
	if b.Issuer == "" {
		return chain.NewInvalidBlock("block #%d has no issuer", b.Number)
	}
	if !utils.IsBase58(b.Issuer) {
		return chain.NewInvalidBlock("issuer %q is not a valid base58 key", b.Issuer)
	}
	if b.MembersCount < 0 {
		return chain.NewInvalidBlock("negative members count")
	}
	if b.Dividend != nil && *b.Dividend <= 0 {
		return chain.NewInvalidBlock("non-positive dividend")
	}
	if b.UnitBase < 0 {
		return chain.NewInvalidBlock("negative unit base")
	}
	if err := e.checkMedianTime(ctx, b); err != nil {
		return err
	}

	if mode != chain.CheckWithSignaturesAndPoW {
		return nil
	}

	if b.Signature == "" {
		return chain.NewInvalidBlock("block #%d is not signed", b.Number)
	}
	if err := checkProofOfWork(b); err != nil {
		return err
	}
	return nil
}

func (e *Engine) checkMedianTime(ctx context.Context, b *model.Block) error {
	if b.Number == 0 {
		return nil
	}
	prev, err := e.dal.GetBlockOrNil(ctx, b.Number-1)
	if err != nil {
		return err
	}
	if prev == nil || prev.Hash != b.PreviousHash {
		// The predecessor is not on the canonical chain; median time is
		// checked when the branch is applied.
		return nil
	}
	if b.MedianTime < prev.MedianTime {
		return chain.NewInvalidBlock("median time moved backwards at #%d", b.Number)
	}
	return nil
}

// checkProofOfWork verifies the block hash matches its content and carries
// the difficulty announced by powMin.
func checkProofOfWork(b *model.Block) error {
	computed := b.ComputeHash()
	if b.Hash != computed {
		return chain.NewInvalidBlock("block #%d hash does not match its content", b.Number)
	}
	required := strings.Repeat("0", int(b.PowMin))
	if !strings.HasPrefix(b.Hash, required) {
		return chain.NewInvalidBlock("block #%d proof of work below powMin %d", b.Number, b.PowMin)
	}
	return nil
}

// TrialLevel computes the personalized difficulty for the issuer's next
// block: the chain's floor plus one level per block the issuer signed in the
// recent frame.
func (e *Engine) TrialLevel(ctx context.Context, pubkey string) (int64, error) {
	current, err := e.dal.GetCurrentBlock(ctx)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return e.conf.PowZeroMin, nil
	}

	from := current.Number - issuerFrame + 1
	if from < 0 {
		from = 0
	}
	frame, err := e.dal.GetBlocksBetween(ctx, from, current.Number)
	if err != nil {
		return 0, err
	}
	var issued int64
	for _, b := range frame {
		if b.Issuer == pubkey {
			issued++
		}
	}

	trial := current.PowMin + issued
	if trial < e.conf.PowZeroMin {
		trial = e.conf.PowZeroMin
	}
	return trial, nil
}

// IsOver3Hops reports whether the candidate would be outdistanced: some
// member of the referential set cannot reach it within maxStepsBack hops
// over the valid links extended with the provisional ones.
func (e *Engine) IsOver3Hops(ctx context.Context, pubkey string, links []model.Link, newcomers []string, current *model.Block) (bool, error) {
	members, err := e.dal.GetMembers(ctx)
	if err != nil {
		return false, err
	}
	if len(members) == 0 {
		return false, nil
	}

	newcomerSet := make(map[string]struct{}, len(newcomers))
	for _, n := range newcomers {
		newcomerSet[n] = struct{}{}
	}

	// Referential set: current members, minus the candidate and the other
	// identities joining alongside it.
	referential := make([]string, 0, len(members))
	for _, m := range members {
		if m.Pubkey == pubkey {
			continue
		}
		if _, joining := newcomerSet[m.Pubkey]; joining {
			continue
		}
		referential = append(referential, m.Pubkey)
	}
	if len(referential) == 0 {
		return false, nil
	}

	// Breadth-first walk backward from the candidate: a member reaches the
	// candidate within k hops iff the candidate is reachable from it along
	// certification links, which is the same as the member being found
	// within k steps when walking links in reverse.
	reached := map[string]int{pubkey: 0}
	frontier := []string{pubkey}
	for depth := 1; depth <= maxStepsBack && len(frontier) > 0; depth++ {
		var next []string
		for _, target := range frontier {
			issuers, err := e.issuersTowards(ctx, target, links)
			if err != nil {
				return false, err
			}
			for _, issuer := range issuers {
				if _, ok := reached[issuer]; ok {
					continue
				}
				reached[issuer] = depth
				next = append(next, issuer)
			}
		}
		frontier = next
	}

	for _, member := range referential {
		if _, ok := reached[member]; !ok {
			return true, nil
		}
	}
	return false, nil
}

// issuersTowards collects the pubkeys certifying the target, combining the
// persisted valid links with the provisional ones.
func (e *Engine) issuersTowards(ctx context.Context, target string, provisional []model.Link) ([]string, error) {
	persisted, err := e.dal.GetValidLinksTo(ctx, target)
	if err != nil {
		return nil, err
	}
	issuers := make([]string, 0, len(persisted))
	for _, l := range persisted {
		issuers = append(issuers, l.Source)
	}
	for _, l := range provisional {
		if l.Target == target {
			issuers = append(issuers, l.Source)
		}
	}
	return issuers, nil
}
