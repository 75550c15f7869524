package service

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

const blockCacheSize = 512

// ChainContext owns the canonical head and the materialized indices derived
// from it. All mutating methods must be called from inside the single-writer
// lane.
type ChainContext struct {
	dal    chain.DAL
	rules  chain.Rules
	conf   model.Parameters
	logger *zap.Logger
	cache  *lru.Cache
}

// NewChainContext builds a ChainContext with its dependencies.
func NewChainContext(dal chain.DAL, rules chain.Rules, conf model.Parameters, logger *zap.Logger) (*ChainContext, error) {
	if dal == nil {
		return nil, errors.New("chain context dal is required")
	}
	if rules == nil {
		return nil, errors.New("chain context rules engine is required")
	}
	cache, err := lru.New(blockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init block cache: %w", err)
	}
	return &ChainContext{
		dal:    dal,
		rules:  rules,
		conf:   conf,
		logger: logger.Named("chain"),
		cache:  cache,
	}, nil
}

// Current returns the chain head, or nil when the chain is empty.
func (c *ChainContext) Current(ctx context.Context) (*model.Block, error) {
	return c.dal.GetCurrentBlock(ctx)
}

// Promoted returns the canonical block at the given number or
// chain.ErrBlockNotFound.
func (c *ChainContext) Promoted(ctx context.Context, number int64) (*model.Block, error) {
	if cached, ok := c.cache.Get(number); ok {
		return cached.(*model.Block), nil
	}
	b, err := c.dal.GetPromoted(ctx, number)
	if err != nil {
		return nil, err
	}
	c.cache.Add(number, b)
	return b, nil
}

// BlocksBetween returns count canonical blocks starting at from, ascending.
func (c *ChainContext) BlocksBetween(ctx context.Context, from, count int64) ([]*model.Block, error) {
	if count > chain.MaxBlocksBetween {
		return nil, chain.ErrRangeTooLarge
	}
	if count <= 0 {
		return nil, nil
	}
	return c.dal.GetBlocksBetween(ctx, from, from+count-1)
}

// CheckBlock validates the block at the requested depth.
func (c *ChainContext) CheckBlock(ctx context.Context, b *model.Block, mode chain.CheckMode) error {
	return c.rules.CheckBlock(ctx, b, mode)
}

// AddBlock appends the block to the canonical chain, applying every
// materialized index mutation. The block must extend the head.
func (c *ChainContext) AddBlock(ctx context.Context, b *model.Block, doCheck bool) (*model.Block, error) {
	current, err := c.dal.GetCurrentBlock(ctx)
	if err != nil {
		return nil, err
	}
	if !b.FollowsBlock(current) {
		return nil, chain.NewInvalidBlock("block #%d-%s does not follow the current head", b.Number, shortHash(b.Hash))
	}
	if doCheck {
		if err := c.rules.CheckBlock(ctx, b, chain.CheckWithSignaturesAndPoW); err != nil {
			return nil, err
		}
	}

	b.Fork = false
	computeDerived(b, current, c.conf.DT)

	if b.Number == 0 {
		if err := c.SaveParametersForRootBlock(ctx, b); err != nil {
			return nil, err
		}
	}

	if err := c.applyDocuments(ctx, b, c.resolveStored); err != nil {
		return nil, fmt.Errorf("apply block #%d: %w", b.Number, err)
	}
	if err := c.dal.SaveBlock(ctx, b); err != nil {
		return nil, fmt.Errorf("save block #%d: %w", b.Number, err)
	}
	// A promoted block must not linger on the fork store: for any
	// (number, hash) exactly one copy is canonical.
	if err := c.dal.DeleteSideBlock(ctx, b.Number, b.Hash); err != nil {
		return nil, fmt.Errorf("unfork block #%d: %w", b.Number, err)
	}

	c.cache.Add(b.Number, b)
	c.logger.Info("block added",
		zap.Int64("number", b.Number),
		zap.String("hash", shortHash(b.Hash)),
		zap.String("issuer", shortHash(b.Issuer)))
	return b, nil
}

// AddSideBlock records the block on a side chain.
func (c *ChainContext) AddSideBlock(ctx context.Context, b *model.Block, doCheck bool) (*model.Block, error) {
	if doCheck {
		if err := c.rules.CheckBlock(ctx, b, chain.CheckStructureOnly); err != nil {
			return nil, err
		}
	}
	b.Fork = true
	if err := c.dal.SaveSideBlock(ctx, b); err != nil {
		return nil, fmt.Errorf("save side block #%d: %w", b.Number, err)
	}
	c.logger.Info("side block recorded",
		zap.Int64("number", b.Number),
		zap.String("hash", shortHash(b.Hash)))
	return b, nil
}

// RevertCurrentBlock undoes the head block: every index mutation of AddBlock
// is reverted and the block is preserved on the fork store so the abandoned
// branch stays enumerable. The root block cannot be reverted.
func (c *ChainContext) RevertCurrentBlock(ctx context.Context) (*model.Block, error) {
	head, err := c.dal.GetCurrentBlock(ctx)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, errors.New("no current block to revert")
	}
	if head.Number == 0 {
		return nil, errors.New("cannot revert the root block")
	}

	if err := c.revertDocuments(ctx, head); err != nil {
		return nil, fmt.Errorf("revert block #%d: %w", head.Number, err)
	}
	if err := c.dal.DeleteCurrentBlock(ctx); err != nil {
		return nil, fmt.Errorf("delete current block #%d: %w", head.Number, err)
	}

	side := *head
	side.Fork = true
	side.MonetaryMass = 0
	side.UDTime = 0
	if err := c.dal.SaveSideBlock(ctx, &side); err != nil {
		return nil, fmt.Errorf("preserve reverted block #%d: %w", head.Number, err)
	}

	c.cache.Remove(head.Number)
	c.logger.Info("block reverted",
		zap.Int64("number", head.Number),
		zap.String("hash", shortHash(head.Hash)))
	return head, nil
}

// SaveParametersForRootBlock persists the currency parameters carried by the
// root block, falling back to the configured defaults.
func (c *ChainContext) SaveParametersForRootBlock(ctx context.Context, root *model.Block) error {
	params := c.conf
	if root.Parameters != nil {
		params = *root.Parameters
	}
	if params.Currency == "" {
		params.Currency = root.Currency
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("root block parameters: %w", err)
	}
	return c.dal.SaveParameters(ctx, params)
}

// GetCertificationsExcludingBlock returns the reference of the most recent
// block before which certifications have expired. DAL failures yield the
// {-1} sentinel instead of an error.
func (c *ChainContext) GetCertificationsExcludingBlock(ctx context.Context) model.Ref {
	current, err := c.dal.GetCurrentBlock(ctx)
	if err != nil || current == nil {
		return model.Ref{Number: -1}
	}
	excluding, err := c.dal.GetCertificationExcludingBlock(ctx, current.MedianTime, c.conf.SigValidity)
	if err != nil || excluding == nil {
		return model.Ref{Number: -1}
	}
	return excluding.Ref()
}

func (c *ChainContext) resolveStored(ctx context.Context, number int64) (*model.Block, error) {
	return c.dal.GetBlockOrNil(ctx, number)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
