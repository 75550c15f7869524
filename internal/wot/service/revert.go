package service

import (
	"context"
	"fmt"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// revertDocuments undoes every index mutation applyDocuments performed for
// the block, in reverse order.
func (c *ChainContext) revertDocuments(ctx context.Context, b *model.Block) error {
	if err := c.dal.DeleteSourcesWrittenOn(ctx, b.Number); err != nil {
		return fmt.Errorf("delete sources: %w", err)
	}
	for _, tx := range b.Transactions {
		for _, in := range tx.Inputs {
			if err := c.dal.UnconsumeSource(ctx, in.Identifier, in.Index); err != nil {
				return fmt.Errorf("unconsume source %s#%d: %w", in.Identifier, in.Index, err)
			}
		}
	}
	if err := c.dal.DeleteCertificationsWrittenOn(ctx, b.Number); err != nil {
		return fmt.Errorf("delete certifications: %w", err)
	}
	if err := c.dal.DeleteLinksWrittenOn(ctx, b.Number); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	if err := c.dal.DeleteMembershipsWrittenOn(ctx, b.Number); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	if err := c.revertMembers(ctx, b); err != nil {
		return err
	}
	if err := c.dal.DeleteIdentitiesWrittenOn(ctx, b.Number); err != nil {
		return fmt.Errorf("delete identities: %w", err)
	}
	return nil
}

// revertMembers restores the identity flags the block changed. Membership
// records written by the block have already been deleted, so the previous
// membership sequence number is the latest remaining join.
func (c *ChainContext) revertMembers(ctx context.Context, b *model.Block) error {
	for _, join := range b.Joiners {
		if err := c.restoreIdentity(ctx, join.Pubkey, func(i *model.Identity, lastJoin *model.Membership) {
			i.Member = false
			i.WasMember = lastJoin != nil
			i.CurrentMSN = msnOf(lastJoin)
		}); err != nil {
			return err
		}
	}
	for _, active := range b.Actives {
		if err := c.restoreIdentity(ctx, active.Pubkey, func(i *model.Identity, lastJoin *model.Membership) {
			i.CurrentMSN = msnOf(lastJoin)
		}); err != nil {
			return err
		}
	}
	for _, leaver := range b.Leavers {
		if err := c.restoreIdentity(ctx, leaver.Pubkey, func(i *model.Identity, lastJoin *model.Membership) {
			i.Leaving = false
			i.CurrentMSN = msnOf(lastJoin)
		}); err != nil {
			return err
		}
	}
	for _, rev := range b.Revoked {
		if err := c.restoreIdentity(ctx, rev.Pubkey, func(i *model.Identity, _ *model.Membership) {
			i.Revoked = false
		}); err != nil {
			return err
		}
	}
	for _, pubkey := range b.Excluded {
		if err := c.restoreIdentity(ctx, pubkey, func(i *model.Identity, _ *model.Membership) {
			i.Member = true
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *ChainContext) restoreIdentity(ctx context.Context, pubkey string, mutate func(*model.Identity, *model.Membership)) error {
	idty, err := c.dal.GetIdentityByPubkey(ctx, pubkey)
	if err != nil {
		return fmt.Errorf("load identity %s: %w", pubkey, err)
	}
	if idty == nil {
		// The identity was written by the reverted block itself and is
		// removed with it.
		return nil
	}
	lastJoin, err := c.dal.LastJoinOfIdentity(ctx, pubkey)
	if err != nil {
		return fmt.Errorf("last join of %s: %w", pubkey, err)
	}
	mutate(idty, lastJoin)
	return c.dal.SaveIdentity(ctx, *idty)
}

func msnOf(ms *model.Membership) int64 {
	if ms == nil {
		return -1
	}
	return ms.WrittenOn
}
