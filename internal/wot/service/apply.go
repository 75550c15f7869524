package service

import (
	"context"
	"fmt"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// blockResolver resolves a block number to a block, or nil when unknown.
// The bookkeeper substitutes a resolver that serves its in-memory segment
// before falling back to storage.
type blockResolver func(ctx context.Context, number int64) (*model.Block, error)

// computeDerived assigns monetary mass and UD time from the predecessor,
// following the recurrences:
//
//	monetaryMass(i) = monetaryMass(i-1) + dividend_i * membersCount_i
//	udTime(i)       = udTime(i-1) + dt when the block emits a dividend
func computeDerived(b, prev *model.Block, dt int64) {
	if prev == nil {
		b.UDTime = b.MedianTime
		b.MonetaryMass = 0
		if b.HasDividend() {
			b.MonetaryMass = *b.Dividend * b.MembersCount
		}
		return
	}
	b.UDTime = prev.UDTime
	b.MonetaryMass = prev.MonetaryMass
	if b.HasDividend() {
		b.UDTime = prev.UDTime + dt
		b.MonetaryMass += *b.Dividend * b.MembersCount
	}
}

func (c *ChainContext) applyDocuments(ctx context.Context, b *model.Block, resolve blockResolver) error {
	if err := applyMembers(ctx, c.dal, b); err != nil {
		return err
	}
	if err := applyTransactions(ctx, c.dal, b); err != nil {
		return err
	}
	if err := applyMemberships(ctx, c.dal, b); err != nil {
		return err
	}
	if err := applyCertifications(ctx, c.dal, b, resolve); err != nil {
		return err
	}
	if err := applyDividend(ctx, c.dal, b); err != nil {
		return err
	}
	return c.dal.ObsoleteLinks(ctx, b.MedianTime-c.conf.SigValidity)
}

// applyMembers replays identity and membership state changes carried by the
// block onto the identity index.
func applyMembers(ctx context.Context, dal chain.DAL, b *model.Block) error {
	for _, idty := range b.Identities {
		idty.WrittenOn = b.Number
		idty.CurrentMSN = -1
		if err := dal.SaveIdentity(ctx, idty); err != nil {
			return fmt.Errorf("save identity %s: %w", idty.Pubkey, err)
		}
	}
	for _, join := range b.Joiners {
		if err := flagIdentity(ctx, dal, join.Pubkey, func(i *model.Identity) {
			i.Member = true
			i.WasMember = true
			i.Leaving = false
			i.CurrentMSN = b.Number
		}); err != nil {
			return err
		}
	}
	for _, active := range b.Actives {
		if err := flagIdentity(ctx, dal, active.Pubkey, func(i *model.Identity) {
			i.CurrentMSN = b.Number
		}); err != nil {
			return err
		}
	}
	for _, leaver := range b.Leavers {
		if err := flagIdentity(ctx, dal, leaver.Pubkey, func(i *model.Identity) {
			i.Leaving = true
			i.CurrentMSN = b.Number
		}); err != nil {
			return err
		}
	}
	for _, rev := range b.Revoked {
		if err := flagIdentity(ctx, dal, rev.Pubkey, func(i *model.Identity) {
			i.Revoked = true
		}); err != nil {
			return err
		}
	}
	for _, pubkey := range b.Excluded {
		if err := flagIdentity(ctx, dal, pubkey, func(i *model.Identity) {
			i.Member = false
		}); err != nil {
			return err
		}
	}
	return nil
}

func flagIdentity(ctx context.Context, dal chain.DAL, pubkey string, mutate func(*model.Identity)) error {
	idty, err := dal.GetIdentityByPubkey(ctx, pubkey)
	if err != nil {
		return fmt.Errorf("load identity %s: %w", pubkey, err)
	}
	if idty == nil {
		return chain.NewInvalidBlock("membership for unknown identity %s", pubkey)
	}
	mutate(idty)
	return dal.SaveIdentity(ctx, *idty)
}

func applyMemberships(ctx context.Context, dal chain.DAL, b *model.Block) error {
	save := func(ms model.Membership, typ model.MembershipType) error {
		ms.Type = typ
		ms.WrittenOn = b.Number
		return dal.SaveMembership(ctx, ms)
	}
	for _, ms := range b.Joiners {
		if err := save(ms, model.MembershipIn); err != nil {
			return err
		}
	}
	for _, ms := range b.Actives {
		if err := save(ms, model.MembershipIn); err != nil {
			return err
		}
	}
	for _, ms := range b.Leavers {
		if err := save(ms, model.MembershipOut); err != nil {
			return err
		}
	}
	return nil
}

// applyCertifications writes the block's certifications and materializes one
// WoT link per certification. The link timestamp is the median time of the
// block the certification refers to, resolved through the provided resolver.
func applyCertifications(ctx context.Context, dal chain.DAL, b *model.Block, resolve blockResolver) error {
	for _, cert := range b.Certifications {
		cert.WrittenOn = b.Number
		cert.Timestamp = b.MedianTime
		if err := dal.SaveCertification(ctx, cert); err != nil {
			return fmt.Errorf("save certification %s->%s: %w", cert.From, cert.To, err)
		}

		linkTime := b.MedianTime
		if referenced, err := resolve(ctx, cert.BlockNumber); err == nil && referenced != nil {
			linkTime = referenced.MedianTime
		}
		link := model.Link{
			Source:    cert.From,
			Target:    cert.To,
			Timestamp: linkTime,
			WrittenOn: b.Number,
		}
		if err := dal.SaveLink(ctx, link); err != nil {
			return fmt.Errorf("save link %s->%s: %w", cert.From, cert.To, err)
		}
	}
	return nil
}

// applyTransactions consumes the sources spent by the block's transactions
// and creates one source per transaction output.
func applyTransactions(ctx context.Context, dal chain.DAL, b *model.Block) error {
	for ti := range b.Transactions {
		tx := &b.Transactions[ti]
		tx.BlockNum = b.Number
		for _, in := range tx.Inputs {
			if err := dal.ConsumeSource(ctx, in.Identifier, in.Index); err != nil {
				return fmt.Errorf("consume source %s#%d: %w", in.Identifier, in.Index, err)
			}
		}
		for oi, out := range tx.Outputs {
			src := model.Source{
				Type:       model.SourceTransaction,
				Pubkey:     sigPubkey(out.Conditions),
				Identifier: tx.Hash,
				Index:      oi,
				BlockNum:   b.Number,
				Amount:     out.Amount,
				Base:       out.Base,
				Conditions: out.Conditions,
			}
			if err := dal.SaveSource(ctx, src); err != nil {
				return fmt.Errorf("save output %s#%d: %w", tx.Hash, oi, err)
			}
		}
	}
	return nil
}

// applyDividend emits one dividend source per current member.
func applyDividend(ctx context.Context, dal chain.DAL, b *model.Block) error {
	if !b.HasDividend() {
		return nil
	}
	members, err := dal.GetMembers(ctx)
	if err != nil {
		return fmt.Errorf("load members for dividend: %w", err)
	}
	for _, member := range members {
		src := model.Source{
			Type:       model.SourceDividend,
			Pubkey:     member.Pubkey,
			Identifier: member.Pubkey,
			Index:      int(b.Number),
			BlockNum:   b.Number,
			Amount:     *b.Dividend,
			Base:       b.UnitBase,
			Conditions: model.SigCondition(member.Pubkey),
		}
		if err := dal.SaveSource(ctx, src); err != nil {
			return fmt.Errorf("save dividend source for %s: %w", member.Pubkey, err)
		}
	}
	return nil
}

// sigPubkey extracts the pubkey of a SIG(<pubkey>) condition, or empty when
// the condition is composite.
func sigPubkey(conditions string) string {
	const prefix, suffix = "SIG(", ")"
	if len(conditions) > len(prefix)+len(suffix) &&
		conditions[:len(prefix)] == prefix &&
		conditions[len(conditions)-1:] == suffix {
		return conditions[len(prefix) : len(conditions)-1]
	}
	return ""
}
