// Package chaintest provides in-memory test doubles for the chain contracts.
package chaintest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// DAL is an in-memory chain.DAL. It mirrors the semantics of the badger
// repository closely enough for the core services to run against it.
type DAL struct {
	mu sync.RWMutex

	current    int64
	blocks     map[int64]*model.Block
	forks      map[string]*model.Block
	params     *model.Parameters
	identities map[string]model.Identity

	memberships    []model.Membership
	certifications []model.Certification
	links          []model.Link
	sources        map[string]model.Source

	pendingIdentities   []model.Identity
	pendingMemberships  []model.Membership
	pendingCerts        []model.Certification
	pendingTransactions []model.Transaction

	statLastParsed map[model.StatName]int64

	// MigrateCalls counts MigrateOldBlocks invocations.
	MigrateCalls int
	// MigrateErr is returned by MigrateOldBlocks when set.
	MigrateErr error
}

// NewDAL builds an empty in-memory DAL.
func NewDAL() *DAL {
	return &DAL{
		current:        -1,
		blocks:         make(map[int64]*model.Block),
		forks:          make(map[string]*model.Block),
		identities:     make(map[string]model.Identity),
		sources:        make(map[string]model.Source),
		statLastParsed: make(map[model.StatName]int64),
	}
}

func forkKey(number int64, hash string) string {
	return fmt.Sprintf("%d:%s", number, hash)
}

func sourceKey(identifier string, index int) string {
	return fmt.Sprintf("%s:%d", identifier, index)
}

func copied(b *model.Block) *model.Block {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func (d *DAL) GetCurrentBlock(context.Context) (*model.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.current < 0 {
		return nil, nil
	}
	return copied(d.blocks[d.current]), nil
}

func (d *DAL) GetPromoted(ctx context.Context, number int64) (*model.Block, error) {
	b, err := d.GetBlockOrNil(ctx, number)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, chain.ErrBlockNotFound
	}
	return b, nil
}

func (d *DAL) GetBlock(ctx context.Context, number int64) (*model.Block, error) {
	return d.GetPromoted(ctx, number)
}

func (d *DAL) GetBlockOrNil(_ context.Context, number int64) (*model.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copied(d.blocks[number]), nil
}

func (d *DAL) GetBlockByNumberAndHash(_ context.Context, number int64, hash string) (*model.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b := d.blocks[number]
	if b == nil || b.Hash != hash {
		return nil, nil
	}
	return copied(b), nil
}

func (d *DAL) GetAbsoluteBlockByNumberAndHash(_ context.Context, number int64, hash string) (*model.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if b := d.blocks[number]; b != nil && b.Hash == hash {
		return copied(b), nil
	}
	return copied(d.forks[forkKey(number, hash)]), nil
}

func (d *DAL) GetBlocksBetween(_ context.Context, from, to int64) ([]*model.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var blocks []*model.Block
	if from < 0 {
		from = 0
	}
	for n := from; n <= to; n++ {
		b := d.blocks[n]
		if b == nil {
			break
		}
		blocks = append(blocks, copied(b))
	}
	return blocks, nil
}

func (d *DAL) SaveBlock(_ context.Context, b *model.Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks[b.Number] = copied(b)
	d.current = b.Number
	return nil
}

func (d *DAL) SaveBunch(ctx context.Context, blocks []*model.Block) error {
	for _, b := range blocks {
		if err := d.SaveBlock(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (d *DAL) DeleteCurrentBlock(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current < 0 {
		return fmt.Errorf("no current block")
	}
	delete(d.blocks, d.current)
	d.current--
	return nil
}

func (d *DAL) GetForkBlocks(context.Context) ([]*model.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	blocks := make([]*model.Block, 0, len(d.forks))
	for _, b := range d.forks {
		blocks = append(blocks, copied(b))
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Number < blocks[j].Number })
	return blocks, nil
}

func (d *DAL) SaveSideBlock(_ context.Context, b *model.Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forks[forkKey(b.Number, b.Hash)] = copied(b)
	return nil
}

func (d *DAL) DeleteSideBlock(_ context.Context, number int64, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.forks, forkKey(number, hash))
	return nil
}

func (d *DAL) MigrateOldBlocks(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.MigrateCalls++
	return d.MigrateErr
}

// MigrateCount returns how many times MigrateOldBlocks ran.
func (d *DAL) MigrateCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.MigrateCalls
}

func (d *DAL) SaveParameters(_ context.Context, p model.Parameters) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = &p
	return nil
}

func (d *DAL) GetParameters(context.Context) (*model.Parameters, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.params == nil {
		return nil, nil
	}
	p := *d.params
	return &p, nil
}

func (d *DAL) GetIdentityByPubkey(_ context.Context, pubkey string) (*model.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idty, ok := d.identities[pubkey]
	if !ok {
		return nil, nil
	}
	return &idty, nil
}

func (d *DAL) SaveIdentity(_ context.Context, idty model.Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities[idty.Pubkey] = idty
	return nil
}

func (d *DAL) DeleteIdentitiesWrittenOn(_ context.Context, number int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pubkey, idty := range d.identities {
		if idty.WrittenOn == number {
			delete(d.identities, pubkey)
		}
	}
	return nil
}

func (d *DAL) GetMembers(context.Context) ([]model.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var members []model.Identity
	for _, idty := range d.identities {
		if idty.Member {
			members = append(members, idty)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Pubkey < members[j].Pubkey })
	return members, nil
}

func (d *DAL) IsMember(_ context.Context, pubkey string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idty, ok := d.identities[pubkey]
	return ok && idty.Member, nil
}

func (d *DAL) SaveMembership(_ context.Context, ms model.Membership) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memberships = append(d.memberships, ms)
	return nil
}

func (d *DAL) DeleteMembershipsWrittenOn(_ context.Context, number int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.memberships[:0]
	for _, ms := range d.memberships {
		if ms.WrittenOn != number {
			kept = append(kept, ms)
		}
	}
	d.memberships = kept
	return nil
}

func (d *DAL) LastJoinOfIdentity(_ context.Context, pubkey string) (*model.Membership, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var last *model.Membership
	for i := range d.memberships {
		ms := d.memberships[i]
		if ms.Pubkey != pubkey || ms.Type != model.MembershipIn {
			continue
		}
		if last == nil || ms.WrittenOn > last.WrittenOn {
			copiedMS := ms
			last = &copiedMS
		}
	}
	return last, nil
}

func (d *DAL) SaveCertification(_ context.Context, c model.Certification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.certifications = append(d.certifications, c)
	return nil
}

func (d *DAL) DeleteCertificationsWrittenOn(_ context.Context, number int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.certifications[:0]
	for _, c := range d.certifications {
		if c.WrittenOn != number {
			kept = append(kept, c)
		}
	}
	d.certifications = kept
	return nil
}

func (d *DAL) GetCertificationExcludingBlock(_ context.Context, currentMedianTime, sigValidity int64) (*model.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	limit := currentMedianTime - sigValidity
	var excluding *model.Block
	for n := int64(0); n <= d.current; n++ {
		b := d.blocks[n]
		if b == nil || b.MedianTime > limit {
			break
		}
		excluding = b
	}
	return copied(excluding), nil
}

func (d *DAL) SaveLink(_ context.Context, l model.Link) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.links = append(d.links, l)
	return nil
}

func (d *DAL) DeleteLinksWrittenOn(_ context.Context, number int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.links[:0]
	for _, l := range d.links {
		if l.WrittenOn != number {
			kept = append(kept, l)
		}
	}
	d.links = kept
	return nil
}

func (d *DAL) ObsoleteLinks(_ context.Context, minTimestamp int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.links {
		if d.links[i].Timestamp < minTimestamp {
			d.links[i].Obsolete = true
		}
	}
	return nil
}

func (d *DAL) GetValidLinksTo(_ context.Context, pubkey string) ([]model.Link, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var links []model.Link
	for _, l := range d.links {
		if l.Target == pubkey && !l.Obsolete {
			links = append(links, l)
		}
	}
	return links, nil
}

func (d *DAL) GetValidLinksFrom(_ context.Context, pubkey string) ([]model.Link, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var links []model.Link
	for _, l := range d.links {
		if l.Source == pubkey && !l.Obsolete {
			links = append(links, l)
		}
	}
	return links, nil
}

func (d *DAL) SaveSource(_ context.Context, s model.Source) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[sourceKey(s.Identifier, s.Index)] = s
	return nil
}

func (d *DAL) ConsumeSource(_ context.Context, identifier string, index int) error {
	return d.setConsumed(identifier, index, true)
}

func (d *DAL) UnconsumeSource(_ context.Context, identifier string, index int) error {
	return d.setConsumed(identifier, index, false)
}

func (d *DAL) setConsumed(identifier string, index int, consumed bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := sourceKey(identifier, index)
	s, ok := d.sources[key]
	if !ok {
		return fmt.Errorf("source %s#%d not found", identifier, index)
	}
	s.Consumed = consumed
	d.sources[key] = s
	return nil
}

func (d *DAL) DeleteSourcesWrittenOn(_ context.Context, number int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, s := range d.sources {
		if s.BlockNum == number {
			delete(d.sources, key)
		}
	}
	return nil
}

func (d *DAL) GetAvailableSources(_ context.Context, pubkey string) ([]model.Source, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var sources []model.Source
	for _, s := range d.sources {
		if !s.Consumed && s.Pubkey == pubkey {
			sources = append(sources, s)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].BlockNum < sources[j].BlockNum })
	return sources, nil
}

func (d *DAL) GetPendingIdentities(context.Context) ([]model.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Identity(nil), d.pendingIdentities...), nil
}

func (d *DAL) SavePendingIdentity(_ context.Context, idty model.Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingIdentities = append(d.pendingIdentities, idty)
	return nil
}

func (d *DAL) GetPendingMemberships(context.Context) ([]model.Membership, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Membership(nil), d.pendingMemberships...), nil
}

func (d *DAL) PendingJoinOfIdentity(_ context.Context, pubkey string) (*model.Membership, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var last *model.Membership
	for i := range d.pendingMemberships {
		ms := d.pendingMemberships[i]
		if ms.Pubkey != pubkey || ms.Type != model.MembershipIn {
			continue
		}
		if last == nil || ms.BlockNumber > last.BlockNumber {
			copiedMS := ms
			last = &copiedMS
		}
	}
	return last, nil
}

func (d *DAL) SavePendingMembership(_ context.Context, ms model.Membership) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingMemberships = append(d.pendingMemberships, ms)
	return nil
}

func (d *DAL) GetPendingCertificationsTo(_ context.Context, pubkey string) ([]model.Certification, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var certs []model.Certification
	for _, c := range d.pendingCerts {
		if c.To == pubkey {
			certs = append(certs, c)
		}
	}
	return certs, nil
}

func (d *DAL) SavePendingCertification(_ context.Context, c model.Certification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingCerts = append(d.pendingCerts, c)
	return nil
}

func (d *DAL) GetPendingTransactions(context.Context) ([]model.Transaction, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Transaction(nil), d.pendingTransactions...), nil
}

func (d *DAL) SavePendingTransaction(_ context.Context, tx model.Transaction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingTransactions = append(d.pendingTransactions, tx)
	return nil
}

func (d *DAL) GetStatLastParsed(_ context.Context, stat model.StatName) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if last, ok := d.statLastParsed[stat]; ok {
		return last, nil
	}
	return -1, nil
}

func (d *DAL) SaveStatLastParsed(_ context.Context, stat model.StatName, number int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statLastParsed[stat] = number
	return nil
}

// Sources returns a snapshot of the stored sources for assertions.
func (d *DAL) Sources() []model.Source {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sources := make([]model.Source, 0, len(d.sources))
	for _, s := range d.sources {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Identifier != sources[j].Identifier {
			return sources[i].Identifier < sources[j].Identifier
		}
		return sources[i].Index < sources[j].Index
	})
	return sources
}

// Links returns a snapshot of the stored links for assertions.
func (d *DAL) Links() []model.Link {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Link(nil), d.links...)
}

// NopObserver implements the metrics observer interfaces of the core
// services with no-ops.
type NopObserver struct{}

func (NopObserver) ObserveSubmit(error, bool, time.Time)      {}
func (NopObserver) ObserveRevert(error, time.Time)            {}
func (NopObserver) ObserveSwitch(error, int, bool, time.Time) {}
func (NopObserver) ObserveProof(string, error, time.Time)     {}
func (NopObserver) ObserveClean(error, time.Time)             {}
