package badger

import (
	"context"
	"fmt"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v2"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

func identityKey(pubkey string) []byte {
	return []byte(prefixIdentity + pubkey)
}

func membershipKey(pubkey string, writtenOn int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%012d", prefixMS, pubkey, writtenOn))
}

// GetIdentityByPubkey returns the written identity, or nil.
func (r *Repository) GetIdentityByPubkey(ctx context.Context, pubkey string) (*model.Identity, error) {
	var idty *model.Identity
	err := r.view(ctx, "get_identity", func(txn *badgerdb.Txn) error {
		var i model.Identity
		found, err := get(txn, identityKey(pubkey), &i)
		if err != nil || !found {
			return err
		}
		idty = &i
		return nil
	})
	return idty, err
}

// SaveIdentity upserts a written identity.
func (r *Repository) SaveIdentity(ctx context.Context, idty model.Identity) error {
	return r.update(ctx, "save_identity", func(txn *badgerdb.Txn) error {
		return put(txn, identityKey(idty.Pubkey), idty)
	})
}

// DeleteIdentitiesWrittenOn removes identities first written by the block.
func (r *Repository) DeleteIdentitiesWrittenOn(ctx context.Context, number int64) error {
	return r.update(ctx, "delete_identities_written_on", func(txn *badgerdb.Txn) error {
		return deleteMatching(txn, prefixIdentity, func(i model.Identity) bool {
			return i.WrittenOn == number
		})
	})
}

// GetMembers returns the current members, sorted by pubkey.
func (r *Repository) GetMembers(ctx context.Context) ([]model.Identity, error) {
	var members []model.Identity
	err := r.view(ctx, "get_members", func(txn *badgerdb.Txn) error {
		return scan(txn, prefixIdentity, func(_ string, i model.Identity) error {
			if i.Member {
				members = append(members, i)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Pubkey < members[j].Pubkey })
	return members, nil
}

// IsMember reports whether the pubkey is a current member.
func (r *Repository) IsMember(ctx context.Context, pubkey string) (bool, error) {
	idty, err := r.GetIdentityByPubkey(ctx, pubkey)
	if err != nil {
		return false, err
	}
	return idty != nil && idty.Member, nil
}

// SaveMembership persists a written membership document.
func (r *Repository) SaveMembership(ctx context.Context, ms model.Membership) error {
	return r.update(ctx, "save_membership", func(txn *badgerdb.Txn) error {
		return put(txn, membershipKey(ms.Pubkey, ms.WrittenOn), ms)
	})
}

// DeleteMembershipsWrittenOn removes membership documents of the block.
func (r *Repository) DeleteMembershipsWrittenOn(ctx context.Context, number int64) error {
	return r.update(ctx, "delete_memberships_written_on", func(txn *badgerdb.Txn) error {
		return deleteMatching(txn, prefixMS, func(ms model.Membership) bool {
			return ms.WrittenOn == number
		})
	})
}

// LastJoinOfIdentity returns the latest written IN membership of the pubkey,
// or nil.
func (r *Repository) LastJoinOfIdentity(ctx context.Context, pubkey string) (*model.Membership, error) {
	var last *model.Membership
	err := r.view(ctx, "last_join_of_identity", func(txn *badgerdb.Txn) error {
		return scan(txn, prefixMS+pubkey+":", func(_ string, ms model.Membership) error {
			if ms.Type != model.MembershipIn {
				return nil
			}
			// Keys are ordered by writtenOn, the last one wins.
			copied := ms
			last = &copied
			return nil
		})
	})
	return last, err
}
