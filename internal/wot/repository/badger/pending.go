package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v2"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// GetPendingIdentities returns the identities waiting in the pool.
func (r *Repository) GetPendingIdentities(ctx context.Context) ([]model.Identity, error) {
	var identities []model.Identity
	err := r.view(ctx, "get_pending_identities", func(txn *badgerdb.Txn) error {
		return scan(txn, prefixPendingIdentity, func(_ string, i model.Identity) error {
			identities = append(identities, i)
			return nil
		})
	})
	return identities, err
}

// SavePendingIdentity adds an identity to the pool.
func (r *Repository) SavePendingIdentity(ctx context.Context, idty model.Identity) error {
	return r.update(ctx, "save_pending_identity", func(txn *badgerdb.Txn) error {
		return put(txn, []byte(prefixPendingIdentity+idty.Pubkey), idty)
	})
}

// GetPendingMemberships returns the membership documents waiting in the pool.
func (r *Repository) GetPendingMemberships(ctx context.Context) ([]model.Membership, error) {
	var memberships []model.Membership
	err := r.view(ctx, "get_pending_memberships", func(txn *badgerdb.Txn) error {
		return scan(txn, prefixPendingMS, func(_ string, ms model.Membership) error {
			memberships = append(memberships, ms)
			return nil
		})
	})
	return memberships, err
}

// PendingJoinOfIdentity returns the latest pending IN membership of the
// pubkey, or nil.
func (r *Repository) PendingJoinOfIdentity(ctx context.Context, pubkey string) (*model.Membership, error) {
	var last *model.Membership
	err := r.view(ctx, "pending_join_of_identity", func(txn *badgerdb.Txn) error {
		return scan(txn, prefixPendingMS+pubkey+":", func(_ string, ms model.Membership) error {
			if ms.Type != model.MembershipIn {
				return nil
			}
			copied := ms
			last = &copied
			return nil
		})
	})
	return last, err
}

// SavePendingMembership adds a membership document to the pool.
func (r *Repository) SavePendingMembership(ctx context.Context, ms model.Membership) error {
	key := fmt.Sprintf("%s%s:%012d", prefixPendingMS, ms.Pubkey, ms.BlockNumber)
	return r.update(ctx, "save_pending_membership", func(txn *badgerdb.Txn) error {
		return put(txn, []byte(key), ms)
	})
}

// GetPendingCertificationsTo returns the pool certifications targeting the
// pubkey.
func (r *Repository) GetPendingCertificationsTo(ctx context.Context, pubkey string) ([]model.Certification, error) {
	var certs []model.Certification
	err := r.view(ctx, "get_pending_certifications", func(txn *badgerdb.Txn) error {
		return scan(txn, prefixPendingCert+pubkey+":", func(_ string, c model.Certification) error {
			certs = append(certs, c)
			return nil
		})
	})
	return certs, err
}

// SavePendingCertification adds a certification to the pool.
func (r *Repository) SavePendingCertification(ctx context.Context, c model.Certification) error {
	key := fmt.Sprintf("%s%s:%s", prefixPendingCert, c.To, c.From)
	return r.update(ctx, "save_pending_certification", func(txn *badgerdb.Txn) error {
		return put(txn, []byte(key), c)
	})
}

// GetPendingTransactions returns the pool transactions.
func (r *Repository) GetPendingTransactions(ctx context.Context) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.view(ctx, "get_pending_transactions", func(txn *badgerdb.Txn) error {
		return scan(txn, prefixPendingTx, func(_ string, tx model.Transaction) error {
			txs = append(txs, tx)
			return nil
		})
	})
	return txs, err
}

// SavePendingTransaction adds a transaction to the pool.
func (r *Repository) SavePendingTransaction(ctx context.Context, tx model.Transaction) error {
	return r.update(ctx, "save_pending_transaction", func(txn *badgerdb.Txn) error {
		return put(txn, []byte(prefixPendingTx+tx.Hash), tx)
	})
}

// GetStatLastParsed returns the last block number scanned for the statistic,
// or -1 when the statistic has never been fed.
func (r *Repository) GetStatLastParsed(ctx context.Context, stat model.StatName) (int64, error) {
	last := int64(-1)
	err := r.view(ctx, "get_stat_last_parsed", func(txn *badgerdb.Txn) error {
		var stored int64
		found, err := get(txn, []byte(prefixStat+string(stat)), &stored)
		if err != nil || !found {
			return err
		}
		last = stored
		return nil
	})
	return last, err
}

// SaveStatLastParsed records the last block number scanned for the statistic.
func (r *Repository) SaveStatLastParsed(ctx context.Context, stat model.StatName, number int64) error {
	return r.update(ctx, "save_stat_last_parsed", func(txn *badgerdb.Txn) error {
		return put(txn, []byte(prefixStat+string(stat)), number)
	})
}
