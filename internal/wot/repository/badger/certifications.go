package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v2"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

func certKey(c model.Certification) []byte {
	return []byte(fmt.Sprintf("%s%012d:%s:%s", prefixCert, c.WrittenOn, c.From, c.To))
}

// Links are stored under both orientations so lookups by target and by
// source stay prefix scans.
func linkToKey(l model.Link) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%012d", prefixLinkTo, l.Target, l.Source, l.WrittenOn))
}

func linkFromKey(l model.Link) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%012d", prefixLinkFrom, l.Source, l.Target, l.WrittenOn))
}

// SaveCertification persists a written certification.
func (r *Repository) SaveCertification(ctx context.Context, c model.Certification) error {
	return r.update(ctx, "save_certification", func(txn *badgerdb.Txn) error {
		return put(txn, certKey(c), c)
	})
}

// DeleteCertificationsWrittenOn removes certifications of the block.
func (r *Repository) DeleteCertificationsWrittenOn(ctx context.Context, number int64) error {
	prefix := fmt.Sprintf("%s%012d:", prefixCert, number)
	return r.update(ctx, "delete_certifications_written_on", func(txn *badgerdb.Txn) error {
		return deleteMatching(txn, prefix, func(model.Certification) bool { return true })
	})
}

// GetCertificationExcludingBlock returns the most recent canonical block old
// enough that certifications written before it have expired, or nil.
func (r *Repository) GetCertificationExcludingBlock(ctx context.Context, currentMedianTime, sigValidity int64) (*model.Block, error) {
	limit := currentMedianTime - sigValidity
	var excluding *model.Block
	err := r.view(ctx, "get_certification_excluding_block", func(txn *badgerdb.Txn) error {
		head, found, err := currentNumber(txn)
		if err != nil || !found {
			return err
		}
		// Median times are monotone along the chain: binary-search the
		// first block past the limit.
		lo, hi := int64(0), head+1
		for lo < hi {
			mid := (lo + hi) / 2
			b, err := blockByNumber(txn, mid)
			if err != nil {
				return err
			}
			if b == nil || b.MedianTime > limit {
				hi = mid
			} else {
				lo = mid + 1
			}
		}
		if lo == 0 {
			return nil
		}
		excluding, err = blockByNumber(txn, lo-1)
		return err
	})
	return excluding, err
}

// SaveLink materializes a WoT link under both orientations.
func (r *Repository) SaveLink(ctx context.Context, l model.Link) error {
	return r.update(ctx, "save_link", func(txn *badgerdb.Txn) error {
		if err := put(txn, linkToKey(l), l); err != nil {
			return err
		}
		return put(txn, linkFromKey(l), l)
	})
}

// DeleteLinksWrittenOn removes links written by the block.
func (r *Repository) DeleteLinksWrittenOn(ctx context.Context, number int64) error {
	return r.update(ctx, "delete_links_written_on", func(txn *badgerdb.Txn) error {
		for _, prefix := range []string{prefixLinkTo, prefixLinkFrom} {
			if err := deleteMatching(txn, prefix, func(l model.Link) bool {
				return l.WrittenOn == number
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ObsoleteLinks marks links with a timestamp strictly below the floor.
func (r *Repository) ObsoleteLinks(ctx context.Context, minTimestamp int64) error {
	return r.update(ctx, "obsolete_links", func(txn *badgerdb.Txn) error {
		for _, prefix := range []string{prefixLinkTo, prefixLinkFrom} {
			var stale []model.Link
			if err := scan(txn, prefix, func(_ string, l model.Link) error {
				if !l.Obsolete && l.Timestamp < minTimestamp {
					stale = append(stale, l)
				}
				return nil
			}); err != nil {
				return err
			}
			for _, l := range stale {
				l.Obsolete = true
				key := linkToKey(l)
				if prefix == prefixLinkFrom {
					key = linkFromKey(l)
				}
				if err := put(txn, key, l); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetValidLinksTo returns non-obsolete links pointing at the pubkey.
func (r *Repository) GetValidLinksTo(ctx context.Context, pubkey string) ([]model.Link, error) {
	return r.validLinks(ctx, "get_valid_links_to", prefixLinkTo+pubkey+":")
}

// GetValidLinksFrom returns non-obsolete links issued by the pubkey.
func (r *Repository) GetValidLinksFrom(ctx context.Context, pubkey string) ([]model.Link, error) {
	return r.validLinks(ctx, "get_valid_links_from", prefixLinkFrom+pubkey+":")
}

func (r *Repository) validLinks(ctx context.Context, op, prefix string) ([]model.Link, error) {
	var links []model.Link
	err := r.view(ctx, op, func(txn *badgerdb.Txn) error {
		return scan(txn, prefix, func(_ string, l model.Link) error {
			if !l.Obsolete {
				links = append(links, l)
			}
			return nil
		})
	})
	return links, err
}
