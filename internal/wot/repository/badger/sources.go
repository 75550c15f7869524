package badger

import (
	"context"
	"fmt"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v2"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

func sourceKey(identifier string, index int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", prefixSource, identifier, index))
}

// SaveSource persists a source.
func (r *Repository) SaveSource(ctx context.Context, s model.Source) error {
	return r.update(ctx, "save_source", func(txn *badgerdb.Txn) error {
		return put(txn, sourceKey(s.Identifier, s.Index), s)
	})
}

// ConsumeSource flags a source as spent.
func (r *Repository) ConsumeSource(ctx context.Context, identifier string, index int) error {
	return r.setConsumed(ctx, "consume_source", identifier, index, true)
}

// UnconsumeSource clears the spent flag, used when reverting a block.
func (r *Repository) UnconsumeSource(ctx context.Context, identifier string, index int) error {
	return r.setConsumed(ctx, "unconsume_source", identifier, index, false)
}

func (r *Repository) setConsumed(ctx context.Context, op, identifier string, index int, consumed bool) error {
	return r.update(ctx, op, func(txn *badgerdb.Txn) error {
		key := sourceKey(identifier, index)
		var s model.Source
		found, err := get(txn, key, &s)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("source %s#%d not found", identifier, index)
		}
		s.Consumed = consumed
		return put(txn, key, s)
	})
}

// DeleteSourcesWrittenOn removes the sources a block created.
func (r *Repository) DeleteSourcesWrittenOn(ctx context.Context, number int64) error {
	return r.update(ctx, "delete_sources_written_on", func(txn *badgerdb.Txn) error {
		return deleteMatching(txn, prefixSource, func(s model.Source) bool {
			return s.BlockNum == number
		})
	})
}

// GetAvailableSources returns the unspent sources of a pubkey, oldest first.
func (r *Repository) GetAvailableSources(ctx context.Context, pubkey string) ([]model.Source, error) {
	var sources []model.Source
	err := r.view(ctx, "get_available_sources", func(txn *badgerdb.Txn) error {
		return scan(txn, prefixSource, func(_ string, s model.Source) error {
			if !s.Consumed && s.Pubkey == pubkey {
				sources = append(sources, s)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].BlockNum < sources[j].BlockNum })
	return sources, nil
}
