package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v2"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

func forkKey(number int64, hash string) []byte {
	return []byte(fmt.Sprintf("%s%012d:%s", prefixFork, number, hash))
}

func currentNumber(txn *badgerdb.Txn) (int64, bool, error) {
	var number int64
	found, err := get(txn, []byte(keyCurrent), &number)
	return number, found, err
}

func blockByNumber(txn *badgerdb.Txn, number int64) (*model.Block, error) {
	if number < 0 {
		return nil, nil
	}
	var b model.Block
	found, err := get(txn, numKey(prefixBlock, number), &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// GetCurrentBlock returns the chain head, or nil when the chain is empty.
func (r *Repository) GetCurrentBlock(ctx context.Context) (*model.Block, error) {
	var head *model.Block
	err := r.view(ctx, "get_current_block", func(txn *badgerdb.Txn) error {
		number, found, err := currentNumber(txn)
		if err != nil || !found {
			return err
		}
		head, err = blockByNumber(txn, number)
		return err
	})
	return head, err
}

// GetPromoted returns the canonical block at number or chain.ErrBlockNotFound.
func (r *Repository) GetPromoted(ctx context.Context, number int64) (*model.Block, error) {
	b, err := r.GetBlockOrNil(ctx, number)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, chain.ErrBlockNotFound
	}
	return b, nil
}

// GetBlock is GetPromoted under its historical name.
func (r *Repository) GetBlock(ctx context.Context, number int64) (*model.Block, error) {
	return r.GetPromoted(ctx, number)
}

// GetBlockOrNil returns the canonical block at number, or nil.
func (r *Repository) GetBlockOrNil(ctx context.Context, number int64) (*model.Block, error) {
	var b *model.Block
	err := r.view(ctx, "get_block", func(txn *badgerdb.Txn) error {
		var err error
		b, err = blockByNumber(txn, number)
		return err
	})
	return b, err
}

// GetBlockByNumberAndHash looks up the canonical chain only.
func (r *Repository) GetBlockByNumberAndHash(ctx context.Context, number int64, hash string) (*model.Block, error) {
	b, err := r.GetBlockOrNil(ctx, number)
	if err != nil {
		return nil, err
	}
	if b == nil || b.Hash != hash {
		return nil, nil
	}
	return b, nil
}

// GetAbsoluteBlockByNumberAndHash looks across main and side chains.
func (r *Repository) GetAbsoluteBlockByNumberAndHash(ctx context.Context, number int64, hash string) (*model.Block, error) {
	var found *model.Block
	err := r.view(ctx, "get_absolute_block", func(txn *badgerdb.Txn) error {
		b, err := blockByNumber(txn, number)
		if err != nil {
			return err
		}
		if b != nil && b.Hash == hash {
			found = b
			return nil
		}
		var side model.Block
		ok, err := get(txn, forkKey(number, hash), &side)
		if err != nil || !ok {
			return err
		}
		found = &side
		return nil
	})
	return found, err
}

// GetBlocksBetween returns canonical blocks in [from, to], ascending.
func (r *Repository) GetBlocksBetween(ctx context.Context, from, to int64) ([]*model.Block, error) {
	if from < 0 {
		from = 0
	}
	var blocks []*model.Block
	err := r.view(ctx, "get_blocks_between", func(txn *badgerdb.Txn) error {
		for n := from; n <= to; n++ {
			b, err := blockByNumber(txn, n)
			if err != nil {
				return err
			}
			if b == nil {
				return nil
			}
			blocks = append(blocks, b)
		}
		return nil
	})
	return blocks, err
}

// SaveBlock inserts a main-chain block and promotes it to head.
func (r *Repository) SaveBlock(ctx context.Context, b *model.Block) error {
	return r.update(ctx, "save_block", func(txn *badgerdb.Txn) error {
		if err := put(txn, numKey(prefixBlock, b.Number), b); err != nil {
			return err
		}
		return put(txn, []byte(keyCurrent), b.Number)
	})
}

// SaveBunch inserts a contiguous ascending main-chain segment.
func (r *Repository) SaveBunch(ctx context.Context, blocks []*model.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	return r.update(ctx, "save_bunch", func(txn *badgerdb.Txn) error {
		for _, b := range blocks {
			if err := put(txn, numKey(prefixBlock, b.Number), b); err != nil {
				return err
			}
		}
		return put(txn, []byte(keyCurrent), blocks[len(blocks)-1].Number)
	})
}

// DeleteCurrentBlock removes the head; the predecessor becomes head.
func (r *Repository) DeleteCurrentBlock(ctx context.Context) error {
	return r.update(ctx, "delete_current_block", func(txn *badgerdb.Txn) error {
		number, found, err := currentNumber(txn)
		if err != nil {
			return err
		}
		if !found {
			return errors.New("no current block")
		}
		if err := txn.Delete(numKey(prefixBlock, number)); err != nil {
			return err
		}
		return put(txn, []byte(keyCurrent), number-1)
	})
}

// GetForkBlocks returns every persisted side block.
func (r *Repository) GetForkBlocks(ctx context.Context) ([]*model.Block, error) {
	var blocks []*model.Block
	err := r.view(ctx, "get_fork_blocks", func(txn *badgerdb.Txn) error {
		return scan(txn, prefixFork, func(_ string, b model.Block) error {
			copied := b
			blocks = append(blocks, &copied)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Number < blocks[j].Number })
	return blocks, nil
}

// SaveSideBlock persists a side block including its wrong flag.
func (r *Repository) SaveSideBlock(ctx context.Context, b *model.Block) error {
	return r.update(ctx, "save_side_block", func(txn *badgerdb.Txn) error {
		return put(txn, forkKey(b.Number, b.Hash), b)
	})
}

// DeleteSideBlock removes a side block.
func (r *Repository) DeleteSideBlock(ctx context.Context, number int64, hash string) error {
	return r.update(ctx, "delete_side_block", func(txn *badgerdb.Txn) error {
		return txn.Delete(forkKey(number, hash))
	})
}

// MigrateOldBlocks compacts aged storage by running the value log garbage
// collector until it has nothing left to rewrite.
func (r *Repository) MigrateOldBlocks(ctx context.Context) error {
	const discardRatio = 0.5
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badgerdb.ErrNoRewrite) || errors.Is(err, badgerdb.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("value log gc: %w", err)
		}
	}
}

// SaveParameters persists the currency parameters.
func (r *Repository) SaveParameters(ctx context.Context, p model.Parameters) error {
	return r.update(ctx, "save_parameters", func(txn *badgerdb.Txn) error {
		return put(txn, []byte(keyParams), p)
	})
}

// GetParameters returns the persisted currency parameters, or nil.
func (r *Repository) GetParameters(ctx context.Context) (*model.Parameters, error) {
	var params *model.Parameters
	err := r.view(ctx, "get_parameters", func(txn *badgerdb.Txn) error {
		var p model.Parameters
		found, err := get(txn, []byte(keyParams), &p)
		if err != nil || !found {
			return err
		}
		params = &p
		return nil
	})
	return params, err
}
