package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/rules"
	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/chain/chaintest"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// Base58-safe test pubkeys.
const (
	alice = "A1iceKey"
	bob   = "BobKeyBb"
	carol = "Caro1Key"
	self  = "Se1fKeyX"
)

func testParams() model.Parameters {
	p := model.DefaultParameters("testnet")
	p.AvgGenTime = 300
	p.DT = 86400
	p.PowZeroMin = 0
	return p
}

type stack struct {
	dal      *chaintest.DAL
	conf     model.Parameters
	rules    chain.Rules
	chainCtx *ChainContext
	brancher *Brancher
}

func newStack(t *testing.T) *stack {
	t.Helper()
	conf := testParams()
	dal := chaintest.NewDAL()
	engine, err := rules.New(dal, conf, zap.NewNop())
	require.NoError(t, err)
	chainCtx, err := NewChainContext(dal, engine, conf, zap.NewNop())
	require.NoError(t, err)
	brancher, err := NewBrancher(dal, zap.NewNop())
	require.NoError(t, err)
	return &stack{
		dal:      dal,
		conf:     conf,
		rules:    engine,
		chainCtx: chainCtx,
		brancher: brancher,
	}
}

// sealed fills in a valid hash for the block content.
func sealed(b *model.Block) *model.Block {
	b.Hash = b.ComputeHash()
	return b
}

// nextBlock builds a sealed successor of prev.
func nextBlock(prev *model.Block, mutate ...func(*model.Block)) *model.Block {
	b := &model.Block{
		Number:       prev.Number + 1,
		PreviousHash: prev.Hash,
		Currency:     prev.Currency,
		Issuer:       alice,
		Signature:    "sig",
		MedianTime:   prev.MedianTime + 300,
		MembersCount: prev.MembersCount,
		UnitBase:     prev.UnitBase,
	}
	for _, m := range mutate {
		m(b)
	}
	return sealed(b)
}

// rootBlock builds a sealed root with three joining members.
func rootBlock(mutate ...func(*model.Block)) *model.Block {
	b := &model.Block{
		Number:       0,
		Currency:     "testnet",
		Issuer:       alice,
		Signature:    "sig",
		MedianTime:   1000,
		MembersCount: 3,
		Identities: []model.Identity{
			{Pubkey: alice, UID: "alice", Buid: "0-ROOT"},
			{Pubkey: bob, UID: "bob", Buid: "0-ROOT"},
			{Pubkey: carol, UID: "carol", Buid: "0-ROOT"},
		},
		Joiners: []model.Membership{
			{Pubkey: alice, UID: "alice"},
			{Pubkey: bob, UID: "bob"},
			{Pubkey: carol, UID: "carol"},
		},
	}
	for _, m := range mutate {
		m(b)
	}
	return sealed(b)
}

// mustChain applies a root and n successor blocks, returning the head.
func mustChain(t *testing.T, s *stack, n int) *model.Block {
	t.Helper()
	ctx := context.Background()
	head, err := s.chainCtx.AddBlock(ctx, rootBlock(), true)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		head, err = s.chainCtx.AddBlock(ctx, nextBlock(head), true)
		require.NoError(t, err)
	}
	return head
}

func dividend(amount int64) *int64 {
	return &amount
}
