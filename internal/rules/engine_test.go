package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/chain/chaintest"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

const (
	alice = "A1iceKey"
	bob   = "BobKeyBb"
)

func newEngine(t *testing.T) (*Engine, *chaintest.DAL) {
	t.Helper()
	dal := chaintest.NewDAL()
	conf := model.DefaultParameters("testnet")
	conf.PowZeroMin = 0
	engine, err := New(dal, conf, zap.NewNop())
	require.NoError(t, err)
	return engine, dal
}

func sealedBlock(mutate ...func(*model.Block)) *model.Block {
	b := &model.Block{
		Number:       1,
		PreviousHash: "AAAA",
		Issuer:       alice,
		Signature:    "sig",
		MedianTime:   1000,
	}
	for _, m := range mutate {
		m(b)
	}
	b.Hash = b.ComputeHash()
	return b
}

func TestEngine_CheckBlock_structure(t *testing.T) {
	t.Parallel()
	engine, _ := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*model.Block)
		wantErr bool
	}{
		{name: "valid", mutate: func(*model.Block) {}},
		{name: "negative number", mutate: func(b *model.Block) { b.Number = -1 }, wantErr: true},
		{name: "missing previous hash", mutate: func(b *model.Block) { b.PreviousHash = "" }, wantErr: true},
		{name: "missing issuer", mutate: func(b *model.Block) { b.Issuer = "" }, wantErr: true},
		{name: "invalid issuer encoding", mutate: func(b *model.Block) { b.Issuer = "0OIl" }, wantErr: true},
		{name: "non-positive dividend", mutate: func(b *model.Block) { zero := int64(0); b.Dividend = &zero }, wantErr: true},
		{name: "negative unit base", mutate: func(b *model.Block) { b.UnitBase = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := engine.CheckBlock(ctx, sealedBlock(tt.mutate), chain.CheckStructureOnly)
			if tt.wantErr {
				assert.True(t, chain.IsInvalidBlock(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngine_CheckBlock_signaturesAndPoW(t *testing.T) {
	t.Parallel()
	engine, _ := newEngine(t)
	ctx := context.Background()

	unsigned := sealedBlock(func(b *model.Block) { b.Signature = "" })
	assert.True(t, chain.IsInvalidBlock(engine.CheckBlock(ctx, unsigned, chain.CheckWithSignaturesAndPoW)))

	tampered := sealedBlock()
	tampered.Hash = "F00D" + tampered.Hash[4:]
	assert.True(t, chain.IsInvalidBlock(engine.CheckBlock(ctx, tampered, chain.CheckWithSignaturesAndPoW)))

	// A powMin above the hash's actual leading zeros fails.
	weak := sealedBlock(func(b *model.Block) { b.PowMin = 30 })
	assert.True(t, chain.IsInvalidBlock(engine.CheckBlock(ctx, weak, chain.CheckWithSignaturesAndPoW)))
}

func TestEngine_CheckBlock_medianTimeMonotone(t *testing.T) {
	t.Parallel()
	engine, dal := newEngine(t)
	ctx := context.Background()

	prev := &model.Block{Number: 0, Issuer: alice, Signature: "sig", MedianTime: 2000}
	prev.Hash = prev.ComputeHash()
	require.NoError(t, dal.SaveBlock(ctx, prev))

	backwards := sealedBlock(func(b *model.Block) {
		b.PreviousHash = prev.Hash
		b.MedianTime = 1500
	})
	assert.True(t, chain.IsInvalidBlock(engine.CheckBlock(ctx, backwards, chain.CheckStructureOnly)))
}

func TestEngine_TrialLevel(t *testing.T) {
	t.Parallel()
	engine, dal := newEngine(t)
	ctx := context.Background()

	// Empty chain falls back to the configured floor.
	trial, err := engine.TrialLevel(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), trial)

	// Three of four recent blocks issued by alice raise her trial.
	issuers := []string{alice, alice, bob, alice}
	var prev *model.Block
	for i, issuer := range issuers {
		b := &model.Block{Number: int64(i), Issuer: issuer, Signature: "sig", PowMin: 1}
		if prev != nil {
			b.PreviousHash = prev.Hash
			b.MedianTime = prev.MedianTime + 300
		}
		b.Hash = b.ComputeHash()
		require.NoError(t, dal.SaveBlock(ctx, b))
		prev = b
	}

	trial, err = engine.TrialLevel(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(4), trial)

	trial, err = engine.TrialLevel(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), trial)
}

func TestEngine_IsOver3Hops(t *testing.T) {
	t.Parallel()
	engine, dal := newEngine(t)
	ctx := context.Background()

	// Members: alice certifies bob, bob certifies carol.
	members := []string{alice, bob, "Caro1Key"}
	for _, pubkey := range members {
		require.NoError(t, dal.SaveIdentity(ctx, model.Identity{Pubkey: pubkey, Member: true}))
	}
	require.NoError(t, dal.SaveLink(ctx, model.Link{Source: alice, Target: bob}))
	require.NoError(t, dal.SaveLink(ctx, model.Link{Source: bob, Target: "Caro1Key"}))

	// A newcomer certified only by carol: alice reaches them in three
	// hops (alice -> bob -> carol -> newcomer).
	provisional := []model.Link{{Source: "Caro1Key", Target: "Dave5Key"}}
	outdistanced, err := engine.IsOver3Hops(ctx, "Dave5Key", provisional, []string{"Dave5Key"}, nil)
	require.NoError(t, err)
	assert.False(t, outdistanced)

	// Certified only by alice: neither bob nor carol can reach this
	// newcomer at all.
	provisional = []model.Link{{Source: alice, Target: "Erin6Key"}}
	outdistanced, err = engine.IsOver3Hops(ctx, "Erin6Key", provisional, []string{"Erin6Key"}, nil)
	require.NoError(t, err)
	assert.True(t, outdistanced)
}
