package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/generator"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

func newRequirements(t *testing.T, s *stack) *Requirements {
	t.Helper()
	gen, err := generator.New(s.dal, s.conf, fixedClock(5000), zap.NewNop())
	require.NoError(t, err)
	r, err := NewRequirements(s.dal, s.rules, gen, s.conf, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRequirements_OfIdentity_member(t *testing.T) {
	t.Parallel()
	s := newStack(t)
	ctx := context.Background()

	head := mustChain(t, s, 0)
	require.NoError(t, s.dal.SaveLink(ctx, model.Link{
		Source: bob, Target: alice, Timestamp: head.MedianTime, WrittenOn: 0,
	}))

	idty, err := s.dal.GetIdentityByPubkey(ctx, alice)
	require.NoError(t, err)
	r := newRequirements(t, s)

	answer, err := r.OfIdentity(ctx, idty, head)
	require.NoError(t, err)
	assert.Equal(t, alice, answer.Pubkey)
	assert.Equal(t, "alice", answer.UID)
	assert.Equal(t, "0-ROOT", answer.MetaTimestamp)

	// Membership was written at block 0, which the head itself carries.
	assert.Equal(t, s.conf.MSValidity, answer.MembershipExpiresIn)
	assert.Zero(t, answer.MembershipPendingExpiresIn)

	require.Len(t, answer.Certifications, 1)
	assert.Equal(t, bob, answer.Certifications[0].From)
	assert.Equal(t, s.conf.SigValidity, answer.Certifications[0].ExpiresIn)
}

func TestRequirements_OfIdentity_outdistancedNewcomer(t *testing.T) {
	t.Parallel()
	s := newStack(t)
	ctx := context.Background()

	head := mustChain(t, s, 0)

	// A stranger with no incoming certifications cannot be reached by any
	// member of the referential set.
	stranger := &model.Identity{Pubkey: "Dave5Key", UID: "dave", CurrentMSN: -1}
	r := newRequirements(t, s)
	require.NoError(t, s.dal.SavePendingIdentity(ctx, *stranger))

	answer, err := r.OfIdentity(ctx, stranger, head)
	require.NoError(t, err)
	assert.True(t, answer.Outdistanced)
	assert.Zero(t, answer.MembershipExpiresIn)
}

func TestRequirements_OfIdentity_pendingCertsCount(t *testing.T) {
	t.Parallel()
	s := newStack(t)
	ctx := context.Background()

	head := mustChain(t, s, 0)
	stranger := &model.Identity{Pubkey: "Dave5Key", UID: "dave", CurrentMSN: -1}
	require.NoError(t, s.dal.SavePendingIdentity(ctx, *stranger))
	for _, from := range []string{alice, bob, carol} {
		require.NoError(t, s.dal.SavePendingCertification(ctx, model.Certification{
			From: from, To: stranger.Pubkey, BlockNumber: head.Number,
		}))
	}

	r := newRequirements(t, s)
	answer, err := r.OfIdentity(ctx, stranger, head)
	require.NoError(t, err)
	require.Len(t, answer.Certifications, 3)

	// With every member certifying the newcomer, nobody is over the
	// distance bound.
	assert.False(t, answer.Outdistanced)
}

func TestRequirements_pendingMembershipExpiry(t *testing.T) {
	t.Parallel()
	s := newStack(t)
	ctx := context.Background()

	head := mustChain(t, s, 0)
	stranger := &model.Identity{Pubkey: "Dave5Key", UID: "dave", CurrentMSN: -1}
	require.NoError(t, s.dal.SavePendingIdentity(ctx, *stranger))
	require.NoError(t, s.dal.SavePendingMembership(ctx, model.Membership{
		Pubkey: stranger.Pubkey, Type: model.MembershipIn, BlockNumber: head.Number,
	}))

	r := newRequirements(t, s)
	answer, err := r.OfIdentity(ctx, stranger, head)
	require.NoError(t, err)
	assert.Equal(t, s.conf.MSValidity, answer.MembershipPendingExpiresIn)
}

func TestRequirements_OfPendingIdentities(t *testing.T) {
	t.Parallel()
	s := newStack(t)
	ctx := context.Background()

	head := mustChain(t, s, 0)
	require.NoError(t, s.dal.SavePendingIdentity(ctx, model.Identity{Pubkey: "Dave5Key", UID: "dave"}))
	require.NoError(t, s.dal.SavePendingIdentity(ctx, model.Identity{Pubkey: "Erin6Key", UID: "erin"}))

	r := newRequirements(t, s)
	answers, err := r.OfPendingIdentities(ctx, head)
	require.NoError(t, err)
	assert.Len(t, answers, 2)
}
