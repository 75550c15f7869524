package service

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// buildSideBranch seals a side chain of length n anchored on anchor. The
// corruptAt index (or -1) gets a hash that does not match its content.
func buildSideBranch(anchor *model.Block, n int, corruptAt int) []*model.Block {
	branch := make([]*model.Block, 0, n)
	prev := anchor
	for i := 0; i < n; i++ {
		sb := sideOf(prev, func(b *model.Block) { b.MedianTime += 7 })
		if i == corruptAt {
			sb.Hash = "F00D" + sb.Hash[4:]
		}
		branch = append(branch, sb)
		prev = sb
	}
	return branch
}

func submitBranch(t *testing.T, as *admissionStack, branch []*model.Block) {
	t.Helper()
	for _, sb := range branch {
		_, err := as.admission.SubmitBlock(context.Background(), sb, true, true)
		require.NoError(t, err)
	}
}

func TestSwitcher_noSwitchBelowGuard(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	as := newAdmissionStack(t, ctrl)
	ctx := context.Background()

	head := mustChain(t, as.stack, 3)
	anchor, err := as.chainCtx.Promoted(ctx, 1)
	require.NoError(t, err)

	// Tip reaches #8: only 5 blocks ahead of #3, below the guard of 6.
	branch := buildSideBranch(anchor, 7, -1)
	submitBranch(t, as, branch)

	current, err := as.chainCtx.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, head.Hash, current.Hash)
}

func TestSwitcher_switchesOnEligibleBranch(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	as := newAdmissionStack(t, ctrl)
	ctx := context.Background()

	mustChain(t, as.stack, 3)
	originalHead, err := as.chainCtx.Current(ctx)
	require.NoError(t, err)
	anchor, err := as.chainCtx.Promoted(ctx, 1)
	require.NoError(t, err)

	// Tip reaches #9: 6 blocks and 1856 seconds ahead of head #3.
	branch := buildSideBranch(anchor, 8, -1)
	submitBranch(t, as, branch[:len(branch)-1])

	// The final side block tips the guard; the switch preempts the prover.
	as.prover.EXPECT().Cancel()
	_, err = as.admission.SubmitBlock(ctx, branch[len(branch)-1], true, true)
	require.NoError(t, err)

	current, err := as.chainCtx.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), current.Number)
	assert.Equal(t, branch[len(branch)-1].Hash, current.Hash)
	assert.False(t, current.Fork)

	// The abandoned suffix of the original chain is preserved as a side
	// branch.
	demoted, err := as.dal.GetAbsoluteBlockByNumberAndHash(ctx, originalHead.Number, originalHead.Hash)
	require.NoError(t, err)
	require.NotNil(t, demoted)
	assert.True(t, demoted.Fork)

	// The promoted blocks left the fork store.
	forks, err := as.dal.GetForkBlocks(ctx)
	require.NoError(t, err)
	for _, f := range forks {
		assert.NotEqual(t, current.Hash, f.Hash)
	}
}

func TestSwitcher_failedSwitchRestoresHead(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	as := newAdmissionStack(t, ctrl)
	ctx := context.Background()

	mustChain(t, as.stack, 3)
	originalHead, err := as.chainCtx.Current(ctx)
	require.NoError(t, err)
	originalSecond, err := as.chainCtx.Promoted(ctx, 2)
	require.NoError(t, err)
	anchor, err := as.chainCtx.Promoted(ctx, 1)
	require.NoError(t, err)

	// Same eligible branch, but its fifth block cannot pass the full
	// check. No prover cancel: the head ends up unchanged.
	branch := buildSideBranch(anchor, 8, 4)
	submitBranch(t, as, branch)

	current, err := as.chainCtx.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, originalHead.Hash, current.Hash)

	restoredSecond, err := as.chainCtx.Promoted(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, originalSecond.Hash, restoredSecond.Hash)

	// Every block of the rejected side chain is marked wrong.
	for _, sb := range branch {
		stored, err := as.dal.GetAbsoluteBlockByNumberAndHash(ctx, sb.Number, sb.Hash)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.Wrong, "block #%d should be wrong", sb.Number)
	}
}

func TestSwitcher_wholeForkBranch_stopsAtCanonicalAnchor(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	as := newAdmissionStack(t, ctrl)
	ctx := context.Background()

	mustChain(t, as.stack, 2)
	anchor, err := as.chainCtx.Promoted(ctx, 1)
	require.NoError(t, err)

	branch := buildSideBranch(anchor, 3, -1)
	for _, sb := range branch {
		require.NoError(t, as.dal.SaveSideBlock(ctx, sb))
	}

	metrics := NewMockSwitchMetrics(ctrl)
	metrics.EXPECT().ObserveSwitch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	switcher, err := NewSwitcher(as.dal, as.chainCtx, as.brancher, nil, as.conf, metrics, zap.NewNop())
	require.NoError(t, err)

	walked, err := switcher.wholeForkBranch(ctx, branch[len(branch)-1])
	require.NoError(t, err)
	require.Len(t, walked, len(branch))
	assert.Equal(t, branch[0].Hash, walked[0].Hash)
	// The canonical anchor is never part of the walk.
	for _, blk := range walked {
		assert.True(t, blk.Fork)
	}
}
