package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/generator"
	"github.com/wotmesh/wotmesh-node/internal/rules"
	"github.com/wotmesh/wotmesh-node/internal/wot/chain/chaintest"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
	"github.com/wotmesh/wotmesh-node/internal/wot/service"
	"github.com/wotmesh/wotmesh-node/pkg/fifolane"
)

const (
	alice = "A1iceKey"
	bob   = "BobKeyBb"
)

type testServer struct {
	dal    *chaintest.DAL
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conf := model.DefaultParameters("testnet")
	conf.PowZeroMin = 0
	dal := chaintest.NewDAL()
	logger := zap.NewNop()

	engine, err := rules.New(dal, conf, logger)
	require.NoError(t, err)
	gen, err := generator.New(dal, conf, nil, logger)
	require.NoError(t, err)

	chainCtx, err := service.NewChainContext(dal, engine, conf, logger)
	require.NoError(t, err)
	brancher, err := service.NewBrancher(dal, logger)
	require.NoError(t, err)
	switcher, err := service.NewSwitcher(dal, chainCtx, brancher, nil, conf, chaintest.NopObserver{}, logger)
	require.NoError(t, err)

	lane := fifolane.New(logger)
	lane.Start(context.Background())
	t.Cleanup(lane.Stop)

	admission, err := service.NewAdmission(lane, dal, chainCtx, switcher, nil, nil, conf, chaintest.NopObserver{}, logger)
	require.NoError(t, err)
	requirements, err := service.NewRequirements(dal, engine, gen, conf, logger)
	require.NoError(t, err)

	handler, err := NewHandler(chainCtx, admission, brancher, requirements, nil, dal, logger)
	require.NoError(t, err)

	mux := http.NewServeMux()
	handler.Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{dal: dal, server: server}
}

func sealedRoot() *model.Block {
	b := &model.Block{
		Number:       0,
		Currency:     "testnet",
		Issuer:       alice,
		Signature:    "sig",
		MedianTime:   1000,
		MembersCount: 2,
		Identities: []model.Identity{
			{Pubkey: alice, UID: "alice"},
			{Pubkey: bob, UID: "bob"},
		},
		Joiners: []model.Membership{
			{Pubkey: alice, UID: "alice"},
			{Pubkey: bob, UID: "bob"},
		},
	}
	b.Hash = b.ComputeHash()
	return b
}

func (ts *testServer) submit(t *testing.T, b *model.Block) *http.Response {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"block": b})
	require.NoError(t, err)
	resp, err := http.Post(ts.server.URL+"/blockchain/block", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHandler_health(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandler_currentOnEmptyChain(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/blockchain/current")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_submitAndQuery(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := ts.submit(t, sealedRoot())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(ts.server.URL + "/blockchain/current")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var current model.Block
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&current))
	assert.Equal(t, int64(0), current.Number)

	resp3, err := http.Get(ts.server.URL + "/blockchain/block/0")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)

	resp4, err := http.Get(ts.server.URL + "/blockchain/block/99")
	require.NoError(t, err)
	defer resp4.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp4.StatusCode)
}

func TestHandler_submitDuplicateConflicts(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	root := sealedRoot()
	resp := ts.submit(t, root)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.submit(t, root)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandler_branches(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.submit(t, sealedRoot())

	resp, err := http.Get(ts.server.URL + "/blockchain/branches")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Blocks []model.Block `json:"blocks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Len(t, payload.Blocks, 1)
}

func TestHandler_blocksRangeTooLarge(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.submit(t, sealedRoot())

	resp, err := http.Get(fmt.Sprintf("%s/blockchain/blocks/%d/0", ts.server.URL, 5001))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_requirements(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.submit(t, sealedRoot())

	resp, err := http.Get(ts.server.URL + "/wot/requirements/" + alice)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var answer struct {
		Pubkey string `json:"pubkey"`
		UID    string `json:"uid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answer))
	assert.Equal(t, alice, answer.Pubkey)
	assert.Equal(t, "alice", answer.UID)
}

func TestHandler_pendingPool(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.submit(t, sealedRoot())

	payload, err := json.Marshal(model.Identity{Pubkey: "Caro1Key", UID: "carol"})
	require.NoError(t, err)
	resp, err := http.Post(ts.server.URL+"/wot/identity", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	pending, err := ts.dal.GetPendingIdentities(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Caro1Key", pending[0].Pubkey)

	bad, err := http.Post(ts.server.URL+"/wot/identity", "application/json", bytes.NewReader([]byte(`{"pubkey":"0OIl"}`)))
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestHandler_revert(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	root := sealedRoot()
	ts.submit(t, root)

	next := &model.Block{
		Number:       1,
		PreviousHash: root.Hash,
		Currency:     "testnet",
		Issuer:       alice,
		Signature:    "sig",
		MedianTime:   1300,
		MembersCount: 2,
	}
	next.Hash = next.ComputeHash()
	resp := ts.submit(t, next)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	revertResp, err := http.Post(ts.server.URL+"/blockchain/revert", "application/json", nil)
	require.NoError(t, err)
	defer revertResp.Body.Close()
	require.Equal(t, http.StatusOK, revertResp.StatusCode)

	var reverted model.Block
	require.NoError(t, json.NewDecoder(revertResp.Body).Decode(&reverted))
	assert.Equal(t, int64(1), reverted.Number)
}
