package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wotmesh/wotmesh-node/internal/utils"
	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

// Handler serves the node's public HTTP API.
type Handler struct {
	blockchain   Blockchain
	submitter    Submitter
	brancher     Brancher
	requirements Requirements
	generation   Generation
	pool         Pool
	logger       *zap.Logger
}

// NewHandler builds a Handler. The generation dependency is optional: nodes
// that do not generate blocks leave it nil and the related routes answer 404.
func NewHandler(
	blockchain Blockchain,
	submitter Submitter,
	brancher Brancher,
	requirements Requirements,
	generation Generation,
	pool Pool,
	logger *zap.Logger,
) (*Handler, error) {
	if blockchain == nil || submitter == nil || brancher == nil || requirements == nil || pool == nil {
		return nil, errors.New("handler dependencies are required")
	}
	return &Handler{
		blockchain:   blockchain,
		submitter:    submitter,
		brancher:     brancher,
		requirements: requirements,
		generation:   generation,
		pool:         pool,
		logger:       logger.Named("http"),
	}, nil
}

// Register mounts every route on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /blockchain/current", h.current)
	mux.HandleFunc("GET /blockchain/block/{number}", h.block)
	mux.HandleFunc("GET /blockchain/blocks/{count}/{from}", h.blocks)
	mux.HandleFunc("GET /blockchain/branches", h.branches)
	mux.HandleFunc("GET /blockchain/cert-excluding-block", h.certExcludingBlock)
	mux.HandleFunc("POST /blockchain/block", h.submitBlock)
	mux.HandleFunc("POST /blockchain/revert", h.revert)
	mux.HandleFunc("POST /blockchain/root", h.generateRoot)
	mux.HandleFunc("GET /blockchain/generate-next", h.generateNext)
	mux.HandleFunc("GET /wot/requirements", h.pendingRequirements)
	mux.HandleFunc("GET /wot/requirements/{pubkey}", h.identityRequirements)
	mux.HandleFunc("GET /wot/certifications/{pubkey}", h.validCerts)
	mux.HandleFunc("POST /wot/identity", h.addIdentity)
	mux.HandleFunc("POST /wot/membership", h.addMembership)
	mux.HandleFunc("POST /wot/certification", h.addCertification)
	mux.HandleFunc("POST /tx", h.addTransaction)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	current, err := h.blockchain.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if current == nil {
		h.writeError(w, chain.ErrBlockNotFound)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	number, err := utils.ParseInt64(r.PathValue("number"))
	if err != nil {
		h.badRequest(w, "invalid block number")
		return
	}
	b, err := h.blockchain.Promoted(r.Context(), number)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) blocks(w http.ResponseWriter, r *http.Request) {
	count, err := utils.ParseInt64(r.PathValue("count"))
	if err != nil {
		h.badRequest(w, "invalid count")
		return
	}
	from, err := utils.ParseInt64(r.PathValue("from"))
	if err != nil {
		h.badRequest(w, "invalid from")
		return
	}
	blocks, err := h.blockchain.BlocksBetween(r.Context(), from, count)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (h *Handler) branches(w http.ResponseWriter, r *http.Request) {
	tips, err := h.brancher.Branches(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": tips})
}

func (h *Handler) certExcludingBlock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.blockchain.GetCertificationsExcludingBlock(r.Context()))
}

type submitRequest struct {
	Block       model.Block `json:"block"`
	DoCheck     *bool       `json:"doCheck,omitempty"`
	ForkAllowed *bool       `json:"forkAllowed,omitempty"`
}

func (h *Handler) submitBlock(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid block payload")
		return
	}
	doCheck := req.DoCheck == nil || *req.DoCheck
	forkAllowed := req.ForkAllowed != nil && *req.ForkAllowed

	admitted, err := h.submitter.SubmitBlock(r.Context(), &req.Block, doCheck, forkAllowed)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if admitted == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, admitted)
}

func (h *Handler) revert(w http.ResponseWriter, r *http.Request) {
	reverted, err := h.submitter.RevertCurrentBlock(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reverted)
}

// generateRoot builds the root block candidate from the pending pools. The
// caller proves it and feeds it back through the block submission route; the
// prover is poked so a self-generating node reconsiders its preconditions.
func (h *Handler) generateRoot(w http.ResponseWriter, r *http.Request) {
	if h.generation == nil {
		http.NotFound(w, r)
		return
	}
	root, err := h.generation.GenerateManualRoot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.generation.StopPoWThenProcessAndRestartPoW()
	writeJSON(w, http.StatusOK, root)
}

func (h *Handler) generateNext(w http.ResponseWriter, r *http.Request) {
	if h.generation == nil {
		http.NotFound(w, r)
		return
	}
	candidate, err := h.generation.GenerateNext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}

func (h *Handler) pendingRequirements(w http.ResponseWriter, r *http.Request) {
	current, err := h.blockchain.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if current == nil {
		h.writeError(w, chain.ErrBlockNotFound)
		return
	}
	answers, err := h.requirements.OfPendingIdentities(r.Context(), current)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identities": answers})
}

func (h *Handler) identityRequirements(w http.ResponseWriter, r *http.Request) {
	pubkey := r.PathValue("pubkey")
	if !utils.IsBase58(pubkey) {
		h.badRequest(w, "invalid pubkey")
		return
	}
	current, err := h.blockchain.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if current == nil {
		h.writeError(w, chain.ErrBlockNotFound)
		return
	}
	idty, err := h.pool.GetIdentityByPubkey(r.Context(), pubkey)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if idty == nil {
		idty = &model.Identity{Pubkey: pubkey, CurrentMSN: -1}
	}
	answer, err := h.requirements.OfIdentity(r.Context(), idty, current)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *Handler) validCerts(w http.ResponseWriter, r *http.Request) {
	pubkey := r.PathValue("pubkey")
	current, err := h.blockchain.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if current == nil {
		h.writeError(w, chain.ErrBlockNotFound)
		return
	}
	certs, err := h.requirements.ValidCerts(r.Context(), pubkey, current)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"certifications": certs})
}

func (h *Handler) addIdentity(w http.ResponseWriter, r *http.Request) {
	var idty model.Identity
	if err := json.NewDecoder(r.Body).Decode(&idty); err != nil || !utils.IsBase58(idty.Pubkey) {
		h.badRequest(w, "invalid identity payload")
		return
	}
	if err := h.pool.SavePendingIdentity(r.Context(), idty); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idty)
}

func (h *Handler) addMembership(w http.ResponseWriter, r *http.Request) {
	var ms model.Membership
	if err := json.NewDecoder(r.Body).Decode(&ms); err != nil || !utils.IsBase58(ms.Pubkey) {
		h.badRequest(w, "invalid membership payload")
		return
	}
	if err := h.pool.SavePendingMembership(r.Context(), ms); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *Handler) addCertification(w http.ResponseWriter, r *http.Request) {
	var cert model.Certification
	if err := json.NewDecoder(r.Body).Decode(&cert); err != nil || cert.From == "" || cert.To == "" {
		h.badRequest(w, "invalid certification payload")
		return
	}
	if err := h.pool.SavePendingCertification(r.Context(), cert); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cert)
}

func (h *Handler) addTransaction(w http.ResponseWriter, r *http.Request) {
	var tx model.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil || tx.Hash == "" {
		h.badRequest(w, "invalid transaction payload")
		return
	}
	if err := h.pool.SavePendingTransaction(r.Context(), tx); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, chain.ErrBlockNotFound):
		code = http.StatusNotFound
	case errors.Is(err, chain.ErrAlreadyProcessed):
		code = http.StatusConflict
	case errors.Is(err, chain.ErrOutOfForkWindow),
		errors.Is(err, chain.ErrForkRejected),
		errors.Is(err, chain.ErrRangeTooLarge),
		chain.IsInvalidBlock(err):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
