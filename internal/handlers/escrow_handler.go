package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/devasign/task-escrow/internal/escrow"
	"github.com/devasign/task-escrow/internal/repository"
)

// Escrow is the subset of *escrow.Service the handler calls.
type Escrow interface {
	Initialize(ctx context.Context, admin, token escrow.Address) error
	SetAdmin(ctx context.Context, newAdmin escrow.Address) error
	UpdateToken(ctx context.Context, newToken escrow.Address) error
	SetPaused(ctx context.Context, paused bool) error
	Upgrade(ctx context.Context, codeHash [32]byte) error
	GetAdmin(ctx context.Context) (escrow.Address, error)
	GetToken(ctx context.Context) (escrow.Address, error)
	State(ctx context.Context) (escrow.State, error)
	Version() uint32
	Address() escrow.Address
	TaskCount(ctx context.Context) (uint64, error)

	CreateEscrow(ctx context.Context, creator escrow.Address, taskID, issueURL string, amount int64) (*escrow.TaskEscrow, error)
	GetEscrow(ctx context.Context, taskID string) (*escrow.TaskEscrow, error)
	AssignContributor(ctx context.Context, taskID string, contributor escrow.Address) (*escrow.TaskEscrow, error)
	CompleteTask(ctx context.Context, taskID string) (*escrow.TaskEscrow, error)
	ApproveCompletion(ctx context.Context, taskID string) (*escrow.TaskEscrow, error)
	Refund(ctx context.Context, taskID string) (*escrow.TaskEscrow, error)
	IncreaseBounty(ctx context.Context, creator escrow.Address, taskID string, amount int64) (*escrow.TaskEscrow, error)
	DecreaseBounty(ctx context.Context, creator escrow.Address, taskID string, amount int64) (*escrow.TaskEscrow, error)

	DisputeTask(ctx context.Context, party escrow.Address, taskID, reason string) (*escrow.TaskEscrow, error)
	ResolveDispute(ctx context.Context, taskID string, res escrow.Resolution) (*escrow.TaskEscrow, error)
	GetDisputeInfo(ctx context.Context, taskID string) (*escrow.DisputeInfo, error)

	GetBalance(ctx context.Context, addr escrow.Address) (int64, error)
	HasSufficientBalance(ctx context.Context, addr escrow.Address, amount int64) (bool, error)
	ContractBalance(ctx context.Context) (int64, error)
}

var _ Escrow = (*escrow.Service)(nil)

// EventLister reads a task's stored events.
type EventLister interface {
	ListByTask(ctx context.Context, taskID string) ([]repository.StoredEvent, error)
}

// Minter credits test funds. Only wired in development deployments.
type Minter interface {
	Mint(ctx context.Context, token, holder escrow.Address, amount int64) error
}

// EscrowHandler serves the /v1 escrow API. Events and Faucet are optional.
type EscrowHandler struct {
	Escrow Escrow
	Events EventLister
	Faucet Minter
	Logger *slog.Logger
}

// --- responses ---

type escrowResponse struct {
	*escrow.TaskEscrow
	HasContributor bool `json:"has_contributor"`
}

func escrowBody(e *escrow.TaskEscrow) escrowResponse {
	return escrowResponse{TaskEscrow: e, HasContributor: e.HasContributor()}
}

type stateResponse struct {
	escrow.State
	Contract escrow.Address `json:"contract"`
	Version  uint32         `json:"version"`
}

type balanceResponse struct {
	Address escrow.Address `json:"address"`
	Balance int64          `json:"balance"`
}

// --- requests ---

type initializeRequest struct {
	Admin escrow.Address `json:"admin"`
	Token escrow.Address `json:"token"`
}

type setAdminRequest struct {
	Admin escrow.Address `json:"admin"`
}

type updateTokenRequest struct {
	Token escrow.Address `json:"token"`
}

type setPausedRequest struct {
	Paused bool `json:"paused"`
}

type upgradeRequest struct {
	CodeHash string `json:"code_hash"`
}

type createEscrowRequest struct {
	Creator      escrow.Address `json:"creator"`
	TaskID       string         `json:"task_id"`
	IssueURL     string         `json:"issue_url"`
	BountyAmount int64          `json:"bounty_amount"`
}

type assignRequest struct {
	Contributor escrow.Address `json:"contributor"`
}

type disputeRequest struct {
	Party  escrow.Address `json:"party"`
	Reason string         `json:"reason"`
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
	Amount     int64  `json:"amount"`
}

type changeBountyRequest struct {
	Creator escrow.Address `json:"creator"`
	Amount  int64          `json:"amount"`
}

type mintRequest struct {
	Holder escrow.Address `json:"holder"`
	Amount int64          `json:"amount"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid JSON")
		return false
	}
	return true
}

// --- instance ---

// Initialize handles POST /v1/initialize.
func (h *EscrowHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Escrow.Initialize(r.Context(), req.Admin, req.Token); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	h.writeState(w, r, http.StatusCreated)
}

// GetState handles GET /v1/state.
func (h *EscrowHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, r, http.StatusOK)
}

func (h *EscrowHandler) writeState(w http.ResponseWriter, r *http.Request, status int) {
	st, err := h.Escrow.State(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, status, stateResponse{State: st, Contract: h.Escrow.Address(), Version: h.Escrow.Version()})
}

// GetAdmin handles GET /v1/admin.
func (h *EscrowHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := h.Escrow.GetAdmin(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, setAdminRequest{Admin: admin})
}

// SetAdmin handles PUT /v1/admin.
func (h *EscrowHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	var req setAdminRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Escrow.SetAdmin(r.Context(), req.Admin); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetToken handles GET /v1/token.
func (h *EscrowHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.Escrow.GetToken(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updateTokenRequest{Token: token})
}

// UpdateToken handles PUT /v1/token.
func (h *EscrowHandler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	var req updateTokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Escrow.UpdateToken(r.Context(), req.Token); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// SetPaused handles PUT /v1/paused.
func (h *EscrowHandler) SetPaused(w http.ResponseWriter, r *http.Request) {
	var req setPausedRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Escrow.SetPaused(r.Context(), req.Paused); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Upgrade handles POST /v1/upgrade.
func (h *EscrowHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if !decode(w, r, &req) {
		return
	}
	raw, err := hex.DecodeString(req.CodeHash)
	if err != nil || len(raw) != 32 {
		badRequest(w, "code_hash must be 32 hex-encoded bytes")
		return
	}
	var hash [32]byte
	copy(hash[:], raw)
	if err := h.Escrow.Upgrade(r.Context(), hash); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	h.writeState(w, r, http.StatusOK)
}

// Version handles GET /v1/version.
func (h *EscrowHandler) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint32{"version": h.Escrow.Version()})
}

// TaskCount handles GET /v1/task-count.
func (h *EscrowHandler) TaskCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Escrow.TaskCount(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"task_count": n})
}

// --- escrows ---

// CreateEscrow handles POST /v1/escrows.
func (h *EscrowHandler) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	var req createEscrowRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Escrow.CreateEscrow(r.Context(), req.Creator, req.TaskID, req.IssueURL, req.BountyAmount)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, escrowBody(e))
}

// GetEscrow handles GET /v1/escrows/{task_id}.
func (h *EscrowHandler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Escrow.GetEscrow(r.Context(), r.PathValue("task_id")))
}

// AssignContributor handles POST /v1/escrows/{task_id}/assign.
func (h *EscrowHandler) AssignContributor(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Escrow.AssignContributor(r.Context(), r.PathValue("task_id"), req.Contributor))
}

// CompleteTask handles POST /v1/escrows/{task_id}/complete.
func (h *EscrowHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Escrow.CompleteTask(r.Context(), r.PathValue("task_id")))
}

// ApproveCompletion handles POST /v1/escrows/{task_id}/approve.
func (h *EscrowHandler) ApproveCompletion(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Escrow.ApproveCompletion(r.Context(), r.PathValue("task_id")))
}

// Refund handles POST /v1/escrows/{task_id}/refund.
func (h *EscrowHandler) Refund(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.Escrow.Refund(r.Context(), r.PathValue("task_id")))
}

// IncreaseBounty handles POST /v1/escrows/{task_id}/increase.
func (h *EscrowHandler) IncreaseBounty(w http.ResponseWriter, r *http.Request) {
	var req changeBountyRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Escrow.IncreaseBounty(r.Context(), req.Creator, r.PathValue("task_id"), req.Amount))
}

// DecreaseBounty handles POST /v1/escrows/{task_id}/decrease.
func (h *EscrowHandler) DecreaseBounty(w http.ResponseWriter, r *http.Request) {
	var req changeBountyRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Escrow.DecreaseBounty(r.Context(), req.Creator, r.PathValue("task_id"), req.Amount))
}

// DisputeTask handles POST /v1/escrows/{task_id}/dispute.
func (h *EscrowHandler) DisputeTask(w http.ResponseWriter, r *http.Request) {
	var req disputeRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r)(h.Escrow.DisputeTask(r.Context(), req.Party, r.PathValue("task_id"), req.Reason))
}

// ResolveDispute handles POST /v1/escrows/{task_id}/resolve.
func (h *EscrowHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decode(w, r, &req) {
		return
	}
	res, ok := escrow.ParseResolution(req.Resolution, req.Amount)
	if !ok {
		writeError(w, r, h.Logger, escrow.ErrInvalidResolution)
		return
	}
	h.respond(w, r)(h.Escrow.ResolveDispute(r.Context(), r.PathValue("task_id"), res))
}

// GetDispute handles GET /v1/escrows/{task_id}/dispute.
func (h *EscrowHandler) GetDispute(w http.ResponseWriter, r *http.Request) {
	d, err := h.Escrow.GetDisputeInfo(r.Context(), r.PathValue("task_id"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListEvents handles GET /v1/escrows/{task_id}/events.
func (h *EscrowHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "event history is not available"})
		return
	}
	taskID := r.PathValue("task_id")
	if err := escrow.ValidateTaskID(taskID); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	events, err := h.Events.ListByTask(r.Context(), taskID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if events == nil {
		events = []repository.StoredEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EscrowHandler) respond(w http.ResponseWriter, r *http.Request) func(*escrow.TaskEscrow, error) {
	return func(e *escrow.TaskEscrow, err error) {
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, escrowBody(e))
	}
}

// --- balances ---

// GetBalance handles GET /v1/balances/{address}.
func (h *EscrowHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr := escrow.Address(r.PathValue("address"))
	bal, err := h.Escrow.GetBalance(r.Context(), addr)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: bal})
}

// HasSufficientBalance handles GET /v1/balances/{address}/sufficient?amount=.
func (h *EscrowHandler) HasSufficientBalance(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		badRequest(w, "amount must be an integer")
		return
	}
	ok, err := h.Escrow.HasSufficientBalance(r.Context(), escrow.Address(r.PathValue("address")), amount)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sufficient": ok})
}

// ContractBalance handles GET /v1/contract/balance.
func (h *EscrowHandler) ContractBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.Escrow.ContractBalance(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: h.Escrow.Address(), Balance: bal})
}

// Mint handles POST /v1/dev/mint.
func (h *EscrowHandler) Mint(w http.ResponseWriter, r *http.Request) {
	if h.Faucet == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "faucet disabled"})
		return
	}
	var req mintRequest
	if !decode(w, r, &req) {
		return
	}
	if err := escrow.ValidateAddress(req.Holder); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, h.Logger, escrow.ErrInvalidAmount)
		return
	}
	token, err := h.Escrow.GetToken(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if err := h.Faucet.Mint(r.Context(), token, req.Holder, req.Amount); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	bal, err := h.Escrow.GetBalance(r.Context(), req.Holder)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: req.Holder, Balance: bal})
}

// Healthz handles GET /healthz.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
