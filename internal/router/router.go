package router

import (
	"log/slog"
	"net/http"

	"github.com/devasign/task-escrow/internal/handlers"
	"github.com/devasign/task-escrow/internal/middleware"
	"github.com/devasign/task-escrow/internal/services"
)

// Config carries the router's collaborators. Metrics and Observer are optional.
type Config struct {
	Escrow    *handlers.EscrowHandler
	Validator middleware.BodyValidator
	Metrics   http.Handler
	Observer  middleware.RequestObserver
	Logger    *slog.Logger
}

// New returns the HTTP handler serving the /v1 escrow API.
func New(cfg Config) http.Handler {
	h := cfg.Escrow
	body := func(schema string, fn http.HandlerFunc) http.Handler {
		return middleware.ValidateBody(cfg.Validator, schema)(fn)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handlers.Healthz)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	const base = "/v1"
	mux.Handle("POST "+base+"/initialize", body(services.SchemaInitialize, h.Initialize))
	mux.HandleFunc("GET "+base+"/state", h.GetState)
	mux.HandleFunc("GET "+base+"/admin", h.GetAdmin)
	mux.Handle("PUT "+base+"/admin", body(services.SchemaSetAdmin, h.SetAdmin))
	mux.HandleFunc("GET "+base+"/token", h.GetToken)
	mux.Handle("PUT "+base+"/token", body(services.SchemaUpdateToken, h.UpdateToken))
	mux.Handle("PUT "+base+"/paused", body(services.SchemaSetPaused, h.SetPaused))
	mux.Handle("POST "+base+"/upgrade", body(services.SchemaUpgrade, h.Upgrade))
	mux.HandleFunc("GET "+base+"/version", h.Version)
	mux.HandleFunc("GET "+base+"/task-count", h.TaskCount)

	mux.Handle("POST "+base+"/escrows", body(services.SchemaCreateEscrow, h.CreateEscrow))
	mux.HandleFunc("GET "+base+"/escrows/{task_id}", h.GetEscrow)
	mux.Handle("POST "+base+"/escrows/{task_id}/assign", body(services.SchemaAssignContributor, h.AssignContributor))
	mux.HandleFunc("POST "+base+"/escrows/{task_id}/complete", h.CompleteTask)
	mux.HandleFunc("POST "+base+"/escrows/{task_id}/approve", h.ApproveCompletion)
	mux.HandleFunc("POST "+base+"/escrows/{task_id}/refund", h.Refund)
	mux.Handle("POST "+base+"/escrows/{task_id}/increase", body(services.SchemaChangeBounty, h.IncreaseBounty))
	mux.Handle("POST "+base+"/escrows/{task_id}/decrease", body(services.SchemaChangeBounty, h.DecreaseBounty))
	mux.Handle("POST "+base+"/escrows/{task_id}/dispute", body(services.SchemaDisputeTask, h.DisputeTask))
	mux.Handle("POST "+base+"/escrows/{task_id}/resolve", body(services.SchemaResolveDispute, h.ResolveDispute))
	mux.HandleFunc("GET "+base+"/escrows/{task_id}/dispute", h.GetDispute)
	mux.HandleFunc("GET "+base+"/escrows/{task_id}/events", h.ListEvents)

	mux.HandleFunc("GET "+base+"/balances/{address}", h.GetBalance)
	mux.HandleFunc("GET "+base+"/balances/{address}/sufficient", h.HasSufficientBalance)
	mux.HandleFunc("GET "+base+"/contract/balance", h.ContractBalance)
	if h.Faucet != nil {
		mux.Handle("POST "+base+"/dev/mint", body(services.SchemaMint, h.Mint))
	}

	// Metrics must wrap the mux directly: the mux sets r.Pattern on the
	// request it receives, and the other middleware pass it a copy.
	var handler http.Handler = mux
	if cfg.Observer != nil {
		handler = middleware.Metrics(cfg.Observer)(handler)
	}
	handler = middleware.Signatures(handler)
	handler = middleware.RequestLogger(cfg.Logger)(handler)
	return middleware.RequestID(handler)
}
