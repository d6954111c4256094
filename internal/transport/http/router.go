package transporthttp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bursar/internal/audit"
	"bursar/internal/platform/metrics"
	"bursar/internal/workflow"
	"bursar/pkg/platform/middleware/auth"
	"bursar/pkg/requestcontext"
)

// RouterConfig wires the router's collaborators.
type RouterConfig struct {
	Coordinator *workflow.Coordinator
	AuditTrail  audit.Store
	Metrics     *metrics.Metrics
	SigningKey  []byte
	Logger      *slog.Logger
}

func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Coordinator, cfg.AuditTrail, cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestMeta)
	r.Use(accessLog(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(auth.Middleware(cfg.SigningKey))

		api.Route("/expenditures", func(er chi.Router) {
			er.Post("/", h.submitExpenditure)
			er.Get("/", h.listExpenditures)
			er.Get("/{id}", h.getExpenditure)
			er.Post("/{id}/actions/{action}", h.expenditureAction)
		})

		api.Route("/proposals", func(pr chi.Router) {
			pr.Post("/", h.createProposal)
			pr.Get("/", h.listProposals)
			pr.Get("/{id}", h.getProposal)
			pr.Post("/{id}/read", h.markProposalRead)
			pr.Post("/{id}/actions/{action}", h.proposalAction)
		})

		api.Get("/allocations", h.listAllocations)
		api.Get("/audit/{entity}/{id}", h.auditTrailByEntity)
	})

	return r
}

// requestMeta copies chi's request id into the transport-agnostic context and
// pins one timestamp for the whole request so every approval step written
// during it carries the same time.
func requestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithRequestID(ctx, middleware.GetReqID(ctx))
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()),
			)
		})
	}
}
