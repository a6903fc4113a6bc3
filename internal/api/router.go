package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"demand_service/internal/observability"
)

func NewRouter(h *Handler, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	get := func(path string, fn http.HandlerFunc) {
		r.Handle(path, metrics.WrapHandler(path, fn)).Methods(http.MethodGet)
	}
	get("/health", h.Health)
	get("/api/adr", h.ADR)
	get("/api/adr/export.xlsx", h.ADRExport)
	get("/api/competitors", h.Competitors)
	get("/api/competitors/recon", h.Recon)
	get("/api/demand", h.Demand)
	get("/api/pricing", h.Pricing)
	get("/api/weather", h.Weather)
	get("/api/holidays", h.Holidays)
	get("/api/overview", h.Overview)
	get("/api/estimates/recent", h.RecentEstimates)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	var chain http.Handler = r
	chain = withLogging(logger, chain)
	chain = withRequestID(chain)
	chain = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: logger}),
		handlers.PrintRecoveryStack(true),
	)(chain)
	chain = handlers.CompressHandler(chain)
	chain = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)(chain)
	return chain
}
