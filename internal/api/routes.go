package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RegisterRoutes регистрирует маршруты API.
// reg — registry для метрики HTTP запросов.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, reg prometheus.Registerer) {
	requests := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "bqflow",
		Name:      "http_requests_total",
		Help:      "Total HTTP API requests, by route and status",
	}, []string{"route", "status"})

	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(requests),
	)

	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.CreateRun)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/reports", chain(http.HandlerFunc(h.ListRunReports)))
	mux.Handle("GET /api/v1/runs/{id}/stats", chain(http.HandlerFunc(h.GetRunStats)))
}
