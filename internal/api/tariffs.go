package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bher20/tariffmatrix/internal/auth"
	"github.com/bher20/tariffmatrix/internal/catalog"
	"github.com/bher20/tariffmatrix/internal/metrics"
	"github.com/bher20/tariffmatrix/internal/tariff"
)

// registerTariffRoutes wires the tariff catalog endpoints:
//
//	GET    /tariffs                   list the catalog
//	POST   /tariffs                   import a URDB JSON document
//	GET    /tariffs/{id}              full resolution
//	GET    /tariffs/{id}/matrix       matrices and flat demand only
//	GET    /tariffs/{id}/summary      period summaries only
//	DELETE /tariffs/{id}              remove a stored tariff
func registerTariffRoutes(mux *http.ServeMux, svc *catalog.Service, authSvc *auth.Service) {
	withAuth := func(handler http.HandlerFunc) http.Handler {
		if authSvc == nil {
			return handler
		}
		return authSvc.Middleware(handler)
	}

	mux.Handle("/tariffs", withAuth(handleCollection(svc, authSvc)))
	mux.Handle("/tariffs/", withAuth(handleTariff(svc, authSvc)))
}

func handleCollection(svc *catalog.Service, authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list, err := svc.ListTariffs(r.Context())
			if err != nil {
				log.Printf("list tariffs failed: %v", err)
				metrics.RequestErrorsTotal.WithLabelValues("all", "/tariffs", "500").Inc()
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, "all", "/tariffs", struct {
				Tariffs []catalog.TariffSummary `json:"tariffs"`
			}{Tariffs: list})

		case http.MethodPost:
			if !requirePermission(authSvc, r, "tariffs", "write") {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
			if err != nil {
				http.Error(w, "read body", http.StatusBadRequest)
				return
			}
			doc, err := svc.ImportTariff(r.Context(), body, r.URL.Query().Get("source"))
			if err != nil {
				log.Printf("import tariff failed: %v", err)
				metrics.RequestErrorsTotal.WithLabelValues("all", "/tariffs", "400").Inc()
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			if err := json.NewEncoder(w).Encode(doc); err != nil {
				log.Printf("encode response failed: %v", err)
			}

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleTariff serves /tariffs/{id}, /tariffs/{id}/matrix and
// /tariffs/{id}/summary.
func handleTariff(svc *catalog.Service, authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		path := strings.TrimPrefix(r.URL.Path, "/tariffs/")
		parts := strings.Split(path, "/")
		if len(parts) < 1 || parts[0] == "" || len(parts) > 2 {
			metrics.RequestErrorsTotal.WithLabelValues("unknown", r.URL.Path, "404").Inc()
			http.NotFound(w, r)
			return
		}

		id := parts[0]
		view := ""
		if len(parts) == 2 {
			view = parts[1]
		}

		if r.Method == http.MethodDelete {
			if view != "" {
				http.NotFound(w, r)
				return
			}
			if !requirePermission(authSvc, r, "tariffs", "write") {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			if err := svc.DeleteTariff(r.Context(), id); err != nil {
				log.Printf("delete tariff %s failed: %v", id, err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		labelsPath := "/tariffs/resolution"
		switch view {
		case "matrix":
			labelsPath = "/tariffs/matrix"
		case "summary":
			labelsPath = "/tariffs/summary"
		case "":
		default:
			metrics.RequestErrorsTotal.WithLabelValues(id, r.URL.Path, "404").Inc()
			http.NotFound(w, r)
			return
		}

		defer func() {
			dur := time.Since(start).Seconds()
			metrics.RequestDurationSeconds.WithLabelValues(id, labelsPath).Observe(dur)
		}()
		metrics.RequestsTotal.WithLabelValues(id).Inc()

		resp, err := svc.GetResolution(r.Context(), id)
		if err != nil {
			log.Printf("resolve tariff %s failed: %v", id, err)
			metrics.RequestErrorsTotal.WithLabelValues(id, labelsPath, "404").Inc()
			http.Error(w, "tariff not found", http.StatusNotFound)
			return
		}
		metrics.ResolutionsTotal.WithLabelValues("request").Inc()

		switch view {
		case "matrix":
			res := resp.Resolution
			writeJSON(w, id, labelsPath, struct {
				ID            string                  `json:"id"`
				EnergyWeekday tariff.RateMatrix       `json:"energy_weekday"`
				EnergyWeekend tariff.RateMatrix       `json:"energy_weekend"`
				DemandWeekday tariff.RateMatrix       `json:"demand_weekday"`
				DemandWeekend tariff.RateMatrix       `json:"demand_weekend"`
				FlatDemand    tariff.FlatDemandVector `json:"flat_demand"`
				ResolvedAt    time.Time               `json:"resolved_at"`
			}{
				ID:            resp.ID,
				EnergyWeekday: res.EnergyWeekday,
				EnergyWeekend: res.EnergyWeekend,
				DemandWeekday: res.DemandWeekday,
				DemandWeekend: res.DemandWeekend,
				FlatDemand:    res.FlatDemand,
				ResolvedAt:    resp.ResolvedAt,
			})
		case "summary":
			res := resp.Resolution
			writeJSON(w, id, labelsPath, struct {
				ID            string                 `json:"id"`
				EnergyPeriods []tariff.PeriodSummary `json:"energy_periods"`
				DemandPeriods []tariff.PeriodSummary `json:"demand_periods"`
				ResolvedAt    time.Time              `json:"resolved_at"`
			}{
				ID:            resp.ID,
				EnergyPeriods: res.EnergyPeriods,
				DemandPeriods: res.DemandPeriods,
				ResolvedAt:    resp.ResolvedAt,
			})
		default:
			writeJSON(w, id, labelsPath, resp)
		}
	}
}

func writeJSON(w http.ResponseWriter, tariffLabel, pathLabel string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed: %v", err)
		metrics.RequestErrorsTotal.WithLabelValues(tariffLabel, pathLabel, "500").Inc()
	}
}
