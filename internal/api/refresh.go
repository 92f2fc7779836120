package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/bher20/tariffmatrix/internal/catalog"
	"github.com/bher20/tariffmatrix/internal/metrics"
)

// RefreshResponse is the response structure for the refresh endpoint.
type RefreshResponse struct {
	TariffID string `json:"tariff_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// RegisterRefreshHandler wires /internal/refresh, which re-resolves stored
// tariffs from their documents. With an `id` query parameter only that
// tariff is refreshed, otherwise the whole catalog. Intended for CronJobs
// and manual operation, so it carries no auth.
func RegisterRefreshHandler(mux *http.ServeMux, svc *catalog.Service) {
	mux.HandleFunc("/internal/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var ids []string
		if id := r.URL.Query().Get("id"); id != "" {
			ids = []string{id}
		} else {
			list, err := svc.ListTariffs(r.Context())
			if err != nil {
				log.Printf("refresh: list tariffs failed: %v", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			for _, t := range list {
				ids = append(ids, t.ID)
			}
		}

		results := make([]RefreshResponse, 0, len(ids))
		for _, id := range ids {
			res := RefreshResponse{TariffID: id, Status: "ok"}
			if _, err := svc.RefreshResolution(r.Context(), id); err != nil {
				log.Printf("refresh: tariff %s failed: %v", id, err)
				res.Status = "error"
				res.Error = err.Error()
			} else {
				metrics.ResolutionsTotal.WithLabelValues("refresh").Inc()
			}
			results = append(results, res)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Results []RefreshResponse `json:"results"`
		}{Results: results})
	})
}
