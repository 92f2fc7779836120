package catalog

import (
	"time"

	"github.com/bher20/tariffmatrix/internal/tariff"
)

// ResolutionResponse is the JSON shape handed to rendering clients: the
// tariff header fields plus the full derived resolution.
type ResolutionResponse struct {
	ID          string             `json:"id"`
	Utility     string             `json:"utility"`
	Name        string             `json:"name"`
	Sector      string             `json:"sector"`
	Description string             `json:"description"`
	Source      string             `json:"source,omitempty"`
	ResolvedAt  time.Time          `json:"resolved_at"`
	Resolution  *tariff.Resolution `json:"resolution"`
}

// TariffSummary is the catalog listing row for one stored tariff.
type TariffSummary struct {
	ID        string    `json:"id"`
	Utility   string    `json:"utility"`
	Name      string    `json:"name"`
	Sector    string    `json:"sector"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
