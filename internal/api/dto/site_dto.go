package dto

import "github.com/secureflow/vulnticket/internal/scanner"

// SiteResponse is the site listing surfaced to operators.
type SiteResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Assets       int    `json:"assets"`
	Description  string `json:"description,omitempty"`
	Importance   string `json:"importance,omitempty"`
	LastScanTime string `json:"last_scan_time,omitempty"`
}

// ReconcileResponse reports the outcome of a reconciliation run.
type ReconcileResponse struct {
	TicketsOpened int    `json:"tickets_opened"`
	Detail        string `json:"detail,omitempty"`
}

// NewSiteListResponse maps source sites.
func NewSiteListResponse(sites []scanner.Site) []SiteResponse {
	out := make([]SiteResponse, 0, len(sites))
	for _, site := range sites {
		out = append(out, SiteResponse{
			ID:           site.ID.String(),
			Name:         site.Name,
			Assets:       site.Assets,
			Description:  site.Description,
			Importance:   site.Importance,
			LastScanTime: site.LastScanTime,
		})
	}
	return out
}
