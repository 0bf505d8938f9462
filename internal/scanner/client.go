// Package scanner is a typed, read-only client for the external
// vulnerability-management API (sites, assets, vulnerabilities, solutions).
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/secureflow/vulnticket/internal/config"
)

// ErrNotFound marks a 404 from the source; callers treat it as missing data
// for one entry, not a transport failure.
var ErrNotFound = errors.New("scanner: resource not found")

// Client talks to the external source with basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.ScannerConfig) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout()},
	}
}

// ListSites returns every known scan site.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var out siteList
	if err := c.getJSON(ctx, "/sites", &out); err != nil {
		return nil, err
	}
	return out.Resources, nil
}

// ListAssets returns the assets of one site.
func (c *Client) ListAssets(ctx context.Context, siteID string) ([]Asset, error) {
	var out assetList
	if err := c.getJSON(ctx, fmt.Sprintf("/sites/%s/assets", siteID), &out); err != nil {
		return nil, err
	}
	return out.Resources, nil
}

// ListVulnerabilityIDs returns the vulnerability identifiers reported for an
// asset.
func (c *Client) ListVulnerabilityIDs(ctx context.Context, assetID string) ([]string, error) {
	var out vulnRefList
	if err := c.getJSON(ctx, fmt.Sprintf("/assets/%s/vulnerabilities", assetID), &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.Resources))
	for _, ref := range out.Resources {
		ids = append(ids, ref.ID.String())
	}
	return ids, nil
}

// GetVulnerability fetches the detail record for one finding.
func (c *Client) GetVulnerability(ctx context.Context, vulnID string) (*Vulnerability, error) {
	var out Vulnerability
	if err := c.getJSON(ctx, fmt.Sprintf("/vulnerabilities/%s", vulnID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSolution fetches the remediation text for an (asset, vulnerability)
// pair. Plain text is preferred; HTML-only solutions are returned as-is for
// the caller to render.
func (c *Client) GetSolution(ctx context.Context, assetID, vulnID string) (string, error) {
	var out solutionList
	path := fmt.Sprintf("/assets/%s/vulnerabilities/%s/solution", assetID, vulnID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return "", err
	}
	if len(out.Resources) == 0 {
		return "No remediation steps provided.", nil
	}
	steps := out.Resources[0].Steps
	if steps.Text != "" {
		return steps.Text, nil
	}
	if steps.HTML != "" {
		return steps.HTML, nil
	}
	return "No remediation steps provided.", nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("scanner: build request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scanner: %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("scanner: %s: unexpected status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("scanner: %s: decode: %w", path, err)
	}
	return nil
}
