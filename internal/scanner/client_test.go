package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureflow/vulnticket/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ScannerConfig{
		BaseURL:        srv.URL,
		Username:       "scanner",
		Password:       "secret",
		TimeoutSeconds: 5,
	})
}

func TestListSites(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "scanner", user)
		assert.Equal(t, "secret", pass)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"resources": []map[string]any{
				{"id": 1, "name": "DMZ", "assets": 12},
				{"id": "edge", "name": "Edge", "assets": 3},
			},
		})
	}))

	sites, err := client.ListSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "1", sites[0].ID.String(), "numeric ids are accepted")
	assert.Equal(t, "DMZ", sites[0].Name)
	assert.Equal(t, "edge", sites[1].ID.String())
}

func TestGetVulnerabilityVector(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vulnerabilities/ssl-cve", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "ssl-cve",
			"title":    "Weak SSL ciphers",
			"severity": "Critical",
			"cvss":     map[string]any{"v2": map[string]any{"vector": "AV:N/AC:L/Au:N"}},
		})
	}))

	vuln, err := client.GetVulnerability(context.Background(), "ssl-cve")
	require.NoError(t, err)
	assert.Equal(t, "Critical", vuln.Severity)
	assert.Equal(t, "AV:N/AC:L/Au:N", vuln.Vector())
}

func TestVectorFallsBackWhenMissing(t *testing.T) {
	assert.Equal(t, "N/A", Vulnerability{}.Vector())
	assert.Equal(t, "N/A", Vulnerability{CVSS: &CVSS{}}.Vector())
	assert.Equal(t, "N/A", Vulnerability{CVSS: &CVSS{V2: &CVSSVector{}}}.Vector())
}

func TestGetSolutionPrefersText(t *testing.T) {
	cases := []struct {
		name      string
		resources []map[string]any
		want      string
	}{
		{
			name: "text preferred",
			resources: []map[string]any{
				{"steps": map[string]any{"text": "apply patch", "html": "<p>apply patch</p>"}},
			},
			want: "apply patch",
		},
		{
			name: "html fallback",
			resources: []map[string]any{
				{"steps": map[string]any{"html": "<p>apply patch</p>"}},
			},
			want: "<p>apply patch</p>",
		},
		{
			name:      "empty listing",
			resources: []map[string]any{},
			want:      "No remediation steps provided.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/assets/a1/vulnerabilities/v1/solution", r.URL.Path)
				_ = json.NewEncoder(w).Encode(map[string]any{"resources": tc.resources})
			}))
			got, err := client.GetSolution(context.Background(), "a1", "v1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNotFoundIsSentinel(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetVulnerability(context.Background(), "gone")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnexpectedStatusIncludesBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))

	_, err := client.ListSites(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream exploded")
}
