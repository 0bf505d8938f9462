package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/secureflow/vulnticket/internal/domain"
	"github.com/secureflow/vulnticket/internal/observability"
	"github.com/secureflow/vulnticket/internal/registry"
	"github.com/secureflow/vulnticket/internal/repository"
	"github.com/secureflow/vulnticket/internal/scanner"
)

type fakeScanner struct {
	sites     []scanner.Site
	assets    map[string][]scanner.Asset
	vulnIDs   map[string][]string
	vulns     map[string]*scanner.Vulnerability
	solutions map[string]string
	vulnErrs  map[string]error
}

func (s *fakeScanner) ListSites(context.Context) ([]scanner.Site, error) {
	return s.sites, nil
}

func (s *fakeScanner) ListAssets(_ context.Context, siteID string) ([]scanner.Asset, error) {
	return s.assets[siteID], nil
}

func (s *fakeScanner) ListVulnerabilityIDs(_ context.Context, assetID string) ([]string, error) {
	return s.vulnIDs[assetID], nil
}

func (s *fakeScanner) GetVulnerability(_ context.Context, vulnID string) (*scanner.Vulnerability, error) {
	if err := s.vulnErrs[vulnID]; err != nil {
		return nil, err
	}
	vuln, ok := s.vulns[vulnID]
	if !ok {
		return nil, scanner.ErrNotFound
	}
	return vuln, nil
}

func (s *fakeScanner) GetSolution(_ context.Context, _, vulnID string) (string, error) {
	if sol, ok := s.solutions[vulnID]; ok {
		return sol, nil
	}
	return "No remediation steps provided.", nil
}

type reconcileFixture struct {
	tickets *repository.MemoryTicketRepository
	history *repository.MemoryTicketHistoryRepository
	source  *fakeScanner
	sites   *registry.MemorySiteRegistry
	svc     *ReconcileService
}

func newReconcileFixture(t *testing.T, source *fakeScanner) *reconcileFixture {
	t.Helper()
	f := &reconcileFixture{
		tickets: repository.NewMemoryTicketRepository(),
		history: repository.NewMemoryTicketHistoryRepository(),
		source:  source,
		sites:   registry.NewMemorySiteRegistry(),
	}
	f.svc = NewReconcileService(ReconcileDependencies{
		TicketRepo:  f.tickets,
		HistoryRepo: f.history,
		Source:      source,
		Sites:       f.sites,
		Metrics:     observability.NewMetrics(),
		Logger:      zap.NewNop(),
	})
	return f
}

func vuln(id, severity, vector string) *scanner.Vulnerability {
	v := &scanner.Vulnerability{ID: scanner.ID(id), Title: "Finding " + id, Severity: severity}
	if vector != "" {
		v.CVSS = &scanner.CVSS{V2: &scanner.CVSSVector{Vector: vector}}
	}
	return v
}

func batchDoc(entries map[string][]string) *scanner.BatchDocument {
	doc := &scanner.BatchDocument{}
	for assetID, vulnIDs := range entries {
		findings := scanner.AssetFindings{ID: scanner.ID(assetID)}
		for _, id := range vulnIDs {
			findings.Vulnerabilities = append(findings.Vulnerabilities, scanner.VulnerabilityRef{ID: scanner.ID(id)})
		}
		doc.Resources = append(doc.Resources, findings)
	}
	return doc
}

func TestReconcileDocumentCreatesTickets(t *testing.T) {
	source := &fakeScanner{
		vulns: map[string]*scanner.Vulnerability{
			"v1": vuln("v1", domain.SeverityCritical, "AV:N/AC:L"),
			"v2": vuln("v2", domain.SeverityModerate, ""),
		},
		solutions: map[string]string{"v1": "patch openssl"},
	}
	f := newReconcileFixture(t, source)

	created, err := f.svc.ReconcileDocument(context.Background(), batchDoc(map[string][]string{
		"asset-1": {"v1", "v2"},
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	ticket, err := f.tickets.GetByAssetID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityCritical, ticket.Severity)
	assert.Equal(t, "Vulnerability Vector: AV:N/AC:L", ticket.Description)
	assert.Equal(t, "patch openssl", ticket.Remediation)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)

	entries, err := f.history.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TicketStatusOpen, entries[0].Status)

	missingVector, err := f.tickets.GetByAssetID(context.Background(), "v2")
	require.NoError(t, err)
	assert.Equal(t, "Vulnerability Vector: N/A", missingVector.Description)
}

func TestReconcileDocumentIsIdempotent(t *testing.T) {
	source := &fakeScanner{
		vulns: map[string]*scanner.Vulnerability{"v1": vuln("v1", domain.SeverityCritical, "")},
	}
	f := newReconcileFixture(t, source)
	doc := batchDoc(map[string][]string{"asset-1": {"v1"}})

	created, err := f.svc.ReconcileDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = f.svc.ReconcileDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Zero(t, created)

	all, err := f.tickets.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReconcileDocumentRefreshesOnSeverityChange(t *testing.T) {
	source := &fakeScanner{
		vulns: map[string]*scanner.Vulnerability{"v1": vuln("v1", domain.SeverityModerate, "")},
	}
	f := newReconcileFixture(t, source)
	doc := batchDoc(map[string][]string{"asset-1": {"v1"}})

	_, err := f.svc.ReconcileDocument(context.Background(), doc)
	require.NoError(t, err)
	original, err := f.tickets.GetByAssetID(context.Background(), "v1")
	require.NoError(t, err)

	source.vulns["v1"] = vuln("v1", domain.SeverityCritical, "AV:N")
	created, err := f.svc.ReconcileDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Zero(t, created, "severity refresh is an update, not a new ticket")

	refreshed, err := f.tickets.GetByAssetID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityCritical, refreshed.Severity)
	assert.Equal(t, original.SLADeadline, refreshed.SLADeadline, "deadline is never recomputed")
	assert.Equal(t, original.ID, refreshed.ID)
}

func TestReconcileDocumentIsolatesEntryFailures(t *testing.T) {
	source := &fakeScanner{
		vulns:    map[string]*scanner.Vulnerability{"v2": vuln("v2", domain.SeveritySevere, "")},
		vulnErrs: map[string]error{"v1": errors.New("source timeout")},
	}
	f := newReconcileFixture(t, source)

	created, err := f.svc.ReconcileDocument(context.Background(), batchDoc(map[string][]string{
		"asset-1": {"v1", "v2"},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	_, err = f.tickets.GetByAssetID(context.Background(), "v2")
	assert.NoError(t, err)
}

func siteSource() *fakeScanner {
	return &fakeScanner{
		sites: []scanner.Site{{ID: "10", Name: "DMZ"}},
		assets: map[string][]scanner.Asset{
			"10": {{ID: "a1"}},
		},
		vulnIDs: map[string][]string{"a1": {"v1", "v2"}},
		vulns: map[string]*scanner.Vulnerability{
			"v1": vuln("v1", domain.SeverityCritical, ""),
			"v2": vuln("v2", domain.SeverityModerate, ""),
		},
	}
}

func TestReconcileSiteCreatesTaggedTickets(t *testing.T) {
	f := newReconcileFixture(t, siteSource())

	created, err := f.svc.ReconcileSite(context.Background(), "10")
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	ticket, err := f.tickets.GetByAssetID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "DMZ", ticket.SiteName)
	assert.Equal(t, "Finding v1", ticket.Description)
}

func TestReconcileSiteSecondRunSignalsProcessed(t *testing.T) {
	f := newReconcileFixture(t, siteSource())

	_, err := f.svc.ReconcileSite(context.Background(), "10")
	require.NoError(t, err)

	_, err = f.svc.ReconcileSite(context.Background(), "10")
	require.ErrorIs(t, err, ErrSiteAlreadyProcessed)

	all, err := f.tickets.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReconcileSiteExistingTicketsKeepClaim(t *testing.T) {
	f := newReconcileFixture(t, siteSource())

	// tickets for the site already exist from an earlier deployment
	seed := domain.NewTicket("old-finding", domain.SeverityModerate, "", "")
	seed.SiteName = "DMZ"
	require.NoError(t, f.tickets.Create(context.Background(), seed))

	_, err := f.svc.ReconcileSite(context.Background(), "10")
	require.ErrorIs(t, err, ErrSiteAlreadyProcessed)

	// the claim stays so the periodic run skips the site from now on
	seen, err := f.sites.Contains(context.Background(), "10")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestReconcileSiteUnknownSiteReleasesClaim(t *testing.T) {
	f := newReconcileFixture(t, siteSource())

	_, err := f.svc.ReconcileSite(context.Background(), "99")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSiteAlreadyProcessed)

	seen, err := f.sites.Contains(context.Background(), "99")
	require.NoError(t, err)
	assert.False(t, seen, "failed runs must release the claim")
}

func TestReconcileAllSitesSkipsProcessed(t *testing.T) {
	source := siteSource()
	source.sites = append(source.sites, scanner.Site{ID: "20", Name: "Edge"})
	source.assets["20"] = []scanner.Asset{{ID: "a2"}}
	source.vulnIDs["a2"] = []string{"v3"}
	source.vulns["v3"] = vuln("v3", domain.SeveritySevere, "")
	f := newReconcileFixture(t, source)

	_, err := f.sites.Add(context.Background(), "10")
	require.NoError(t, err)

	require.NoError(t, f.svc.ReconcileAllSites(context.Background()))

	all, err := f.tickets.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "v3", all[0].AssetID)
	assert.Equal(t, "Edge", all[0].SiteName)
}

func TestTicketsForSite(t *testing.T) {
	f := newReconcileFixture(t, siteSource())

	_, err := f.svc.ReconcileSite(context.Background(), "10")
	require.NoError(t, err)

	tickets, err := f.svc.TicketsForSite(context.Background(), "10")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}
