package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/secureflow/vulnticket/internal/domain"
	"github.com/secureflow/vulnticket/internal/events"
	"github.com/secureflow/vulnticket/internal/observability"
	"github.com/secureflow/vulnticket/internal/registry"
	"github.com/secureflow/vulnticket/internal/repository"
	"github.com/secureflow/vulnticket/internal/scanner"
)

// Scanner is the external source surface the reconciler needs.
type Scanner interface {
	ListSites(ctx context.Context) ([]scanner.Site, error)
	ListAssets(ctx context.Context, siteID string) ([]scanner.Asset, error)
	ListVulnerabilityIDs(ctx context.Context, assetID string) ([]string, error)
	GetVulnerability(ctx context.Context, vulnID string) (*scanner.Vulnerability, error)
	GetSolution(ctx context.Context, assetID, vulnID string) (string, error)
}

// ErrSiteAlreadyProcessed signals that a site was skipped because it was
// claimed before, or because tickets for it already exist.
var ErrSiteAlreadyProcessed = errors.New("site already processed")

// ReconcileService mirrors findings from the external source into tickets.
// Each vulnerability id deduplicates against the ticket store by asset id;
// site-driven runs additionally deduplicate whole sites via the registry.
type ReconcileService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	source     Scanner
	sites      registry.SiteRegistry
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ReconcileDependencies bundles collaborators for ReconcileService.
type ReconcileDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Source      Scanner
	Sites       registry.SiteRegistry
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewReconcileService constructs the service.
func NewReconcileService(deps ReconcileDependencies) *ReconcileService {
	return &ReconcileService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		source:     deps.Source,
		sites:      deps.Sites,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// ReconcileDocument ingests an already-fetched scan export. Each nested
// vulnerability entry is looked up against the source for its current detail;
// failures on one entry are logged and never abort the rest of the document.
// Returns the number of tickets created.
func (s *ReconcileService) ReconcileDocument(ctx context.Context, doc *scanner.BatchDocument) (int, error) {
	created := 0
	for _, asset := range doc.Resources {
		for _, ref := range asset.Vulnerabilities {
			select {
			case <-ctx.Done():
				return created, ctx.Err()
			default:
			}
			vulnID := ref.ID.String()
			vuln, err := s.source.GetVulnerability(ctx, vulnID)
			if err != nil {
				s.logger.Warn("skipping vulnerability entry",
					zap.String("vulnerability_id", vulnID),
					zap.Error(err))
				continue
			}
			solution, err := s.source.GetSolution(ctx, asset.ID.String(), vulnID)
			if err != nil {
				s.logger.Warn("skipping vulnerability entry",
					zap.String("vulnerability_id", vulnID),
					zap.Error(err))
				continue
			}
			description := "Vulnerability Vector: " + vuln.Vector()
			wasCreated, err := s.upsert(ctx, vulnID, vuln.Severity, description, solution, "")
			if err != nil {
				s.logger.Warn("failed to persist ticket",
					zap.String("vulnerability_id", vulnID),
					zap.Error(err))
				continue
			}
			if wasCreated {
				created++
			}
		}
	}
	return created, nil
}

// ReconcileSite walks one site's assets and opens tickets for their findings.
// The registry claim is the first guard; existing tickets for the site are
// the second. A missing site name is fatal and releases the claim so a later
// run can retry.
func (s *ReconcileService) ReconcileSite(ctx context.Context, siteID string) (int, error) {
	claimed, err := s.sites.Add(ctx, siteID)
	if err != nil {
		return 0, fmt.Errorf("claim site %s: %w", siteID, err)
	}
	if !claimed {
		return 0, ErrSiteAlreadyProcessed
	}

	created, err := s.reconcileClaimedSite(ctx, siteID)
	if err != nil && !errors.Is(err, ErrSiteAlreadyProcessed) {
		if rerr := s.sites.Remove(ctx, siteID); rerr != nil {
			s.logger.Warn("failed to release site claim",
				zap.String("site_id", siteID), zap.Error(rerr))
		}
	}
	return created, err
}

func (s *ReconcileService) reconcileClaimedSite(ctx context.Context, siteID string) (int, error) {
	siteName, err := s.resolveSiteName(ctx, siteID)
	if err != nil {
		return 0, err
	}

	existing, err := s.tickets.ListBySiteName(ctx, siteName)
	if err != nil {
		return 0, fmt.Errorf("list tickets for site %s: %w", siteName, err)
	}
	if len(existing) > 0 {
		return 0, ErrSiteAlreadyProcessed
	}

	assets, err := s.source.ListAssets(ctx, siteID)
	if err != nil {
		return 0, fmt.Errorf("list assets for site %s: %w", siteID, err)
	}

	created := 0
	for _, asset := range assets {
		vulnIDs, err := s.source.ListVulnerabilityIDs(ctx, asset.ID.String())
		if err != nil {
			s.logger.Warn("skipping asset",
				zap.String("asset_id", asset.ID.String()),
				zap.Error(err))
			continue
		}
		for _, vulnID := range vulnIDs {
			select {
			case <-ctx.Done():
				return created, ctx.Err()
			default:
			}
			vuln, err := s.source.GetVulnerability(ctx, vulnID)
			if err != nil {
				s.logger.Warn("skipping vulnerability entry",
					zap.String("vulnerability_id", vulnID),
					zap.Error(err))
				continue
			}
			solution, err := s.source.GetSolution(ctx, asset.ID.String(), vulnID)
			if err != nil {
				s.logger.Warn("skipping vulnerability entry",
					zap.String("vulnerability_id", vulnID),
					zap.Error(err))
				continue
			}
			wasCreated, err := s.upsert(ctx, vulnID, vuln.Severity, vuln.Title, solution, siteName)
			if err != nil {
				s.logger.Warn("failed to persist ticket",
					zap.String("vulnerability_id", vulnID),
					zap.Error(err))
				continue
			}
			if wasCreated {
				created++
			}
		}
	}

	s.logger.Info("site reconciled",
		zap.String("site_id", siteID),
		zap.String("site_name", siteName),
		zap.Int("tickets_opened", created))
	s.publish(ctx, events.Event{
		Type: events.EventSiteReconciled,
		Payload: events.SiteReconciledPayload{
			SiteID:        siteID,
			SiteName:      siteName,
			TicketsOpened: created,
		},
	})
	return created, nil
}

// ReconcileAllSites runs site reconciliation for every site not yet claimed.
// Per-site failures are logged and the run continues with the next site.
func (s *ReconcileService) ReconcileAllSites(ctx context.Context) error {
	s.metrics.RecordSweep("reconcile_all")

	sites, err := s.source.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	for _, site := range sites {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		siteID := site.ID.String()
		seen, err := s.sites.Contains(ctx, siteID)
		if err != nil {
			s.logger.Warn("registry lookup failed",
				zap.String("site_id", siteID), zap.Error(err))
			continue
		}
		if seen {
			continue
		}
		if _, err := s.ReconcileSite(ctx, siteID); err != nil {
			if errors.Is(err, ErrSiteAlreadyProcessed) {
				continue
			}
			s.logger.Warn("site reconciliation failed",
				zap.String("site_id", siteID), zap.Error(err))
		}
	}
	return nil
}

// SiteInfo returns the source's site listing for operators.
func (s *ReconcileService) SiteInfo(ctx context.Context) ([]scanner.Site, error) {
	return s.source.ListSites(ctx)
}

// TicketsForSite maps a site's current assets to their tickets by looking up
// the vulnerability ids reported for each asset.
func (s *ReconcileService) TicketsForSite(ctx context.Context, siteID string) ([]domain.Ticket, error) {
	assets, err := s.source.ListAssets(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("list assets for site %s: %w", siteID, err)
	}
	var vulnIDs []string
	for _, asset := range assets {
		ids, err := s.source.ListVulnerabilityIDs(ctx, asset.ID.String())
		if err != nil {
			s.logger.Warn("skipping asset",
				zap.String("asset_id", asset.ID.String()),
				zap.Error(err))
			continue
		}
		vulnIDs = append(vulnIDs, ids...)
	}
	if len(vulnIDs) == 0 {
		return []domain.Ticket{}, nil
	}
	return s.tickets.ListByAssetIDs(ctx, vulnIDs)
}

// upsert applies the dedup rule for one finding: an existing ticket is
// refreshed only when the reported severity differs, otherwise a new OPEN
// ticket is created with its initial history entry. The SLA deadline of an
// existing ticket is never recomputed.
func (s *ReconcileService) upsert(ctx context.Context, vulnID, severity, description, remediation, siteName string) (bool, error) {
	existing, err := s.tickets.GetByAssetID(ctx, vulnID)
	switch {
	case err == nil:
		if existing.Severity == severity {
			return false, nil
		}
		existing.Severity = severity
		existing.Description = description
		existing.Remediation = remediation
		if err := s.tickets.Update(ctx, existing); err != nil {
			return false, err
		}
		return false, nil
	case errors.Is(err, pgx.ErrNoRows):
		ticket := domain.NewTicket(vulnID, severity, description, remediation)
		ticket.SiteName = siteName
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return false, err
		}
		if err := s.history.Create(ctx, &domain.TicketStatusHistory{
			TicketID:  ticket.ID,
			Status:    ticket.Status,
			ChangedAt: time.Now(),
		}); err != nil {
			s.logger.Warn("failed to record initial status",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
		s.publish(ctx, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Payload: events.TicketCreatedPayload{
				AssetID:  ticket.AssetID,
				SiteName: ticket.SiteName,
				Severity: ticket.Severity,
			},
		})
		return true, nil
	default:
		return false, err
	}
}

func (s *ReconcileService) resolveSiteName(ctx context.Context, siteID string) (string, error) {
	sites, err := s.source.ListSites(ctx)
	if err != nil {
		return "", fmt.Errorf("list sites: %w", err)
	}
	for _, site := range sites {
		if site.ID.String() == siteID {
			return site.Name, nil
		}
	}
	return "", fmt.Errorf("site %s not found in source listing", siteID)
}

func (s *ReconcileService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
