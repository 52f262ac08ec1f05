package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/permitpath/engine/internal/core/domain"
	"github.com/permitpath/engine/internal/infra/storage"
	"github.com/permitpath/engine/internal/ops"
	"github.com/permitpath/engine/internal/resilience/breaker"
)

// Failure categories. Each gets its own breaker so one degraded query type
// does not starve the others.
const (
	CategorySnapshot    = "permit-snapshot"
	CategoryContacts    = "contact-enrichment"
	CategoryAddenda     = "addenda-lookup"
	CategoryInspections = "inspection-lookup"
)

// Config holds remote catalog settings.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	GRPCAddr       string        `yaml:"grpc_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SnapshotTTL    time.Duration `yaml:"snapshot_ttl"`
}

// SnapshotCache caches permit snapshots between catalog calls.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, permitID string) (*domain.PermitSnapshot, bool, error)
	SetSnapshot(ctx context.Context, p domain.PermitSnapshot, ttl time.Duration) error
}

// Addendum is one resubmission round on record at the catalog.
type Addendum struct {
	PermitID string    `json:"permit_id"`
	Cycle    int       `json:"cycle"`
	FiledAt  time.Time `json:"filed_at"`
}

// Inspection is a scheduled or completed field inspection.
type Inspection struct {
	PermitID    string    `json:"permit_id"`
	Type        string    `json:"type"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Result      string    `json:"result"`
}

// Client talks to the permit-metadata collaborator over HTTP JSON. Every
// query type runs under its own breaker category and a per-request timeout;
// snapshots are served from the cache when present.
type Client struct {
	baseURL  string
	http     *http.Client
	breakers *breaker.Registry
	cache    SnapshotCache // may be nil
	ttl      time.Duration
	log      *slog.Logger
}

// NewClient creates a catalog client.
func NewClient(cfg Config, breakers *breaker.Registry, cache SnapshotCache, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := cfg.SnapshotTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		http:     &http.Client{Timeout: timeout},
		breakers: breakers,
		cache:    cache,
		ttl:      ttl,
		log:      log,
	}
}

// Snapshot implements storage.PermitCatalog. A 404 maps to
// storage.ErrPermitNotFound and does not count against the breaker.
func (c *Client) Snapshot(ctx context.Context, permitID string) (*domain.PermitSnapshot, error) {
	if c.cache != nil {
		p, ok, err := c.cache.GetSnapshot(ctx, permitID)
		if err != nil {
			c.log.Warn("snapshot cache read failed", "permit_id", permitID, "error", err)
		} else if ok {
			return p, nil
		}
	}

	var snap domain.PermitSnapshot
	err := c.getJSON(ctx, CategorySnapshot, "/permits/"+url.PathEscape(permitID), &snap)
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrPermitNotFound
		}
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetSnapshot(ctx, snap, c.ttl); err != nil {
			c.log.Warn("snapshot cache write failed", "permit_id", permitID, "error", err)
		}
	}
	return &snap, nil
}

// AgencyContact fetches the current escalation contact for an agency. The
// static station registry is the caller's fallback when this is
// unavailable.
func (c *Client) AgencyContact(ctx context.Context, agency string) (*domain.AgencyContact, error) {
	var contact domain.AgencyContact
	err := c.getJSON(ctx, CategoryContacts, "/agencies/"+url.PathEscape(agency)+"/contact", &contact)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// Addenda lists the permit's resubmission rounds.
func (c *Client) Addenda(ctx context.Context, permitID string) ([]Addendum, error) {
	var out []Addendum
	err := c.getJSON(ctx, CategoryAddenda, "/permits/"+url.PathEscape(permitID)+"/addenda", &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Inspections lists the permit's inspections.
func (c *Client) Inspections(ctx context.Context, permitID string) ([]Inspection, error) {
	var out []Inspection
	err := c.getJSON(ctx, CategoryInspections, "/permits/"+url.PathEscape(permitID)+"/inspections", &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON performs a breaker-wrapped GET and decodes the body into dst.
func (c *Client) getJSON(ctx context.Context, category, path string, dst any) error {
	err := c.breakers.Do(category, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("catalog request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &breaker.HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("failed to decode catalog response: %w", err)
		}
		return nil
	})

	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, breaker.ErrOpen) {
			result = "short_circuit"
		}
	}
	ops.CatalogCalls.WithLabelValues(category, result).Inc()
	return err
}

func isNotFound(err error) bool {
	var httpErr *breaker.HTTPStatusError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
