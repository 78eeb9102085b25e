package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/pulselabs/linkpulse/internal/access"
	"github.com/pulselabs/linkpulse/internal/analytics"
	"github.com/pulselabs/linkpulse/internal/database"
	"github.com/pulselabs/linkpulse/internal/metrics"
	"github.com/pulselabs/linkpulse/internal/models"
	"github.com/pulselabs/linkpulse/internal/shortcode"
)

// LinkStore defines the durable store operations the service relies on.
type LinkStore interface {
	// Create inserts a new link. Returns database.ErrCodeExists when the
	// short code is already assigned.
	Create(ctx context.Context, link *models.Link) (*models.Link, error)

	// GetByCode retrieves a link for resolution. Returns
	// database.ErrLinkNotFound for unknown codes and
	// database.ErrLinkExpired once the expiry has passed.
	GetByCode(ctx context.Context, code string) (*models.Link, error)

	// GetStats retrieves a link regardless of expiry, for analytics reads.
	GetStats(ctx context.Context, code string) (*models.Link, error)

	// GetByOwner lists an owner's links, newest first.
	GetByOwner(ctx context.Context, owner string) ([]*models.Link, error)

	// GetVisits returns the link's visit history in insertion order.
	GetVisits(ctx context.Context, code string) ([]models.VisitEvent, error)
}

// LinkCache is the optional hot-path cache in front of the store.
type LinkCache interface {
	Get(ctx context.Context, code string) (*models.Link, error)
	Set(ctx context.Context, link *models.Link) error
}

// CodeAllocator assigns a free short code, honoring a custom alias.
type CodeAllocator interface {
	Allocate(ctx context.Context, customAlias string) (string, error)
}

// VisitRecorder captures a granted resolution without blocking the caller.
type VisitRecorder interface {
	Record(code, rawIP, rawUserAgent string)
}

// ResolveStatus is the terminal state of one resolution request.
type ResolveStatus int

const (
	ResolveSuccess ResolveStatus = iota
	ResolveNotFound
	ResolveGone
	ResolveNeedsPassword
	ResolveUnauthorized
)

// Outcome is the result of resolving a short code. Whether a successful
// destination becomes a transport redirect or a structured payload is the
// boundary's call, not the service's.
type Outcome struct {
	Status      ResolveStatus
	Destination string
	// GateRedirectTarget is where an interactive client should be sent to
	// enter a credential. Set only for ResolveNeedsPassword.
	GateRedirectTarget string
}

// LinkService orchestrates code allocation, the access gate and visit
// recording into the end-to-end link lifecycle.
type LinkService struct {
	store     LinkStore
	cache     LinkCache
	allocator CodeAllocator
	recorder  VisitRecorder
	logger    *slog.Logger
	gateURL   string
}

func NewLinkService(store LinkStore, cache LinkCache, allocator CodeAllocator, recorder VisitRecorder, logger *slog.Logger, gateURL string) *LinkService {
	return &LinkService{
		store:     store,
		cache:     cache,
		allocator: allocator,
		recorder:  recorder,
		logger:    logger,
		gateURL:   gateURL,
	}
}

// CreateLinkParams carries one shorten request.
type CreateLinkParams struct {
	Destination string
	Owner       string
	Password    string
	ExpiresAt   *time.Time
	CustomAlias string
}

// CreateLink allocates a code and persists the link. A taken custom alias
// fails with shortcode.ErrAliasTaken and leaves nothing behind.
func (s *LinkService) CreateLink(ctx context.Context, p CreateLinkParams) (*models.Link, error) {
	const op = "service.LinkService.CreateLink"
	const maxAttempts = 3

	owner := p.Owner
	if owner == "" {
		owner = models.AnonymousOwner
	}

	var passwordHash string
	if p.Password != "" {
		hash, err := access.HashPassword(p.Password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		passwordHash = hash
	}

	for i := 0; i < maxAttempts; i++ {
		code, err := s.allocator.Allocate(ctx, p.CustomAlias)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to allocate short code: %w", op, err)
		}

		link, err := s.store.Create(ctx, &models.Link{
			Code:         code,
			Destination:  p.Destination,
			Owner:        owner,
			PasswordHash: passwordHash,
			ExpiresAt:    p.ExpiresAt,
		})
		if err != nil {
			if errors.Is(err, database.ErrCodeExists) {
				// Lost the race after the existence check.
				if p.CustomAlias != "" {
					return nil, fmt.Errorf("%s: %w", op, shortcode.ErrAliasTaken)
				}
				continue
			}

			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		metrics.LinksCreated.Inc()

		if err := s.cache.Set(ctx, link); err != nil {
			s.logger.Warn("failed to cache link", slog.String("code", link.Code), slog.Any("err", err))
		}

		return link, nil
	}

	return nil, fmt.Errorf("%s: %w", op, shortcode.ErrAllocationExhausted)
}

// Resolve runs the resolution flow: lookup, access gate, then a
// fire-and-forget visit record on success. Recording can never change the
// outcome already computed.
func (s *LinkService) Resolve(ctx context.Context, code, password, rawIP, rawUserAgent string) (Outcome, error) {
	const op = "service.LinkService.Resolve"

	link, err := s.lookup(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrLinkNotFound):
			metrics.Resolutions.WithLabelValues("not_found").Inc()
			return Outcome{Status: ResolveNotFound}, nil
		case errors.Is(err, database.ErrLinkExpired):
			metrics.Resolutions.WithLabelValues("gone").Inc()
			return Outcome{Status: ResolveGone}, nil
		}

		return Outcome{}, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	decision := access.Evaluate(link, password, time.Now())
	if !decision.Granted {
		switch decision.Reason {
		case access.ReasonExpired:
			metrics.Resolutions.WithLabelValues("gone").Inc()
			return Outcome{Status: ResolveGone}, nil
		case access.ReasonPasswordRequired:
			metrics.Resolutions.WithLabelValues("needs_password").Inc()
			return Outcome{Status: ResolveNeedsPassword, GateRedirectTarget: s.gateRedirectTarget(code)}, nil
		default:
			metrics.Resolutions.WithLabelValues("unauthorized").Inc()
			return Outcome{Status: ResolveUnauthorized}, nil
		}
	}

	s.recorder.Record(code, rawIP, rawUserAgent)

	metrics.Resolutions.WithLabelValues("success").Inc()
	return Outcome{Status: ResolveSuccess, Destination: link.Destination}, nil
}

// lookup consults the cache first; a cached link still passes through the
// access gate, so staleness can never grant access it shouldn't.
func (s *LinkService) lookup(ctx context.Context, code string) (*models.Link, error) {
	cached, err := s.cache.Get(ctx, code)
	if err != nil {
		s.logger.Warn("link cache error", slog.String("code", code), slog.Any("err", err))
	}
	if cached != nil {
		metrics.CacheHit.Inc()
		return cached, nil
	}
	metrics.CacheMiss.Inc()

	link, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, link); err != nil {
		s.logger.Warn("failed to cache link", slog.String("code", code), slog.Any("err", err))
	}

	return link, nil
}

func (s *LinkService) gateRedirectTarget(code string) string {
	if s.gateURL == "" {
		return ""
	}

	return s.gateURL + "?gate=" + url.QueryEscape(code)
}

// ListLinksForOwner returns the owner's links, newest first.
func (s *LinkService) ListLinksForOwner(ctx context.Context, owner string) ([]*models.Link, error) {
	const op = "service.LinkService.ListLinksForOwner"

	links, err := s.store.GetByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	return links, nil
}

// GetAnalytics summarizes the link's visit history. A history that cannot
// be read degrades to a summary with empty breakdowns; analytics are
// best-effort.
func (s *LinkService) GetAnalytics(ctx context.Context, code string) (*models.AnalyticsSummary, error) {
	const op = "service.LinkService.GetAnalytics"

	link, err := s.store.GetStats(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	visits, err := s.store.GetVisits(ctx, code)
	if err != nil {
		s.logger.Warn("failed to read visit history", slog.String("code", code), slog.Any("err", err))
		return analytics.Summarize(link, nil), nil
	}

	return analytics.Summarize(link, visits), nil
}
