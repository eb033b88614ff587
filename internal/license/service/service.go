// Package service orchestrates the license registry: key-based lookups with
// on-demand staged migration, ownership claims, persistence, and the
// ownership-aware projection handed to transports.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"licensenet/internal/accounts"
	"licensenet/internal/catalog"
	"licensenet/internal/license/metrics"
	"licensenet/internal/license/models"
	"licensenet/internal/license/normalize"
	"licensenet/internal/plugins"
	id "licensenet/pkg/domain"
)

type LicenseStore interface {
	FindByID(ctx context.Context, licenseID id.LicenseID) (*models.License, error)
	FindByKey(ctx context.Context, key string) (*models.License, error)
	FindByOwner(ctx context.Context, ownerID id.AccountID) ([]*models.License, error)
	FindByOrder(ctx context.Context, orderID id.OrderID) ([]*models.License, error)
	Create(ctx context.Context, license *models.License) error
	Update(ctx context.Context, license *models.License) error
	Execute(ctx context.Context, key string, apply func(*models.License) error) (*models.License, error)
	AssignOwnerByEmail(ctx context.Context, ownerID id.AccountID, email string) (int64, error)
	DeleteByKey(ctx context.Context, key string) error
}

type StagedStore interface {
	FindByKey(ctx context.Context, key string) (*models.StagedLicense, error)
	DeleteByKey(ctx context.Context, key string) error
}

type HistoryStore interface {
	Append(ctx context.Context, entry models.HistoryEntry) error
	ListByLicense(ctx context.Context, licenseID id.LicenseID) ([]models.HistoryEntry, error)
}

type AccountStore interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*accounts.Account, error)
	FindByEmail(ctx context.Context, email string) (*accounts.Account, error)
}

type EditionStore interface {
	FindByHandle(ctx context.Context, handle string) (*catalog.Edition, error)
}

type PluginLicenseStore interface {
	FindByLicense(ctx context.Context, licenseID id.LicenseID) ([]*plugins.PluginLicense, error)
}

// TxRunner scopes a callback to one transaction. Store calls inside the
// callback pick the transaction up from the context, so row locks taken by
// Execute and FOR UPDATE reads hold until the runner commits.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher receives registry facts after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// CacheInvalidator evicts computed projections after a committed mutation.
type CacheInvalidator interface {
	InvalidateLicense(ctx context.Context, key string) error
	InvalidateOwner(ctx context.Context, ownerID id.AccountID) error
}

// Service orchestrates license lifecycle operations. It keeps normalization
// and ownership rules out of handlers and storage out of the domain models.
type Service struct {
	licenses LicenseStore
	staged   StagedStore
	history  HistoryStore
	accounts AccountStore
	editions EditionStore
	plugins  PluginLicenseStore
	tx       TxRunner
	domains  *normalize.DomainNormalizer

	logger  *slog.Logger
	metrics *metrics.Metrics
	events  EventPublisher
	cache   CacheInvalidator
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.events = publisher
	}
}

func WithCacheInvalidator(cache CacheInvalidator) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// New constructs a Service.
func New(
	licenses LicenseStore,
	staged StagedStore,
	history HistoryStore,
	accountStore AccountStore,
	editions EditionStore,
	pluginLicenses PluginLicenseStore,
	tx TxRunner,
	domains *normalize.DomainNormalizer,
	opts ...Option,
) *Service {
	s := &Service{
		licenses: licenses,
		staged:   staged,
		history:  history,
		accounts: accountStore,
		editions: editions,
		plugins:  pluginLicenses,
		tx:       tx,
		domains:  domains,
		tracer:   otel.Tracer("licensenet/internal/license"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// publish hands post-commit facts to the event collaborator. Delivery is
// best effort; a publish failure never rolls back the committed mutation.
func (s *Service) publish(ctx context.Context, events []models.Event) {
	if s.events == nil {
		return
	}
	for _, event := range events {
		if err := s.events.Publish(ctx, event); err != nil {
			s.logWarn(ctx, "failed to publish license event",
				"event_type", string(event.Type),
				"license_id", int64(event.LicenseID),
				"error", err)
		}
	}
}

func (s *Service) invalidateLicense(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateLicense(ctx, key); err != nil {
		s.logWarn(ctx, "failed to invalidate license cache", "error", err)
	}
}

func (s *Service) invalidateOwner(ctx context.Context, ownerID *id.AccountID) {
	if s.cache == nil || ownerID == nil {
		return
	}
	if err := s.cache.InvalidateOwner(ctx, *ownerID); err != nil {
		s.logWarn(ctx, "failed to invalidate owner cache",
			"owner_id", int64(*ownerID),
			"error", err)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
