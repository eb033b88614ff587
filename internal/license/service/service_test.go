package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"licensenet/internal/accounts"
	"licensenet/internal/catalog"
	"licensenet/internal/license/models"
	"licensenet/internal/license/normalize"
	historyStore "licensenet/internal/license/store/history"
	licenseStore "licensenet/internal/license/store/license"
	stagedStore "licensenet/internal/license/store/staged"
	"licensenet/internal/plugins"
	id "licensenet/pkg/domain"
	dErrors "licensenet/pkg/domain-errors"
	"licensenet/pkg/requestcontext"
)

// =============================================================================
// License Service Test Suite
// =============================================================================
// Justification for unit tests: the service carries the ownership transition,
// the exactly-once staged migration and the redaction projection, all of
// which hinge on ordering and error translation that are hard to pin down
// through HTTP-level tests alone.

type LicenseServiceSuite struct {
	suite.Suite
	licenses *licenseStore.InMemory
	staged   *stagedStore.InMemory
	history  *historyStore.InMemory
	accounts *accounts.InMemory
	editions *catalog.InMemory
	plugins  *plugins.InMemory
	events   *eventRecorder
	cache    *cacheRecorder
	service  *Service
}

func TestLicenseServiceSuite(t *testing.T) {
	suite.Run(t, new(LicenseServiceSuite))
}

func (s *LicenseServiceSuite) SetupTest() {
	s.licenses = licenseStore.NewInMemory()
	s.staged = stagedStore.NewInMemory()
	s.history = historyStore.NewInMemory()
	s.accounts = accounts.NewInMemory()
	s.editions = catalog.NewInMemory()
	s.plugins = plugins.NewInMemory()
	s.events = &eventRecorder{}
	s.cache = &cacheRecorder{}

	s.editions.Add(&catalog.Edition{ID: 1, Handle: catalog.BaseEditionHandle, Name: "Solo"})
	s.accounts.Add(&accounts.Account{ID: 1, Email: "alice@example.com", Username: "alice"})
	s.accounts.Add(&accounts.Account{ID: 2, Email: "bob@example.com", Username: "bob"})

	normalizer := normalize.NewDomain(normalize.DomainConfig{
		DevDomains:        []string{"localhost"},
		DevTLDs:           []string{"test", "dev", "local"},
		DevSubdomainWords: []string{"staging", "dev", "test", "local"},
	})
	s.service = New(
		s.licenses, s.staged, s.history, s.accounts, s.editions, s.plugins,
		PassthroughTx{}, normalizer,
		WithEventPublisher(s.events),
		WithCacheInvalidator(s.cache),
	)
}

// testKey builds a canonical 250-character key from a repeating seed.
func testKey(seed string) string {
	return strings.Repeat(seed, 250/len(seed)+1)[:250]
}

func (s *LicenseServiceSuite) seedLicense(key string, owner *id.AccountID, email string) *models.License {
	license := &models.License{
		Key:           key,
		EditionID:     1,
		EditionHandle: catalog.BaseEditionHandle,
		OwnerID:       owner,
		Email:         email,
		DateCreated:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.licenses.Create(context.Background(), license))
	return license
}

func (s *LicenseServiceSuite) seedStaged(key, email string, domain *string, created time.Time) {
	payload := models.StagedPayload{
		Key:         key,
		Email:       email,
		Domain:      domain,
		Notes:       "purchased via checkout",
		DateCreated: created,
	}
	data, err := json.Marshal(payload)
	s.Require().NoError(err)
	s.Require().NoError(s.staged.Create(context.Background(), &models.StagedLicense{
		Key:         key,
		Data:        data,
		DateCreated: created,
	}))
}

// =============================================================================
// Lookup Tests
// =============================================================================

func (s *LicenseServiceSuite) TestGetByKey() {
	ctx := context.Background()

	s.Run("active license is returned as-is", func() {
		key := testKey("a")
		seeded := s.seedLicense(key, nil, "carol@example.com")

		license, err := s.service.GetByKey(ctx, key)
		s.NoError(err)
		s.Equal(seeded.ID, license.ID)
		s.Nil(license.OwnerID)
	})

	s.Run("raw key is normalized before lookup", func() {
		key := testKey("b")
		s.seedLicense(key, nil, "carol@example.com")

		corrupted := "  " + key[:100] + "\r\n" + key[100:] + "\n"
		license, err := s.service.GetByKey(ctx, corrupted)
		s.NoError(err)
		s.Equal(key, license.Key)
	})

	s.Run("malformed key reads as not found, same as an unknown key", func() {
		_, err := s.service.GetByKey(ctx, "too-short")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown key is not found", func() {
		_, err := s.service.GetByKey(ctx, testKey("z"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Staged Migration Tests
// =============================================================================

func (s *LicenseServiceSuite) TestStagedMigration() {
	ctx := context.Background()
	stagedAt := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

	s.Run("staged license is promoted on first lookup", func() {
		key := testKey("c")
		domain := "example.com"
		s.seedStaged(key, "alice@example.com", &domain, stagedAt)

		license, err := s.service.GetByKey(ctx, key)
		s.Require().NoError(err)
		s.Equal(key, license.Key)
		s.Equal(catalog.BaseEditionHandle, license.EditionHandle)
		s.Equal(id.EditionID(1), license.EditionID)
		s.NotEqual(uuidZero, license.UID.String())

		s.Require().NotNil(license.OwnerID, "staged email matches a registered account")
		s.Equal(id.AccountID(1), *license.OwnerID)

		_, err = s.staged.FindByKey(ctx, key)
		s.Error(err, "staging row is drained")

		entries, err := s.history.ListByLicense(ctx, license.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal("created by alice@example.com for domain example.com", entries[0].Note)
		s.Equal(stagedAt, entries[0].Timestamp, "note is backdated to the staged creation time")

		s.Require().Len(s.events.ofType(models.EventLicenseMigrated), 1)
	})

	s.Run("no matching account leaves the license unclaimed", func() {
		key := testKey("d")
		s.seedStaged(key, "nobody@example.com", nil, stagedAt)

		license, err := s.service.GetByKey(ctx, key)
		s.Require().NoError(err)
		s.Nil(license.OwnerID)

		entries, err := s.history.ListByLicense(ctx, license.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal("created by nobody@example.com", entries[0].Note, "no domain clause without a domain")
	})

	s.Run("second lookup returns the promoted row without re-migrating", func() {
		key := testKey("e")
		s.seedStaged(key, "alice@example.com", nil, stagedAt)

		first, err := s.service.GetByKey(ctx, key)
		s.Require().NoError(err)
		second, err := s.service.GetByKey(ctx, key)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)

		entries, err := s.history.ListByLicense(ctx, first.ID)
		s.Require().NoError(err)
		s.Len(entries, 1)
	})

	s.Run("missing base edition aborts the migration", func() {
		broken := New(
			s.licenses, s.staged, s.history, s.accounts, catalog.NewInMemory(), s.plugins,
			PassthroughTx{}, normalize.NewDomain(normalize.DomainConfig{}),
		)
		key := testKey("f")
		s.seedStaged(key, "alice@example.com", nil, stagedAt)

		_, err := broken.GetByKey(ctx, key)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		_, stagedErr := s.staged.FindByKey(ctx, key)
		s.NoError(stagedErr, "staging row survives a failed migration")
	})
}

// =============================================================================
// Claim Tests
// =============================================================================

func (s *LicenseServiceSuite) TestClaim() {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	s.Run("unclaimed license gains the account as owner", func() {
		key := testKey("g")
		s.seedLicense(key, nil, "purchase@example.com")

		license, err := s.service.Claim(ctx, 1, key)
		s.Require().NoError(err)
		s.Require().NotNil(license.OwnerID)
		s.Equal(id.AccountID(1), *license.OwnerID)
		s.Equal("alice@example.com", license.Email, "license adopts the claimer's email")

		entries, err := s.history.ListByLicense(ctx, license.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal("claimed by alice@example.com", entries[0].Note)
		s.Equal(now, entries[0].Timestamp)

		s.Require().Len(s.events.ofType(models.EventLicenseClaimed), 1)
		s.Contains(s.cache.ownerIDs(), id.AccountID(1))
	})

	s.Run("claimed license rejects a second claim", func() {
		key := testKey("h")
		owner := id.AccountID(1)
		s.seedLicense(key, &owner, "alice@example.com")

		_, err := s.service.Claim(ctx, 2, key)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		license, findErr := s.licenses.FindByKey(ctx, key)
		s.Require().NoError(findErr)
		s.Equal(id.AccountID(1), *license.OwnerID, "loser does not overwrite the winner")
	})

	s.Run("claiming a staged key migrates it first", func() {
		key := testKey("i")
		s.seedStaged(key, "nobody@example.com", nil, now)

		license, err := s.service.Claim(ctx, 2, key)
		s.Require().NoError(err)
		s.Equal(id.AccountID(2), *license.OwnerID)

		entries, histErr := s.history.ListByLicense(ctx, license.ID)
		s.Require().NoError(histErr)
		s.Len(entries, 2, "creation note then claim note")
	})

	s.Run("unknown account is not found", func() {
		key := testKey("j")
		s.seedLicense(key, nil, "purchase@example.com")

		_, err := s.service.Claim(ctx, 99, key)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown key is not found", func() {
		_, err := s.service.Claim(ctx, 1, testKey("y"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LicenseServiceSuite) TestClaimAllByEmail() {
	ctx := context.Background()

	s.Run("assigns every unclaimed match case-insensitively", func() {
		s.seedLicense(testKey("k"), nil, "Alice@Example.COM")
		s.seedLicense(testKey("l"), nil, "alice@example.com")
		owner := id.AccountID(2)
		s.seedLicense(testKey("m"), &owner, "alice@example.com")
		s.seedLicense(testKey("n"), nil, "other@example.com")

		count, err := s.service.ClaimAllByEmail(ctx, 1, "alice@example.com")
		s.Require().NoError(err)
		s.Equal(int64(2), count)

		kept, findErr := s.licenses.FindByKey(ctx, testKey("m"))
		s.Require().NoError(findErr)
		s.Equal(id.AccountID(2), *kept.OwnerID, "already-claimed rows are untouched")
	})

	s.Run("is idempotent", func() {
		s.seedLicense(testKey("o"), nil, "bob@example.com")

		first, err := s.service.ClaimAllByEmail(ctx, 2, "bob@example.com")
		s.Require().NoError(err)
		s.Equal(int64(1), first)

		second, err := s.service.ClaimAllByEmail(ctx, 2, "bob@example.com")
		s.Require().NoError(err)
		s.Zero(second)
	})

	s.Run("records no per-license history", func() {
		license := s.seedLicense(testKey("p"), nil, "bob@example.com")

		_, err := s.service.ClaimAllByEmail(ctx, 2, "bob@example.com")
		s.Require().NoError(err)

		entries, histErr := s.history.ListByLicense(ctx, license.ID)
		s.Require().NoError(histErr)
		s.Empty(entries)
	})

	s.Run("blank email defaults to the account's own address", func() {
		license := s.seedLicense(testKey("q"), nil, "alice@example.com")

		count, err := s.service.ClaimAllByEmail(ctx, 1, "   ")
		s.Require().NoError(err)
		s.Equal(int64(1), count)

		claimed, findErr := s.licenses.FindByKey(ctx, license.Key)
		s.Require().NoError(findErr)
		s.Require().NotNil(claimed.OwnerID)
		s.Equal(id.AccountID(1), *claimed.OwnerID)
	})
}

// =============================================================================
// Save / Delete Tests
// =============================================================================

func (s *LicenseServiceSuite) TestSave() {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	s.Run("create resolves the edition handle and stamps identity", func() {
		license := &models.License{
			Key:           testKey("q"),
			EditionHandle: catalog.BaseEditionHandle,
			Email:         "carol@example.com",
		}
		s.Require().NoError(s.service.Save(ctx, license))
		s.False(license.ID.IsZero())
		s.Equal(id.EditionID(1), license.EditionID)
		s.NotEqual(uuidZero, license.UID.String())
		s.Equal(now, license.DateCreated)
		s.Require().Len(s.events.ofType(models.EventLicenseChanged), 1)
	})

	s.Run("unknown edition handle fails before persistence", func() {
		license := &models.License{
			Key:           testKey("r"),
			EditionHandle: "enterprise",
			Email:         "carol@example.com",
		}
		err := s.service.Save(ctx, license)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.True(license.ID.IsZero())
	})

	s.Run("domain is collapsed to its registrable form", func() {
		raw := "https://www.example.com:443/shop"
		license := &models.License{
			Key:       testKey("s"),
			EditionID: 1,
			Email:     "carol@example.com",
			Domain:    &raw,
		}
		s.Require().NoError(s.service.Save(ctx, license))
		s.Require().NotNil(license.Domain)
		s.Equal("example.com", *license.Domain)
	})

	s.Run("dev traffic clears the domain", func() {
		raw := "http://staging.example.com"
		license := &models.License{
			Key:       testKey("t"),
			EditionID: 1,
			Email:     "carol@example.com",
			Domain:    &raw,
		}
		s.Require().NoError(s.service.Save(ctx, license))
		s.Nil(license.Domain)
	})

	s.Run("validation failures carry the rejected fields", func() {
		license := &models.License{
			Key:       testKey("u"),
			EditionID: 1,
			Email:     "not-an-email",
		}
		err := s.service.Save(ctx, license)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		fields := dErrors.FieldsOf(err)
		s.Require().Len(fields, 1)
		s.Equal("email", fields[0].Field)
	})

	s.Run("skip validation persists a trusted payload unchecked", func() {
		license := &models.License{
			Key:       testKey("w"),
			EditionID: 1,
			Email:     "not-an-email",
		}
		s.Require().NoError(s.service.Save(ctx, license, SkipValidation()))
		s.False(license.ID.IsZero())
	})

	s.Run("duplicate key is a conflict", func() {
		key := testKey("v")
		s.seedLicense(key, nil, "carol@example.com")

		err := s.service.Save(ctx, &models.License{
			Key:       key,
			EditionID: 1,
			Email:     "carol@example.com",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("validated update that hits no row is an internal failure", func() {
		err := s.service.Save(ctx, &models.License{
			ID:        99999,
			Key:       testKey("y"),
			EditionID: 1,
			Email:     "carol@example.com",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *LicenseServiceSuite) TestDelete() {
	ctx := context.Background()

	s.Run("removes the license by raw key", func() {
		key := testKey("w")
		s.seedLicense(key, nil, "carol@example.com")

		s.Require().NoError(s.service.Delete(ctx, "  "+key+"\n"))
		_, err := s.licenses.FindByKey(ctx, key)
		s.Error(err)
	})

	s.Run("missing key is not found", func() {
		err := s.service.Delete(ctx, testKey("x"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed key is not found", func() {
		err := s.service.Delete(ctx, "too-short")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Projection Tests
// =============================================================================

func (s *LicenseServiceSuite) TestTransformForOwner() {
	ctx := context.Background()
	owner := id.AccountID(1)

	s.Run("owner sees the full record with history", func() {
		key := testKey("a")
		license := s.seedLicense(key, &owner, "alice@example.com")
		s.Require().NoError(s.history.Append(ctx, models.HistoryEntry{
			LicenseID: license.ID,
			Note:      "claimed by alice@example.com",
			Timestamp: time.Now(),
		}))

		view, err := s.service.TransformForOwner(ctx, license, owner)
		s.Require().NoError(err)
		s.Equal(key, view.Key)
		s.Empty(view.ShortKey)
		s.Equal("alice@example.com", view.Email)
		s.Require().Len(view.History, 1)
	})

	s.Run("other viewers see only the short key", func() {
		key := testKey("b")
		license := s.seedLicense(key, &owner, "alice@example.com")

		view, err := s.service.TransformForOwner(ctx, license, 2)
		s.Require().NoError(err)
		s.Empty(view.Key)
		s.Equal(key[:10], view.ShortKey)
		s.Empty(view.Email)
		s.Empty(view.History)
	})

	s.Run("plugin licenses are redacted independently", func() {
		key := testKey("c")
		license := s.seedLicense(key, &owner, "alice@example.com")
		other := id.AccountID(2)
		s.plugins.Add(&plugins.PluginLicense{
			ID: 11, Key: "PLUGINKEY-OWNED", OwnerID: &owner,
			PluginID: 5, PluginName: "Mailer", LicenseID: license.ID,
		})
		s.plugins.Add(&plugins.PluginLicense{
			ID: 12, Key: "PLUGINKEY-OTHER", OwnerID: &other,
			PluginID: 6, PluginName: "Backups", LicenseID: license.ID,
		})

		view, err := s.service.TransformForOwner(ctx, license, owner)
		s.Require().NoError(err)
		s.Require().Len(view.PluginLicenses, 2)
		s.Equal("PLUGINKEY-OWNED", view.PluginLicenses[0].Key)
		s.Empty(view.PluginLicenses[0].ShortKey)
		s.Empty(view.PluginLicenses[1].Key)
		s.Equal("PLUGINKEY-", view.PluginLicenses[1].ShortKey)
		s.Equal("Backups", view.PluginLicenses[1].Plugin.Name)
	})
}

// =============================================================================
// Test Doubles
// =============================================================================

const uuidZero = "00000000-0000-0000-0000-000000000000"

type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *eventRecorder) Publish(_ context.Context, event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ofType(eventType models.EventType) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type cacheRecorder struct {
	mu     sync.Mutex
	keys   []string
	owners []id.AccountID
}

func (r *cacheRecorder) InvalidateLicense(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

func (r *cacheRecorder) InvalidateOwner(_ context.Context, ownerID id.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = append(r.owners, ownerID)
	return nil
}

func (r *cacheRecorder) ownerIDs() []id.AccountID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]id.AccountID(nil), r.owners...)
}
