package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"licensenet/internal/accounts"
	"licensenet/internal/catalog"
	"licensenet/internal/license/models"
	"licensenet/internal/license/normalize"
	"licensenet/internal/license/service"
	historyStore "licensenet/internal/license/store/history"
	licenseStore "licensenet/internal/license/store/license"
	stagedStore "licensenet/internal/license/store/staged"
	"licensenet/internal/platform/middleware"
	"licensenet/internal/plugins"
	id "licensenet/pkg/domain"
	"licensenet/pkg/testutil"
)

const signingKey = "handler-test-signing-key"

type fixture struct {
	router   http.Handler
	licenses *licenseStore.InMemory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	licenses := licenseStore.NewInMemory()
	staged := stagedStore.NewInMemory()
	history := historyStore.NewInMemory()
	accountStore := accounts.NewInMemory()
	editions := catalog.NewInMemory()
	pluginLicenses := plugins.NewInMemory()

	editions.Add(&catalog.Edition{ID: 1, Handle: catalog.BaseEditionHandle, Name: "Solo"})
	accountStore.Add(&accounts.Account{ID: 1, Email: "alice@example.com", Username: "alice"})
	accountStore.Add(&accounts.Account{ID: 2, Email: "bob@example.com", Username: "bob"})

	svc := service.New(
		licenses, staged, history, accountStore, editions, pluginLicenses,
		service.PassthroughTx{}, normalize.NewDomain(normalize.DomainConfig{}),
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, logger, middleware.NewHMACValidator(signingKey))
	r := chi.NewRouter()
	h.Register(r)
	return &fixture{router: r, licenses: licenses}
}

func bearerToken(t *testing.T, accountID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   accountID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func testKey(seed string) string {
	return strings.Repeat(seed, 250)[:250]
}

func (f *fixture) seedLicense(t *testing.T, key string, owner *id.AccountID, email string) {
	t.Helper()
	err := f.licenses.Create(t.Context(), &models.License{
		Key:           key,
		EditionID:     1,
		EditionHandle: catalog.BaseEditionHandle,
		OwnerID:       owner,
		Email:         email,
		DateCreated:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed license: %v", err)
	}
}

func (f *fixture) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/licenses", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/licenses", "Bearer not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestClaimViaHandler(t *testing.T) {
	f := newFixture(t)
	key := testKey("a")

	testutil.Given(t, "an unclaimed license", func(t *testing.T) {
		f.seedLicense(t, key, nil, "purchase@example.com")

		testutil.When(t, "an account claims it", func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/licenses/claim", bearerToken(t, "1"), keyRequest{Key: key})
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 claiming license, got %d: %s", rec.Code, rec.Body.String())
			}

			testutil.Then(t, "the claimer sees the full key and the adopted email", func(t *testing.T) {
				var resp struct {
					License struct {
						Key   string `json:"key"`
						Email string `json:"email"`
					} `json:"license"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode claim response: %v", err)
				}
				if resp.License.Key != key {
					t.Fatalf("expected full key for the new owner, got %q", resp.License.Key)
				}
				if resp.License.Email != "alice@example.com" {
					t.Fatalf("expected license to adopt claimer email, got %q", resp.License.Email)
				}
			})

			testutil.Then(t, "a second claim by another account conflicts", func(t *testing.T) {
				rec := f.do(t, http.MethodPost, "/licenses/claim", bearerToken(t, "2"), keyRequest{Key: key})
				if rec.Code != http.StatusConflict {
					t.Fatalf("expected 409 on second claim, got %d", rec.Code)
				}
			})
		})
	})
}

func TestLookupRedactsForNonOwners(t *testing.T) {
	f := newFixture(t)
	key := testKey("b")
	owner := id.AccountID(1)
	f.seedLicense(t, key, &owner, "alice@example.com")

	rec := f.do(t, http.MethodPost, "/licenses/lookup", bearerToken(t, "2"), keyRequest{Key: key})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on lookup, got %d", rec.Code)
	}

	var resp struct {
		License struct {
			Key      string `json:"key"`
			ShortKey string `json:"shortKey"`
		} `json:"license"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode lookup response: %v", err)
	}
	if resp.License.Key != "" {
		t.Fatalf("expected no full key for non-owner, got %q", resp.License.Key)
	}
	if resp.License.ShortKey != key[:10] {
		t.Fatalf("expected short key %q, got %q", key[:10], resp.License.ShortKey)
	}
}

func TestClaimByEmailViaHandler(t *testing.T) {
	f := newFixture(t)
	f.seedLicense(t, testKey("c"), nil, "bob@example.com")
	f.seedLicense(t, testKey("d"), nil, "BOB@example.com")

	rec := f.do(t, http.MethodPost, "/licenses/claim-by-email", bearerToken(t, "2"),
		map[string]string{"email": "bob@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on bulk claim, got %d", rec.Code)
	}

	var resp struct {
		Claimed int64 `json:"claimed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode bulk claim response: %v", err)
	}
	if resp.Claimed != 2 {
		t.Fatalf("expected 2 licenses claimed, got %d", resp.Claimed)
	}

	rec = f.do(t, http.MethodGet, "/licenses", bearerToken(t, "2"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing own licenses, got %d", rec.Code)
	}
	var listing struct {
		Licenses []json.RawMessage `json:"licenses"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if len(listing.Licenses) != 2 {
		t.Fatalf("expected 2 licenses in overview, got %d", len(listing.Licenses))
	}
}

func TestClaimByEmailDefaultsToOwnAddress(t *testing.T) {
	f := newFixture(t)
	f.seedLicense(t, testKey("f"), nil, "bob@example.com")

	rec := f.do(t, http.MethodPost, "/licenses/claim-by-email", bearerToken(t, "2"),
		map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on bulk claim without an email, got %d", rec.Code)
	}

	var resp struct {
		Claimed int64 `json:"claimed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode bulk claim response: %v", err)
	}
	if resp.Claimed != 1 {
		t.Fatalf("expected the account's own address to be claimed, got %d", resp.Claimed)
	}
}

func TestDeleteViaHandler(t *testing.T) {
	f := newFixture(t)
	key := testKey("e")
	f.seedLicense(t, key, nil, "purchase@example.com")

	rec := f.do(t, http.MethodPost, "/licenses/delete", bearerToken(t, "1"), keyRequest{Key: key})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting license, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/licenses/delete", bearerToken(t, "1"), keyRequest{Key: key})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", rec.Code)
	}
}

func TestMalformedKeyIsNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/licenses/lookup", bearerToken(t, "1"), keyRequest{Key: "nope"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed key, got %d", rec.Code)
	}
}
