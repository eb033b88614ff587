// Package handler exposes the license registry over HTTP. Every route is
// authenticated; the account from the bearer token is the viewer for all
// redaction decisions.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"licensenet/internal/license/models"
	"licensenet/internal/platform/middleware"
	"licensenet/internal/transport/http/shared"
	id "licensenet/pkg/domain"
	dErrors "licensenet/pkg/domain-errors"
	"licensenet/pkg/requestcontext"
)

// Service defines the license operations the transport needs.
type Service interface {
	GetByKey(ctx context.Context, rawKey string) (*models.License, error)
	GetByOwner(ctx context.Context, ownerID id.AccountID) ([]*models.License, error)
	GetByOrder(ctx context.Context, orderID id.OrderID) ([]*models.License, error)
	Claim(ctx context.Context, accountID id.AccountID, rawKey string) (*models.License, error)
	ClaimAllByEmail(ctx context.Context, accountID id.AccountID, email string) (int64, error)
	Delete(ctx context.Context, rawKey string) error
	TransformForOwner(ctx context.Context, license *models.License, viewerID id.AccountID) (*models.LicenseView, error)
}

// Handler handles license endpoints.
type Handler struct {
	licenses  Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

// New creates a license Handler.
func New(licenses Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{licenses: licenses, logger: logger, validator: validator}
}

// Register registers the license routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	licenseRouter := chi.NewRouter()
	licenseRouter.Use(middleware.Recovery(h.logger))
	licenseRouter.Use(middleware.RequestID)
	licenseRouter.Use(middleware.Logger(h.logger))
	licenseRouter.Use(middleware.Timeout(30 * time.Second))
	licenseRouter.Use(middleware.RequireAuth(h.validator, h.logger))

	licenseRouter.Get("/licenses", h.handleListOwn)
	licenseRouter.Post("/licenses/lookup", h.handleLookup)
	licenseRouter.Post("/licenses/claim", h.handleClaim)
	licenseRouter.Post("/licenses/claim-by-email", h.handleClaimByEmail)
	licenseRouter.Post("/licenses/delete", h.handleDelete)
	licenseRouter.Get("/orders/{orderID}/licenses", h.handleListByOrder)

	r.Mount("/", licenseRouter)
}

type keyRequest struct {
	Key string `json:"key"`
}

// handleListOwn returns the authenticated account's licenses, fully visible
// since the viewer owns them all.
func (h *Handler) handleListOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := requestcontext.AccountID(ctx)

	licenses, err := h.licenses.GetByOwner(ctx, viewer)
	if err != nil {
		h.logError(ctx, "failed to list licenses", err)
		shared.WriteError(w, err)
		return
	}
	views, err := h.transformAll(ctx, licenses, viewer)
	if err != nil {
		h.logError(ctx, "failed to project licenses", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"licenses": views})
}

// handleLookup resolves a raw key, migrating a staged license if needed, and
// returns the view redacted for the caller.
func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := requestcontext.AccountID(ctx)

	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	license, err := h.licenses.GetByKey(ctx, req.Key)
	if err != nil {
		h.logError(ctx, "failed to look up license", err)
		shared.WriteError(w, err)
		return
	}
	view, err := h.licenses.TransformForOwner(ctx, license, viewer)
	if err != nil {
		h.logError(ctx, "failed to project license", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"license": view})
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := requestcontext.AccountID(ctx)

	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	license, err := h.licenses.Claim(ctx, viewer, req.Key)
	if err != nil {
		h.logError(ctx, "failed to claim license", err)
		shared.WriteError(w, err)
		return
	}
	view, err := h.licenses.TransformForOwner(ctx, license, viewer)
	if err != nil {
		h.logError(ctx, "failed to project license", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"license": view})
}

func (h *Handler) handleClaimByEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := requestcontext.AccountID(ctx)

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	claimed, err := h.licenses.ClaimAllByEmail(ctx, viewer, req.Email)
	if err != nil {
		h.logError(ctx, "failed to bulk claim licenses", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"claimed": claimed})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.licenses.Delete(ctx, req.Key); err != nil {
		h.logError(ctx, "failed to delete license", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListByOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := requestcontext.AccountID(ctx)

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid order id"))
		return
	}

	licenses, err := h.licenses.GetByOrder(ctx, id.OrderID(orderID))
	if err != nil {
		h.logError(ctx, "failed to list licenses by order", err)
		shared.WriteError(w, err)
		return
	}
	views, err := h.transformAll(ctx, licenses, viewer)
	if err != nil {
		h.logError(ctx, "failed to project licenses", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"licenses": views})
}

func (h *Handler) transformAll(ctx context.Context, licenses []*models.License, viewer id.AccountID) ([]*models.LicenseView, error) {
	views := make([]*models.LicenseView, 0, len(licenses))
	for _, license := range licenses {
		view, err := h.licenses.TransformForOwner(ctx, license, viewer)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(ctx),
	)
}
