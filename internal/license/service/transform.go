package service

import (
	"context"

	"licensenet/internal/license/models"
	id "licensenet/pkg/domain"
	dErrors "licensenet/pkg/domain-errors"
)

// TransformForOwner projects a license for a viewer. The viewer that owns
// the license sees the full record with its history; anyone else sees only
// the redacted key prefix. Nested plugin licenses carry their own owner and
// are redacted independently by the same check, so a viewer who owns the
// parent but not a sub-license still sees that sub-license redacted.
func (s *Service) TransformForOwner(ctx context.Context, license *models.License, viewerID id.AccountID) (*models.LicenseView, error) {
	owned := license.OwnerID != nil && *license.OwnerID == viewerID

	view := &models.LicenseView{
		History:        []models.HistoryEntry{},
		PluginLicenses: []models.PluginLicenseView{},
	}
	if owned {
		view.ID = license.ID
		view.Key = license.Key
		view.Edition = license.EditionHandle
		view.Domain = license.Domain
		view.Notes = license.Notes
		view.Email = license.Email
		created := license.DateCreated
		view.DateCreated = &created

		history, err := s.history.ListByLicense(ctx, license.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license history")
		}
		if len(history) > 0 {
			view.History = history
		}
	} else {
		view.ShortKey = license.ShortKey()
	}

	pluginLicenses, err := s.plugins.FindByLicense(ctx, license.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load plugin licenses")
	}
	for _, pl := range pluginLicenses {
		nested := models.PluginLicenseView{
			Plugin: &models.PluginInfo{Name: pl.PluginName},
		}
		if pl.OwnerID != nil && *pl.OwnerID == viewerID {
			nested.ID = pl.ID
			nested.Key = pl.Key
		} else {
			nested.ShortKey = pl.ShortKey()
		}
		view.PluginLicenses = append(view.PluginLicenses, nested)
	}

	return view, nil
}
