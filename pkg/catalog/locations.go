package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/shelfd/shelfd/pkg/catalog/models"
)

func (s *GORMStore) GetLocation(ctx context.Context, name string) (*models.Location, error) {
	return getByField[models.Location](s.db, ctx, "name", name, models.ErrLocationNotFound)
}

func (s *GORMStore) GetDefaultLocation(ctx context.Context) (*models.Location, error) {
	var loc models.Location
	err := s.db.WithContext(ctx).
		Where(`"default" = ?`, true).
		Order("created_at").
		First(&loc).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrNoDefaultLocation)
	}
	return &loc, nil
}

func (s *GORMStore) ListLocations(ctx context.Context) ([]*models.Location, error) {
	var locs []*models.Location
	if err := s.db.WithContext(ctx).Order("name").Find(&locs).Error; err != nil {
		return nil, err
	}
	return locs, nil
}

func (s *GORMStore) CreateLocation(ctx context.Context, loc *models.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if loc.Default {
			if err := tx.Model(&models.Location{}).
				Where(`"default" = ?`, true).
				Update("default", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(loc).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.ErrDuplicateLocation
			}
			return err
		}
		return nil
	})
}

func (s *GORMStore) SetDefaultLocation(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loc models.Location
		if err := tx.Where("name = ?", name).First(&loc).Error; err != nil {
			return convertNotFoundError(err, models.ErrLocationNotFound)
		}
		if err := tx.Model(&models.Location{}).
			Where(`"default" = ?`, true).
			Update("default", false).Error; err != nil {
			return err
		}
		return tx.Model(&loc).Update("default", true).Error
	})
}
