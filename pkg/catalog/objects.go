package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shelfd/shelfd/pkg/catalog/models"
)

// CreateVersion demotes the current head (if any) and inserts the new head in
// a single transaction. The partial unique index on (bucket_id, key) where
// is_head backs the invariant; a concurrent writer that loses the race gets a
// constraint error and the transaction is retried, up to three attempts.
func (s *GORMStore) CreateVersion(ctx context.Context, bucketID, key string, fileID *string, mimetype string) (*models.ObjectVersion, error) {
	version := &models.ObjectVersion{
		BucketID:  bucketID,
		Key:       key,
		VersionID: uuid.New().String(),
		FileID:    fileID,
		Mimetype:  mimetype,
		IsHead:    true,
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.ObjectVersion{}).
				Where("bucket_id = ? AND key = ? AND is_head = ?", bucketID, key, true).
				Update("is_head", false).Error; err != nil {
				return err
			}
			return tx.Create(version).Error
		})
		if err == nil || !isUniqueConstraintError(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (s *GORMStore) GetObject(ctx context.Context, bucketID, key, versionID string, withDeleteMarkers bool) (*models.ObjectVersion, error) {
	q := s.db.WithContext(ctx).
		Preload("File").
		Where("bucket_id = ? AND key = ?", bucketID, key)

	if versionID != "" {
		q = q.Where("version_id = ?", versionID)
	} else {
		q = q.Where("is_head = ?", true)
	}
	if !withDeleteMarkers {
		q = q.Where("file_id IS NOT NULL")
	}

	var version models.ObjectVersion
	if err := q.First(&version).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrObjectNotFound)
	}
	return &version, nil
}

func (s *GORMStore) ListObjects(ctx context.Context, bucketID string, versions bool, limit int) ([]*models.ObjectVersion, error) {
	q := s.db.WithContext(ctx).
		Preload("File").
		Where("bucket_id = ? AND file_id IS NOT NULL", bucketID)

	if !versions {
		q = q.Where("is_head = ?", true)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var objs []*models.ObjectVersion
	if err := q.Order("key").Order("created_at DESC").Find(&objs).Error; err != nil {
		return nil, err
	}
	return objs, nil
}

func (s *GORMStore) RemoveVersion(ctx context.Context, bucketID, key, versionID string) (*models.ObjectVersion, error) {
	var removed models.ObjectVersion

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bucket_id = ? AND key = ? AND version_id = ?", bucketID, key, versionID).
			First(&removed).Error; err != nil {
			return convertNotFoundError(err, models.ErrObjectNotFound)
		}

		if err := tx.Where("version_id = ?", versionID).
			Delete(&models.ObjectVersionTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bucket_id = ? AND key = ? AND version_id = ?", bucketID, key, versionID).
			Delete(&models.ObjectVersion{}).Error; err != nil {
			return err
		}

		// Removing the head promotes the most recent remaining version so
		// the key keeps exactly one head (or disappears entirely).
		if removed.IsHead {
			var next models.ObjectVersion
			err := tx.Where("bucket_id = ? AND key = ?", bucketID, key).
				Order("created_at DESC").
				First(&next).Error
			if err == nil {
				return tx.Model(&next).Update("is_head", true).Error
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

func (s *GORMStore) RelinkAll(ctx context.Context, oldFileID, newFileID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.ObjectVersion{}).
		Where("file_id = ?", oldFileID).
		Update("file_id", newFileID)
	return result.RowsAffected, result.Error
}

func (s *GORMStore) CountVersionsByFile(ctx context.Context, fileID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ObjectVersion{}).
		Where("file_id = ?", fileID).
		Count(&count).Error
	return count, err
}

func (s *GORMStore) SetVersionTag(ctx context.Context, versionID, key, value string) error {
	tag := models.ObjectVersionTag{VersionID: versionID, Key: key, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "version_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&tag).Error
}

func (s *GORMStore) DeleteVersionTag(ctx context.Context, versionID, key string) error {
	_, err := deleteByFields[models.ObjectVersionTag](s.db, ctx, map[string]any{
		"version_id": versionID,
		"key":        key,
	})
	return err
}

func (s *GORMStore) GetVersionTags(ctx context.Context, versionID string) ([]*models.ObjectVersionTag, error) {
	var tags []*models.ObjectVersionTag
	if err := s.db.WithContext(ctx).
		Where("version_id = ?", versionID).
		Order("key").
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}
