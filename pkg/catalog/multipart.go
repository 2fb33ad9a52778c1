package catalog

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/shelfd/shelfd/pkg/catalog/models"
)

func (s *GORMStore) CreateMultipart(ctx context.Context, m *models.MultipartUpload) error {
	_, err := createWithID(s.db, ctx, m,
		func(u *models.MultipartUpload, id string) { u.UploadID = id }, m.UploadID, models.ErrMultipartNotFound)
	return err
}

func (s *GORMStore) GetMultipart(ctx context.Context, bucketID, key, uploadID string, withCompleted bool) (*models.MultipartUpload, error) {
	q := s.db.WithContext(ctx).
		Preload("File").
		Where("upload_id = ? AND bucket_id = ? AND key = ?", uploadID, bucketID, key)
	if !withCompleted {
		q = q.Where("completed = ?", false)
	}

	var m models.MultipartUpload
	if err := q.First(&m).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrMultipartNotFound)
	}
	return &m, nil
}

func (s *GORMStore) GetMultipartByID(ctx context.Context, uploadID string, withCompleted bool) (*models.MultipartUpload, error) {
	q := s.db.WithContext(ctx).
		Preload("File").
		Where("upload_id = ?", uploadID)
	if !withCompleted {
		q = q.Where("completed = ?", false)
	}

	var m models.MultipartUpload
	if err := q.First(&m).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrMultipartNotFound)
	}
	return &m, nil
}

func (s *GORMStore) ListMultipartsByBucket(ctx context.Context, bucketID string, limit int) ([]*models.MultipartUpload, error) {
	q := s.db.WithContext(ctx).
		Where("bucket_id = ? AND completed = ?", bucketID, false)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var uploads []*models.MultipartUpload
	if err := q.Order("created_at").Find(&uploads).Error; err != nil {
		return nil, err
	}
	return uploads, nil
}

// ReplacePart deletes any previous row for the part number before inserting.
// A retried part must not merge with partial data from the failed attempt.
func (s *GORMStore) ReplacePart(ctx context.Context, part *models.Part) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("upload_id = ? AND part_number = ?", part.UploadID, part.PartNumber).
			Delete(&models.Part{}).Error; err != nil {
			return err
		}
		if err := tx.Create(part).Error; err != nil {
			return err
		}
		return tx.Model(&models.MultipartUpload{}).
			Where("upload_id = ?", part.UploadID).
			Update("updated_at", time.Now()).Error
	})
}

func (s *GORMStore) DeletePart(ctx context.Context, uploadID string, partNumber int) error {
	_, err := deleteByFields[models.Part](s.db, ctx, map[string]any{
		"upload_id":   uploadID,
		"part_number": partNumber,
	})
	return err
}

func (s *GORMStore) ListParts(ctx context.Context, uploadID string, limit int) ([]*models.Part, error) {
	q := s.db.WithContext(ctx).Where("upload_id = ?", uploadID)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var parts []*models.Part
	if err := q.Order("part_number").Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}

func (s *GORMStore) CountParts(ctx context.Context, uploadID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Part{}).
		Where("upload_id = ?", uploadID).
		Count(&count).Error
	return count, err
}

func (s *GORMStore) CompleteMultipart(ctx context.Context, uploadID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.MultipartUpload{}).
		Where("upload_id = ? AND completed = ?", uploadID, false).
		Update("completed", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var m models.MultipartUpload
		err := s.db.WithContext(ctx).Where("upload_id = ?", uploadID).First(&m).Error
		if err != nil {
			return convertNotFoundError(err, models.ErrMultipartNotFound)
		}
		return models.ErrMultipartAlreadyCompleted
	}
	return nil
}

func (s *GORMStore) DeleteMultipart(ctx context.Context, uploadID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("upload_id = ?", uploadID).Delete(&models.Part{}).Error; err != nil {
			return err
		}
		result := tx.Where("upload_id = ?", uploadID).Delete(&models.MultipartUpload{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrMultipartNotFound
		}
		return nil
	})
}

func (s *GORMStore) ListExpiredMultiparts(ctx context.Context, before time.Time) ([]*models.MultipartUpload, error) {
	var uploads []*models.MultipartUpload
	err := s.db.WithContext(ctx).
		Where("completed = ? AND updated_at < ?", false, before).
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}
	return uploads, nil
}
