package catalog

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/shelfd/shelfd/pkg/catalog/models"
)

func (s *GORMStore) CreateBucket(ctx context.Context, bucket *models.Bucket) error {
	_, err := createWithID(s.db, ctx, bucket,
		func(b *models.Bucket, id string) { b.ID = id }, bucket.ID, models.ErrBucketNotFound)
	return err
}

func (s *GORMStore) GetBucket(ctx context.Context, id string) (*models.Bucket, error) {
	var bucket models.Bucket
	err := s.db.WithContext(ctx).
		Preload("DefaultLocation").
		Where("id = ? AND deleted = ?", id, false).
		First(&bucket).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrBucketNotFound)
	}
	return &bucket, nil
}

func (s *GORMStore) UpdateBucketLimits(ctx context.Context, id string, quota, maxFileSize **int64, locked *bool) error {
	updates := map[string]any{}
	if quota != nil {
		updates["quota_size"] = *quota
	}
	if maxFileSize != nil {
		updates["max_file_size"] = *maxFileSize
	}
	if locked != nil {
		updates["locked"] = *locked
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Bucket{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrBucketNotFound
	}
	return nil
}

func (s *GORMStore) SoftDeleteBucket(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Bucket{}).
		Where("id = ?", id).
		Update("deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrBucketNotFound
	}
	return nil
}

// AddBucketSize serializes size changes per bucket with a single atomic
// UPDATE; the database's row lock orders concurrent uploads, and the CASE
// keeps the counter non-negative. Portable across SQLite and PostgreSQL.
func (s *GORMStore) AddBucketSize(ctx context.Context, id string, delta int64) error {
	result := s.db.WithContext(ctx).Exec(
		"UPDATE buckets SET size = CASE WHEN size + ? < 0 THEN 0 ELSE size + ? END, updated_at = ? WHERE id = ?",
		delta, delta, time.Now(), id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrBucketNotFound
	}
	return nil
}

func (s *GORMStore) SetBucketTag(ctx context.Context, bucketID, key, value string) error {
	tag := models.BucketTag{BucketID: bucketID, Key: key, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bucket_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&tag).Error
}

func (s *GORMStore) DeleteBucketTag(ctx context.Context, bucketID, key string) error {
	_, err := deleteByFields[models.BucketTag](s.db, ctx, map[string]any{
		"bucket_id": bucketID,
		"key":       key,
	})
	return err
}

func (s *GORMStore) GetBucketTags(ctx context.Context, bucketID string) ([]*models.BucketTag, error) {
	var tags []*models.BucketTag
	if err := s.db.WithContext(ctx).
		Where("bucket_id = ?", bucketID).
		Order("key").
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}
