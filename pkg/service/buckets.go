package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/catalog/models"
)

// CreateBucket creates a bucket in the named location (default location when
// empty) with the given storage class (default class when empty) and the
// configured default quota and file-size limits.
func (s *Service) CreateBucket(ctx context.Context, locationName, storageClass string) (*models.Bucket, error) {
	var (
		location *models.Location
		err      error
	)
	if locationName != "" {
		location, err = s.store.GetLocation(ctx, locationName)
	} else {
		location, err = s.store.GetDefaultLocation(ctx)
	}
	if err != nil {
		return nil, err
	}

	if storageClass == "" {
		storageClass = s.cfg.DefaultClass
	}
	if _, ok := s.cfg.ClassList[storageClass]; !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStorageClass, storageClass)
	}

	bucket := &models.Bucket{
		DefaultLocationID:   location.ID,
		DefaultStorageClass: storageClass,
	}
	if s.cfg.DefaultQuotaSize > 0 {
		quota := s.cfg.DefaultQuotaSize
		bucket.QuotaSize = &quota
	}
	if s.cfg.DefaultMaxFileSize > 0 {
		max := s.cfg.DefaultMaxFileSize
		bucket.MaxFileSize = &max
	}

	if err := s.store.CreateBucket(ctx, bucket); err != nil {
		return nil, err
	}
	bucket.DefaultLocation = location

	logger.Info("bucket created", "bucket", bucket.ID, "location", location.Name)
	return bucket, nil
}

// GetBucket resolves a non-deleted bucket.
func (s *Service) GetBucket(ctx context.Context, id string) (*models.Bucket, error) {
	return s.store.GetBucket(ctx, id)
}

// UpdateBucket updates quota, per-file limit, and lock state. Nil pointers
// leave fields untouched; a pointer to nil clears a nullable limit.
func (s *Service) UpdateBucket(ctx context.Context, id string, quota, maxFileSize **int64, locked *bool) (*models.Bucket, error) {
	bucket, err := s.store.GetBucket(ctx, id)
	if err != nil {
		return nil, err
	}
	// A locked bucket accepts only the unlock itself.
	if bucket.Locked && (locked == nil || *locked) {
		return nil, models.ErrBucketLocked
	}
	if err := s.store.UpdateBucketLimits(ctx, id, quota, maxFileSize, locked); err != nil {
		return nil, err
	}
	return s.store.GetBucket(ctx, id)
}

// DeleteBucket soft-deletes a bucket. Blobs and versions stay behind for the
// maintenance sweeps.
func (s *Service) DeleteBucket(ctx context.Context, id string) error {
	bucket, err := s.store.GetBucket(ctx, id)
	if err != nil {
		return err
	}
	if bucket.Locked {
		return models.ErrBucketLocked
	}
	if err := s.store.SoftDeleteBucket(ctx, id); err != nil {
		return err
	}
	logger.Info("bucket deleted", "bucket", id)
	return nil
}

// SnapshotBucket creates a new bucket with the source's location, class and
// quota, and copies every live head version into it. Copies are metadata
// only; blobs are shared between source and snapshot. The snapshot is
// created locked when lock is set.
func (s *Service) SnapshotBucket(ctx context.Context, sourceID string, lock bool) (*models.Bucket, error) {
	source, err := s.store.GetBucket(ctx, sourceID)
	if err != nil {
		if errors.Is(err, models.ErrBucketNotFound) {
			return nil, fmt.Errorf("%w: cannot snapshot a deleted bucket", models.ErrInvalidOperation)
		}
		return nil, err
	}

	snapshot := &models.Bucket{
		DefaultLocationID:   source.DefaultLocationID,
		DefaultStorageClass: source.DefaultStorageClass,
		QuotaSize:           source.QuotaSize,
		MaxFileSize:         source.MaxFileSize,
	}
	if err := s.store.CreateBucket(ctx, snapshot); err != nil {
		return nil, err
	}

	heads, err := s.store.ListObjects(ctx, sourceID, false, 0)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, head := range heads {
		if _, err := s.store.CreateVersion(ctx, snapshot.ID, head.Key, head.FileID, head.Mimetype); err != nil {
			return nil, err
		}
		if head.File != nil {
			total += head.File.Size
		}
	}
	if total > 0 {
		if err := s.store.AddBucketSize(ctx, snapshot.ID, total); err != nil {
			return nil, err
		}
	}

	if lock {
		locked := true
		if err := s.store.UpdateBucketLimits(ctx, snapshot.ID, nil, nil, &locked); err != nil {
			return nil, err
		}
	}

	logger.Info("bucket snapshot created",
		"source", sourceID, "snapshot", snapshot.ID, "objects", len(heads))
	return s.store.GetBucket(ctx, snapshot.ID)
}

// SetBucketTag upserts a tag on a bucket.
func (s *Service) SetBucketTag(ctx context.Context, bucketID, key, value string) error {
	if _, err := s.store.GetBucket(ctx, bucketID); err != nil {
		return err
	}
	return s.store.SetBucketTag(ctx, bucketID, key, value)
}

// DeleteBucketTag removes a tag from a bucket.
func (s *Service) DeleteBucketTag(ctx context.Context, bucketID, key string) error {
	return s.store.DeleteBucketTag(ctx, bucketID, key)
}
