package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/storage"
)

// sizeLimitFor resolves the effective upload limit for a bucket: the
// smallest of the remaining quota, the bucket's per-file cap, and the global
// cap. Nil means unlimited.
func (s *Service) sizeLimitFor(bucket *models.Bucket) *storage.FileSizeLimit {
	var limits []*storage.FileSizeLimit

	if remaining := bucket.QuotaRemaining(); remaining != nil {
		limits = append(limits, &storage.FileSizeLimit{
			Limit:  *remaining,
			Reason: "bucket quota exceeded",
		})
	}
	if bucket.MaxFileSize != nil {
		limits = append(limits, &storage.FileSizeLimit{
			Limit:  *bucket.MaxFileSize,
			Reason: "maximum file size exceeded",
		})
	}
	if s.cfg.MaxFileSize > 0 {
		limits = append(limits, &storage.FileSizeLimit{
			Limit:  s.cfg.MaxFileSize,
			Reason: "maximum file size exceeded",
		})
	}

	return storage.MinLimit(limits...)
}

// validateKey applies the configured object key length bound.
func (s *Service) validateKey(key string) error {
	if key == "" || len(key) > s.cfg.ObjectKeyMaxLen {
		return models.ErrInvalidKey
	}
	return nil
}

// checkWritable rejects writes into locked buckets.
func checkWritable(bucket *models.Bucket) error {
	if bucket.Locked {
		return models.ErrBucketLocked
	}
	return nil
}

// PutObject streams a new object version into a bucket.
//
// The blob is written first: a fresh file instance is allocated in the
// bucket's location, the body streams through the checksum reader into the
// backend, and only after the save succeeded is the version row committed
// and the bucket size bumped. A failed save leaves no partial blob (backend
// contract) and no catalog rows.
func (s *Service) PutObject(ctx context.Context, bucket *models.Bucket, key string, body io.Reader, contentLength int64, contentMD5, mimetype string) (*models.ObjectVersion, error) {
	if err := checkWritable(bucket); err != nil {
		return nil, err
	}
	if err := s.validateKey(key); err != nil {
		return nil, err
	}
	if contentLength < s.cfg.MinFileSize {
		return nil, &storage.FileSizeError{Limit: storage.FileSizeLimit{
			Limit:  s.cfg.MinFileSize,
			Reason: "file smaller than minimum file size",
		}}
	}

	// Content-Length is client-controlled; this is the cheap up-front check.
	// The checksum reader re-enforces the limit on the actual bytes.
	sizeLimit := s.sizeLimitFor(bucket)
	if sizeLimit != nil && contentLength > sizeLimit.Limit {
		return nil, &storage.FileSizeError{Limit: *sizeLimit}
	}

	file := &models.FileInstance{StorageClass: bucket.DefaultStorageClass}
	if err := s.store.CreateFile(ctx, file); err != nil {
		return nil, err
	}

	backend, err := s.factory.Initialize(ctx, file, 0, bucket.DefaultLocation)
	if err != nil {
		_ = s.store.DeleteFile(ctx, file.ID, false)
		return nil, err
	}

	info, err := backend.Save(ctx, body, storage.SaveOptions{
		SizeLimit: sizeLimit,
		Size:      contentLength,
	})
	if err != nil {
		// The backend removed the partial blob; drop the file row too.
		_ = s.store.DeleteFile(ctx, file.ID, false)
		return nil, err
	}

	if contentMD5 != "" {
		_, digest := storage.SplitChecksum(info.Checksum)
		if !strings.EqualFold(contentMD5, digest) {
			_ = backend.Delete(ctx)
			_ = s.store.DeleteFile(ctx, file.ID, false)
			return nil, ErrChecksumMismatch
		}
	}

	file.URI = &info.URI
	file.Size = info.Size
	file.Checksum = info.Checksum
	file.Readable = info.Readable
	file.Writable = info.Writable
	if err := s.store.UpdateFile(ctx, file); err != nil {
		_ = backend.Delete(ctx)
		_ = s.store.DeleteFile(ctx, file.ID, false)
		return nil, err
	}

	version, err := s.store.CreateVersion(ctx, bucket.ID, key, &file.ID, mimetype)
	if err != nil {
		s.schedule("remove-file-data", func(ctx context.Context) error {
			return s.RemoveFileData(ctx, file.ID, true)
		})
		return nil, err
	}
	version.File = file

	if err := s.store.AddBucketSize(ctx, bucket.ID, info.Size); err != nil {
		return nil, err
	}

	s.metrics.RecordUpload(info.Size)
	logger.Info("object uploaded",
		"bucket", bucket.ID, "key", key, "version", version.VersionID, "size", info.Size)
	return version, nil
}

// GetObject resolves a version for reading. An empty versionID resolves the
// head; a head that is a delete marker reads as not found.
func (s *Service) GetObject(ctx context.Context, bucketID, key, versionID string) (*models.ObjectVersion, error) {
	return s.store.GetObject(ctx, bucketID, key, versionID, false)
}

// OpenObject returns the version's backend reader for streaming downloads.
func (s *Service) OpenObject(ctx context.Context, version *models.ObjectVersion) (io.ReadCloser, error) {
	if version.IsDeleteMarker() || version.File == nil {
		return nil, models.ErrObjectNotFound
	}
	backend, err := s.factory.ForFile(version.File)
	if err != nil {
		return nil, err
	}
	return backend.Open(ctx)
}

// ListObjects lists a bucket's versions (heads only unless versions is set).
func (s *Service) ListObjects(ctx context.Context, bucketID string, versions bool, limit int) ([]*models.ObjectVersion, error) {
	return s.store.ListObjects(ctx, bucketID, versions, limit)
}

// DeleteObject creates a delete marker as the new head for (bucket, key).
// When the key has no live head it creates nothing and returns
// models.ErrObjectNotFound.
func (s *Service) DeleteObject(ctx context.Context, bucket *models.Bucket, key string) (*models.ObjectVersion, error) {
	if err := checkWritable(bucket); err != nil {
		return nil, err
	}

	if _, err := s.store.GetObject(ctx, bucket.ID, key, "", false); err != nil {
		return nil, err
	}

	marker, err := s.store.CreateVersion(ctx, bucket.ID, key, nil, "")
	if err != nil {
		return nil, err
	}
	logger.Info("delete marker created", "bucket", bucket.ID, "key", key, "version", marker.VersionID)
	return marker, nil
}

// DeleteVersion permanently removes one version and schedules blob cleanup
// when the removed version held the last reference to its file.
func (s *Service) DeleteVersion(ctx context.Context, bucket *models.Bucket, key, versionID string) error {
	if err := checkWritable(bucket); err != nil {
		return err
	}

	removed, err := s.store.RemoveVersion(ctx, bucket.ID, key, versionID)
	if err != nil {
		return err
	}

	if removed.FileID != nil {
		fileID := *removed.FileID

		file, err := s.store.GetFile(ctx, fileID)
		if err == nil {
			if err := s.store.AddBucketSize(ctx, bucket.ID, -file.Size); err != nil {
				return err
			}
		}

		s.schedule("remove-file-data", func(ctx context.Context) error {
			return s.RemoveFileData(ctx, fileID, true)
		})
	}

	logger.Info("object version removed", "bucket", bucket.ID, "key", key, "version", versionID)
	return nil
}

// CopyVersion creates a metadata-only copy of a version under a new key
// and/or bucket. The blob is shared; only the catalog rows change. Copying a
// delete marker is invalid.
func (s *Service) CopyVersion(ctx context.Context, src *models.ObjectVersion, dstBucket *models.Bucket, dstKey string) (*models.ObjectVersion, error) {
	if src.IsDeleteMarker() {
		return nil, fmt.Errorf("%w: cannot copy a delete marker", models.ErrInvalidOperation)
	}
	if err := checkWritable(dstBucket); err != nil {
		return nil, err
	}
	if dstKey == "" {
		dstKey = src.Key
	}
	if err := s.validateKey(dstKey); err != nil {
		return nil, err
	}

	if src.File != nil {
		if limit := s.sizeLimitFor(dstBucket); limit != nil && src.File.Size > limit.Limit {
			return nil, &storage.FileSizeError{Limit: *limit}
		}
	}

	version, err := s.store.CreateVersion(ctx, dstBucket.ID, dstKey, src.FileID, src.Mimetype)
	if err != nil {
		return nil, err
	}
	version.File = src.File

	if src.File != nil {
		if err := s.store.AddBucketSize(ctx, dstBucket.ID, src.File.Size); err != nil {
			return nil, err
		}
	}
	return version, nil
}

// NotifyDownloaded emits the download event for a served version.
func (s *Service) NotifyDownloaded(version *models.ObjectVersion) {
	var size int64
	if version.File != nil {
		size = version.File.Size
	}
	s.metrics.RecordDownload(size)
	logger.Debug("object downloaded",
		"bucket", version.BucketID, "key", version.Key, "version", version.VersionID)
}

// SetVersionTag upserts a tag on an object version.
func (s *Service) SetVersionTag(ctx context.Context, version *models.ObjectVersion, key, value string) error {
	return s.store.SetVersionTag(ctx, version.VersionID, key, value)
}

// DeleteVersionTag removes a tag from an object version.
func (s *Service) DeleteVersionTag(ctx context.Context, version *models.ObjectVersion, key string) error {
	return s.store.DeleteVersionTag(ctx, version.VersionID, key)
}

// IsNotFound reports whether err maps to a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrBucketNotFound) ||
		errors.Is(err, models.ErrObjectNotFound) ||
		errors.Is(err, models.ErrMultipartNotFound) ||
		errors.Is(err, models.ErrLocationNotFound) ||
		errors.Is(err, models.ErrFileNotFound)
}
