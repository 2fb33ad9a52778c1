package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/storage"
)

// VerifyChecksum re-reads a blob and compares the digest against the stored
// checksum, recording the outcome on the file instance.
//
// A missing or unreadable blob records a nil outcome (verification aborted);
// with pessimistic set the error is also returned so the task fails visibly.
// The state write is optimistic on updated_at, which keeps concurrent
// verifications of the same file to one winner.
func (s *Service) VerifyChecksum(ctx context.Context, fileID string, pessimistic bool) error {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if !file.Readable {
		logger.Debug("skipping checksum verification of non-readable file", "file", fileID)
		return nil
	}
	seenUpdatedAt := file.UpdatedAt

	backend, err := s.factory.ForFile(file)
	if err != nil {
		return err
	}

	computed, err := backend.Checksum(ctx, 0, nil)
	if err != nil {
		var serr *storage.Error
		if errors.As(err, &serr) {
			// Blob unreadable: record the aborted verification.
			if _, stateErr := s.store.SetFileCheckState(ctx, fileID, nil, time.Now(), seenUpdatedAt); stateErr != nil {
				return stateErr
			}
			logger.Warn("checksum verification aborted", "file", fileID, "error", err)
			if pessimistic {
				return err
			}
			return nil
		}
		return err
	}

	match := computed == file.Checksum
	applied, err := s.store.SetFileCheckState(ctx, fileID, &match, time.Now(), seenUpdatedAt)
	if err != nil {
		return err
	}
	if !applied {
		logger.Debug("checksum verification lost optimistic update", "file", fileID)
		return nil
	}

	if !match {
		s.metrics.RecordFixityFailure()
		logger.Error("checksum mismatch detected",
			"file", fileID, "stored", file.Checksum, "computed", computed)
	}
	return nil
}

// ScheduleChecksumVerification selects the slice of files due for re-check so
// that every readable file is visited once per frequency, and enqueues a
// verification task per file. The slice is bounded by count, by total bytes,
// or both; zero bounds mean "everything due".
func (s *Service) ScheduleChecksumVerification(ctx context.Context, frequency, batchInterval time.Duration, maxCount int, maxBytes int64) (int, error) {
	if frequency <= 0 || batchInterval <= 0 {
		return 0, fmt.Errorf("%w: non-positive fixity scheduling interval", models.ErrInvalidOperation)
	}

	before := time.Now().Add(-frequency)
	files, err := s.store.ListFilesDueForCheck(ctx, before, maxCount, maxBytes)
	if err != nil {
		return 0, err
	}

	for _, file := range files {
		fileID := file.ID
		s.schedule("verify-checksum", func(ctx context.Context) error {
			return s.VerifyChecksum(ctx, fileID, false)
		})
	}

	if len(files) > 0 {
		logger.Info("scheduled checksum verifications", "count", len(files))
	}
	return len(files), nil
}

// MigrateFile copies a file instance's content to a new file in the target
// location and relinks every object version to the copy. The source instance
// is left behind with zero references; being read-only, it is removed by
// ClearOrphanedFiles only when a force predicate allows it. A failure at any
// step removes the half-built destination.
func (s *Service) MigrateFile(ctx context.Context, srcID, locationName string, postFixityCheck bool) error {
	src, err := s.store.GetFile(ctx, srcID)
	if err != nil {
		return err
	}
	if !src.Readable {
		return fmt.Errorf("%w: cannot migrate a non-readable file", models.ErrInvalidOperation)
	}

	location, err := s.store.GetLocation(ctx, locationName)
	if err != nil {
		return err
	}

	dst := &models.FileInstance{StorageClass: src.StorageClass}
	if err := s.store.CreateFile(ctx, dst); err != nil {
		return err
	}

	fail := func(err error) error {
		if backend, berr := s.factory.ForFile(dst); berr == nil {
			_ = backend.Delete(ctx)
		}
		_ = s.store.DeleteFile(ctx, dst.ID, true)
		return err
	}

	dstBackend, err := s.factory.Initialize(ctx, dst, src.Size, location)
	if err != nil {
		return fail(err)
	}

	srcBackend, err := s.factory.ForFile(src)
	if err != nil {
		return fail(err)
	}
	reader, err := srcBackend.Open(ctx)
	if err != nil {
		return fail(err)
	}

	info, err := dstBackend.Save(ctx, reader, storage.SaveOptions{Size: src.Size})
	reader.Close()
	if err != nil {
		return fail(err)
	}
	if info.Checksum != src.Checksum {
		return fail(fmt.Errorf("%w: migration checksum mismatch", models.ErrInvalidOperation))
	}

	dst.URI = &info.URI
	dst.Size = info.Size
	dst.Checksum = info.Checksum
	dst.Readable = true
	dst.Writable = false
	if err := s.store.UpdateFile(ctx, dst); err != nil {
		return fail(err)
	}

	relinked, err := s.store.RelinkAll(ctx, src.ID, dst.ID)
	if err != nil {
		return fail(err)
	}

	if postFixityCheck {
		dstID := dst.ID
		s.schedule("verify-checksum", func(ctx context.Context) error {
			return s.VerifyChecksum(ctx, dstID, false)
		})
	}

	logger.Info("file migrated",
		"source", srcID, "destination", dst.ID, "location", locationName, "versions", relinked)
	return nil
}

// RemoveFileData removes a file instance row and best-effort removes its
// blob. Read-only instances are skipped unless force is set; instances still
// referenced by object versions are never removed. References from multipart
// uploads are not checked here.
//
// The row is deleted before the blob, so a crash in between leaves a
// dangling blob; ClearOrphanedFiles repairs that window.
func (s *Service) RemoveFileData(ctx context.Context, fileID string, force bool) error {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, models.ErrFileNotFound) {
			return nil
		}
		return err
	}

	refs, err := s.store.CountVersionsByFile(ctx, fileID)
	if err != nil {
		return err
	}
	if refs > 0 {
		logger.Debug("skipping removal of referenced file", "file", fileID, "versions", refs)
		return nil
	}

	if err := s.store.DeleteFile(ctx, fileID, force); err != nil {
		if errors.Is(err, models.ErrFileNotWritable) {
			logger.Debug("skipping removal of read-only file", "file", fileID)
			return nil
		}
		return err
	}

	if file.URI != nil {
		backend, err := s.factory.ForFile(file)
		if err == nil {
			if err := backend.Delete(ctx); err != nil {
				logger.Warn("failed to remove blob", "file", fileID, "uri", *file.URI, "error", err)
			}
		}
	}

	logger.Info("file instance removed", "file", fileID)
	return nil
}

// ForceDeleteCheck decides whether a read-only orphaned file may be removed.
type ForceDeleteCheck func(*models.FileInstance) bool

// ClearOrphanedFiles removes file instances no object version or multipart
// upload references. Read-only orphans are only removed when the provided
// predicate allows it (nil keeps them).
func (s *Service) ClearOrphanedFiles(ctx context.Context, forceDelete ForceDeleteCheck) (int, error) {
	orphans, err := s.store.ListOrphanedFiles(ctx, 0)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, file := range orphans {
		force := false
		if !file.Writable {
			if forceDelete == nil || !forceDelete(file) {
				continue
			}
			force = true
		}
		if err := s.RemoveFileData(ctx, file.ID, force); err != nil {
			logger.Warn("orphan cleanup failed", "file", file.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("orphaned files cleared", "count", removed)
	}
	return removed, nil
}

// RemoveExpiredMultiparts deletes every multipart upload that passed the
// expiration window without completing, and schedules blob cleanup per row.
func (s *Service) RemoveExpiredMultiparts(ctx context.Context) (int, error) {
	before := time.Now().Add(-s.cfg.MultipartExpires)
	expired, err := s.store.ListExpiredMultiparts(ctx, before)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, upload := range expired {
		if err := s.store.DeleteMultipart(ctx, upload.UploadID); err != nil {
			logger.Warn("failed to delete expired multipart upload",
				"upload", upload.UploadID, "error", err)
			continue
		}
		fileID := upload.FileID
		s.schedule("remove-file-data", func(ctx context.Context) error {
			return s.RemoveFileData(ctx, fileID, true)
		})
		s.metrics.MultipartFinished()
		removed++
	}

	if removed > 0 {
		logger.Info("expired multipart uploads removed", "count", removed)
	}
	return removed, nil
}

// IngestExisting creates a new object version against an existing readable
// file instance, sharing the blob instead of re-uploading it. No checksum or
// size comparison is made.
func (s *Service) IngestExisting(ctx context.Context, bucket *models.Bucket, key string, file *models.FileInstance, mimetype string) (*models.ObjectVersion, error) {
	if !file.Readable {
		return nil, fmt.Errorf("%w: cannot link a non-readable file", models.ErrInvalidOperation)
	}
	if err := checkWritable(bucket); err != nil {
		return nil, err
	}
	if err := s.validateKey(key); err != nil {
		return nil, err
	}

	version, err := s.store.CreateVersion(ctx, bucket.ID, key, &file.ID, mimetype)
	if err != nil {
		return nil, err
	}
	version.File = file

	if err := s.store.AddBucketSize(ctx, bucket.ID, file.Size); err != nil {
		return nil, err
	}
	return version, nil
}
