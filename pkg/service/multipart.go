package service

import (
	"context"
	"fmt"
	"io"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/storage"
)

// InitMultipart starts a resumable upload for (bucket, key) with a fixed
// part size. The target file instance is preallocated so offset-capable
// backends write parts straight into place.
func (s *Service) InitMultipart(ctx context.Context, bucket *models.Bucket, key string, size, partSize int64) (*models.MultipartUpload, error) {
	if err := checkWritable(bucket); err != nil {
		return nil, err
	}
	if err := s.validateKey(key); err != nil {
		return nil, err
	}
	if partSize < s.cfg.MultipartChunkSizeMin || partSize > s.cfg.MultipartChunkSizeMax {
		return nil, models.ErrMultipartInvalidChunkSize
	}
	if size <= 0 {
		return nil, models.ErrMultipartInvalidSize
	}
	if limit := s.sizeLimitFor(bucket); limit != nil && size > limit.Limit {
		return nil, &storage.FileSizeError{Limit: *limit}
	}

	lastPartNumber, lastPartSize := models.PartLayout(size, partSize)
	if lastPartNumber+1 > s.cfg.MultipartMaxParts {
		return nil, fmt.Errorf("%w: too many parts", models.ErrMultipartInvalidChunkSize)
	}

	file := &models.FileInstance{StorageClass: bucket.DefaultStorageClass}
	if err := s.store.CreateFile(ctx, file); err != nil {
		return nil, err
	}
	if _, err := s.factory.Initialize(ctx, file, size, bucket.DefaultLocation); err != nil {
		_ = s.store.DeleteFile(ctx, file.ID, false)
		return nil, err
	}
	if err := s.store.UpdateFile(ctx, file); err != nil {
		_ = s.store.DeleteFile(ctx, file.ID, false)
		return nil, err
	}

	upload := &models.MultipartUpload{
		BucketID:       bucket.ID,
		Key:            key,
		FileID:         file.ID,
		ChunkSize:      partSize,
		Size:           size,
		LastPartNumber: lastPartNumber,
		LastPartSize:   lastPartSize,
	}
	if err := s.store.CreateMultipart(ctx, upload); err != nil {
		_ = s.store.DeleteFile(ctx, file.ID, false)
		return nil, err
	}
	upload.File = file

	s.metrics.MultipartStarted()
	logger.Info("multipart upload initiated",
		"bucket", bucket.ID, "key", key, "upload", upload.UploadID,
		"size", size, "part_size", partSize, "parts", lastPartNumber+1)
	return upload, nil
}

// GetMultipart resolves an upload for (bucket, key).
func (s *Service) GetMultipart(ctx context.Context, bucketID, key, uploadID string, withCompleted bool) (*models.MultipartUpload, error) {
	return s.store.GetMultipart(ctx, bucketID, key, uploadID, withCompleted)
}

// ListMultiparts lists the in-progress uploads in a bucket.
func (s *Service) ListMultiparts(ctx context.Context, bucketID string, limit int) ([]*models.MultipartUpload, error) {
	return s.store.ListMultipartsByBucket(ctx, bucketID, limit)
}

// ListParts returns the persisted parts of an upload.
func (s *Service) ListParts(ctx context.Context, upload *models.MultipartUpload, limit int) ([]*models.Part, error) {
	return s.store.ListParts(ctx, upload.UploadID, limit)
}

// UploadPart streams one part into the preallocated blob at its computed
// offset. Every part except the last must be exactly the upload's chunk
// size; the last must match the layout's tail size. A failed write deletes
// the part row so the client re-uploads cleanly.
func (s *Service) UploadPart(ctx context.Context, upload *models.MultipartUpload, partNumber int, body io.Reader, contentLength int64) (*models.Part, error) {
	if upload.Completed {
		return nil, models.ErrMultipartAlreadyCompleted
	}

	expected, err := upload.ExpectedPartSize(partNumber)
	if err != nil {
		return nil, err
	}
	if contentLength != expected {
		return nil, models.ErrMultipartInvalidChunkSize
	}
	if upload.File == nil {
		file, err := s.store.GetFile(ctx, upload.FileID)
		if err != nil {
			return nil, err
		}
		upload.File = file
	}

	backend, err := s.factory.ForFile(upload.File)
	if err != nil {
		return nil, err
	}

	seek := int64(partNumber) * upload.ChunkSize
	written, checksum, err := backend.Update(ctx, body, seek, storage.UpdateOptions{
		Size:     expected,
		PartSize: upload.ChunkSize,
	})
	if err != nil {
		// Partial data may have landed in the blob; drop the part row so
		// completion cannot see a half-written part.
		_ = s.store.DeletePart(ctx, upload.UploadID, partNumber)
		return nil, err
	}

	part := &models.Part{
		UploadID:   upload.UploadID,
		PartNumber: partNumber,
		Checksum:   checksum,
		StartByte:  seek,
		EndByte:    seek + written,
	}
	if err := s.store.ReplacePart(ctx, part); err != nil {
		return nil, err
	}

	logger.Debug("part uploaded",
		"upload", upload.UploadID, "part", partNumber, "size", written)
	return part, nil
}

// CompleteMultipart verifies all parts are present, marks the upload
// completed, and schedules the merge. Completed is terminal: the row stays
// until the merge succeeds, so a failed merge is retried by re-running it.
func (s *Service) CompleteMultipart(ctx context.Context, upload *models.MultipartUpload) (*models.MultipartUpload, error) {
	if upload.Completed {
		return nil, models.ErrMultipartAlreadyCompleted
	}

	count, err := s.store.CountParts(ctx, upload.UploadID)
	if err != nil {
		return nil, err
	}
	if count != int64(upload.LastPartNumber)+1 {
		return nil, models.ErrMultipartMissingParts
	}

	if err := s.store.CompleteMultipart(ctx, upload.UploadID); err != nil {
		return nil, err
	}
	upload.Completed = true

	uploadID := upload.UploadID
	s.schedule("merge-multipart", func(ctx context.Context) error {
		return s.MergeMultipart(ctx, uploadID)
	})

	logger.Info("multipart upload completed",
		"bucket", upload.BucketID, "key", upload.Key, "upload", uploadID)
	return upload, nil
}

// MergeMultipart finalizes a completed upload: computes the final checksum
// (in place for offset-capable backends, by streaming concatenation
// otherwise), flips the file instance read-only, creates the object version,
// and removes the upload row with its parts.
//
// Idempotent and retry-safe: any failure leaves the upload in completed
// state so the merge can be re-run.
func (s *Service) MergeMultipart(ctx context.Context, uploadID string) error {
	upload, err := s.store.GetMultipartByID(ctx, uploadID, true)
	if err != nil {
		return err
	}
	if !upload.Completed {
		return fmt.Errorf("%w: merge before completion", models.ErrInvalidOperation)
	}

	file := upload.File
	if file == nil {
		file, err = s.store.GetFile(ctx, upload.FileID)
		if err != nil {
			return err
		}
	}

	backend, err := s.factory.ForFile(file)
	if err != nil {
		return err
	}

	var checksum string
	if backend.CanUpdate() {
		// Parts were written into the preallocated blob; one sequential
		// read yields the final digest.
		checksum, err = backend.Checksum(ctx, 0, nil)
		if err != nil {
			return err
		}
	} else {
		parts, err := s.store.ListParts(ctx, uploadID, 0)
		if err != nil {
			return err
		}
		readers := make([]io.Reader, 0, len(parts))
		closers := make([]io.Closer, 0, len(parts))
		defer func() {
			for _, c := range closers {
				c.Close()
			}
		}()
		for _, p := range parts {
			rc, err := backend.OpenPart(ctx, p.PartNumber)
			if err != nil {
				return err
			}
			readers = append(readers, rc)
			closers = append(closers, rc)
		}

		info, err := backend.Save(ctx, io.MultiReader(readers...), storage.SaveOptions{Size: upload.Size})
		if err != nil {
			return err
		}
		checksum = info.Checksum

		if err := backend.DeleteParts(ctx); err != nil {
			logger.Warn("failed to clean multipart part objects",
				"upload", uploadID, "error", err)
		}
	}

	file.Size = upload.Size
	file.Checksum = checksum
	file.Readable = true
	file.Writable = false
	if err := s.store.UpdateFile(ctx, file); err != nil {
		return err
	}

	if _, err := s.store.CreateVersion(ctx, upload.BucketID, upload.Key, &file.ID, ""); err != nil {
		return err
	}
	if err := s.store.AddBucketSize(ctx, upload.BucketID, upload.Size); err != nil {
		return err
	}
	if err := s.store.DeleteMultipart(ctx, uploadID); err != nil {
		return err
	}

	s.metrics.MultipartFinished()
	s.metrics.RecordUpload(upload.Size)
	logger.Info("multipart upload merged",
		"bucket", upload.BucketID, "key", upload.Key, "upload", uploadID, "size", upload.Size)
	return nil
}

// AbortMultipart deletes an in-progress upload and schedules removal of the
// preallocated blob.
func (s *Service) AbortMultipart(ctx context.Context, upload *models.MultipartUpload) error {
	if upload.Completed {
		return models.ErrMultipartAlreadyCompleted
	}

	if err := s.store.DeleteMultipart(ctx, upload.UploadID); err != nil {
		return err
	}

	fileID := upload.FileID
	s.schedule("remove-file-data", func(ctx context.Context) error {
		return s.RemoveFileData(ctx, fileID, true)
	})

	s.metrics.MultipartFinished()
	logger.Info("multipart upload aborted",
		"bucket", upload.BucketID, "key", upload.Key, "upload", upload.UploadID)
	return nil
}
