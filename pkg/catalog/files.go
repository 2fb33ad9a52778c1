package catalog

import (
	"context"
	"time"

	"github.com/shelfd/shelfd/pkg/catalog/models"
)

func (s *GORMStore) CreateFile(ctx context.Context, file *models.FileInstance) error {
	file.Writable = true
	file.Readable = false
	_, err := createWithID(s.db, ctx, file,
		func(f *models.FileInstance, id string) { f.ID = id }, file.ID, models.ErrFileNotFound)
	return err
}

func (s *GORMStore) GetFile(ctx context.Context, id string) (*models.FileInstance, error) {
	return getByField[models.FileInstance](s.db, ctx, "id", id, models.ErrFileNotFound)
}

func (s *GORMStore) UpdateFile(ctx context.Context, file *models.FileInstance) error {
	now := s.db.NowFunc()
	result := s.db.WithContext(ctx).
		Model(&models.FileInstance{}).
		Where("id = ?", file.ID).
		Updates(map[string]any{
			"uri":           file.URI,
			"backend":       file.Backend,
			"storage_class": file.StorageClass,
			"size":          file.Size,
			"checksum":      file.Checksum,
			"readable":      file.Readable,
			"writable":      file.Writable,
			"updated_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFileNotFound
	}
	file.UpdatedAt = now
	return nil
}

// SetFileCheckState applies a fixity outcome only if nobody touched the row
// since the caller read it. Returns false when the optimistic check lost.
func (s *GORMStore) SetFileCheckState(ctx context.Context, id string, lastCheck *bool, at time.Time, seenUpdatedAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.FileInstance{}).
		Where("id = ? AND updated_at = ?", id, seenUpdatedAt).
		Updates(map[string]any{
			"last_check":    lastCheck,
			"last_check_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GORMStore) DeleteFile(ctx context.Context, id string, force bool) error {
	file, err := s.GetFile(ctx, id)
	if err != nil {
		return err
	}
	if !file.Writable && !force {
		return models.ErrFileNotWritable
	}

	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.FileInstance{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFileNotFound
	}
	return nil
}

func (s *GORMStore) ListOrphanedFiles(ctx context.Context, limit int) ([]*models.FileInstance, error) {
	q := s.db.WithContext(ctx).
		Where("id NOT IN (?)",
			s.db.Model(&models.ObjectVersion{}).
				Select("file_id").
				Where("file_id IS NOT NULL")).
		Where("id NOT IN (?)",
			s.db.Model(&models.MultipartUpload{}).Select("file_id"))
	if limit > 0 {
		q = q.Limit(limit)
	}

	var files []*models.FileInstance
	if err := q.Order("created_at").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// ListFilesDueForCheck selects the fair slice of readable files whose last
// verification is older than before; never-checked files are always included.
// Never-checked files come first, then the oldest-checked, so every file is
// eventually visited.
func (s *GORMStore) ListFilesDueForCheck(ctx context.Context, before time.Time, maxCount int, maxBytes int64) ([]*models.FileInstance, error) {
	q := s.db.WithContext(ctx).
		Where("readable = ?", true).
		Where("last_check_at IS NULL OR last_check_at < ?", before).
		Order("last_check_at IS NOT NULL").
		Order("last_check_at")
	if maxCount > 0 {
		q = q.Limit(maxCount)
	}

	var files []*models.FileInstance
	if err := q.Find(&files).Error; err != nil {
		return nil, err
	}

	if maxBytes <= 0 {
		return files, nil
	}

	var total int64
	out := files[:0]
	for _, f := range files {
		if total+f.Size > maxBytes && len(out) > 0 {
			break
		}
		total += f.Size
		out = append(out, f)
	}
	return out, nil
}
