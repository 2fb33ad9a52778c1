// Package catalog provides the metadata persistence layer of shelfd.
//
// The Store interface is composed of focused sub-interfaces, each grouping
// related operations by entity. Consumers should accept the narrowest
// sub-interface they need for improved testability and explicit dependencies.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (HA-capable)
//
// Invariants the store enforces at write time:
//   - exactly one head version per (bucket, key), via a partial unique index
//     plus in-transaction head demotion
//   - bucket size updates are serialized per bucket with a row-level lock
//   - at most one default location
package catalog

import (
	"context"
	"time"

	"github.com/shelfd/shelfd/pkg/catalog/models"
)

// LocationStore provides storage location CRUD.
type LocationStore interface {
	// GetLocation returns a location by name.
	// Returns models.ErrLocationNotFound if it doesn't exist.
	GetLocation(ctx context.Context, name string) (*models.Location, error)

	// GetDefaultLocation returns the default location.
	// Returns models.ErrNoDefaultLocation if none is configured.
	GetDefaultLocation(ctx context.Context) (*models.Location, error)

	// ListLocations returns all locations ordered by name.
	ListLocations(ctx context.Context) ([]*models.Location, error)

	// CreateLocation creates a new location. If loc.Default is set, any
	// previous default is cleared in the same transaction.
	// Returns models.ErrDuplicateLocation on a name clash.
	CreateLocation(ctx context.Context, loc *models.Location) error

	// SetDefaultLocation makes the named location the single default.
	SetDefaultLocation(ctx context.Context, name string) error
}

// BucketStore provides bucket CRUD and the denormalized size counter.
type BucketStore interface {
	// CreateBucket persists a new bucket. The ID is generated if empty.
	CreateBucket(ctx context.Context, bucket *models.Bucket) error

	// GetBucket returns a non-deleted bucket by ID with its location.
	// Returns models.ErrBucketNotFound if absent or soft-deleted.
	GetBucket(ctx context.Context, id string) (*models.Bucket, error)

	// UpdateBucketLimits updates quota/max-file-size/locked on a bucket.
	// Nil pointers leave the corresponding field untouched.
	UpdateBucketLimits(ctx context.Context, id string, quota, maxFileSize **int64, locked *bool) error

	// SoftDeleteBucket marks the bucket deleted. Idempotent.
	SoftDeleteBucket(ctx context.Context, id string) error

	// AddBucketSize atomically adds delta to the bucket's size under a
	// row-level lock. Negative deltas never take the size below zero.
	AddBucketSize(ctx context.Context, id string, delta int64) error

	// SetBucketTag upserts a tag on the bucket.
	SetBucketTag(ctx context.Context, bucketID, key, value string) error

	// DeleteBucketTag removes a tag from the bucket. Idempotent.
	DeleteBucketTag(ctx context.Context, bucketID, key string) error

	// GetBucketTags returns all tags on a bucket.
	GetBucketTags(ctx context.Context, bucketID string) ([]*models.BucketTag, error)
}

// ObjectStore provides object version operations.
type ObjectStore interface {
	// CreateVersion inserts a new head version for (bucket, key), demoting
	// the previous head inside the same transaction. A nil fileID creates a
	// delete marker. Returns the persisted version.
	CreateVersion(ctx context.Context, bucketID, key string, fileID *string, mimetype string) (*models.ObjectVersion, error)

	// GetObject resolves (bucket, key) to a version. With an empty versionID
	// the current head is returned; delete markers are only returned when
	// withDeleteMarkers is set. Returns models.ErrObjectNotFound otherwise.
	GetObject(ctx context.Context, bucketID, key, versionID string, withDeleteMarkers bool) (*models.ObjectVersion, error)

	// ListObjects lists versions in a bucket ordered by key, newest first
	// within a key. With versions=false only heads are returned. Delete
	// markers are excluded.
	ListObjects(ctx context.Context, bucketID string, versions bool, limit int) ([]*models.ObjectVersion, error)

	// RemoveVersion hard-deletes one version row and its tags. Callers are
	// responsible for blob cleanup. If the removed version was the head, the
	// most recent remaining version (if any) is promoted.
	RemoveVersion(ctx context.Context, bucketID, key, versionID string) (*models.ObjectVersion, error)

	// RelinkAll reassigns every version pointing at oldFileID to newFileID.
	RelinkAll(ctx context.Context, oldFileID, newFileID string) (int64, error)

	// CountVersionsByFile returns how many versions reference the file.
	CountVersionsByFile(ctx context.Context, fileID string) (int64, error)

	// SetVersionTag upserts a tag on a version.
	SetVersionTag(ctx context.Context, versionID, key, value string) error

	// DeleteVersionTag removes a tag from a version. Idempotent.
	DeleteVersionTag(ctx context.Context, versionID, key string) error

	// GetVersionTags returns all tags on a version.
	GetVersionTags(ctx context.Context, versionID string) ([]*models.ObjectVersionTag, error)
}

// FileStore provides file instance operations.
type FileStore interface {
	// CreateFile persists a new writable file instance. ID generated if empty.
	CreateFile(ctx context.Context, file *models.FileInstance) error

	// GetFile returns a file instance by ID.
	// Returns models.ErrFileNotFound if absent.
	GetFile(ctx context.Context, id string) (*models.FileInstance, error)

	// UpdateFile persists the mutable columns of a file instance (uri, size,
	// checksum, readable, writable, storage class, backend).
	UpdateFile(ctx context.Context, file *models.FileInstance) error

	// SetFileCheckState records a fixity verification outcome. The update is
	// optimistic: it only applies if the row's updated_at still matches
	// seenUpdatedAt, which keeps at-most-one-per-file task discipline.
	SetFileCheckState(ctx context.Context, id string, lastCheck *bool, at time.Time, seenUpdatedAt time.Time) (bool, error)

	// DeleteFile removes the file instance row. Fails with
	// models.ErrFileNotWritable when the instance is read-only unless force
	// is set.
	DeleteFile(ctx context.Context, id string, force bool) error

	// ListOrphanedFiles returns file instances with no referencing object
	// version and no multipart upload, up to limit.
	ListOrphanedFiles(ctx context.Context, limit int) ([]*models.FileInstance, error)

	// ListFilesDueForCheck returns readable files whose last verification is
	// older than before, ordered oldest-first. Limited by count and by total
	// size in bytes; either limit may be zero for "no bound".
	ListFilesDueForCheck(ctx context.Context, before time.Time, maxCount int, maxBytes int64) ([]*models.FileInstance, error)
}

// MultipartStore provides multipart upload state.
type MultipartStore interface {
	// CreateMultipart persists a new multipart upload row.
	CreateMultipart(ctx context.Context, m *models.MultipartUpload) error

	// GetMultipart resolves an upload by (bucket, key, uploadID). Completed
	// uploads are only returned when withCompleted is set. Returns
	// models.ErrMultipartNotFound otherwise.
	GetMultipart(ctx context.Context, bucketID, key, uploadID string, withCompleted bool) (*models.MultipartUpload, error)

	// GetMultipartByID resolves an upload by uploadID alone, for background
	// tasks that hold no bucket context.
	GetMultipartByID(ctx context.Context, uploadID string, withCompleted bool) (*models.MultipartUpload, error)

	// ListMultipartsByBucket lists in-progress uploads in a bucket.
	ListMultipartsByBucket(ctx context.Context, bucketID string, limit int) ([]*models.MultipartUpload, error)

	// ReplacePart deletes any existing row for (uploadID, partNumber) and
	// inserts the given part. Also bumps the upload's updated_at.
	ReplacePart(ctx context.Context, part *models.Part) error

	// DeletePart removes a part row. Idempotent.
	DeletePart(ctx context.Context, uploadID string, partNumber int) error

	// ListParts returns parts ordered by part number.
	ListParts(ctx context.Context, uploadID string, limit int) ([]*models.Part, error)

	// CountParts returns the number of persisted parts for an upload.
	CountParts(ctx context.Context, uploadID string) (int64, error)

	// CompleteMultipart marks the upload completed. Fails with
	// models.ErrMultipartAlreadyCompleted if it already is.
	CompleteMultipart(ctx context.Context, uploadID string) error

	// DeleteMultipart removes the upload row and its parts.
	DeleteMultipart(ctx context.Context, uploadID string) error

	// ListExpiredMultiparts returns non-completed uploads whose updated_at
	// is older than before.
	ListExpiredMultiparts(ctx context.Context, before time.Time) ([]*models.MultipartUpload, error)
}

// Store is the full catalog persistence interface.
type Store interface {
	LocationStore
	BucketStore
	ObjectStore
	FileStore
	MultipartStore

	// Close releases the underlying database resources.
	Close() error
}
