// Package models defines the catalog entities persisted by shelfd.
//
// The catalog is the relational side of the object store: buckets, object
// versions, file instances, multipart uploads and their parts, storage
// locations, and tags. Entities are plain data records; invariants are
// enforced by the store at write time.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Location{},
		&Bucket{},
		&BucketTag{},
		&FileInstance{},
		&ObjectVersion{},
		&ObjectVersionTag{},
		&MultipartUpload{},
		&Part{},
	}
}
