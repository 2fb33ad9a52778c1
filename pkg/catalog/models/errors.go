package models

import "errors"

// Common errors for catalog operations.
var (
	// Location errors
	ErrLocationNotFound  = errors.New("location not found")
	ErrDuplicateLocation = errors.New("location already exists")
	ErrNoDefaultLocation = errors.New("no default location configured")
	ErrInvalidSlug       = errors.New("invalid location name (lower-case alphanumeric + dashes)")

	// Bucket errors
	ErrBucketNotFound      = errors.New("bucket not found")
	ErrBucketLocked        = errors.New("bucket is locked")
	ErrBucketDeleted       = errors.New("bucket is deleted")
	ErrInvalidStorageClass = errors.New("invalid storage class")
	ErrQuotaExceeded       = errors.New("bucket quota exceeded")

	// Object errors
	ErrObjectNotFound         = errors.New("object not found")
	ErrInvalidKey             = errors.New("invalid object key")
	ErrDeleteMarker           = errors.New("object version is a delete marker")
	ErrFileInstanceAlreadySet = errors.New("file instance already set on object version")

	// File errors
	ErrFileNotFound   = errors.New("file instance not found")
	ErrFileNotWritable = errors.New("file instance is read-only")

	// Multipart errors
	ErrMultipartNotFound          = errors.New("multipart upload not found")
	ErrMultipartAlreadyCompleted  = errors.New("multipart upload already completed")
	ErrMultipartMissingParts      = errors.New("multipart upload has missing parts")
	ErrMultipartInvalidPartNumber = errors.New("invalid part number")
	ErrMultipartInvalidChunkSize  = errors.New("invalid part size")
	ErrMultipartInvalidSize       = errors.New("invalid multipart upload size")

	// Generic
	ErrInvalidOperation = errors.New("invalid operation")
)
