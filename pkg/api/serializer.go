package api

import (
	"fmt"
	"time"

	"github.com/shelfd/shelfd/pkg/catalog/models"
)

// The JSON shapes returned by the REST surface. Dates are ISO-8601 in UTC;
// checksums are "<algo>:<hex>"; links are rooted at the API base path.

// BucketJSON is the serialized bucket shape.
type BucketJSON struct {
	ID          string            `json:"id"`
	Size        int64             `json:"size"`
	QuotaSize   *int64            `json:"quota_size"`
	MaxFileSize *int64            `json:"max_file_size"`
	Locked      bool              `json:"locked"`
	Created     time.Time         `json:"created"`
	Updated     time.Time         `json:"updated"`
	Links       map[string]string `json:"links"`
}

// ObjectVersionJSON is the serialized object version shape.
type ObjectVersionJSON struct {
	Key          string            `json:"key"`
	VersionID    string            `json:"version_id"`
	IsHead       bool              `json:"is_head"`
	Mimetype     string            `json:"mimetype,omitempty"`
	Size         int64             `json:"size"`
	Checksum     string            `json:"checksum,omitempty"`
	DeleteMarker bool              `json:"delete_marker"`
	Tags         map[string]string `json:"tags"`
	Created      time.Time         `json:"created"`
	Updated      time.Time         `json:"updated"`
	Links        map[string]string `json:"links"`
}

// MultipartJSON is the serialized multipart upload shape.
type MultipartJSON struct {
	ID             string            `json:"id"`
	Bucket         string            `json:"bucket"`
	Key            string            `json:"key"`
	Size           int64             `json:"size"`
	PartSize       int64             `json:"part_size"`
	LastPartNumber int               `json:"last_part_number"`
	LastPartSize   int64             `json:"last_part_size"`
	Completed      bool              `json:"completed"`
	Created        time.Time         `json:"created"`
	Updated        time.Time         `json:"updated"`
	Links          map[string]string `json:"links"`
}

// PartJSON is the serialized part shape.
type PartJSON struct {
	PartNumber int       `json:"part_number"`
	StartByte  int64     `json:"start_byte"`
	EndByte    int64     `json:"end_byte"`
	Checksum   string    `json:"checksum"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

func bucketURL(bucketID string) string {
	return fmt.Sprintf("/files/%s", bucketID)
}

func objectURL(bucketID, key string) string {
	return fmt.Sprintf("/files/%s/%s", bucketID, key)
}

// SerializeBucket renders a bucket into its JSON shape.
func SerializeBucket(bucket *models.Bucket) BucketJSON {
	self := bucketURL(bucket.ID)
	return BucketJSON{
		ID:          bucket.ID,
		Size:        bucket.Size,
		QuotaSize:   bucket.QuotaSize,
		MaxFileSize: bucket.MaxFileSize,
		Locked:      bucket.Locked,
		Created:     bucket.CreatedAt.UTC(),
		Updated:     bucket.UpdatedAt.UTC(),
		Links: map[string]string{
			"self":     self,
			"uploads":  self + "?uploads",
			"versions": self + "?versions",
		},
	}
}

// SerializeObjectVersion renders an object version with its tags.
func SerializeObjectVersion(version *models.ObjectVersion, tags []*models.ObjectVersionTag) ObjectVersionJSON {
	self := objectURL(version.BucketID, version.Key)

	tagMap := map[string]string{}
	for _, tag := range tags {
		tagMap[tag.Key] = tag.Value
	}

	out := ObjectVersionJSON{
		Key:          version.Key,
		VersionID:    version.VersionID,
		IsHead:       version.IsHead,
		Mimetype:     version.Mimetype,
		DeleteMarker: version.IsDeleteMarker(),
		Tags:         tagMap,
		Created:      version.CreatedAt.UTC(),
		Updated:      version.UpdatedAt.UTC(),
		Links: map[string]string{
			"self":    self,
			"version": self + "?versionId=" + version.VersionID,
		},
	}
	if version.File != nil {
		out.Size = version.File.Size
		out.Checksum = version.File.Checksum
	}
	return out
}

// SerializeMultipart renders a multipart upload into its JSON shape.
func SerializeMultipart(upload *models.MultipartUpload) MultipartJSON {
	object := objectURL(upload.BucketID, upload.Key)
	return MultipartJSON{
		ID:             upload.UploadID,
		Bucket:         upload.BucketID,
		Key:            upload.Key,
		Size:           upload.Size,
		PartSize:       upload.ChunkSize,
		LastPartNumber: upload.LastPartNumber,
		LastPartSize:   upload.LastPartSize,
		Completed:      upload.Completed,
		Created:        upload.CreatedAt.UTC(),
		Updated:        upload.UpdatedAt.UTC(),
		Links: map[string]string{
			"self":   object + "?uploadId=" + upload.UploadID,
			"object": object,
			"bucket": bucketURL(upload.BucketID),
		},
	}
}

// SerializePart renders a part into its JSON shape.
func SerializePart(part *models.Part) PartJSON {
	return PartJSON{
		PartNumber: part.PartNumber,
		StartByte:  part.StartByte,
		EndByte:    part.EndByte,
		Checksum:   part.Checksum,
		Created:    part.CreatedAt.UTC(),
		Updated:    part.UpdatedAt.UTC(),
	}
}
