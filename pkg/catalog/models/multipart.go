package models

import (
	"time"
)

// MultipartUpload is an in-progress resumable upload.
//
// The layout invariant holds for every row:
//
//	Size = LastPartNumber*ChunkSize + LastPartSize, with 0 < LastPartSize <= ChunkSize
//
// Completed=true is terminal: the upload is waiting for (or has finished) the
// merge that turns it into an object version.
type MultipartUpload struct {
	UploadID       string        `gorm:"primaryKey;size:36" json:"id"`
	BucketID       string        `gorm:"size:36;not null;index:idx_multipart_object" json:"bucket"`
	Key            string        `gorm:"size:255;not null;index:idx_multipart_object" json:"key"`
	FileID         string        `gorm:"size:36;not null" json:"-"`
	File           *FileInstance `gorm:"foreignKey:FileID" json:"-"`
	ChunkSize      int64         `gorm:"not null" json:"part_size"`
	Size           int64         `gorm:"not null" json:"size"`
	LastPartNumber int           `gorm:"not null" json:"last_part_number"`
	LastPartSize   int64         `gorm:"not null" json:"last_part_size"`
	Completed      bool          `gorm:"not null;default:false;index" json:"completed"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime;index" json:"updated"`

	Parts []Part `gorm:"foreignKey:UploadID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for MultipartUpload.
func (MultipartUpload) TableName() string {
	return "multipart_uploads"
}

// PartLayout computes the fixed-part layout for a multipart upload of the
// given total size and part size. An exact multiple keeps the last part at a
// full chunk rather than a zero-length tail.
func PartLayout(size, chunkSize int64) (lastPartNumber int, lastPartSize int64) {
	lastPartNumber = int(size / chunkSize)
	lastPartSize = size - int64(lastPartNumber)*chunkSize
	if lastPartSize == 0 {
		lastPartSize = chunkSize
		lastPartNumber--
	}
	return lastPartNumber, lastPartSize
}

// ExpectedPartSize returns the size a given part number must have.
func (m *MultipartUpload) ExpectedPartSize(partNumber int) (int64, error) {
	if partNumber < 0 || partNumber > m.LastPartNumber {
		return 0, ErrMultipartInvalidPartNumber
	}
	if partNumber == m.LastPartNumber {
		return m.LastPartSize, nil
	}
	return m.ChunkSize, nil
}

// Expired reports whether the upload has passed the expiration window
// without completing.
func (m *MultipartUpload) Expired(ttl time.Duration, now time.Time) bool {
	return !m.Completed && m.UpdatedAt.Add(ttl).Before(now)
}

// Part is a single uploaded chunk of a multipart upload. Re-uploading the
// same part number replaces the row.
type Part struct {
	UploadID   string    `gorm:"primaryKey;size:36" json:"-"`
	PartNumber int       `gorm:"primaryKey" json:"part_number"`
	Checksum   string    `gorm:"size:255" json:"checksum"`
	StartByte  int64     `gorm:"not null" json:"start_byte"`
	EndByte    int64     `gorm:"not null" json:"end_byte"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated"`
}

// TableName returns the table name for Part.
func (Part) TableName() string {
	return "parts"
}
