package models

import "time"

// Bucket is a container of object versions with its own quota and defaults.
//
// Size is a denormalized sum of the sizes of all contained file instances,
// including historical (non-head) versions. It is maintained by the store
// under a row-level lock on every write path.
type Bucket struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	DefaultLocationID   uint      `gorm:"not null" json:"-"`
	DefaultLocation     *Location `gorm:"foreignKey:DefaultLocationID" json:"-"`
	DefaultStorageClass string    `gorm:"size:1;not null" json:"-"`
	Size                int64     `gorm:"not null;default:0" json:"size"`
	QuotaSize           *int64    `json:"quota_size"`
	MaxFileSize         *int64    `json:"max_file_size"`
	Locked              bool      `gorm:"not null;default:false" json:"locked"`
	Deleted             bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated"`

	Tags []BucketTag `gorm:"foreignKey:BucketID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Bucket.
func (Bucket) TableName() string {
	return "buckets"
}

// QuotaRemaining returns the number of bytes left before the bucket quota is
// reached, or nil if no quota is configured.
func (b *Bucket) QuotaRemaining() *int64 {
	if b.QuotaSize == nil {
		return nil
	}
	left := *b.QuotaSize - b.Size
	if left < 0 {
		left = 0
	}
	return &left
}

// BucketTag attaches an operator-chosen key/value pair to a bucket.
type BucketTag struct {
	BucketID  string    `gorm:"primaryKey;size:36" json:"-"`
	Key       string    `gorm:"primaryKey;size:255" json:"key"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

// TableName returns the table name for BucketTag.
func (BucketTag) TableName() string {
	return "bucket_tags"
}
