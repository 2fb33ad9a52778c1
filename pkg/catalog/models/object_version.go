package models

import "time"

// ObjectVersion is a named pointer into a bucket at a point in time.
//
// A nil FileID marks the version as a delete marker: the key was logically
// deleted at that point in its history. For every (bucket, key) pair exactly
// one version has IsHead=true; creating a new version demotes the previous
// head inside the same transaction.
type ObjectVersion struct {
	BucketID  string        `gorm:"primaryKey;size:36" json:"-"`
	Key       string        `gorm:"primaryKey;size:255" json:"key"`
	VersionID string        `gorm:"primaryKey;size:36" json:"version_id"`
	FileID    *string       `gorm:"size:36;index" json:"-"`
	File      *FileInstance `gorm:"foreignKey:FileID" json:"-"`
	Mimetype  string        `gorm:"size:255" json:"mimetype,omitempty"`
	IsHead    bool          `gorm:"not null;default:true;index" json:"is_head"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated"`
}

// TableName returns the table name for ObjectVersion.
func (ObjectVersion) TableName() string {
	return "object_versions"
}

// IsDeleteMarker reports whether this version marks a logical deletion.
func (v *ObjectVersion) IsDeleteMarker() bool {
	return v.FileID == nil
}

// ObjectVersionTag attaches a key/value pair to a single object version.
// Rows are removed together with their version by the store's write paths;
// version_id is not a declared foreign key because it is not unique on its
// own in the composite-keyed versions table.
type ObjectVersionTag struct {
	VersionID string    `gorm:"primaryKey;size:36;index" json:"-"`
	Key       string    `gorm:"primaryKey;size:255" json:"key"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

// TableName returns the table name for ObjectVersionTag.
func (ObjectVersionTag) TableName() string {
	return "object_version_tags"
}
