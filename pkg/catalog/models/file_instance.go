package models

import "time"

// FileInstance is a physical blob and its metadata.
//
// A blob starts write-only (Writable=true, Readable=false). The save that
// streams its content flips it to read-only and records the checksum; from
// then on the content is immutable. LastCheck records the outcome of the most
// recent fixity verification: true for a match, false for a mismatch, nil
// when verification could not complete (e.g. missing blob).
type FileInstance struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	URI          *string    `gorm:"uniqueIndex;size:255" json:"uri,omitempty"`
	Backend      string     `gorm:"size:32" json:"backend,omitempty"`
	StorageClass string     `gorm:"size:1" json:"storage_class,omitempty"`
	Size         int64      `gorm:"not null;default:0" json:"size"`
	Checksum     string     `gorm:"size:255" json:"checksum,omitempty"`
	Readable     bool       `gorm:"not null;default:false" json:"readable"`
	Writable     bool       `gorm:"not null;default:true" json:"writable"`
	LastCheckAt  *time.Time `json:"last_check_at,omitempty"`
	LastCheck    *bool      `json:"last_check,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated"`
}

// TableName returns the table name for FileInstance.
func (FileInstance) TableName() string {
	return "file_instances"
}
