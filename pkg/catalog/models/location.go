package models

import (
	"regexp"
	"time"
)

// slugPattern constrains location names to lower-case slugs.
var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9-]+$`)

// Location is a named storage root. It identifies which blob backend serves
// files placed under it and the base URI the backend interprets.
type Location struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Name      string    `gorm:"uniqueIndex;size:20;not null" json:"name"`
	URI       string    `gorm:"size:255;not null" json:"uri"`
	Default   bool      `gorm:"not null;default:false" json:"default"`
	Backend   string    `gorm:"size:32;not null" json:"backend"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated"`
}

// TableName returns the table name for Location.
func (Location) TableName() string {
	return "locations"
}

// Validate checks the location name against the slug pattern.
func (l *Location) Validate() error {
	if len(l.Name) > 20 || !slugPattern.MatchString(l.Name) {
		return ErrInvalidSlug
	}
	return nil
}
