package model

import "time"

// Setting is one row of the key/value table used when no Redis is configured.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName overrides the gorm table name.
func (Setting) TableName() string {
	return "settings"
}
