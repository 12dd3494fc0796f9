package model

import "time"

// ArtistInfo caches what catalog searches tell us about an artist.
type ArtistInfo struct {
	Name           string     `json:"name" gorm:"primaryKey;size:255"`
	Genre          string     `json:"genre" gorm:"size:100"`
	Bio            string     `json:"bio" gorm:"type:text"`
	ImageURL       string     `json:"imageUrl" gorm:"size:1024"`
	SimilarArtists StringList `json:"similarArtists" gorm:"type:text"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// TableName overrides the gorm table name.
func (ArtistInfo) TableName() string {
	return "artists"
}
