package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Sentinel display values for missing tags.
const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// StringList stores a string slice as a JSON column.
type StringList []string

// Scan implements sql.Scanner.
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = nil
		return nil
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*s = nil
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// LyricLine is one timed line of synced lyrics.
type LyricLine struct {
	Time float64 `json:"time"` // seconds
	Text string  `json:"text"`
}

// Track represents one playable item in the library.
//
// MediaRef and CoverRef are resolved at runtime (resource handle URLs or remote
// URLs) and are never persisted; the blobs behind local tracks are addressed by
// MediaKey and CoverKey in the blob store.
type Track struct {
	ID       string  `json:"id" gorm:"primaryKey;size:64"`
	Title    string  `json:"title" gorm:"size:255"`
	Artist   string  `json:"artist" gorm:"size:255;index"`
	Album    string  `json:"album" gorm:"size:255"`
	Duration float64 `json:"duration"` // seconds, 0 if unknown

	MediaRef string `json:"mediaRef,omitempty" gorm:"-"`
	CoverRef string `json:"coverRef,omitempty" gorm:"-"`
	IsRemote bool   `json:"isRemote" gorm:"-"`

	Downloaded bool   `json:"downloaded"`
	MediaKey   string `json:"-" gorm:"size:255"`
	MediaType  string `json:"-" gorm:"size:100"`
	CoverKey   string `json:"-" gorm:"size:255"`
	CoverType  string `json:"-" gorm:"size:100"`

	AudioURL       string     `json:"audioUrl,omitempty" gorm:"size:1024"`
	AlbumArtURL    string     `json:"albumArt,omitempty" gorm:"size:1024"`
	Tags           StringList `json:"tags,omitempty" gorm:"type:text"`
	Bio            string     `json:"bio,omitempty" gorm:"type:text"`
	LyricsURL      string     `json:"lyricsUrl,omitempty" gorm:"size:1024"`
	MBID           string     `json:"mbid,omitempty" gorm:"size:64"`
	SimilarArtists StringList `json:"similarArtists,omitempty" gorm:"type:text"`

	LyricsRaw    string      `json:"lyrics,omitempty" gorm:"column:lyrics;type:text"`
	SyncedLyrics []LyricLine `json:"syncedLyrics,omitempty" gorm:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the gorm table name.
func (Track) TableName() string {
	return "tracks"
}

// Playable reports whether the track has a resolved media reference.
func (t Track) Playable() bool {
	return t.MediaRef != ""
}

// Clone returns a copy that shares no slices with t.
func (t Track) Clone() Track {
	c := t
	if t.Tags != nil {
		c.Tags = append(StringList(nil), t.Tags...)
	}
	if t.SimilarArtists != nil {
		c.SimilarArtists = append(StringList(nil), t.SimilarArtists...)
	}
	if t.SyncedLyrics != nil {
		c.SyncedLyrics = append([]LyricLine(nil), t.SyncedLyrics...)
	}
	return c
}

// TrackDescriptor is the normalized metadata produced by the metadata resolver
// and by catalog searches. Its JSON form is the discover wire format.
type TrackDescriptor struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Artist         string   `json:"artist"`
	Album          string   `json:"album"`
	Duration       float64  `json:"duration"`
	AudioURL       string   `json:"audioUrl"`
	AlbumArt       string   `json:"albumArt"`
	Tags           []string `json:"tags"`
	Bio            string   `json:"bio"`
	LyricsURL      string   `json:"lyricsUrl"`
	MBID           string   `json:"mbid"`
	SimilarArtists []string `json:"similarArtists"`

	Lyrics    string `json:"lyrics,omitempty"`
	Cover     []byte `json:"-"` // embedded artwork, if any
	CoverType string `json:"-"`
}
