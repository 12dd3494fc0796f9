package repository

import (
	"context"
	"errors"
	"strings"

	"genesis/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackRepository is the durable Track Store.
type TrackRepository interface {
	// Put inserts the track or replaces the stored record with the same id.
	Put(ctx context.Context, track *model.Track) error
	// PutCatalog stores catalog metadata for track. A downloaded row with the
	// same id is left untouched.
	PutCatalog(ctx context.Context, track *model.Track) error
	// Get returns nil, nil when no track has the id.
	Get(ctx context.Context, id string) (*model.Track, error)
	Delete(ctx context.Context, id string) error
	// List returns every track in insertion order.
	List(ctx context.Context) ([]*model.Track, error)
	// Search matches query as a case-insensitive substring of title or artist.
	Search(ctx context.Context, query string) ([]*model.Track, error)
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a gorm-backed TrackRepository.
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) Put(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(track).Error
}

func (r *gormTrackRepository) PutCatalog(ctx context.Context, track *model.Track) error {
	db := r.db.WithContext(ctx)
	row := *track
	row.Downloaded = false
	row.MediaKey, row.MediaType, row.CoverKey, row.CoverType = "", "", "", ""

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil || res.RowsAffected > 0 {
		return res.Error
	}

	// The row exists; refresh it only while it is still catalog-only.
	return db.Model(&model.Track{}).
		Where("id = ? AND downloaded = ?", row.ID, false).
		Updates(map[string]interface{}{
			"title":           row.Title,
			"artist":          row.Artist,
			"album":           row.Album,
			"duration":        row.Duration,
			"audio_url":       row.AudioURL,
			"album_art_url":   row.AlbumArtURL,
			"tags":            row.Tags,
			"bio":             row.Bio,
			"lyrics_url":      row.LyricsURL,
			"mbid":            row.MBID,
			"similar_artists": row.SimilarArtists,
		}).Error
}

func (r *gormTrackRepository) Get(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &track, nil
}

func (r *gormTrackRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Track{}).Error
}

func (r *gormTrackRepository) List(ctx context.Context) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&tracks).Error
	return tracks, err
}

func (r *gormTrackRepository) Search(ctx context.Context, query string) ([]*model.Track, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var tracks []*model.Track
	err := r.db.WithContext(ctx).
		Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(artist) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("created_at ASC, id ASC").
		Find(&tracks).Error
	return tracks, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
