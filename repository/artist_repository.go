package repository

import (
	"context"
	"errors"

	"genesis/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArtistRepository caches artist information gathered from catalog searches.
type ArtistRepository interface {
	Put(ctx context.Context, artist *model.ArtistInfo) error
	Get(ctx context.Context, name string) (*model.ArtistInfo, error)
	List(ctx context.Context) ([]*model.ArtistInfo, error)
}

type gormArtistRepository struct {
	db *gorm.DB
}

// NewGormArtistRepository creates a gorm-backed ArtistRepository.
func NewGormArtistRepository(db *gorm.DB) ArtistRepository {
	return &gormArtistRepository{db: db}
}

func (r *gormArtistRepository) Put(ctx context.Context, artist *model.ArtistInfo) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(artist).Error
}

func (r *gormArtistRepository) Get(ctx context.Context, name string) (*model.ArtistInfo, error) {
	var artist model.ArtistInfo
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&artist).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &artist, nil
}

func (r *gormArtistRepository) List(ctx context.Context) ([]*model.ArtistInfo, error) {
	var artists []*model.ArtistInfo
	err := r.db.WithContext(ctx).Order("name ASC").Find(&artists).Error
	return artists, err
}
