package repository

import (
	"context"
	"errors"

	"genesis/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormKV stores string values in the settings table. It satisfies
// cache.KVStore for setups without Redis.
type GormKV struct {
	db *gorm.DB
}

// NewGormKV creates a GormKV.
func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{db: db}
}

// Get returns the value under key and whether it exists.
func (kv *GormKV) Get(ctx context.Context, key string) (string, bool, error) {
	var s model.Setting
	err := kv.db.WithContext(ctx).Where("`key` = ?", key).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return s.Value, true, nil
}

// Set writes value under key.
func (kv *GormKV) Set(ctx context.Context, key, value string) error {
	return kv.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model.Setting{Key: key, Value: value}).Error
}

// Delete removes key; a missing key is not an error.
func (kv *GormKV) Delete(ctx context.Context, key string) error {
	return kv.db.WithContext(ctx).Where("`key` = ?", key).Delete(&model.Setting{}).Error
}
