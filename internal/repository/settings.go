package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct {
	DB *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{DB: db}
}

// GetSetting returns nil when no override is stored.
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (*string, error) {
	var s models.Setting
	err := r.DB.WithContext(ctx).First(&s, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return &s.Value, nil
}

func (r *SettingsRepository) GetAllSettings(ctx context.Context) (map[string]string, error) {
	var rows []models.Setting
	if err := r.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.Key] = s.Value
	}
	return out, nil
}

func (r *SettingsRepository) SetSetting(ctx context.Context, key string, value *string) error {
	db := r.DB.WithContext(ctx)
	if value == nil {
		if err := db.Delete(&models.Setting{}, "key = ?", key).Error; err != nil {
			return fmt.Errorf("clear setting %s: %w", key, err)
		}
		return nil
	}

	row := models.Setting{Key: key, Value: *value, UpdatedAt: time.Now().UTC()}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
