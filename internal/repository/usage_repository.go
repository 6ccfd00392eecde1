package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"localchat/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Create(ctx context.Context, record *model.UsageRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create usage record failed: %w", err)
	}
	return nil
}

func (r *UsageRepository) ListByUserID(ctx context.Context, userID uint, limit int) ([]model.UsageRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []model.UsageRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list usage records failed: %w", err)
	}
	return records, nil
}
