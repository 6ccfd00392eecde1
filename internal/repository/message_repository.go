package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"localchat/internal/model"
)

// MessageRepository reads message history. Writes go through SessionRepository.Save.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// ListBySessionID returns up to limit messages with an id greater than afterID, oldest first.
func (r *MessageRepository) ListBySessionID(ctx context.Context, sessionID, userID, afterID uint, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	messages := []model.Message{}
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ? AND id > ?", sessionID, userID, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) CountBySessionID(ctx context.Context, sessionID, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return count, nil
}
