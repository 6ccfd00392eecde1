package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"localchat/internal/model"
)

// ErrVersionConflict means the session changed since it was loaded.
var ErrVersionConflict = errors.New("session version conflict")

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	if err := r.db.WithContext(ctx).Omit("Messages").Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	return sessions, nil
}

// GetByIDAndUserID returns nil, nil when the session does not exist for this owner.
func (r *SessionRepository) GetByIDAndUserID(ctx context.Context, sessionID, userID uint) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	if session.Messages == nil {
		session.Messages = []model.Message{}
	}
	return &session, nil
}

func (r *SessionRepository) ExistsByIDAndUserID(ctx context.Context, sessionID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ? AND user_id = ?", sessionID, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check session failed: %w", err)
	}
	return count > 0, nil
}

// DeleteByIDAndUserID is a no-op when nothing matches.
func (r *SessionRepository) DeleteByIDAndUserID(ctx context.Context, sessionID, userID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND user_id = ?", sessionID, userID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", sessionID, userID).Delete(&model.Session{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}

// Save writes title and model, then appends every message that has no ID yet.
// The update only applies if the stored version still equals session.Version.
func (r *SessionRepository) Save(ctx context.Context, session *model.Session) error {
	now := time.Now()
	var appended []int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Session{}).
			Where("id = ? AND user_id = ? AND version = ?", session.ID, session.UserID, session.Version).
			Updates(map[string]interface{}{
				"title":      session.Title,
				"model":      session.Model,
				"updated_at": now,
				"version":    session.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		for i := range session.Messages {
			msg := &session.Messages[i]
			if msg.ID != 0 {
				continue
			}
			msg.SessionID = session.ID
			msg.UserID = session.UserID
			if err := tx.Create(msg).Error; err != nil {
				return err
			}
			appended = append(appended, i)
		}
		return nil
	})
	if err != nil {
		for _, i := range appended {
			session.Messages[i].ID = 0
		}
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("save session failed: %w", err)
	}

	session.Version++
	session.UpdatedAt = now
	return nil
}
