package model

import "time"

type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"size:128;not null;default:''" json:"title"`
	Model     string    `gorm:"size:128;not null" json:"model"`
	Messages  []Message `gorm:"foreignKey:SessionID" json:"messages"`
	Version   uint      `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}
