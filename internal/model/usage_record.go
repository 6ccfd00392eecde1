package model

import "time"

const (
	UsageOutcomeOK              = "ok"
	UsageOutcomeUpstreamFailure = "upstream_failure"
)

// UsageRecord is one inference round-trip attempt, written by the usage worker.
type UsageRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	SessionID       uint      `gorm:"not null;index" json:"session_id"`
	Model           string    `gorm:"size:128;not null" json:"model"`
	Outcome         string    `gorm:"size:32;not null" json:"outcome"`
	PromptChars     int       `gorm:"not null" json:"prompt_chars"`
	CompletionChars int       `gorm:"not null" json:"completion_chars"`
	LatencyMS       int64     `gorm:"not null" json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
