package model

import "time"

const (
	QuestionOpen   = "open"
	QuestionClosed = "closed"
)

type VotingQuestion struct {
	ID          uint64 `gorm:"primaryKey"`
	CommunityID uint64 `gorm:"not null;index"`
	CreatedBy   uint64 `gorm:"not null"`
	Title       string `gorm:"size:200;not null"`
	Description string `gorm:"type:text"`
	Options     string `gorm:"type:json;not null"` // JSON array of option labels
	Status      string `gorm:"size:16;not null;default:'open'"`
	StartsAt    time.Time
	EndsAt      time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Vote struct {
	ID          uint64 `gorm:"primaryKey"`
	QuestionID  uint64 `gorm:"not null;index;uniqueIndex:uk_question_user"`
	UserID      uint64 `gorm:"not null;index;uniqueIndex:uk_question_user"`
	OptionIndex int    `gorm:"not null"`
	CreatedAt   time.Time
}
