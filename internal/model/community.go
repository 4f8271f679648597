package model

import "time"

type Community struct {
	ID                uint64 `gorm:"primaryKey"`
	Name              string `gorm:"uniqueIndex;size:64;not null"`
	Description       string `gorm:"type:text"`
	CreatedBy         uint64 `gorm:"not null;index"`
	IsActive          bool   `gorm:"not null;default:true"`
	RequireApproval   bool   `gorm:"not null;default:false"`
	AllowPublicVoting bool   `gorm:"not null;default:false"`
	MaxMembers        int    `gorm:"not null;default:0"` // 0 = unlimited
	VotingThreshold   int    `gorm:"not null;default:50"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
