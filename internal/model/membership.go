package model

import "time"

// 角色与状态都存字符串，owner 不入库：created_by 对比得出
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusBanned   = "banned"
)

type Membership struct {
	ID          uint64 `gorm:"primaryKey"`
	CommunityID uint64 `gorm:"not null;index;uniqueIndex:uk_community_user"`
	UserID      uint64 `gorm:"not null;index;uniqueIndex:uk_community_user"`
	Role        string `gorm:"size:16;not null;default:'member'"`
	Status      string `gorm:"size:16;not null;index;default:'pending'"`
	JoinedAt    time.Time
	ApprovedAt  *time.Time
	ApprovedBy  *uint64
	UpdatedAt   time.Time
}

func ValidRole(role string) bool {
	switch role {
	case RoleMember, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusBanned:
		return true
	}
	return false
}
