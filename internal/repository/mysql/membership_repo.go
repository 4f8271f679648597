package mysql

import (
	"context"
	"errors"
	"strings"
	"time"

	"Agora_Community/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMembershipExists = errors.New("membership already exists")
	ErrCapacityReached  = errors.New("member capacity reached")
)

type MembershipRepository struct {
	DB *gorm.DB
}

// MemberQuery 列表过滤条件；Status 为空表示不过滤
type MemberQuery struct {
	Status   string
	Role     string
	Search   string
	Offset   int
	Limit    int
	OrderAsc bool
}

// MemberRow 成员行 + 用户公开字段
type MemberRow struct {
	model.Membership
	Username  string
	Email     string
	AvatarURL string
}

// UserMembershipRow 成员行 + 所属社区公开字段
type UserMembershipRow struct {
	model.Membership
	CommunityName        string
	CommunityDescription string
	CommunityIsActive    bool
}

// MembershipDetail 单行详情，带用户和社区信息
type MembershipDetail struct {
	model.Membership
	Username      string
	AvatarURL     string
	CommunityName string
}

// lockCommunity 事务内锁社区行，把容量检查串行化。
// sqlite 没有 FOR UPDATE，写事务本身就是单写者，不加锁子句。
func lockCommunity(tx *gorm.DB, communityID uint64) error {
	q := tx.Model(&model.Community{}).Where("id = ?", communityID)
	if tx.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c model.Community
	return q.Select("id").Take(&c).Error
}

// CreateApplication 锁社区行 -> 复查容量 -> 插入；唯一键 (community_id,user_id)
// 兜底并发下的重复申请
func (r *MembershipRepository) CreateApplication(ctx context.Context, m *model.Membership, maxMembers int) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCommunity(tx, m.CommunityID); err != nil {
			return err
		}
		if maxMembers > 0 {
			var approved int64
			if err := tx.Model(&model.Membership{}).
				Where("community_id = ? AND status = ?", m.CommunityID, model.StatusApproved).
				Count(&approved).Error; err != nil {
				return err
			}
			if approved >= int64(maxMembers) {
				return ErrCapacityReached
			}
		}
		return tx.Create(m).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrMembershipExists
	}
	return err
}

func (r *MembershipRepository) FindByPair(ctx context.Context, communityID, userID uint64) (*model.Membership, error) {
	var m model.Membership
	err := r.DB.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&m).Error
	return &m, err
}

// FindInCommunity 按 id + 社区查行；status 为空表示任意状态
func (r *MembershipRepository) FindInCommunity(ctx context.Context, memberID, communityID uint64, status string) (*model.Membership, error) {
	q := r.DB.WithContext(ctx).Where("id = ? AND community_id = ?", memberID, communityID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var m model.Membership
	err := q.First(&m).Error
	return &m, err
}

// Approve pending -> approved，容量复查和状态翻转在同一个事务里
func (r *MembershipRepository) Approve(ctx context.Context, memberID, communityID, approvedBy uint64, maxMembers int) (*model.Membership, error) {
	var m model.Membership
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCommunity(tx, communityID); err != nil {
			return err
		}
		if err := tx.Where("id = ? AND community_id = ? AND status = ?",
			memberID, communityID, model.StatusPending).First(&m).Error; err != nil {
			return err
		}
		if maxMembers > 0 {
			var approved int64
			if err := tx.Model(&model.Membership{}).
				Where("community_id = ? AND status = ?", communityID, model.StatusApproved).
				Count(&approved).Error; err != nil {
				return err
			}
			if approved >= int64(maxMembers) {
				return ErrCapacityReached
			}
		}
		now := time.Now()
		m.Status = model.StatusApproved
		m.ApprovedAt = &now
		m.ApprovedBy = &approvedBy
		return tx.Model(&model.Membership{}).Where("id = ?", m.ID).Updates(map[string]any{
			"status":      model.StatusApproved,
			"approved_at": now,
			"approved_by": approvedBy,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MembershipRepository) SetStatus(ctx context.Context, id uint64, status string) error {
	return r.DB.WithContext(ctx).Model(&model.Membership{}).Where("id = ?", id).
		Update("status", status).Error
}

// SetStatusApproved 状态置 approved 并盖审批戳（pending -> approved 专用）
func (r *MembershipRepository) SetStatusApproved(ctx context.Context, id, approvedBy uint64) error {
	return r.DB.WithContext(ctx).Model(&model.Membership{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":      model.StatusApproved,
			"approved_at": time.Now(),
			"approved_by": approvedBy,
		}).Error
}

func (r *MembershipRepository) SetRole(ctx context.Context, id uint64, role string) error {
	return r.DB.WithContext(ctx).Model(&model.Membership{}).Where("id = ?", id).
		Update("role", role).Error
}

// ListCommunityMembers JOIN users 取公开字段；search 对 username 做大小写不敏感子串匹配
func (r *MembershipRepository) ListCommunityMembers(ctx context.Context, communityID uint64, q MemberQuery) ([]MemberRow, int64, error) {
	base := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.community_id = ?", communityID)
	if q.Status != "" {
		base = base.Where("memberships.status = ?", q.Status)
	}
	if q.Role != "" {
		base = base.Where("memberships.role = ?", q.Role)
	}
	if q.Search != "" {
		base = base.Where("LOWER(users.username) LIKE ?", "%"+strings.ToLower(q.Search)+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "memberships.joined_at DESC, memberships.id DESC"
	if q.OrderAsc {
		order = "memberships.joined_at ASC, memberships.id ASC"
	}
	var rows []MemberRow
	err := base.Select("memberships.*, users.username, users.email, users.avatar_url").
		Order(order).Offset(q.Offset).Limit(q.Limit).Find(&rows).Error
	return rows, total, err
}

// ListUserMemberships 某用户在各社区的成员行，JOIN communities 取公开字段
func (r *MembershipRepository) ListUserMemberships(ctx context.Context, userID uint64, q MemberQuery) ([]UserMembershipRow, int64, error) {
	base := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Joins("JOIN communities ON communities.id = memberships.community_id").
		Where("memberships.user_id = ?", userID)
	if q.Status != "" {
		base = base.Where("memberships.status = ?", q.Status)
	}
	if q.Role != "" {
		base = base.Where("memberships.role = ?", q.Role)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []UserMembershipRow
	err := base.Select("memberships.*, communities.name AS community_name, communities.description AS community_description, communities.is_active AS community_is_active").
		Order("memberships.joined_at DESC, memberships.id DESC").
		Offset(q.Offset).Limit(q.Limit).Find(&rows).Error
	return rows, total, err
}

// FindDetail 单行 + 用户/社区信息（status 查询和 history 用）
func (r *MembershipRepository) FindDetail(ctx context.Context, memberID uint64, communityID uint64) (*MembershipDetail, error) {
	q := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Joins("JOIN communities ON communities.id = memberships.community_id").
		Where("memberships.id = ?", memberID)
	if communityID > 0 {
		q = q.Where("memberships.community_id = ?", communityID)
	}
	var d MembershipDetail
	err := q.Select("memberships.*, users.username, users.avatar_url, communities.name AS community_name").
		First(&d).Error
	return &d, err
}

// Count status 传 "all" 或空则不过滤
func (r *MembershipRepository) Count(ctx context.Context, communityID uint64, status string) (int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Where("community_id = ?", communityID)
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// IsCommunityAdmin approved + admin 角色即可，owner 由调用方另行判断
func (r *MembershipRepository) IsCommunityAdmin(ctx context.Context, communityID, userID uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Where("community_id = ? AND user_id = ? AND status = ? AND role = ?",
			communityID, userID, model.StatusApproved, model.RoleAdmin).
		Count(&n).Error
	return n > 0, err
}
