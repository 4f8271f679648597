package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Agora_Community/internal/model"
	"Agora_Community/internal/pkg/apperr"
	"Agora_Community/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MembershipCache 成员相关缓存失效/计数，由 redis 实现
type MembershipCache interface {
	Invalidate(ctx context.Context, communityID uint64) error
	GetMemberCount(ctx context.Context, communityID uint64) (int64, bool, error)
	SetMemberCount(ctx context.Context, communityID uint64, cnt int64) error
}

// Notifier 通知旁路，失败只记日志，绝不影响主流程
type Notifier interface {
	NotifyJoinRequest(ctx context.Context, communityID, userID uint64, application map[string]any) error
	NotifyMembershipApproved(ctx context.Context, communityID, userID, approvedBy uint64) error
	NotifyMembershipRejected(ctx context.Context, communityID, userID, rejectedBy uint64, reason string) error
}

type MembershipService struct {
	repo        *mysql.MembershipRepository
	communities *mysql.CommunityRepository
	cache       MembershipCache
	notifier    Notifier
	log         *zap.Logger
}

func NewMembershipService(db *gorm.DB, cache MembershipCache, notifier Notifier, log *zap.Logger) *MembershipService {
	return &MembershipService{
		repo:        &mysql.MembershipRepository{DB: db},
		communities: &mysql.CommunityRepository{DB: db},
		cache:       cache,
		notifier:    notifier,
		log:         log,
	}
}

type ListOptions struct {
	Page   int
	Limit  int
	Status string
	Role   string
	Search string
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type MemberPage struct {
	Members    []mysql.MemberRow `json:"members"`
	Pagination Pagination        `json:"pagination"`
}

type PendingPage struct {
	Applications []mysql.MemberRow `json:"applications"`
	Pagination   Pagination        `json:"pagination"`
}

type MembershipPage struct {
	Memberships []mysql.UserMembershipRow `json:"memberships"`
	Pagination  Pagination                `json:"pagination"`
}

type HistoryEvent struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

type MembershipHistory struct {
	Membership *mysql.MembershipDetail `json:"membership"`
	History    []HistoryEvent          `json:"history"`
}

func normalize(opts ListOptions) ListOptions {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	return opts
}

func paginate(opts ListOptions, total int64) Pagination {
	pages := int((total + int64(opts.Limit) - 1) / int64(opts.Limit))
	return Pagination{Page: opts.Page, Limit: opts.Limit, Total: total, Pages: pages}
}

// Apply 入会申请。requireApproval=false 直接 approved 并盖自批戳，
// 否则 pending 等管理员审。同一 (user, community) 只会有一行。
func (s *MembershipService) Apply(ctx context.Context, communityID, userID uint64, application map[string]any) (*model.Membership, error) {
	community, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("community not found")
		}
		return nil, fmt.Errorf("find community: %w", err)
	}
	if !community.IsActive {
		return nil, apperr.Conflict("community is not active")
	}

	if _, err = s.repo.FindByPair(ctx, communityID, userID); err == nil {
		return nil, apperr.Conflict("user already has a membership in this community")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find membership: %w", err)
	}

	now := time.Now()
	m := &model.Membership{
		CommunityID: communityID,
		UserID:      userID,
		Role:        model.RoleMember,
		Status:      model.StatusPending,
		JoinedAt:    now,
	}
	if !community.RequireApproval {
		// 开放社区自动入会，自批语义
		m.Status = model.StatusApproved
		m.ApprovedAt = &now
		m.ApprovedBy = &userID
	}

	if err = s.repo.CreateApplication(ctx, m, community.MaxMembers); err != nil {
		switch {
		case errors.Is(err, mysql.ErrCapacityReached):
			return nil, apperr.Conflict("community has reached maximum member limit")
		case errors.Is(err, mysql.ErrMembershipExists):
			return nil, apperr.Conflict("user already has a membership in this community")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, apperr.NotFound("community not found")
		}
		return nil, fmt.Errorf("create application: %w", err)
	}

	s.invalidate(ctx, communityID)

	if community.RequireApproval {
		if err = s.notifier.NotifyJoinRequest(ctx, communityID, userID, application); err != nil {
			s.log.Warn("join request notification failed",
				zap.Uint64("community_id", communityID),
				zap.Uint64("user_id", userID),
				zap.Error(err))
		}
	}
	return m, nil
}

// CommunityMembers 默认只列 approved，joined_at 倒序
func (s *MembershipService) CommunityMembers(ctx context.Context, communityID uint64, opts ListOptions) (*MemberPage, error) {
	opts = normalize(opts)
	status := opts.Status
	if status == "" {
		status = model.StatusApproved
	}
	if status == "all" {
		status = ""
	}

	rows, total, err := s.repo.ListCommunityMembers(ctx, communityID, mysql.MemberQuery{
		Status: status,
		Role:   opts.Role,
		Search: opts.Search,
		Offset: (opts.Page - 1) * opts.Limit,
		Limit:  opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list community members: %w", err)
	}
	if rows == nil {
		rows = []mysql.MemberRow{}
	}
	return &MemberPage{Members: rows, Pagination: paginate(opts, total)}, nil
}

// PendingApplications 审核队列，joined_at 正序（先来先审）
func (s *MembershipService) PendingApplications(ctx context.Context, communityID uint64, opts ListOptions) (*PendingPage, error) {
	opts = normalize(opts)
	rows, total, err := s.repo.ListCommunityMembers(ctx, communityID, mysql.MemberQuery{
		Status:   model.StatusPending,
		Search:   opts.Search,
		Offset:   (opts.Page - 1) * opts.Limit,
		Limit:    opts.Limit,
		OrderAsc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending applications: %w", err)
	}
	if rows == nil {
		rows = []mysql.MemberRow{}
	}
	return &PendingPage{Applications: rows, Pagination: paginate(opts, total)}, nil
}

func (s *MembershipService) UserMemberships(ctx context.Context, userID uint64, opts ListOptions) (*MembershipPage, error) {
	opts = normalize(opts)
	status := opts.Status
	if status == "" {
		status = model.StatusApproved
	}
	if status == "all" {
		status = ""
	}

	rows, total, err := s.repo.ListUserMemberships(ctx, userID, mysql.MemberQuery{
		Status: status,
		Role:   opts.Role,
		Offset: (opts.Page - 1) * opts.Limit,
		Limit:  opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list user memberships: %w", err)
	}
	if rows == nil {
		rows = []mysql.UserMembershipRow{}
	}
	return &MembershipPage{Memberships: rows, Pagination: paginate(opts, total)}, nil
}

// Approve pending -> approved。容量在事务里复查，申请和审批之间
// 被别人占满名额时这里会拒绝。
func (s *MembershipService) Approve(ctx context.Context, communityID, memberID, approvedBy uint64) (*model.Membership, error) {
	community, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("community not found")
		}
		return nil, fmt.Errorf("find community: %w", err)
	}

	m, err := s.repo.Approve(ctx, memberID, communityID, approvedBy, community.MaxMembers)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, apperr.NotFound("pending membership application not found")
		case errors.Is(err, mysql.ErrCapacityReached):
			return nil, apperr.Conflict("community has reached maximum member limit")
		}
		return nil, fmt.Errorf("approve member: %w", err)
	}

	s.invalidate(ctx, communityID)

	if err = s.notifier.NotifyMembershipApproved(ctx, communityID, m.UserID, approvedBy); err != nil {
		s.log.Warn("approval notification failed",
			zap.Uint64("community_id", communityID),
			zap.Uint64("user_id", m.UserID),
			zap.Error(err))
	}
	return m, nil
}

// Reject pending -> rejected，不盖审批戳
func (s *MembershipService) Reject(ctx context.Context, communityID, memberID, rejectedBy uint64, reason string) (*model.Membership, error) {
	m, err := s.repo.FindInCommunity(ctx, memberID, communityID, model.StatusPending)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("pending membership application not found")
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}

	if err = s.repo.SetStatus(ctx, m.ID, model.StatusRejected); err != nil {
		return nil, fmt.Errorf("reject member: %w", err)
	}
	m.Status = model.StatusRejected

	s.invalidate(ctx, communityID)

	if err = s.notifier.NotifyMembershipRejected(ctx, communityID, m.UserID, rejectedBy, reason); err != nil {
		s.log.Warn("rejection notification failed",
			zap.Uint64("community_id", communityID),
			zap.Uint64("user_id", m.UserID),
			zap.Error(err))
	}
	return m, nil
}

// Remove 软移除：approved -> banned，行不删。社区创建者不可移除。
func (s *MembershipService) Remove(ctx context.Context, communityID, memberID, removedBy uint64) (*model.Membership, error) {
	m, err := s.repo.FindInCommunity(ctx, memberID, communityID, model.StatusApproved)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("approved membership not found")
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}

	community, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("find community: %w", err)
	}
	if community.CreatedBy == m.UserID {
		return nil, apperr.Forbidden("cannot remove community owner")
	}

	if err = s.repo.SetStatus(ctx, m.ID, model.StatusBanned); err != nil {
		return nil, fmt.Errorf("remove member: %w", err)
	}
	m.Status = model.StatusBanned

	s.invalidate(ctx, communityID)
	return m, nil
}

// ChangeRole 角色是独立字段，不是状态迁移。创建者角色不可改。
func (s *MembershipService) ChangeRole(ctx context.Context, communityID, memberID uint64, newRole string, changedBy uint64) (*model.Membership, error) {
	if !model.ValidRole(newRole) {
		return nil, apperr.Invalid("invalid role")
	}

	m, err := s.repo.FindInCommunity(ctx, memberID, communityID, model.StatusApproved)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("approved membership not found")
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}

	community, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("find community: %w", err)
	}
	if community.CreatedBy == m.UserID {
		return nil, apperr.Forbidden("cannot change community owner role")
	}

	if err = s.repo.SetRole(ctx, m.ID, newRole); err != nil {
		return nil, fmt.Errorf("change member role: %w", err)
	}
	m.Role = newRole

	s.invalidate(ctx, communityID)
	return m, nil
}

// UpdateStatus 管理员直接改状态。只有 pending -> approved 才盖审批戳，
// 其他迁移（包括回 pending）不碰审批字段。
func (s *MembershipService) UpdateStatus(ctx context.Context, communityID, memberID uint64, newStatus string, updatedBy uint64) (*model.Membership, error) {
	if !model.ValidStatus(newStatus) {
		return nil, apperr.Invalid("invalid status")
	}

	m, err := s.repo.FindInCommunity(ctx, memberID, communityID, "")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("membership not found")
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}

	community, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("find community: %w", err)
	}
	if community.CreatedBy == m.UserID {
		return nil, apperr.Forbidden("cannot change community owner status")
	}

	if newStatus == model.StatusApproved && m.Status == model.StatusPending {
		if err = s.repo.SetStatusApproved(ctx, m.ID, updatedBy); err != nil {
			return nil, fmt.Errorf("update member status: %w", err)
		}
		now := time.Now()
		m.ApprovedAt = &now
		m.ApprovedBy = &updatedBy
	} else {
		if err = s.repo.SetStatus(ctx, m.ID, newStatus); err != nil {
			return nil, fmt.Errorf("update member status: %w", err)
		}
	}
	m.Status = newStatus

	s.invalidate(ctx, communityID)
	return m, nil
}

func (s *MembershipService) MemberStatus(ctx context.Context, communityID, memberID uint64) (*mysql.MembershipDetail, error) {
	d, err := s.repo.FindDetail(ctx, memberID, communityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("membership not found")
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return d, nil
}

// History 从行自身的时间戳拼出时间线。不是审计日志：
// 中间被改过又改回来的状态是看不到的。
func (s *MembershipService) History(ctx context.Context, membershipID uint64) (*MembershipHistory, error) {
	d, err := s.repo.FindDetail(ctx, membershipID, 0)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("membership not found")
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}

	history := []HistoryEvent{
		{Action: "created", Timestamp: d.JoinedAt, Details: "Membership application submitted"},
	}
	if d.ApprovedAt != nil {
		history = append(history, HistoryEvent{
			Action: "approved", Timestamp: *d.ApprovedAt, Details: "Membership approved",
		})
	}
	history = append(history, HistoryEvent{
		Action:    "updated",
		Timestamp: d.UpdatedAt,
		Details:   fmt.Sprintf("Status changed to %s, role: %s", d.Status, d.Role),
	})

	return &MembershipHistory{Membership: d, History: history}, nil
}

// MemberCount approved 计数走缓存，其余状态直查
func (s *MembershipService) MemberCount(ctx context.Context, communityID uint64, status string) (int64, error) {
	if status == "" {
		status = model.StatusApproved
	}

	if status == model.StatusApproved {
		if cnt, hit, err := s.cache.GetMemberCount(ctx, communityID); err == nil && hit {
			return cnt, nil
		}
	}

	cnt, err := s.repo.Count(ctx, communityID, status)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}

	if status == model.StatusApproved {
		if err = s.cache.SetMemberCount(ctx, communityID, cnt); err != nil {
			s.log.Warn("member count cache backfill failed",
				zap.Uint64("community_id", communityID), zap.Error(err))
		}
	}
	return cnt, nil
}

// IsCommunityAdmin 管理守卫用：owner 或 approved 的 admin 成员
func (s *MembershipService) IsCommunityAdmin(ctx context.Context, communityID, userID uint64) (bool, error) {
	community, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperr.NotFound("community not found")
		}
		return false, fmt.Errorf("find community: %w", err)
	}
	if community.CreatedBy == userID {
		return true, nil
	}
	return s.repo.IsCommunityAdmin(ctx, communityID, userID)
}

// 缓存失效失败不影响主流程，只记日志
func (s *MembershipService) invalidate(ctx context.Context, communityID uint64) {
	if err := s.cache.Invalidate(ctx, communityID); err != nil {
		s.log.Warn("membership cache invalidation failed",
			zap.Uint64("community_id", communityID), zap.Error(err))
	}
}
