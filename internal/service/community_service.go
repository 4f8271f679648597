package service

import (
	"context"
	"errors"
	"fmt"

	"Agora_Community/internal/model"
	"Agora_Community/internal/pkg/apperr"
	"Agora_Community/internal/repository/mysql"

	"gorm.io/gorm"
)

type CommunityService struct {
	repo    *mysql.CommunityRepository
	members *mysql.MembershipRepository
}

func NewCommunityService(db *gorm.DB) *CommunityService {
	return &CommunityService{
		repo:    &mysql.CommunityRepository{DB: db},
		members: &mysql.MembershipRepository{DB: db},
	}
}

type CreateCommunityInput struct {
	Name              string
	Description       string
	RequireApproval   bool
	AllowPublicVoting bool
	MaxMembers        int
	VotingThreshold   int
}

// ConfigUpdate 指针字段表示“本次要改”，nil 表示保持不变
type ConfigUpdate struct {
	IsActive          *bool
	RequireApproval   *bool
	AllowPublicVoting *bool
	MaxMembers        *int
	VotingThreshold   *int
}

func (s *CommunityService) Create(ctx context.Context, userID uint64, in CreateCommunityInput) (*model.Community, error) {
	if in.Name == "" {
		return nil, apperr.Invalid("community name required")
	}
	if in.VotingThreshold == 0 {
		in.VotingThreshold = 50
	}
	if in.VotingThreshold < 1 || in.VotingThreshold > 100 {
		return nil, apperr.Invalid("voting threshold must be between 1 and 100")
	}

	community := &model.Community{
		Name:              in.Name,
		Description:       in.Description,
		CreatedBy:         userID,
		IsActive:          true,
		RequireApproval:   in.RequireApproval,
		AllowPublicVoting: in.AllowPublicVoting,
		MaxMembers:        in.MaxMembers,
		VotingThreshold:   in.VotingThreshold,
	}

	if _, err := s.repo.Create(ctx, community); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("community name already taken")
		}
		return nil, fmt.Errorf("create community: %w", err)
	}
	return community, nil
}

func (s *CommunityService) Get(ctx context.Context, id uint64) (*model.Community, error) {
	community, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("community not found")
		}
		return nil, fmt.Errorf("find community: %w", err)
	}
	return community, nil
}

type CommunityPage struct {
	Communities []model.Community `json:"communities"`
	Pagination  Pagination        `json:"pagination"`
}

func (s *CommunityService) List(ctx context.Context, page, size int) (*CommunityPage, error) {
	opts := normalize(ListOptions{Page: page, Limit: size})
	list, total, err := s.repo.List(ctx, (opts.Page-1)*opts.Limit, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	if list == nil {
		list = []model.Community{}
	}
	return &CommunityPage{Communities: list, Pagination: paginate(opts, total)}, nil
}

// UpdateConfig 只有创建者能改配置。max_members 不能低于当前 approved 数。
func (s *CommunityService) UpdateConfig(ctx context.Context, id, updatedBy uint64, in ConfigUpdate) (*model.Community, error) {
	community, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if community.CreatedBy != updatedBy {
		return nil, apperr.Forbidden("only the community owner can update configuration")
	}

	fields := map[string]any{}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if in.RequireApproval != nil {
		fields["require_approval"] = *in.RequireApproval
	}
	if in.AllowPublicVoting != nil {
		fields["allow_public_voting"] = *in.AllowPublicVoting
	}
	if in.MaxMembers != nil {
		if *in.MaxMembers > 0 {
			approved, err := s.members.Count(ctx, id, model.StatusApproved)
			if err != nil {
				return nil, fmt.Errorf("count members: %w", err)
			}
			if int64(*in.MaxMembers) < approved {
				return nil, apperr.Invalid("max members cannot be below current member count")
			}
		}
		fields["max_members"] = *in.MaxMembers
	}
	if in.VotingThreshold != nil {
		if *in.VotingThreshold < 1 || *in.VotingThreshold > 100 {
			return nil, apperr.Invalid("voting threshold must be between 1 and 100")
		}
		fields["voting_threshold"] = *in.VotingThreshold
	}

	if len(fields) == 0 {
		return community, nil
	}
	if err = s.repo.UpdateConfig(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update community config: %w", err)
	}
	return s.Get(ctx, id)
}
