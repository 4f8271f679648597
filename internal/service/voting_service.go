package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Agora_Community/internal/model"
	"Agora_Community/internal/pkg/apperr"
	"Agora_Community/internal/repository/mysql"

	"gorm.io/gorm"
)

type VotingService struct {
	repo        *mysql.VotingRepository
	members     *mysql.MembershipRepository
	communities *mysql.CommunityRepository
}

func NewVotingService(db *gorm.DB) *VotingService {
	return &VotingService{
		repo:        &mysql.VotingRepository{DB: db},
		members:     &mysql.MembershipRepository{DB: db},
		communities: &mysql.CommunityRepository{DB: db},
	}
}

type CreateQuestionInput struct {
	Title       string
	Description string
	Options     []string
	StartsAt    time.Time
	EndsAt      time.Time
}

type QuestionResult struct {
	Question   *model.VotingQuestion `json:"question"`
	Options    []string              `json:"options"`
	Tallies    []mysql.OptionTally   `json:"tallies"`
	TotalVotes int64                 `json:"total_votes"`
	// Passed：投票人数达到社区 voting_threshold 设定的 approved 成员百分比
	Passed bool `json:"passed"`
}

// CreateQuestion 发起投票，owner 或 approved 的 moderator/admin 才有资格
func (s *VotingService) CreateQuestion(ctx context.Context, communityID, userID uint64, in CreateQuestionInput) (*model.VotingQuestion, error) {
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

	if community.CreatedBy != userID {
		m, err := s.members.FindByPair(ctx, communityID, userID)
		if err != nil || m.Status != model.StatusApproved ||
			(m.Role != model.RoleModerator && m.Role != model.RoleAdmin) {
			return nil, apperr.Forbidden("moderator or admin membership required")
		}
	}

	if in.Title == "" {
		return nil, apperr.Invalid("question title required")
	}
	if len(in.Options) < 2 {
		return nil, apperr.Invalid("at least two options required")
	}
	if in.StartsAt.IsZero() {
		in.StartsAt = time.Now()
	}
	if in.EndsAt.IsZero() {
		in.EndsAt = in.StartsAt.Add(7 * 24 * time.Hour)
	}
	if !in.EndsAt.After(in.StartsAt) {
		return nil, apperr.Invalid("end time must be after start time")
	}

	opts, err := json.Marshal(in.Options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}

	q := &model.VotingQuestion{
		CommunityID: communityID,
		CreatedBy:   userID,
		Title:       in.Title,
		Description: in.Description,
		Options:     string(opts),
		Status:      model.QuestionOpen,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
	}
	if err = s.repo.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// CastVote 一人一票，靠唯一键兜底。非公开投票的社区要求 approved 成员。
func (s *VotingService) CastVote(ctx context.Context, questionID, userID uint64, optionIndex int) (*model.Vote, error) {
	q, err := s.repo.FindQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("voting question not found")
		}
		return nil, fmt.Errorf("find question: %w", err)
	}

	now := time.Now()
	if q.Status != model.QuestionOpen || now.Before(q.StartsAt) || now.After(q.EndsAt) {
		return nil, apperr.Conflict("voting question is not open")
	}

	var options []string
	if err = json.Unmarshal([]byte(q.Options), &options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if optionIndex < 0 || optionIndex >= len(options) {
		return nil, apperr.Invalid("invalid option index")
	}

	community, err := s.communities.FindByID(ctx, q.CommunityID)
	if err != nil {
		return nil, fmt.Errorf("find community: %w", err)
	}
	if !community.AllowPublicVoting {
		m, err := s.members.FindByPair(ctx, q.CommunityID, userID)
		if err != nil || m.Status != model.StatusApproved {
			return nil, apperr.Forbidden("approved membership required to vote")
		}
	}

	v := &model.Vote{QuestionID: questionID, UserID: userID, OptionIndex: optionIndex}
	if err = s.repo.CastVote(ctx, v); err != nil {
		if errors.Is(err, mysql.ErrAlreadyVoted) {
			return nil, apperr.Conflict("user has already voted on this question")
		}
		return nil, fmt.Errorf("cast vote: %w", err)
	}
	return v, nil
}

func (s *VotingService) Results(ctx context.Context, questionID uint64) (*QuestionResult, error) {
	q, err := s.repo.FindQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("voting question not found")
		}
		return nil, fmt.Errorf("find question: %w", err)
	}

	var options []string
	if err = json.Unmarshal([]byte(q.Options), &options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}

	tallies, total, err := s.repo.Tally(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("tally votes: %w", err)
	}

	community, err := s.communities.FindByID(ctx, q.CommunityID)
	if err != nil {
		return nil, fmt.Errorf("find community: %w", err)
	}
	approved, err := s.members.Count(ctx, q.CommunityID, model.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	passed := approved > 0 && total*100 >= int64(community.VotingThreshold)*approved

	return &QuestionResult{
		Question:   q,
		Options:    options,
		Tallies:    tallies,
		TotalVotes: total,
		Passed:     passed,
	}, nil
}

func (s *VotingService) ListQuestions(ctx context.Context, communityID uint64, page, size int) ([]model.VotingQuestion, Pagination, error) {
	opts := normalize(ListOptions{Page: page, Limit: size})
	list, total, err := s.repo.ListQuestions(ctx, communityID, (opts.Page-1)*opts.Limit, opts.Limit)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list questions: %w", err)
	}
	if list == nil {
		list = []model.VotingQuestion{}
	}
	return list, paginate(opts, total), nil
}

// CloseQuestion 创建者或投票发起人关闭投票
func (s *VotingService) CloseQuestion(ctx context.Context, questionID, userID uint64) error {
	q, err := s.repo.FindQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("voting question not found")
		}
		return fmt.Errorf("find question: %w", err)
	}

	community, err := s.communities.FindByID(ctx, q.CommunityID)
	if err != nil {
		return fmt.Errorf("find community: %w", err)
	}
	if q.CreatedBy != userID && community.CreatedBy != userID {
		return apperr.Forbidden("only the question creator or community owner can close it")
	}
	return s.repo.CloseQuestion(ctx, questionID)
}
