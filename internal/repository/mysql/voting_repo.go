package mysql

import (
	"context"
	"errors"

	"Agora_Community/internal/model"

	"gorm.io/gorm"
)

var ErrAlreadyVoted = errors.New("vote already cast")

type VotingRepository struct {
	DB *gorm.DB
}

func (r *VotingRepository) CreateQuestion(ctx context.Context, q *model.VotingQuestion) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *VotingRepository) FindQuestion(ctx context.Context, id uint64) (*model.VotingQuestion, error) {
	var q model.VotingQuestion
	err := r.DB.WithContext(ctx).First(&q, id).Error
	return &q, err
}

func (r *VotingRepository) ListQuestions(ctx context.Context, communityID uint64, offset, limit int) ([]model.VotingQuestion, int64, error) {
	base := r.DB.WithContext(ctx).Model(&model.VotingQuestion{}).
		Where("community_id = ?", communityID)
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.VotingQuestion
	err := base.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *VotingRepository) CloseQuestion(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.VotingQuestion{}).Where("id = ?", id).
		Update("status", model.QuestionClosed).Error
}

// CastVote 唯一键 (question_id, user_id) 保证一人一票
func (r *VotingRepository) CastVote(ctx context.Context, v *model.Vote) error {
	err := r.DB.WithContext(ctx).Create(v).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyVoted
	}
	return err
}

type OptionTally struct {
	OptionIndex int
	Count       int64
}

func (r *VotingRepository) Tally(ctx context.Context, questionID uint64) ([]OptionTally, int64, error) {
	var rows []OptionTally
	err := r.DB.WithContext(ctx).Model(&model.Vote{}).
		Select("option_index, COUNT(*) AS count").
		Where("question_id = ?", questionID).
		Group("option_index").
		Order("option_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	var total int64
	for _, t := range rows {
		total += t.Count
	}
	return rows, total, nil
}
