package mysql

import (
	"context"
	"time"

	"Agora_Community/internal/model"

	"gorm.io/gorm"
)

type CommunityRepository struct {
	DB *gorm.DB
}

// Create 建社区并让创建者入会：approved + admin 角色，自批注入时间戳。
// owner 身份不落 role 字段，靠 created_by 对比得出。
func (r *CommunityRepository) Create(ctx context.Context, c *model.Community) (*model.Community, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}

		now := time.Now()
		owner := &model.Membership{
			CommunityID: c.ID,
			UserID:      c.CreatedBy,
			Role:        model.RoleAdmin,
			Status:      model.StatusApproved,
			JoinedAt:    now,
			ApprovedAt:  &now,
			ApprovedBy:  &c.CreatedBy,
		}
		return tx.Create(owner).Error
	})
	return c, err
}

func (r *CommunityRepository) FindByID(ctx context.Context, id uint64) (*model.Community, error) {
	var community model.Community
	err := r.DB.WithContext(ctx).First(&community, id).Error
	return &community, err
}

func (r *CommunityRepository) FindByName(ctx context.Context, name string) (*model.Community, error) {
	var community model.Community
	err := r.DB.WithContext(ctx).Where("name = ?", name).First(&community).Error
	return &community, err
}

func (r *CommunityRepository) List(ctx context.Context, offset, limit int) ([]model.Community, int64, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&model.Community{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Community
	err := r.DB.WithContext(ctx).Order("id desc").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *CommunityRepository) UpdateConfig(ctx context.Context, id uint64, fields map[string]any) error {
	return r.DB.WithContext(ctx).Model(&model.Community{}).Where("id = ?", id).Updates(fields).Error
}
