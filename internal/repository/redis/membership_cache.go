package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const MemberCountTTL = time.Hour

// MembershipCacheRepository 社区成员相关缓存。
// key 约定：community:{id}:members / community:{id}:pending / community:{id}:member_count
type MembershipCacheRepository struct {
	countTTL time.Duration
}

func NewMembershipCacheRepository() *MembershipCacheRepository {
	return &MembershipCacheRepository{countTTL: MemberCountTTL}
}

func (r *MembershipCacheRepository) membersKey(communityID uint64) string {
	return fmt.Sprintf("community:%d:members", communityID)
}

func (r *MembershipCacheRepository) pendingKey(communityID uint64) string {
	return fmt.Sprintf("community:%d:pending", communityID)
}

func (r *MembershipCacheRepository) countKey(communityID uint64) string {
	return fmt.Sprintf("community:%d:member_count", communityID)
}

// Invalidate 成员表有任何写入后调用，三个 key 一起删
func (r *MembershipCacheRepository) Invalidate(ctx context.Context, communityID uint64) error {
	keys := []string{
		r.membersKey(communityID),
		r.pendingKey(communityID),
		r.countKey(communityID),
	}
	if err := Client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// GetMemberCount 第二个返回值表示缓存是否命中
func (r *MembershipCacheRepository) GetMemberCount(ctx context.Context, communityID uint64) (int64, bool, error) {
	val, err := Client.Get(ctx, r.countKey(communityID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	return val, true, err
}

// SetMemberCount 回填 approved 成员数
func (r *MembershipCacheRepository) SetMemberCount(ctx context.Context, communityID uint64, cnt int64) error {
	return Client.Set(ctx, r.countKey(communityID), cnt, r.countTTL).Err()
}
