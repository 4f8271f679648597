package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"Agora_Community/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Community{},
		&model.Membership{},
		&model.VotingQuestion{},
		&model.Vote{},
		&model.NotificationOutbox{},
	))
	return db
}

type fakeCache struct {
	mu          sync.Mutex
	counts      map[uint64]int64
	invalidated []uint64
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: map[uint64]int64{}}
}

func (f *fakeCache) Invalidate(ctx context.Context, communityID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, communityID)
	f.invalidated = append(f.invalidated, communityID)
	return nil
}

func (f *fakeCache) GetMemberCount(ctx context.Context, communityID uint64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cnt, ok := f.counts[communityID]
	return cnt, ok, nil
}

func (f *fakeCache) SetMemberCount(ctx context.Context, communityID uint64, cnt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[communityID] = cnt
	return nil
}

type notifierEvent struct {
	kind   string
	userID uint64
	reason string
}

type fakeNotifier struct {
	mu     sync.Mutex
	err    error
	events []notifierEvent
}

func (f *fakeNotifier) record(kind string, userID uint64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, notifierEvent{kind: kind, userID: userID, reason: reason})
	return nil
}

func (f *fakeNotifier) NotifyJoinRequest(ctx context.Context, communityID, userID uint64, application map[string]any) error {
	return f.record("join_request", userID, "")
}

func (f *fakeNotifier) NotifyMembershipApproved(ctx context.Context, communityID, userID, approvedBy uint64) error {
	return f.record("approved", userID, "")
}

func (f *fakeNotifier) NotifyMembershipRejected(ctx context.Context, communityID, userID, rejectedBy uint64, reason string) error {
	return f.record("rejected", userID, reason)
}

func seedUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Password: "x", Email: username + "@example.com"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedCommunity(t *testing.T, db *gorm.DB, c *model.Community) *model.Community {
	t.Helper()
	if c.Name == "" {
		c.Name = "c-" + time.Now().Format("150405.000000")
	}
	if c.VotingThreshold == 0 {
		c.VotingThreshold = 50
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedMembership(t *testing.T, db *gorm.DB, m *model.Membership) *model.Membership {
	t.Helper()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func newMembershipFixture(t *testing.T) (*MembershipService, *gorm.DB, *fakeCache, *fakeNotifier) {
	t.Helper()
	db := newTestDB(t)
	cache := newFakeCache()
	notifier := &fakeNotifier{}
	svc := NewMembershipService(db, cache, notifier, zap.NewNop())
	return svc, db, cache, notifier
}
