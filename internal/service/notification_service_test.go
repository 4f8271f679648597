package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"Agora_Community/internal/model"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifyJoinRequestFansOutToAdmins(t *testing.T) {
	db := newTestDB(t)
	notifier := NewOutboxNotifier(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	admin := seedUser(t, db, "admin")
	member := seedUser(t, db, "member")
	applicant := seedUser(t, db, "applicant")
	c := seedCommunity(t, db, &model.Community{Name: "gated", CreatedBy: owner.ID, IsActive: true, RequireApproval: true})

	seedMembership(t, db, &model.Membership{
		CommunityID: c.ID, UserID: admin.ID,
		Role: model.RoleAdmin, Status: model.StatusApproved,
	})
	seedMembership(t, db, &model.Membership{
		CommunityID: c.ID, UserID: member.ID,
		Role: model.RoleMember, Status: model.StatusApproved,
	})

	err := notifier.NotifyJoinRequest(ctx, c.ID, applicant.ID, map[string]any{"motivation": "hi"})
	require.NoError(t, err)

	// 创建者 + admin 各一条，普通成员收不到
	var rows []model.NotificationOutbox
	require.NoError(t, db.Where("event_type = ?", "join_request").Find(&rows).Error)
	require.Len(t, rows, 2)

	recipients := map[uint64]bool{}
	for _, r := range rows {
		recipients[r.RecipientID] = true

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.Payload), &payload))
		require.Equal(t, "join_request", payload["type"])
		require.Contains(t, payload["message"], "applicant")
	}
	require.True(t, recipients[owner.ID])
	require.True(t, recipients[admin.ID])
	require.False(t, recipients[member.ID])
}

func TestNotifyApprovedAndRejected(t *testing.T) {
	db := newTestDB(t)
	notifier := NewOutboxNotifier(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	u := seedUser(t, db, "alice")
	c := seedCommunity(t, db, &model.Community{Name: "gated", CreatedBy: owner.ID, IsActive: true})

	require.NoError(t, notifier.NotifyMembershipApproved(ctx, c.ID, u.ID, owner.ID))
	require.NoError(t, notifier.NotifyMembershipRejected(ctx, c.ID, u.ID, owner.ID, "not a fit"))

	var rows []model.NotificationOutbox
	require.NoError(t, db.Where("recipient_id = ?", u.ID).Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	require.Equal(t, "membership_approved", rows[0].EventType)
	require.Equal(t, "membership_rejected", rows[1].EventType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(rows[1].Payload), &payload))
	data := payload["data"].(map[string]any)
	require.Equal(t, "not a fit", data["reason"])
	require.Equal(t, "owner", data["rejected_by"])
}

func TestRelayerBookkeeping(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seed := func(eventType string) *model.NotificationOutbox {
		ob := &model.NotificationOutbox{
			EventType: eventType, RecipientID: 1, CommunityID: 1, Payload: `{}`,
		}
		require.NoError(t, db.Create(ob).Error)
		return ob
	}
	good := seed("membership_approved")
	bad := seed("membership_rejected")

	sender := func(ctx context.Context, ob *model.NotificationOutbox) error {
		if ob.ID == bad.ID {
			return errors.New("broker down")
		}
		return nil
	}

	r := NewRelayer(db, sender, zap.NewNop())
	r.drainOnce(ctx)

	var sent, failed model.NotificationOutbox
	require.NoError(t, db.First(&sent, good.ID).Error)
	require.NoError(t, db.First(&failed, bad.ID).Error)
	require.EqualValues(t, 1, sent.Status)
	require.EqualValues(t, 2, failed.Status)
	require.Equal(t, 1, failed.Retry)

	// 失败行不会被重复投递
	var pending []model.NotificationOutbox
	require.NoError(t, db.Where("status = 0").Find(&pending).Error)
	require.Empty(t, pending)
}
