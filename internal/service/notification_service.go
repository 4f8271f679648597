package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Agora_Community/internal/model"
	"Agora_Community/internal/pkg"
	"Agora_Community/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxNotifier 把通知先写进 notification_outbox，由 Relayer 异步投递。
// 实现 Notifier 接口，调用方失败不重试、不传播。
type OutboxNotifier struct {
	outbox      *mysql.OutboxRepository
	members     *mysql.MembershipRepository
	communities *mysql.CommunityRepository
	users       *mysql.UserRepository
}

func NewOutboxNotifier(db *gorm.DB) *OutboxNotifier {
	return &OutboxNotifier{
		outbox:      &mysql.OutboxRepository{DB: db},
		members:     &mysql.MembershipRepository{DB: db},
		communities: &mysql.CommunityRepository{DB: db},
		users:       &mysql.UserRepository{DB: db},
	}
}

func (n *OutboxNotifier) NotifyJoinRequest(ctx context.Context, communityID, userID uint64, application map[string]any) error {
	community, err := n.communities.FindByID(ctx, communityID)
	if err != nil {
		return fmt.Errorf("find community: %w", err)
	}
	user, err := n.users.FindByID(userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"type":     "join_request",
		"title":    "New Community Join Request",
		"message":  fmt.Sprintf("%s has requested to join %s", user.Username, community.Name),
		"category": "membership",
		"priority": "high",
		"data": map[string]any{
			"community_id":     communityID,
			"community_name":   community.Name,
			"user_id":          userID,
			"username":         user.Username,
			"application_data": application,
		},
	})
	if err != nil {
		return err
	}

	// 发给创建者 + 所有 approved 的 admin
	recipients := map[uint64]struct{}{community.CreatedBy: {}}
	admins, _, err := n.members.ListCommunityMembers(ctx, communityID, mysql.MemberQuery{
		Status: model.StatusApproved,
		Role:   model.RoleAdmin,
		Limit:  100,
	})
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	for _, a := range admins {
		recipients[a.UserID] = struct{}{}
	}

	for recipient := range recipients {
		ob := &model.NotificationOutbox{
			EventType:   "join_request",
			RecipientID: recipient,
			CommunityID: communityID,
			Payload:     string(payload),
		}
		if err = n.outbox.Insert(ctx, ob); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
	}
	return nil
}

func (n *OutboxNotifier) NotifyMembershipApproved(ctx context.Context, communityID, userID, approvedBy uint64) error {
	community, err := n.communities.FindByID(ctx, communityID)
	if err != nil {
		return fmt.Errorf("find community: %w", err)
	}

	approver := "Admin"
	if u, err := n.users.FindByID(approvedBy); err == nil {
		approver = u.Username
	}

	payload, err := json.Marshal(map[string]any{
		"type":     "membership_approved",
		"title":    "Community Membership Approved",
		"message":  fmt.Sprintf("Your request to join %s has been approved!", community.Name),
		"category": "membership",
		"priority": "normal",
		"data": map[string]any{
			"community_id":   communityID,
			"community_name": community.Name,
			"approved_by":    approver,
		},
	})
	if err != nil {
		return err
	}

	return n.outbox.Insert(ctx, &model.NotificationOutbox{
		EventType:   "membership_approved",
		RecipientID: userID,
		CommunityID: communityID,
		Payload:     string(payload),
	})
}

func (n *OutboxNotifier) NotifyMembershipRejected(ctx context.Context, communityID, userID, rejectedBy uint64, reason string) error {
	community, err := n.communities.FindByID(ctx, communityID)
	if err != nil {
		return fmt.Errorf("find community: %w", err)
	}

	rejecter := "Admin"
	if u, err := n.users.FindByID(rejectedBy); err == nil {
		rejecter = u.Username
	}

	payload, err := json.Marshal(map[string]any{
		"type":     "membership_rejected",
		"title":    "Community Membership Application",
		"message":  fmt.Sprintf("Your request to join %s was not approved at this time.", community.Name),
		"category": "membership",
		"priority": "normal",
		"data": map[string]any{
			"community_id":   communityID,
			"community_name": community.Name,
			"rejected_by":    rejecter,
			"reason":         reason,
		},
	})
	if err != nil {
		return err
	}

	return n.outbox.Insert(ctx, &model.NotificationOutbox{
		EventType:   "membership_rejected",
		RecipientID: userID,
		CommunityID: communityID,
		Payload:     string(payload),
	})
}

type Sender func(ctx context.Context, ob *model.NotificationOutbox) error

// Relayer 定时扫 outbox，成功置 1，失败置 2 并累加 retry
type Relayer struct {
	repo      *mysql.OutboxRepository
	batchSize int
	interval  time.Duration
	sender    Sender
	log       *zap.Logger
}

func NewRelayer(db *gorm.DB, sender Sender, log *zap.Logger) *Relayer {
	return &Relayer{
		repo:      &mysql.OutboxRepository{DB: db},
		batchSize: 200,
		interval:  time.Second,
		sender:    sender,
		log:       log,
	}
}

func (r *Relayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

func (r *Relayer) drainOnce(ctx context.Context) {
	rows, err := r.repo.List(ctx, r.batchSize)
	if err != nil {
		r.log.Error("outbox query failed", zap.Error(err))
		return
	}
	for i := range rows {
		ob := rows[i]
		if err = r.sender(ctx, &ob); err != nil {
			r.log.Warn("outbox send failed", zap.Uint64("id", ob.ID), zap.Error(err))
			if err = r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				r.log.Error("outbox retry bookkeeping failed", zap.Uint64("id", ob.ID), zap.Error(err))
			}
			continue
		}
		if err = r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			r.log.Error("outbox success bookkeeping failed", zap.Uint64("id", ob.ID), zap.Error(err))
		}
	}
}

// KafkaSender 按接收者分 key，同一用户的通知保序
func KafkaSender(producer *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ob *model.NotificationOutbox) error {
		return producer.Send(ctx, pkg.MakeKeyFromID(ob.RecipientID), []byte(ob.Payload))
	}
}

// LogSender 本地开发用的占位 sender
func LogSender(log *zap.Logger) Sender {
	return func(ctx context.Context, ob *model.NotificationOutbox) error {
		log.Info("OUTBOX SEND",
			zap.String("type", ob.EventType),
			zap.Uint64("recipient", ob.RecipientID),
			zap.String("payload", ob.Payload))
		return nil
	}
}
