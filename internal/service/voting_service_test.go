package service

import (
	"context"
	"testing"
	"time"

	"Agora_Community/internal/model"
	"Agora_Community/internal/pkg/apperr"

	"github.com/stretchr/testify/require"
)

func TestCreateQuestionPermissions(t *testing.T) {
	db := newTestDB(t)
	svc := NewVotingService(db)
	communities := NewCommunityService(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	mod := seedUser(t, db, "mod")
	member := seedUser(t, db, "member")
	c, err := communities.Create(ctx, owner.ID, CreateCommunityInput{Name: "agora"})
	require.NoError(t, err)

	seedMembership(t, db, &model.Membership{
		CommunityID: c.ID, UserID: mod.ID,
		Role: model.RoleModerator, Status: model.StatusApproved,
	})
	seedMembership(t, db, &model.Membership{
		CommunityID: c.ID, UserID: member.ID,
		Role: model.RoleMember, Status: model.StatusApproved,
	})

	in := CreateQuestionInput{Title: "budget?", Options: []string{"yes", "no"}}

	_, err = svc.CreateQuestion(ctx, c.ID, member.ID, in)
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))

	q, err := svc.CreateQuestion(ctx, c.ID, mod.ID, in)
	require.NoError(t, err)
	require.Equal(t, model.QuestionOpen, q.Status)

	_, err = svc.CreateQuestion(ctx, c.ID, owner.ID, in)
	require.NoError(t, err)

	_, err = svc.CreateQuestion(ctx, c.ID, owner.ID, CreateQuestionInput{Title: "x", Options: []string{"only"}})
	require.True(t, apperr.IsKind(err, apperr.KindInvalid))
}

func TestCastVoteOncePerUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewVotingService(db)
	communities := NewCommunityService(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	u := seedUser(t, db, "alice")
	outsider := seedUser(t, db, "outsider")
	c, err := communities.Create(ctx, owner.ID, CreateCommunityInput{Name: "agora"})
	require.NoError(t, err)
	seedMembership(t, db, &model.Membership{
		CommunityID: c.ID, UserID: u.ID,
		Role: model.RoleMember, Status: model.StatusApproved,
	})

	q, err := svc.CreateQuestion(ctx, c.ID, owner.ID, CreateQuestionInput{Title: "budget?", Options: []string{"yes", "no"}})
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, q.ID, u.ID, 0)
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, q.ID, u.ID, 1)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	_, err = svc.CastVote(ctx, q.ID, outsider.ID, 0)
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = svc.CastVote(ctx, q.ID, owner.ID, 5)
	require.True(t, apperr.IsKind(err, apperr.KindInvalid))
}

func TestCastVotePublicVoting(t *testing.T) {
	db := newTestDB(t)
	svc := NewVotingService(db)
	communities := NewCommunityService(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	outsider := seedUser(t, db, "outsider")
	c, err := communities.Create(ctx, owner.ID, CreateCommunityInput{Name: "agora", AllowPublicVoting: true})
	require.NoError(t, err)

	q, err := svc.CreateQuestion(ctx, c.ID, owner.ID, CreateQuestionInput{Title: "budget?", Options: []string{"yes", "no"}})
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, q.ID, outsider.ID, 0)
	require.NoError(t, err)
}

func TestCastVoteWindowAndClose(t *testing.T) {
	db := newTestDB(t)
	svc := NewVotingService(db)
	communities := NewCommunityService(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	u := seedUser(t, db, "alice")
	c, err := communities.Create(ctx, owner.ID, CreateCommunityInput{Name: "agora", AllowPublicVoting: true})
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	q, err := svc.CreateQuestion(ctx, c.ID, owner.ID, CreateQuestionInput{
		Title: "expired?", Options: []string{"yes", "no"},
		StartsAt: past, EndsAt: past.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, q.ID, u.ID, 0)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	open, err := svc.CreateQuestion(ctx, c.ID, owner.ID, CreateQuestionInput{Title: "open?", Options: []string{"yes", "no"}})
	require.NoError(t, err)

	err = svc.CloseQuestion(ctx, open.ID, u.ID)
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))
	require.NoError(t, svc.CloseQuestion(ctx, open.ID, owner.ID))

	_, err = svc.CastVote(ctx, open.ID, u.ID, 0)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestResultsThreshold(t *testing.T) {
	db := newTestDB(t)
	svc := NewVotingService(db)
	communities := NewCommunityService(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	u := seedUser(t, db, "alice")
	// threshold 50%：2 个 approved 成员至少要 1 票
	c, err := communities.Create(ctx, owner.ID, CreateCommunityInput{Name: "agora", VotingThreshold: 50})
	require.NoError(t, err)
	seedMembership(t, db, &model.Membership{
		CommunityID: c.ID, UserID: u.ID,
		Role: model.RoleMember, Status: model.StatusApproved,
	})

	q, err := svc.CreateQuestion(ctx, c.ID, owner.ID, CreateQuestionInput{Title: "budget?", Options: []string{"yes", "no"}})
	require.NoError(t, err)

	result, err := svc.Results(ctx, q.ID)
	require.NoError(t, err)
	require.False(t, result.Passed)
	require.EqualValues(t, 0, result.TotalVotes)

	_, err = svc.CastVote(ctx, q.ID, u.ID, 1)
	require.NoError(t, err)

	result, err = svc.Results(ctx, q.ID)
	require.NoError(t, err)
	require.True(t, result.Passed)
	require.EqualValues(t, 1, result.TotalVotes)
	require.Equal(t, []string{"yes", "no"}, result.Options)
	require.Len(t, result.Tallies, 1)
	require.Equal(t, 1, result.Tallies[0].OptionIndex)
}
