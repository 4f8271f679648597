package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Agora_Community/internal/model"
	"Agora_Community/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type nopCache struct{}

func (nopCache) Invalidate(ctx context.Context, communityID uint64) error { return nil }
func (nopCache) GetMemberCount(ctx context.Context, communityID uint64) (int64, bool, error) {
	return 0, false, nil
}
func (nopCache) SetMemberCount(ctx context.Context, communityID uint64, cnt int64) error {
	return nil
}

type nopNotifier struct{}

func (nopNotifier) NotifyJoinRequest(ctx context.Context, communityID, userID uint64, application map[string]any) error {
	return nil
}
func (nopNotifier) NotifyMembershipApproved(ctx context.Context, communityID, userID, approvedBy uint64) error {
	return nil
}
func (nopNotifier) NotifyMembershipRejected(ctx context.Context, communityID, userID, rejectedBy uint64, reason string) error {
	return nil
}

// stubAuth 测试里替代 JWT 中间件，直接注入调用者身份
func stubAuth(userID uint64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

type env struct {
	db  *gorm.DB
	svc *service.MembershipService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Community{}, &model.Membership{}))
	return &env{
		db:  db,
		svc: service.NewMembershipService(db, nopCache{}, nopNotifier{}, zap.NewNop()),
	}
}

func (e *env) router(userID uint64) *gin.Engine {
	r := gin.New()
	h := NewMembershipHandler(e.svc)
	g := r.Group("/api", stubAuth(userID))
	g.POST("/communities/:id/members/apply", h.Apply)
	g.GET("/communities/:id/members", h.List)
	g.PUT("/communities/:id/members/:memberId/approve", h.Approve)
	g.PUT("/communities/:id/members/:memberId/role", h.ChangeRole)
	g.DELETE("/communities/:id/members/:memberId", h.Remove)
	return r
}

func (e *env) do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func (e *env) seedCommunity(t *testing.T, c *model.Community) *model.Community {
	t.Helper()
	require.NoError(t, e.db.Create(c).Error)
	return c
}

func (e *env) seedUser(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Password: "x", Email: username + "@example.com"}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func TestApplyEndpoint(t *testing.T) {
	e := newEnv(t)
	owner := e.seedUser(t, "owner")
	u := e.seedUser(t, "alice")
	e.seedCommunity(t, &model.Community{Name: "open", CreatedBy: owner.ID, IsActive: true, VotingThreshold: 50})

	r := e.router(u.ID)

	w, resp := e.do(t, r, http.MethodPost, "/api/communities/1/members/apply", "")
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, resp.Success)
	require.Empty(t, resp.Error)

	// 重复申请 409
	w, resp = e.do(t, r, http.MethodPost, "/api/communities/1/members/apply", "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "already has a membership")

	// 社区不存在 404
	w, _ = e.do(t, r, http.MethodPost, "/api/communities/99/members/apply", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	// 非法路径参数 400
	w, _ = e.do(t, r, http.MethodPost, "/api/communities/abc/members/apply", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOwnerProtectionEndpoint(t *testing.T) {
	e := newEnv(t)
	owner := e.seedUser(t, "owner")
	e.seedCommunity(t, &model.Community{Name: "open", CreatedBy: owner.ID, IsActive: true, VotingThreshold: 50})
	now := time.Now()
	ownerRow := &model.Membership{
		CommunityID: 1, UserID: owner.ID,
		Role: model.RoleAdmin, Status: model.StatusApproved,
		JoinedAt: now, ApprovedAt: &now, ApprovedBy: &owner.ID,
	}
	require.NoError(t, e.db.Create(ownerRow).Error)

	r := e.router(owner.ID)

	w, resp := e.do(t, r, http.MethodDelete, "/api/communities/1/members/1", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, resp.Error, "cannot remove community owner")

	w, _ = e.do(t, r, http.MethodPut, "/api/communities/1/members/1/role", `{"role":"member"}`)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestChangeRoleEndpointValidation(t *testing.T) {
	e := newEnv(t)
	owner := e.seedUser(t, "owner")
	u := e.seedUser(t, "alice")
	e.seedCommunity(t, &model.Community{Name: "open", CreatedBy: owner.ID, IsActive: true, VotingThreshold: 50})
	require.NoError(t, e.db.Create(&model.Membership{
		CommunityID: 1, UserID: u.ID,
		Role: model.RoleMember, Status: model.StatusApproved, JoinedAt: time.Now(),
	}).Error)

	r := e.router(owner.ID)

	// body 缺 role 字段 400
	w, _ := e.do(t, r, http.MethodPut, "/api/communities/1/members/1/role", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// 非法 role 值 400
	w, resp := e.do(t, r, http.MethodPut, "/api/communities/1/members/1/role", `{"role":"superuser"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, resp.Error, "invalid role")

	w, resp = e.do(t, r, http.MethodPut, "/api/communities/1/members/1/role", `{"role":"moderator"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)
}

func TestApproveEndpointNotFound(t *testing.T) {
	e := newEnv(t)
	owner := e.seedUser(t, "owner")
	e.seedCommunity(t, &model.Community{Name: "open", CreatedBy: owner.ID, IsActive: true, VotingThreshold: 50})

	r := e.router(owner.ID)

	w, resp := e.do(t, r, http.MethodPut, "/api/communities/1/members/42/approve", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.False(t, resp.Success)
}

func TestListEndpointEnvelope(t *testing.T) {
	e := newEnv(t)
	owner := e.seedUser(t, "owner")
	e.seedCommunity(t, &model.Community{Name: "open", CreatedBy: owner.ID, IsActive: true, VotingThreshold: 50})

	r := e.router(owner.ID)

	w, resp := e.do(t, r, http.MethodGet, "/api/communities/1/members?page=1&limit=20", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var page struct {
		Pagination struct {
			Total int64 `json:"total"`
			Pages int   `json:"pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(data, &page))
	require.EqualValues(t, 0, page.Pagination.Total)
	require.Equal(t, 0, page.Pagination.Pages)
}
