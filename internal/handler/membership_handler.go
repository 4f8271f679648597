package handler

import (
	"net/http"

	"Agora_Community/internal/model"
	"Agora_Community/internal/service"

	"github.com/gin-gonic/gin"
)

// MembershipHandler 纯翻译层：取参数、调 service、按错误类别回状态码
type MembershipHandler struct {
	svc *service.MembershipService
}

func NewMembershipHandler(svc *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{svc: svc}
}

type RejectReq struct {
	Reason string `json:"reason"`
}

type RoleReq struct {
	Role string `json:"role" binding:"required"`
}

type StatusReq struct {
	Status string `json:"status" binding:"required"`
}

// Apply POST /api/communities/:id/members/apply
func (h *MembershipHandler) Apply(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID := currentUserID(c)

	// 申请附言等自由字段原样透传给通知
	var application map[string]any
	_ = c.ShouldBindJSON(&application)

	m, err := h.svc.Apply(c.Request.Context(), communityID, userID, application)
	if err != nil {
		respondErr(c, err)
		return
	}

	message := "Application submitted successfully. Waiting for approval."
	if m.Status == model.StatusApproved {
		message = "Successfully joined the community!"
	}
	respondOK(c, http.StatusCreated, gin.H{"membership": m, "message": message})
}

// List GET /api/communities/:id/members
func (h *MembershipHandler) List(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	page, err := h.svc.CommunityMembers(c.Request.Context(), communityID, service.ListOptions{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
		Status: c.Query("status"),
		Role:   c.Query("role"),
		Search: c.Query("search"),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, page)
}

// Pending GET /api/communities/:id/members/pending
func (h *MembershipHandler) Pending(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	page, err := h.svc.PendingApplications(c.Request.Context(), communityID, service.ListOptions{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
		Search: c.Query("search"),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, page)
}

// MyMemberships GET /api/users/me/memberships
func (h *MembershipHandler) MyMemberships(c *gin.Context) {
	userID := currentUserID(c)

	page, err := h.svc.UserMemberships(c.Request.Context(), userID, service.ListOptions{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
		Status: c.Query("status"),
		Role:   c.Query("role"),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, page)
}

// Approve PUT /api/communities/:id/members/:memberId/approve
func (h *MembershipHandler) Approve(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "memberId")
	if !ok {
		return
	}

	m, err := h.svc.Approve(c.Request.Context(), communityID, memberID, currentUserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"membership": m, "message": "Member approved successfully"})
}

// Reject PUT /api/communities/:id/members/:memberId/reject
func (h *MembershipHandler) Reject(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "memberId")
	if !ok {
		return
	}

	var req RejectReq
	_ = c.ShouldBindJSON(&req)

	m, err := h.svc.Reject(c.Request.Context(), communityID, memberID, currentUserID(c), req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"membership": m, "message": "Member rejected"})
}

// Remove DELETE /api/communities/:id/members/:memberId
func (h *MembershipHandler) Remove(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "memberId")
	if !ok {
		return
	}

	m, err := h.svc.Remove(c.Request.Context(), communityID, memberID, currentUserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"membership": m, "message": "Member removed"})
}

// ChangeRole PUT /api/communities/:id/members/:memberId/role
func (h *MembershipHandler) ChangeRole(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "memberId")
	if !ok {
		return
	}

	var req RoleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid params")
		return
	}

	m, err := h.svc.ChangeRole(c.Request.Context(), communityID, memberID, req.Role, currentUserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"membership": m, "message": "Member role updated"})
}

// UpdateStatus PUT /api/communities/:id/members/:memberId/status
func (h *MembershipHandler) UpdateStatus(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "memberId")
	if !ok {
		return
	}

	var req StatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid params")
		return
	}

	m, err := h.svc.UpdateStatus(c.Request.Context(), communityID, memberID, req.Status, currentUserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"membership": m, "message": "Member status updated"})
}

// Status GET /api/communities/:id/members/:memberId
func (h *MembershipHandler) Status(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "memberId")
	if !ok {
		return
	}

	d, err := h.svc.MemberStatus(c.Request.Context(), communityID, memberID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"membership": d})
}

// History GET /api/memberships/:id/history
func (h *MembershipHandler) History(c *gin.Context) {
	membershipID, ok := paramID(c, "id")
	if !ok {
		return
	}

	hist, err := h.svc.History(c.Request.Context(), membershipID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, hist)
}

// Count GET /api/communities/:id/members/count
func (h *MembershipHandler) Count(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	cnt, err := h.svc.MemberCount(c.Request.Context(), communityID, c.Query("status"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"count": cnt})
}
