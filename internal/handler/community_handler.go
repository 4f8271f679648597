package handler

import (
	"net/http"

	"Agora_Community/internal/service"

	"github.com/gin-gonic/gin"
)

type CommunityHandler struct {
	svc *service.CommunityService
}

func NewCommunityHandler(svc *service.CommunityService) *CommunityHandler {
	return &CommunityHandler{svc: svc}
}

type CommunityCreateReq struct {
	Name              string `json:"name" binding:"required"`
	Description       string `json:"description"`
	RequireApproval   bool   `json:"require_approval"`
	AllowPublicVoting bool   `json:"allow_public_voting"`
	MaxMembers        int    `json:"max_members"`
	VotingThreshold   int    `json:"voting_threshold"`
}

type CommunityConfigReq struct {
	IsActive          *bool `json:"is_active"`
	RequireApproval   *bool `json:"require_approval"`
	AllowPublicVoting *bool `json:"allow_public_voting"`
	MaxMembers        *int  `json:"max_members"`
	VotingThreshold   *int  `json:"voting_threshold"`
}

func (h *CommunityHandler) Create(c *gin.Context) {
	var req CommunityCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid params")
		return
	}

	community, err := h.svc.Create(c.Request.Context(), currentUserID(c), service.CreateCommunityInput{
		Name:              req.Name,
		Description:       req.Description,
		RequireApproval:   req.RequireApproval,
		AllowPublicVoting: req.AllowPublicVoting,
		MaxMembers:        req.MaxMembers,
		VotingThreshold:   req.VotingThreshold,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"community": community})
}

func (h *CommunityHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	community, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"community": community})
}

func (h *CommunityHandler) List(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "limit", 20))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, page)
}

func (h *CommunityHandler) UpdateConfig(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CommunityConfigReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid params")
		return
	}

	community, err := h.svc.UpdateConfig(c.Request.Context(), id, currentUserID(c), service.ConfigUpdate{
		IsActive:          req.IsActive,
		RequireApproval:   req.RequireApproval,
		AllowPublicVoting: req.AllowPublicVoting,
		MaxMembers:        req.MaxMembers,
		VotingThreshold:   req.VotingThreshold,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"community": community})
}
