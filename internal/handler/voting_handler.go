package handler

import (
	"net/http"
	"time"

	"Agora_Community/internal/service"

	"github.com/gin-gonic/gin"
)

type VotingHandler struct {
	svc *service.VotingService
}

func NewVotingHandler(svc *service.VotingService) *VotingHandler {
	return &VotingHandler{svc: svc}
}

type QuestionCreateReq struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Options     []string   `json:"options" binding:"required,min=2"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

type VoteReq struct {
	OptionIndex *int `json:"option_index" binding:"required"`
}

// CreateQuestion POST /api/communities/:id/questions
func (h *VotingHandler) CreateQuestion(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req QuestionCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid params")
		return
	}

	in := service.CreateQuestionInput{
		Title:       req.Title,
		Description: req.Description,
		Options:     req.Options,
	}
	if req.StartsAt != nil {
		in.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		in.EndsAt = *req.EndsAt
	}

	q, err := h.svc.CreateQuestion(c.Request.Context(), communityID, currentUserID(c), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"question": q})
}

// ListQuestions GET /api/communities/:id/questions
func (h *VotingHandler) ListQuestions(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	list, pagination, err := h.svc.ListQuestions(c.Request.Context(), communityID,
		queryInt(c, "page", 1), queryInt(c, "limit", 20))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"questions": list, "pagination": pagination})
}

// Vote POST /api/questions/:id/votes
func (h *VotingHandler) Vote(c *gin.Context) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req VoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid params")
		return
	}

	v, err := h.svc.CastVote(c.Request.Context(), questionID, currentUserID(c), *req.OptionIndex)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"vote": v})
}

// Results GET /api/questions/:id/results
func (h *VotingHandler) Results(c *gin.Context) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.Results(c.Request.Context(), questionID)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// Close PUT /api/questions/:id/close
func (h *VotingHandler) Close(c *gin.Context) {
	questionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.CloseQuestion(c.Request.Context(), questionID, currentUserID(c)); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "question closed"})
}
