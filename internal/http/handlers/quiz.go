package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oakmind/oakmind-backend/internal/http/response"
	pkgerrors "github.com/oakmind/oakmind-backend/internal/pkg/errors"
	"github.com/oakmind/oakmind-backend/internal/requestdata"
	"github.com/oakmind/oakmind-backend/internal/services"
)

type QuizHandler struct {
	quiz services.QuizService
}

func NewQuizHandler(quiz services.QuizService) *QuizHandler {
	return &QuizHandler{quiz: quiz}
}

type triggerReviewRequest struct {
	ContextID       int64       `json:"contextId"`
	SessionKey      string      `json:"sessionKey"`
	AnsweredItemIDs []uuid.UUID `json:"answeredItemIds"`
	WrongItemIDs    []uuid.UUID `json:"wrongItemIds"`
}

// TriggerReview admits an "answered quiz" event. 202 when a generation round
// was admitted, 200 when the trigger was absorbed (empty set or duplicate).
func (h *QuizHandler) TriggerReview(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.RequesterID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req triggerReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	admitted, err := h.quiz.TriggerReview(c.Request.Context(), services.ReviewTrigger{
		RequesterID:     rd.RequesterID,
		ContextID:       req.ContextID,
		SessionKey:      strings.TrimSpace(req.SessionKey),
		AnsweredItemIDs: req.AnsweredItemIDs,
		WrongItemIDs:    req.WrongItemIDs,
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "admission_failed", err)
		return
	}

	if !admitted {
		response.RespondOK(c, gin.H{"admitted": false})
		return
	}
	response.RespondAccepted(c, gin.H{"admitted": true})
}

type triggerGenerateRequest struct {
	ContextID  int64  `json:"contextId"`
	Mode       string `json:"mode"`
	Difficulty string `json:"difficulty"`
	Topic      string `json:"topic"`
}

func (h *QuizHandler) TriggerGenerate(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.RequesterID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req triggerGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	err := h.quiz.TriggerGenerate(c.Request.Context(), services.GenerateTrigger{
		RequesterID:    rd.RequesterID,
		ContextID:      req.ContextID,
		Mode:           strings.ToUpper(strings.TrimSpace(req.Mode)),
		Difficulty:     strings.ToUpper(strings.TrimSpace(req.Difficulty)),
		Topic:          strings.TrimSpace(req.Topic),
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "admission_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"admitted": true})
}

func (h *QuizHandler) Latest(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.RequesterID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	contextID, err := strconv.ParseInt(c.Query("contextId"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_context_id", err)
		return
	}

	items, err := h.quiz.LatestBatch(c.Request.Context(), rd.RequesterID, contextID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"items": items})
}
