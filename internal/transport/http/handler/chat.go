package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"localchat/internal/app"
	"localchat/internal/model"
	"localchat/internal/transport/http/middleware"
	"localchat/internal/transport/http/response"
)

type UsageLister interface {
	ListByUserID(ctx context.Context, userID uint, limit int) ([]model.UsageRecord, error)
}

type ChatHandler struct {
	chatService *app.ChatService
	usage       UsageLister
}

type CreateSessionRequest struct {
	Title string `json:"title" binding:"max=128"`
	Model string `json:"model" binding:"max=128"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model" binding:"max=128"`
}

type SessionSummary struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewChatHandler(chatService *app.ChatService, usage UsageLister) *ChatHandler {
	return &ChatHandler{chatService: chatService, usage: usage}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	// an empty body means defaults for both fields
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	session, err := h.chatService.CreateSession(c.Request.Context(), app.CreateSessionInput{
		UserID: userID,
		Title:  req.Title,
		Model:  req.Model,
	})
	if err != nil {
		chatError(c, err, "create session failed")
		return
	}

	response.Created(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessions, err := h.chatService.ListSessions(c.Request.Context(), userID)
	if err != nil {
		chatError(c, err, "list sessions failed")
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:        s.ID,
			Title:     s.Title,
			Model:     s.Model,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	response.OK(c, summaries)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.chatService.GetSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		chatError(c, err, "get session failed")
		return
	}

	response.OK(c, session)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
		chatError(c, err, "delete session failed")
		return
	}

	response.OK(c, gin.H{"deleted_session_id": sessionID})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), app.SendMessageInput{
		UserID:    userID,
		SessionID: sessionID,
		Content:   req.Content,
		Model:     req.Model,
	})
	if err != nil {
		chatError(c, err, "send message failed")
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	limit, ok := positiveQuery(c, "limit")
	if !ok {
		return
	}
	afterID, ok := positiveQuery(c, "after_id")
	if !ok {
		return
	}

	page, err := h.chatService.ListMessages(c.Request.Context(), app.ListMessagesInput{
		UserID:    userID,
		SessionID: sessionID,
		AfterID:   uint(afterID),
		Limit:     limit,
	})
	if err != nil {
		chatError(c, err, "list messages failed")
		return
	}

	response.OK(c, page)
}

func (h *ChatHandler) ListUsage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit, ok := positiveQuery(c, "limit")
	if !ok {
		return
	}

	records, err := h.usage.ListByUserID(c.Request.Context(), userID, limit)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list usage failed")
		return
	}

	response.OK(c, records)
}

func sessionIDParam(c *gin.Context) (uint, bool) {
	sessionID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return 0, false
	}
	return uint(sessionID64), true
}

// positiveQuery reads an optional positive integer query value; absent is 0.
func positiveQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+key)
		return 0, false
	}
	return parsed, true
}

func chatError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, app.ErrSessionNotFound.Error())
	case errors.Is(err, app.ErrSessionBusy):
		response.Error(c, http.StatusConflict, response.CodeSessionBusy, app.ErrSessionBusy.Error())
	case errors.Is(err, app.ErrRateLimited):
		response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, app.ErrRateLimited.Error())
	case errors.Is(err, app.ErrUpstreamFailure):
		_ = c.Error(err)
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailure, app.ErrUpstreamFailure.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "request body too large")
		return
	}
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
}
