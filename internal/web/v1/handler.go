package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/chat-service/internal/core/domain"
	logicv1 "github.com/duynhne/chat-service/internal/logic/v1"
	"github.com/duynhne/chat-service/middleware"
	pkgzerolog "github.com/duynhne/chat-service/pkg/logger/zerolog"
)

// Handler groups HTTP handlers for the chat API v1.
type Handler struct {
	chat *logicv1.ChatService
}

// NewHandler creates a Handler backed by chat.
func NewHandler(chat *logicv1.ChatService) *Handler {
	return &Handler{chat: chat}
}

// RegisterRoutes registers the chat API routes on the given group (mounted at /api).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	messages := rg.Group("/messages")
	{
		messages.POST("", h.CreateMessage)
		messages.GET("", h.MessagesBefore)
		messages.GET("/recent", h.RecentMessages)
	}

	users := rg.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.POST("", h.CreateUser)
		users.GET("/active", h.ActiveUsers)
		users.GET("/add-default", h.AddDefaultUser)
		users.GET("/ensure-default-users", h.EnsureDefaultUsers)
		users.POST("/ensure-default-users", h.EnsureDefaultUsers)
		users.GET("/:id", h.GetUser)
	}
}

// Hello is a plain text liveness greeting.
func Hello(c *gin.Context) {
	c.String(http.StatusOK, "Hello, World!")
}

func startSpan(c *gin.Context) (trace.Span, *zerolog.Logger) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("route", c.FullPath()),
	))
	c.Request = c.Request.WithContext(ctx)
	return span, pkgzerolog.FromContext(ctx)
}

// respondError maps logic errors to statuses. Anything unmapped is a 500
// and its detail stays in the log.
func respondError(c *gin.Context, span trace.Span, logger *zerolog.Logger, err error, msg string) {
	span.RecordError(err)

	switch {
	case errors.Is(err, logicv1.ErrUserNotFound):
		logger.Warn().Err(err).Msg(msg)
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, logicv1.ErrSenderNotFound):
		logger.Warn().Err(err).Msg(msg)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sender not found"})
	case errors.Is(err, logicv1.ErrUserExists):
		logger.Warn().Err(err).Msg(msg)
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
	case errors.Is(err, logicv1.ErrInvalidEntryType):
		logger.Warn().Err(err).Msg(msg)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, span trace.Span, logger *zerolog.Logger, err error) {
	span.SetAttributes(attribute.Bool("request.valid", false))
	span.RecordError(err)
	logger.Warn().Err(err).Msg("Invalid request")
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// CreateMessage serves POST /api/messages.
func (h *Handler) CreateMessage(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var req domain.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}

	entry, err := h.chat.CreateMessage(c.Request.Context(), req)
	if err != nil {
		respondError(c, span, logger, err, "Create message failed")
		return
	}

	logger.Info().Int64("message_id", entry.ID).Int64("sender_id", entry.Sender.ID).Msg("Message created")
	c.JSON(http.StatusOK, entry)
}

// RecentMessages serves GET /api/messages/recent.
func (h *Handler) RecentMessages(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	entries, err := h.chat.RecentMessages(c.Request.Context())
	if err != nil {
		respondError(c, span, logger, err, "Recent messages failed")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// MessagesBefore serves GET /api/messages?beforeId=<id>&limit=<n>.
func (h *Handler) MessagesBefore(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	beforeID, err := strconv.ParseInt(c.Query("beforeId"), 10, 64)
	if err != nil {
		badRequest(c, span, logger, errors.New("beforeId must be an integer"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(logicv1.DefaultPageLimit)))
	if err != nil {
		badRequest(c, span, logger, errors.New("limit must be an integer"))
		return
	}

	entries, err := h.chat.MessagesBefore(c.Request.Context(), beforeID, limit)
	if err != nil {
		respondError(c, span, logger, err, "Messages before failed")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ListUsers serves GET /api/users.
func (h *Handler) ListUsers(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	users, err := h.chat.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, span, logger, err, "List users failed")
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUser serves GET /api/users/:id.
func (h *Handler) GetUser(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, span, logger, errors.New("id must be an integer"))
		return
	}

	user, err := h.chat.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, span, logger, err, "Get user failed")
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateUser serves POST /api/users.
func (h *Handler) CreateUser(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}

	user, err := h.chat.CreateUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, span, logger, err, "Create user failed")
		return
	}

	logger.Info().Int64("user_id", user.ID).Msg("User created")
	c.JSON(http.StatusOK, user)
}

// ActiveUsers serves GET /api/users/active.
func (h *Handler) ActiveUsers(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	users, err := h.chat.ActiveUsers(c.Request.Context())
	if err != nil {
		respondError(c, span, logger, err, "Active users failed")
		return
	}
	c.JSON(http.StatusOK, users)
}

// EnsureDefaultUsers serves GET and POST /api/users/ensure-default-users.
func (h *Handler) EnsureDefaultUsers(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	users, err := h.chat.EnsureDefaultUsers(c.Request.Context())
	if err != nil {
		respondError(c, span, logger, err, "Ensure default users failed")
		return
	}
	c.JSON(http.StatusOK, users)
}

// AddDefaultUser serves GET /api/users/add-default.
func (h *Handler) AddDefaultUser(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	user, err := h.chat.AddDefaultUser(c.Request.Context())
	if err != nil {
		respondError(c, span, logger, err, "Add default user failed")
		return
	}

	logger.Info().Int64("user_id", user.ID).Msg("Default user added")
	c.JSON(http.StatusOK, user)
}
