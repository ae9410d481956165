// Package http serves the auth operations as a JSON API on gin.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

const userIDKey = "userID"

// AuthService is the part of services.UserService the routes call.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (string, error)
	Me(ctx context.Context, userID string) (*models.PublicUser, error)
	Sessions(ctx context.Context, userID string) ([]models.Session, error)
}

// Handler wires HTTP routes to the auth service.
type Handler struct {
	users   AuthService
	metrics http.Handler
	logger  logging.Logger
}

// NewHandler builds the routes. metrics may be nil, in which case /metrics
// is not served.
func NewHandler(users AuthService, metrics http.Handler, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Handler{
		users:   users,
		metrics: metrics,
		logger:  logger.With("module", "http_server"),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	api := router.Group("/api/v1/auth")
	{
		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.POST("/refresh", h.refresh)
		api.POST("/logout", h.logout)

		authed := api.Group("", h.requireAuth)
		authed.GET("/me", h.me)
		authed.GET("/sessions", h.sessions)
	}
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		FullName: req.FullName,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	pair, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	pair, err := h.users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *Handler) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	if err := h.users.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.users.Me(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) sessions(c *gin.Context) {
	sessions, err := h.users.Sessions(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// requireAuth accepts "Authorization: Bearer <access token>".
func (h *Handler) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": common.PublicAuthFailureMessage})
		return
	}

	userID, err := h.users.Authenticate(c.Request.Context(), strings.TrimSpace(token))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": common.PublicAuthFailureMessage})
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}

func (h *Handler) fail(c *gin.Context, err error) {
	code, msg := statusFor(err)
	c.JSON(code, gin.H{"error": msg})
}

// statusFor maps a service error onto an HTTP status and a message safe to
// show to the caller.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, common.ErrUsernameTaken):
		return http.StatusConflict, "username already taken"
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, "already exists"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, common.PublicAuthFailureMessage
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
