package users

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/internal/session"
	"github.com/sheger-events/backend/pkg/queue"
	"github.com/sheger-events/backend/pkg/response"
	"github.com/sheger-events/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
// Public registration always creates a pending organizer.
type RegisterRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Phone        *string `json:"phone"`
	Password     string  `json:"password" binding:"required,min=8"`
	Name         string  `json:"name" binding:"required,min=2"`
	BusinessName string  `json:"businessName" binding:"required,min=2"`
}

// LoginRequest is the body for POST /auth/login.
// Identifier matches email or phone; role optionally pins the login surface.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Role       string `json:"role" binding:"omitempty,oneof=organizer admin"`
}

// ForgotPasswordRequest is the body for POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest is the body for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// VerifyEmailRequest is the body for POST /auth/verify-email.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// CreateUserRequest is the body for POST /admin/users.
type CreateUserRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Phone        *string `json:"phone"`
	Password     string  `json:"password" binding:"required,min=8"`
	Name         string  `json:"name" binding:"required,min=2"`
	BusinessName string  `json:"businessName"`
	Role         string  `json:"role" binding:"required,oneof=organizer admin"`
}

// UpdateStatusRequest is the body for POST /admin/organizers/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved suspended"`
}

// Handler handles auth and user administration endpoints.
type Handler struct {
	store    Store
	sessions *session.Store
	tokens   *TokenService
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewHandler creates a users handler. tokens and q may be nil when Redis is unavailable;
// the password-reset and notification features degrade to no-ops.
func NewHandler(store Store, sessions *session.Store, tokens *TokenService, q *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{store: store, sessions: sessions, tokens: tokens, queue: q, logger: logger}
}

// Register handles POST /auth/register. New accounts are organizers pending
// admin approval; no session is issued until the account is approved.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.store.Create(c.Request.Context(), CreateParams{
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         models.RoleOrganizer,
		Name:         req.Name,
		BusinessName: req.BusinessName,
		Status:       models.StatusPending,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			response.Conflict(c, "user with this email or phone already exists")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	c.JSON(http.StatusCreated, response.Body{
		Success: true,
		Data: gin.H{
			"user":             user.ToPublic(),
			"requiresApproval": true,
		},
	})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	user, err := h.store.FindByIdentifier(c.Request.Context(), req.Identifier)
	if err != nil {
		h.logger.Error("find user", zap.Error(err))
		response.Internal(c, "failed to look up user")
		return
	}
	if user == nil {
		response.Unauthorized(c, "invalid email/phone or password")
		return
	}

	if req.Role != "" && user.Role != models.Role(req.Role) {
		response.Forbidden(c, "invalid credentials for this role")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email/phone or password")
		return
	}

	if user.Status == models.StatusSuspended {
		response.Forbidden(c, "account suspended, contact support")
		return
	}

	// A pending organizer still gets a session so the approval-wait page can
	// read the claim, but the response signals the redirect.
	if user.Status == models.StatusPending {
		if err := h.sessions.Set(c, user); err != nil {
			response.Internal(c, "failed to create session")
			return
		}
		c.JSON(http.StatusForbidden, response.Body{
			Success: false,
			Error:   "account pending approval",
			Data: gin.H{
				"requiresApproval": true,
				"user":             user.ToPublic(),
			},
		})
		return
	}

	if err := h.sessions.Set(c, user); err != nil {
		response.Internal(c, "failed to create session")
		return
	}
	response.OK(c, gin.H{"user": user.ToPublic()})
}

// Me handles GET /auth/me. Returns the claim carried by the session cookie.
func (h *Handler) Me(c *gin.Context) {
	claims := h.sessions.Load(c)
	if claims == nil {
		response.Unauthorized(c, "authentication required")
		return
	}
	response.OK(c, gin.H{
		"id":           claims.UserID,
		"email":        claims.Email,
		"role":         claims.Role,
		"name":         claims.Name,
		"businessName": claims.BusinessName,
		"status":       claims.Status,
	})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	h.sessions.Clear(c)
	response.OKMessage(c, nil, "logged out")
}

// ForgotPassword handles POST /auth/forgot-password. Always responds 200 so
// the endpoint does not reveal whether an email is registered.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	user, err := h.store.FindByIdentifier(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("find user", zap.Error(err))
	}
	if user != nil && h.tokens != nil {
		token, err := h.tokens.CreateResetToken(c.Request.Context(), user.ID)
		if err != nil {
			h.logger.Error("create reset token", zap.Error(err))
		} else {
			h.enqueueEmail(c, queue.EmailPayload{
				EmailType:      queue.EmailTypePasswordReset,
				RecipientEmail: user.Email,
				Subject:        "Reset your password",
				Body:           fmt.Sprintf("Use this token to reset your password: %s", token),
			})
		}
	}
	response.OKMessage(c, nil, "if the email is registered, a reset link has been sent")
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	if h.tokens == nil {
		response.BadRequest(c, "password reset is not available")
		return
	}

	userID, err := h.tokens.ConsumeResetToken(c.Request.Context(), req.Token)
	if err != nil {
		h.logger.Error("consume reset token", zap.Error(err))
		response.Internal(c, "failed to verify token")
		return
	}
	if userID == uuid.Nil {
		response.BadRequest(c, "invalid or expired token")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user, err := h.store.Update(c.Request.Context(), userID, UpdateParams{PasswordHash: &hash})
	if err != nil {
		h.logger.Error("update password", zap.Error(err))
		response.Internal(c, "failed to update password")
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OKMessage(c, nil, "password updated")
}

// RequestVerification handles POST /auth/request-verification (authenticated).
func (h *Handler) RequestVerification(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Unauthorized(c, "authentication required")
		return
	}
	if h.tokens == nil {
		response.BadRequest(c, "email verification is not available")
		return
	}
	token, err := h.tokens.CreateVerifyToken(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("create verify token", zap.Error(err))
		response.Internal(c, "failed to create verification token")
		return
	}
	h.enqueueEmail(c, queue.EmailPayload{
		EmailType:      queue.EmailTypeEmailVerification,
		RecipientEmail: claims.Email,
		Subject:        "Verify your email",
		Body:           fmt.Sprintf("Use this token to verify your email: %s", token),
	})
	response.OKMessage(c, nil, "verification email sent")
}

// VerifyEmail handles POST /auth/verify-email.
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}
	if h.tokens == nil {
		response.BadRequest(c, "email verification is not available")
		return
	}
	userID, err := h.tokens.ConsumeVerifyToken(c.Request.Context(), req.Token)
	if err != nil {
		h.logger.Error("consume verify token", zap.Error(err))
		response.Internal(c, "failed to verify token")
		return
	}
	if userID == uuid.Nil {
		response.BadRequest(c, "invalid or expired token")
		return
	}
	user, err := h.store.SetEmailVerified(c.Request.Context(), userID, true)
	if err != nil {
		h.logger.Error("set email verified", zap.Error(err))
		response.Internal(c, "failed to verify email")
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OKMessage(c, gin.H{"emailVerified": true}, "email verified")
}

// ListOrganizers handles GET /admin/organizers. Query ?status= filters by account status.
func (h *Handler) ListOrganizers(c *gin.Context) {
	filter := ListFilter{Role: models.RoleOrganizer}
	switch s := c.Query("status"); s {
	case "":
	case string(models.StatusPending), string(models.StatusApproved), string(models.StatusSuspended):
		filter.Status = models.Status(s)
	default:
		response.BadRequest(c, "invalid status filter")
		return
	}

	list, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list organizers", zap.Error(err))
		response.Internal(c, "failed to list organizers")
		return
	}
	out := make([]models.UserPublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	response.OK(c, out)
}

// UpdateStatus handles POST /admin/organizers/:id/status (admin only).
// Only organizer accounts transition; the allowed transitions are
// pending->approved, pending->suspended, approved->suspended, suspended->approved.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	user, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("find user", zap.Error(err))
		response.Internal(c, "failed to look up user")
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}
	if user.Role != models.RoleOrganizer {
		response.BadRequest(c, "can only update organizer accounts")
		return
	}

	next := models.Status(req.Status)
	if user.Status == next {
		response.OK(c, user.ToPublic())
		return
	}
	if !models.ValidStatusTransition(user.Status, next) {
		response.BadRequest(c, fmt.Sprintf("cannot transition from %s to %s", user.Status, next))
		return
	}

	updated, err := h.store.UpdateStatus(c.Request.Context(), id, next)
	if err != nil {
		h.logger.Error("update status", zap.Error(err))
		response.Internal(c, "failed to update status")
		return
	}
	if updated == nil {
		response.NotFound(c, "user not found")
		return
	}

	// The already-issued session claim keeps its old status until it expires
	// or the organizer logs in again; only new sessions see the change.
	h.enqueueEmail(c, queue.EmailPayload{
		EmailType:      queue.EmailTypeStatusDecision,
		RecipientEmail: updated.Email,
		Subject:        fmt.Sprintf("Your organizer account is now %s", next),
		Body:           fmt.Sprintf("An administrator changed your account status to %s.", next),
	})
	response.OKMessage(c, updated.ToPublic(), "status updated")
}

// CreateUser handles POST /admin/users (admin only). Admin accounts are
// created approved; organizer accounts still start pending.
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	role := models.Role(req.Role)
	status := models.StatusPending
	if role == models.RoleAdmin {
		status = models.StatusApproved
	}

	user, err := h.store.Create(c.Request.Context(), CreateParams{
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
		Name:         req.Name,
		BusinessName: req.BusinessName,
		Status:       status,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			response.Conflict(c, "user with this email or phone already exists")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}
	response.Created(c, user.ToPublic())
}

func (h *Handler) enqueueEmail(c *gin.Context, payload queue.EmailPayload) {
	if h.queue == nil {
		return
	}
	if err := h.queue.EnqueueEmail(c.Request.Context(), payload); err != nil {
		h.logger.Warn("enqueue email", zap.Error(err), zap.String("email_type", payload.EmailType))
	}
}
