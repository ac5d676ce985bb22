package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	usersvc "storefront-system/internal/services/user/handler"
)

type UserService interface {
	Register(ctx context.Context, req usersvc.RegisterRequest) (*usersvc.Session, error)
	Login(ctx context.Context, email, password string) (*usersvc.Session, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, actor domain.Actor) ([]models.User, error)
}

type UserHTTPHandler struct {
	users UserService
}

func NewUserHTTPHandler(users UserService) *UserHTTPHandler {
	return &UserHTTPHandler{users: users}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 string `json:"role"`
}

type SessionView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserView  `json:"user"`
}

func sessionView(s *usersvc.Session) SessionView {
	return SessionView{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User:      userView(*s.User),
	}
}

// --- Authentication Handlers ---

func (h *UserHTTPHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	session, err := h.users.Register(ctx, usersvc.RegisterRequest{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		Role:                 req.Role,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("User registered successfully", sessionView(session)))
}

func (h *UserHTTPHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	session, err := h.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Login successful", sessionView(session)))
}

// Logout is acknowledged only; tokens are stateless and lapse at expiry.
func (h *UserHTTPHandler) Logout(c *gin.Context) {
	if _, ok := actorOrAbort(c); !ok {
		return
	}
	c.JSON(http.StatusOK, successResponse("Logout successful", nil))
}

func (h *UserHTTPHandler) Me(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.GetUser(ctx, actor.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("User retrieved successfully", userView(*user)))
}

// --- User Management Handlers ---

func (h *UserHTTPHandler) ListUsers(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.users.ListUsers(ctx, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, userView(u))
	}
	c.JSON(http.StatusOK, successResponse("Users retrieved successfully", out))
}
