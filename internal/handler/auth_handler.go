package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"orderdesk/internal/identity"
	"orderdesk/internal/middleware"
	"orderdesk/internal/service"
	"orderdesk/pkg/response"
)

type AuthHandler struct {
	provider identity.Provider
	gate     service.RoleGate
	tokenTTL time.Duration
}

// NewAuthHandler sets up the routing dependencies for auth endpoints
func NewAuthHandler(provider identity.Provider, gate service.RoleGate, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{provider: provider, gate: gate, tokenTTL: tokenTTL}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/login", h.Login)
	router.POST("/logout", middleware.RequireAuth(), h.Logout)
	router.GET("/me", middleware.RequireAuth(), h.GetMe)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

type UserSummary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// Login handles POST /login to authenticate and return a JWT token
// @Summary      Login user
// @Description  Authenticates by email and password. The account must also hold an active registered profile; authentication without one is refused and the session revoked.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      handler.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=handler.LoginResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	session, err := h.provider.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		case errors.Is(err, identity.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, response.Error(http.StatusTooManyRequests, err.Error()))
		case errors.Is(err, identity.ErrUserNotFound), errors.Is(err, identity.ErrWrongPassword):
			c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		default:
			c.JSON(response.FromError(err))
		}
		return
	}

	profile, err := h.gate.ResolveSession(c.Request.Context(), *session)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	token, err := middleware.IssueToken(*session, profile.EffectiveRole(), h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "could not issue token"))
		return
	}
	middleware.SetTokenCookie(c, token, h.tokenTTL)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, LoginResponse{
		Token: token,
		User: UserSummary{
			ID:          session.UserID,
			Email:       session.Email,
			DisplayName: profile.DisplayName,
			Role:        profile.EffectiveRole(),
		},
	}))
}

// Logout handles POST /logout to revoke the session
// @Summary      Logout user
// @Description  Revokes the current session; outstanding tokens stop working immediately
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.provider.SignOut(c.GetString(middleware.CtxUserID))
	middleware.ClearTokenCookie(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "logged out"}))
}

// GetMe handles GET /me to return the caller's profile
// @Summary      Get current user
// @Description  Returns the registered profile of the authenticated user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=handler.UserSummary}
// @Failure      401  {object}  response.Response
// @Router       /me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	profile, err := h.gate.RequireActive(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, UserSummary{
		ID:          c.GetString(middleware.CtxUserID),
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Role:        profile.EffectiveRole(),
	}))
}
