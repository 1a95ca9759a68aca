package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orderdesk/internal/middleware"
	"orderdesk/internal/model"
	"orderdesk/internal/service"
	"orderdesk/pkg/pagination"
	"orderdesk/pkg/response"
)

type UserHandler struct {
	users service.UserAdminService
	audit service.AuditService
}

// NewUserHandler sets up the routing dependencies for user administration
func NewUserHandler(users service.UserAdminService, audit service.AuditService) *UserHandler {
	return &UserHandler{users: users, audit: audit}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users", middleware.RequireRole(model.RoleAdmin))
	{
		users.GET("", h.ListUsers)
		users.PUT("/:id/role", h.ChangeRole)
		users.PUT("/:id/status", h.SetStatus)
	}
	router.GET("/audit", middleware.RequireRole(model.RoleAdmin), h.ListAudit)
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type SetStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ListUsers handles GET /users
// @Summary      List registered users
// @Description  Returns every registered profile, newest first, with aggregate counts
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, stats, err := h.users.List(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"users": users,
		"stats": stats,
	}))
}

// ChangeRole handles PUT /users/:id/role
// @Summary      Change a user's role
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      handler.ChangeRoleRequest  true  "New Role"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /users/{id}/role [put]
func (h *UserHandler) ChangeRole(c *gin.Context) {
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.users.ChangeRole(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), req.Role); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"id": c.Param("id"), "role": req.Role}))
}

// SetStatus handles PUT /users/:id/status
// @Summary      Activate or deactivate a user
// @Description  Deactivating a user also revokes any live session they hold
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "User ID"
// @Param        payload  body      handler.SetStatusRequest  true  "New Status"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /users/{id}/status [put]
func (h *UserHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.users.SetActive(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), *req.Active); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"id": c.Param("id"), "active": *req.Active}))
}

// ListAudit handles GET /audit
// @Summary      List audit entries
// @Description  Returns mutation audit entries newest first
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number"
// @Param        limit  query     int  false  "Page size"
// @Success      200    {object}  response.Response
// @Failure      403    {object}  response.Response
// @Router       /audit [get]
func (h *UserHandler) ListAudit(c *gin.Context) {
	params := pagination.Parse(c)
	entries, total, err := h.audit.List(c.Request.Context(), c.GetString(middleware.CtxUserID), params.Page, params.Limit)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"entries": entries,
		"meta":    params.MetaFor(total),
	}))
}
