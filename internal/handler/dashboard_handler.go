package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"orderdesk/internal/middleware"
	"orderdesk/internal/model"
	"orderdesk/internal/service"
	"orderdesk/pkg/response"
)

type DashboardHandler struct {
	orders    service.OrderService
	dashboard service.DashboardService
}

// NewDashboardHandler sets up the routing dependencies for dashboard endpoints
func NewDashboardHandler(orders service.OrderService, dashboard service.DashboardService) *DashboardHandler {
	return &DashboardHandler{orders: orders, dashboard: dashboard}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *DashboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard", middleware.RequireRole(model.RoleAdmin, model.RoleUser), h.GetDashboard)
}

// GetDashboard handles GET /dashboard
// @Summary      Dashboard statistics
// @Description  Aggregates the full order snapshot: totals, per-type counts, a six month series and the five most recent orders
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.DashboardStats}
// @Failure      401  {object}  response.Response
// @Failure      504  {object}  response.Response
// @Router       /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	snapshot, err := h.orders.LoadSnapshot(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	orders := make([]model.Order, 0, len(snapshot))
	for _, order := range snapshot {
		orders = append(orders, order)
	}
	stats := h.dashboard.Aggregate(orders, time.Now())

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
