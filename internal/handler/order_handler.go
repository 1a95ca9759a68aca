package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"orderdesk/internal/export"
	"orderdesk/internal/middleware"
	"orderdesk/internal/model"
	"orderdesk/internal/service"
	"orderdesk/pkg/pagination"
	"orderdesk/pkg/response"
)

type OrderHandler struct {
	orders    service.OrderService
	numbering service.NumberingService
	pdf       export.PDFRenderer
}

// NewOrderHandler sets up the routing dependencies for order endpoints.
// pdf may be nil; the PDF endpoint then answers 501.
func NewOrderHandler(orders service.OrderService, numbering service.NumberingService, pdf export.PDFRenderer) *OrderHandler {
	return &OrderHandler{orders: orders, numbering: numbering, pdf: pdf}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/orders", middleware.RequireRole(model.RoleAdmin, model.RoleUser))
	{
		orders.GET("", h.ListOrders)
		orders.GET("/next-number", h.NextNumber)
		orders.POST("", h.CreateOrder)
		orders.GET("/export", h.ExportOrders)
		orders.GET("/:id", h.GetOrderByID)
		orders.GET("/:id/pdf", h.OrderPDF)
		orders.PUT("/:id", middleware.RequireRole(model.RoleAdmin), h.UpdateOrder)
		orders.DELETE("/:id", middleware.RequireRole(model.RoleAdmin), h.DeleteOrder)
	}
}

func filterFromQuery(c *gin.Context) service.OrderFilter {
	return service.OrderFilter{
		Search:      c.Query("search"),
		ExpenseType: c.Query("type"),
		Date:        c.Query("date"),
	}
}

// ListOrders handles GET /orders with optional search/type/date filters
// @Summary      List purchase orders
// @Description  Loads the full order snapshot, filters it and returns one page sorted by most recent date
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Substring of supplier, order number or expense type"
// @Param        type    query     string  false  "Exact expense type"
// @Param        date    query     string  false  "Calendar date (2006-01-02)"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response
// @Failure      401     {object}  response.Response
// @Failure      504     {object}  response.Response
// @Router       /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	snapshot, err := h.orders.LoadSnapshot(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}

	filtered := h.orders.Filter(snapshot, filterFromQuery(c))
	params := pagination.Parse(c)
	start, end := params.Window(len(filtered))

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"orders": filtered[start:end],
		"meta":   params.MetaFor(len(filtered)),
	}))
}

// NextNumber handles GET /orders/next-number
// @Summary      Reserve the next order number
// @Description  Atomically reserves the next consecutive order number for the caller. The number is consumed even if no order is created with it.
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /orders/next-number [get]
func (h *OrderHandler) NextNumber(c *gin.Context) {
	number, err := h.numbering.ReserveNext(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"orderNumber": number}))
}

// CreateOrder handles POST /orders
// @Summary      Create a purchase order
// @Description  Validates the draft, assigns an order number when the draft carries none, computes totals and stores the order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.OrderDraft  true  "Order Draft"
// @Success      201      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var draft service.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	id, err := h.orders.Create(c.Request.Context(), middleware.SessionFrom(c), draft)
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, gin.H{"id": id}))
}

// GetOrderByID handles GET /orders/:id
// @Summary      Get one purchase order
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.OrderWithID}
// @Failure      404  {object}  response.Response
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	order, err := h.orders.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// UpdateOrder handles PUT /orders/:id
// @Summary      Update a purchase order
// @Description  Overwrites the order document. The original order number, date, creator and status are preserved; the counter is never touched.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string              true  "Order ID"
// @Param        payload  body      service.OrderDraft  true  "Order Draft"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /orders/{id} [put]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var draft service.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.orders.Update(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), draft); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"id": c.Param("id")}))
}

// DeleteOrder handles DELETE /orders/:id
// @Summary      Delete a purchase order
// @Description  Removes the order after explicit confirmation (confirm=true). The consumed order number is not reclaimed.
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string  true   "Order ID"
// @Param        confirm  query     bool    false  "Must be true to proceed"
// @Success      200      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /orders/{id} [delete]
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	confirm := func() bool { return c.Query("confirm") == "true" }
	if err := h.orders.Delete(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), confirm); err != nil {
		c.JSON(response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "order deleted"}))
}

// ExportOrders handles GET /orders/export as an xlsx download
// @Summary      Export purchase orders
// @Description  Streams the filtered order list as an Excel workbook
// @Tags         orders
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        search  query  string  false  "Substring of supplier, order number or expense type"
// @Param        type    query  string  false  "Exact expense type"
// @Param        date    query  string  false  "Calendar date (2006-01-02)"
// @Success      200
// @Failure      401  {object}  response.Response
// @Router       /orders/export [get]
func (h *OrderHandler) ExportOrders(c *gin.Context) {
	snapshot, err := h.orders.LoadSnapshot(c.Request.Context())
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	filtered := h.orders.Filter(snapshot, filterFromQuery(c))

	f, err := export.BuildWorkbook(filtered)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "could not build workbook"))
		return
	}

	filename := fmt.Sprintf("ordenes_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

// OrderPDF handles GET /orders/:id/pdf
// @Summary      Render a purchase order as PDF
// @Description  Answers 501 until a PDF renderer is configured
// @Tags         orders
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200
// @Failure      404  {object}  response.Response
// @Failure      501  {object}  response.Response
// @Router       /orders/{id}/pdf [get]
func (h *OrderHandler) OrderPDF(c *gin.Context) {
	if h.pdf == nil {
		c.JSON(http.StatusNotImplemented, response.Error(http.StatusNotImplemented, "PDF rendering is not configured"))
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(response.FromError(err))
		return
	}
	doc, err := h.pdf.Render(c.Request.Context(), order)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "could not render document"))
		return
	}
	c.Data(http.StatusOK, "application/pdf", doc)
}
