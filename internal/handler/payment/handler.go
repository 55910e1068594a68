package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clubworks/portal-api/internal/handler"
	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/service/payment"
)

type Handler struct {
	service *payment.Service
}

func NewHandler(service *payment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.GET("", h.ListPayments)
		payments.GET("/:id", h.GetPayment)
		payments.POST("/order", h.CreateOrder)
		payments.POST("/verify", h.VerifyPayment)
	}
}

func (h *Handler) ListPayments(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	status := model.PaymentStatus(c.Query("status"))
	payments, err := h.service.ListMine(c.Request.Context(), memberID, status)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"payments": payments}))
}

func (h *Handler) GetPayment(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid payment ID"))
		return
	}

	p, err := h.service.Get(c.Request.Context(), id, memberID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) CreateOrder(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	var req model.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), memberID, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(order))
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	var req model.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	p, err := h.service.Verify(c.Request.Context(), memberID, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}
