package period

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/clubworks/portal-api/internal/handler"
	"github.com/clubworks/portal-api/internal/middleware"
	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/service/payment"
	"github.com/clubworks/portal-api/internal/service/period"
)

const summaryCacheKey = "period_summary"

type Handler struct {
	service    *period.Service
	paymentSvc *payment.Service
	cache      *gocache.Cache
}

func NewHandler(service *period.Service, paymentSvc *payment.Service) *Handler {
	return &Handler{
		service:    service,
		paymentSvc: paymentSvc,
		cache:      gocache.New(time.Minute, 5*time.Minute),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	periods := r.Group("/payment-periods")
	{
		periods.GET("", h.ListPeriods)
		periods.GET("/summary", h.GetSummary)
		periods.GET("/:id", h.GetPeriod)

		admin := periods.Group("", auth.RequireAdmin())
		{
			admin.POST("", h.CreatePeriod)
			admin.PUT("/:id", h.UpdatePeriod)
			admin.DELETE("/:id", h.DeletePeriod)
			admin.POST("/:id/create-payments", h.CreatePayments)
		}
	}
}

func (h *Handler) CreatePeriod(c *gin.Context) {
	var req model.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	view, err := h.service.Create(c.Request.Context(), &req, memberID)
	if err != nil {
		c.Error(err)
		return
	}

	h.cache.Delete(summaryCacheKey)
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(view))
}

func (h *Handler) GetPeriod(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid period ID"))
		return
	}

	view, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) ListPeriods(c *gin.Context) {
	filters := &model.PeriodFilters{
		Status:   model.PeriodStatus(c.Query("status")),
		Category: model.PeriodCategory(c.Query("category")),
		Type:     model.PaymentType(c.Query("type")),
	}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	views, pagination, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewListResponse("periods", views, pagination))
}

// GetSummary serves the dashboard split, briefly cached since every
// portal page load requests it.
func (h *Handler) GetSummary(c *gin.Context) {
	if cached, ok := h.cache.Get(summaryCacheKey); ok {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(cached))
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	h.cache.Set(summaryCacheKey, summary, gocache.DefaultExpiration)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) UpdatePeriod(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid period ID"))
		return
	}

	var req model.UpdatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	view, err := h.service.Update(c.Request.Context(), id, &req, memberID)
	if err != nil {
		c.Error(err)
		return
	}

	h.cache.Delete(summaryCacheKey)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) DeletePeriod(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid period ID"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	h.cache.Delete(summaryCacheKey)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// CreatePayments materializes the period's payments. force=true allows
// running it before the start date.
func (h *Handler) CreatePayments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid period ID"))
		return
	}

	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	created, err := h.paymentSvc.Materialize(c.Request.Context(), id, force)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"payments_created": created}))
}
