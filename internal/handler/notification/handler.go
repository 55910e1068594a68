package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clubworks/portal-api/internal/handler"
	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/service/notification"
)

type Handler struct {
	service *notification.Service
}

func NewHandler(service *notification.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.GET("/stats", h.GetStats)
		notifications.PATCH("/:id/read", h.MarkRead)
		notifications.PATCH("/read-all", h.MarkAllRead)
		notifications.DELETE("/read", h.ClearRead)
		notifications.DELETE("/:id", h.DeleteNotification)
	}
}

func (h *Handler) ListNotifications(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	filters := &model.NotificationFilters{
		Type: model.NotificationType(c.Query("type")),
	}
	if v := c.Query("is_read"); v != "" {
		isRead, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid is_read filter"))
			return
		}
		filters.IsRead = &isRead
	}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.service.List(c.Request.Context(), memberID, filters)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) GetStats(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), memberID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

func (h *Handler) MarkRead(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id, memberID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	count, err := h.service.MarkAllRead(c.Request.Context(), memberID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"marked_read": count}))
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, memberID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) ClearRead(c *gin.Context) {
	memberID, ok := handler.MemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid member ID"))
		return
	}

	count, err := h.service.ClearRead(c.Request.Context(), memberID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": count}))
}
