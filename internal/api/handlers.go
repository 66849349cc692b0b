package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smsportal/internal/models"
	"smsportal/internal/service"
)

type Handler struct {
	Scheduler *service.Scheduler
	Service   *service.MessageService
}

func NewAPIHandler(scheduler *service.Scheduler, svc *service.MessageService) *Handler {
	return &Handler{Scheduler: scheduler, Service: svc}
}

// RequestID tags every request, honoring an upstream id when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/messages", h.Send)
		v1.GET("/messages/:user", h.ListMessages)
		v1.GET("/messages/:user/conversation/:recipient", h.GetConversation)
		v1.GET("/messages/:user/recipients", h.GetRecipients)
		v1.GET("/messages/:user/contacts", h.GetContacts)
		v1.GET("/messages/:user/scheduled", h.GetScheduled)
		v1.GET("/messages/:user/unread", h.UnreadCounts)
		v1.POST("/messages/:user/read/:recipient", h.MarkRead)
		v1.DELETE("/messages/:user/scheduled/:id", h.CancelScheduled)
		v1.POST("/contacts", h.SaveContact)
		v1.DELETE("/contacts/:id", h.DeleteContact)
		v1.POST("/schedule", h.Schedule)
		v1.POST("/scheduler/start", h.StartScheduler)
		v1.POST("/scheduler/stop", h.StopScheduler)
	}
}

func (h *Handler) Send(c *gin.Context) {
	var msg models.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sent, err := h.Service.SendMessage(c.Request.Context(), msg)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sent)
}

func (h *Handler) ListMessages(c *gin.Context) {
	messages, err := h.Service.GetMessages(c.Request.Context(), c.Param("user"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) GetConversation(c *gin.Context) {
	messages, err := h.Service.GetConversation(c.Request.Context(), c.Param("user"), c.Param("recipient"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) GetRecipients(c *gin.Context) {
	recipients, err := h.Service.GetRecipients(c.Request.Context(), c.Param("user"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipients": recipients})
}

func (h *Handler) GetContacts(c *gin.Context) {
	contacts, err := h.Service.GetContacts(c.Request.Context(), c.Param("user"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (h *Handler) SaveContact(c *gin.Context) {
	var contact models.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Service.SaveContact(c.Request.Context(), contact); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "contact saved"})
}

func (h *Handler) DeleteContact(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return
	}
	if err := h.Service.DeleteContact(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "contact deleted"})
}

func (h *Handler) GetScheduled(c *gin.Context) {
	scheduled, err := h.Service.GetScheduledMessages(c.Request.Context(), c.Param("user"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled_messages": scheduled})
}

func (h *Handler) Schedule(c *gin.Context) {
	var msg models.ScheduledMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Service.ScheduleMessage(c.Request.Context(), msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "message scheduled"})
}

func (h *Handler) CancelScheduled(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled message id"})
		return
	}
	if err := h.Service.CancelScheduledMessage(c.Request.Context(), id, c.Param("user")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "scheduled message cancelled"})
}

func (h *Handler) MarkRead(c *gin.Context) {
	department := c.Query("department")
	if department == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "department query parameter is required"})
		return
	}
	if err := h.Service.MarkRead(c.Request.Context(), department, c.Param("recipient")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "conversation marked read"})
}

func (h *Handler) UnreadCounts(c *gin.Context) {
	department := c.Query("department")
	if department == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "department query parameter is required"})
		return
	}
	counts, err := h.Service.UnreadCounts(c.Request.Context(), c.Param("user"), department)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": counts})
}

func (h *Handler) StartScheduler(c *gin.Context) {
	if h.Scheduler.IsRunning() {
		c.JSON(http.StatusOK, gin.H{"message": "scheduler already running"})
		return
	}
	_ = h.Scheduler.Start()
	c.JSON(http.StatusOK, gin.H{"message": "scheduler started"})
}

func (h *Handler) StopScheduler(c *gin.Context) {
	if !h.Scheduler.IsRunning() {
		c.JSON(http.StatusOK, gin.H{"message": "scheduler already stopped"})
		return
	}
	_ = h.Scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "scheduler stopped"})
}
