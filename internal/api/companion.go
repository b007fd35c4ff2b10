package api

import (
	"net/http"
	"time"

	"ai-companion-demo/companion/internal/models"
	"ai-companion-demo/companion/internal/session"
	apperrors "ai-companion-demo/companion/pkg/errors"
	"ai-companion-demo/companion/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// CompanionHandler exposes the caller's companion session
type CompanionHandler struct {
	sessions *session.Registry
	now      func() time.Time
}

func NewCompanionHandler(sessions *session.Registry) *CompanionHandler {
	return &CompanionHandler{sessions: sessions, now: time.Now}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// OlderHistoryResponse reports how many messages a history page added
type OlderHistoryResponse struct {
	Added int           `json:"added"`
	State session.State `json:"state"`
}

// CooldownsResponse lists the derived cooldown of every catalog mission
type CooldownsResponse struct {
	Cooldowns []models.MissionCooldown `json:"cooldowns"`
}

// RegisterRoutes mounts the companion session under rg
func (h *CompanionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	comp := rg.Group("/companion")
	{
		comp.GET("", h.GetState)
		comp.POST("/load", h.Load)
		comp.GET("/history/older", h.LoadOlderHistory)
		comp.POST("/messages", h.SendMessage)
		comp.POST("/missions/:id/execute", h.ExecuteMission)
		comp.GET("/cooldowns", h.Cooldowns)
	}
}

func (h *CompanionHandler) controller(c *gin.Context) *session.Controller {
	return h.sessions.Get(middleware.GetUser(c))
}

func (h *CompanionHandler) Load(c *gin.Context) {
	state, err := h.controller(c).Load(requestContext(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetState returns the session, loading it first if this is the first visit
func (h *CompanionHandler) GetState(c *gin.Context) {
	ctrl := h.controller(c)
	state := ctrl.Snapshot()
	if !state.Loaded {
		var err error
		if state, err = ctrl.Load(requestContext(c)); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, state)
}

func (h *CompanionHandler) LoadOlderHistory(c *gin.Context) {
	ctrl := h.controller(c)
	added, err := ctrl.LoadOlderHistory(requestContext(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OlderHistoryResponse{Added: added, State: ctrl.Snapshot()})
}

func (h *CompanionHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewBadRequestError(apperrors.CodeValidation, "invalid request body").WithCause(err))
		return
	}

	reply, err := h.controller(c).SendMessage(requestContext(c), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *CompanionHandler) ExecuteMission(c *gin.Context) {
	res, err := h.controller(c).ExecuteMission(requestContext(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CompanionHandler) Cooldowns(c *gin.Context) {
	cooldowns := h.controller(c).Cooldowns(h.now())
	if cooldowns == nil {
		cooldowns = []models.MissionCooldown{}
	}
	c.JSON(http.StatusOK, CooldownsResponse{Cooldowns: cooldowns})
}
