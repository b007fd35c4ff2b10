package api

import (
	"errors"
	"net/http"

	"ai-companion-demo/companion/internal/wizard"
	apperrors "ai-companion-demo/companion/pkg/errors"
	"ai-companion-demo/companion/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// WizardHandler exposes the creation wizard of the caller's tab
type WizardHandler struct {
	service *wizard.Service
}

func NewWizardHandler(service *wizard.Service) *WizardHandler {
	return &WizardHandler{service: service}
}

type selectStyleRequest struct {
	Style      string  `json:"style" binding:"required"`
	Appearance *string `json:"appearance"`
}

type appearanceRequest struct {
	Appearance string `json:"appearance"`
}

type selectAvatarRequest struct {
	Index *int `json:"index" binding:"required"`
}

type submitRequest struct {
	Name string `json:"name"`
}

// SubmitResponse is returned once the character exists
type SubmitResponse struct {
	*wizard.Result
	RedirectAfterMS int64 `json:"redirect_after_ms"`
}

// RegisterRoutes mounts the wizard under rg
func (h *WizardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	w := rg.Group("/wizard")
	{
		w.GET("", h.GetDraft)
		w.DELETE("", h.Reset)
		w.POST("/style", h.SelectStyle)
		w.POST("/appearance", h.SetAppearance)
		w.POST("/avatars", h.Regenerate)
		w.POST("/avatar", h.SelectAvatar)
		w.GET("/naming", h.EnterNaming)
		w.POST("/submit", h.Submit)
	}
}

func (h *WizardHandler) open(c *gin.Context) (*wizard.Wizard, bool) {
	key := wizard.Key{UserID: middleware.GetUser(c), TabID: middleware.TabID(c)}
	wz, err := h.service.Open(requestContext(c), key)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return wz, true
}

func (h *WizardHandler) GetDraft(c *gin.Context) {
	wz, ok := h.open(c)
	if !ok {
		return
	}
	draft, err := wz.Draft(requestContext(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *WizardHandler) Reset(c *gin.Context) {
	wz, ok := h.open(c)
	if !ok {
		return
	}
	draft, err := wz.Reset(requestContext(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *WizardHandler) SelectStyle(c *gin.Context) {
	var req selectStyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewBadRequestError(apperrors.CodeValidation, "style is required").WithCause(err))
		return
	}

	wz, ok := h.open(c)
	if !ok {
		return
	}
	ctx := requestContext(c)
	if req.Appearance != nil {
		if _, err := wz.SetAppearance(ctx, *req.Appearance); err != nil {
			fail(c, err)
			return
		}
	}
	draft, err := wz.SelectStyle(ctx, req.Style)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *WizardHandler) SetAppearance(c *gin.Context) {
	var req appearanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewBadRequestError(apperrors.CodeValidation, "invalid request body").WithCause(err))
		return
	}

	wz, ok := h.open(c)
	if !ok {
		return
	}
	draft, err := wz.SetAppearance(requestContext(c), req.Appearance)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *WizardHandler) Regenerate(c *gin.Context) {
	wz, ok := h.open(c)
	if !ok {
		return
	}
	draft, err := wz.Regenerate(requestContext(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *WizardHandler) SelectAvatar(c *gin.Context) {
	var req selectAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewBadRequestError(apperrors.CodeValidation, "index is required").WithCause(err))
		return
	}

	wz, ok := h.open(c)
	if !ok {
		return
	}
	draft, err := wz.SelectAvatar(requestContext(c), *req.Index)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// EnterNaming answers 409 with the reset draft when no style was chosen
func (h *WizardHandler) EnterNaming(c *gin.Context) {
	wz, ok := h.open(c)
	if !ok {
		return
	}
	draft, err := wz.EnterNaming(requestContext(c))
	if errors.Is(err, wizard.ErrStyleRequired) {
		appErr := toAppError(err).WithDetails(gin.H{
			"redirect_step": draft.Step,
			"draft":         draft,
		})
		fail(c, appErr)
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *WizardHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewBadRequestError(apperrors.CodeValidation, "invalid request body").WithCause(err))
		return
	}

	wz, ok := h.open(c)
	if !ok {
		return
	}
	res, err := wz.Submit(requestContext(c), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, SubmitResponse{
		Result:          res,
		RedirectAfterMS: res.RedirectAfter.Milliseconds(),
	})
}
