package api

import (
	"context"
	"errors"

	"ai-companion-demo/companion/internal/backend"
	"ai-companion-demo/companion/internal/models"
	"ai-companion-demo/companion/internal/session"
	"ai-companion-demo/companion/internal/wizard"
	apperrors "ai-companion-demo/companion/pkg/errors"
	"ai-companion-demo/companion/pkg/middleware"
	"ai-companion-demo/companion/pkg/resilience"

	"github.com/gin-gonic/gin"
)

// requestContext carries the request id, user, tab and bearer token into
// the controllers so backend calls are made on the caller's behalf
func requestContext(c *gin.Context) context.Context {
	ctx := middleware.WithRequestContext(c.Request.Context(), c)
	return backend.ContextWithToken(ctx, middleware.GetToken(c))
}

// fail records err for the error middleware and stops the chain
func fail(c *gin.Context, err error) {
	_ = c.Error(toAppError(err))
	c.Abort()
}

func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return apperrors.NewBadRequestError(apperrors.CodeValidation, verr.Error()).WithDetails(verr).WithCause(err)
	}

	switch {
	case errors.Is(err, wizard.ErrBusy), errors.Is(err, session.ErrBusy):
		return apperrors.NewConflictError(apperrors.CodeBusy, err.Error()).WithCause(err)

	case errors.Is(err, wizard.ErrStyleRequired):
		return apperrors.ConflictWithDetails(apperrors.CodeStepGuard, err.Error(),
			gin.H{"redirect_step": models.StepSelectStyle}).WithCause(err)

	case errors.Is(err, wizard.ErrAvatarRequired), errors.Is(err, wizard.ErrNoCandidates):
		return apperrors.ConflictWithDetails(apperrors.CodeStepGuard, err.Error(),
			gin.H{"redirect_step": models.StepSelectAvatar}).WithCause(err)

	case errors.Is(err, session.ErrInsufficientBalance):
		return apperrors.NewPaymentRequiredError(apperrors.CodeInsufficientBalance, err.Error()).WithCause(err)

	case errors.Is(err, session.ErrMissionNotFound), errors.Is(err, session.ErrNoCharacter):
		return apperrors.NewNotFoundError(apperrors.CodeNotFound, err.Error()).WithCause(err)

	case errors.Is(err, session.ErrMissionInactive):
		return apperrors.NewConflictError(apperrors.CodeMissionInactive, err.Error()).WithCause(err)

	case errors.Is(err, session.ErrMissionRejected):
		return apperrors.NewConflictError(apperrors.CodeMissionRejected, err.Error()).WithCause(err)

	case errors.Is(err, session.ErrNotLoaded):
		return apperrors.NewConflictError(apperrors.CodeNotLoaded, err.Error()).WithCause(err)

	case errors.Is(err, resilience.ErrCircuitOpen):
		return apperrors.NewServiceUnavailableError(apperrors.CodeUnavailable, "Companion backend is unavailable").WithCause(err)

	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewServiceUnavailableError(apperrors.CodeUnavailable, "Companion backend timed out").WithCause(err)
	}

	if status := backend.StatusOf(err); status != 0 {
		return apperrors.NewBadGatewayError(apperrors.CodeUpstream, "Companion backend request failed").
			WithDetails(gin.H{"status": status}).
			WithCause(err)
	}

	return apperrors.NewInternalServerError(apperrors.CodeInternal, "Internal server error").WithCause(err)
}
