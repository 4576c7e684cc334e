package middleware

import (
	"github.com/gin-gonic/gin"

	"tombstone/internal/core/apperror"
	appctx "tombstone/internal/core/context"
	"tombstone/pkg/logger"
)

// ErrorHandler renders the last error registered on the context as JSON.
// AppErrors keep their code, status and details; anything else becomes a
// generic 500 whose cause is only logged.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		appErr, ok := apperror.AsAppError(c.Errors.Last().Err)
		if !ok {
			logger.Error(ctx, "unhandled error", "error", c.Errors.Last().Err)
			appErr = apperror.NewInternal(nil)
		} else if appErr.Err != nil {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}

		c.JSON(appErr.HTTPStatus, errorBody(c, appErr))
	}
}

func errorBody(c *gin.Context, appErr *apperror.AppError) gin.H {
	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	}
	if rt := appctx.RequestTraceFrom(c.Request.Context()); rt != nil {
		body["request_id"] = rt.RequestID
	}
	return body
}

