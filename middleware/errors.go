package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yp-firedoor/firedoor-oa/errs"
)

// RespondError writes the error envelope for err. Errors that are not
// *errs.Error are treated as internal; their cause is logged, never sent.
func RespondError(c *gin.Context, err error) {
	appErr, ok := errs.As(err)
	if !ok {
		appErr = errs.Internal("An unexpected error occurred", err)
	}

	if appErr.Kind == errs.KindInternal {
		zap.L().Error("request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("message", appErr.Message),
			zap.Error(appErr.Unwrap()),
		)
	}

	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}

	c.JSON(appErr.Kind.HTTPStatus(), gin.H{
		"success": false,
		"error":   body,
	})
}

// AbortWithError writes the error envelope and stops the handler chain
func AbortWithError(c *gin.Context, err error) {
	RespondError(c, err)
	c.Abort()
}
