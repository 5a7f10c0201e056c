// Package middleware provides the HTTP middleware chain: panic recovery,
// tracing, request logging, error mapping, and the JWT and replica-token
// guards.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"acmesync/internal/core/apperror"
	"acmesync/pkg/logger"
)

// Recovery converts a handler panic into a 500 response. A panicking
// request must not take the node down: peers keep posting replication
// events regardless. The stack goes to the log; the client only sees the
// generic internal error envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				_ = c.Error(
					apperror.NewInternal(fmt.Errorf("panic: %v", r)).
						WithDetail("request_id", c.GetString("request_id")),
				)
				c.Abort()
			}
		}()
		c.Next()
	}
}
