package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"acmesync/internal/core/apperror"
	"acmesync/internal/replication"
	"acmesync/pkg/logger"
)

// ReplicaAuth guards node-to-node endpoints with the shared replication
// token. A mismatch is rejected outright; peers do not retry a 401
// differently from any other failure, the event simply stays queued on
// the sender until configuration is fixed.
func ReplicaAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(replication.ReplicaTokenHeader)
		if presented == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			logger.Warn(c.Request.Context(), "replica auth rejected",
				"client_ip", c.ClientIP(),
			)
			_ = c.Error(apperror.NewReplicaAuthRejected())
			c.Abort()
			return
		}
		c.Next()
	}
}
