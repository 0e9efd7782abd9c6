package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/models"
	"github.com/noah-isme/sas-tenancy-api/internal/repository"
)

// Audit records an audit log after successful requests. The resolved
// organization, when one exists, is stamped onto the row so audit queries
// can be scoped the same way as everything else.
func Audit(repo *repository.UserRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := c.Get(ContextUserKey); ok {
			user := claims.(*models.JWTClaims)
			userID = &user.UserID
		}

		var orgID *string
		if rc, ok := Scope(c); ok && rc.OrganizationID != "" {
			id := rc.OrganizationID
			orgID = &id
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:         userID,
			OrganizationID: orgID,
			Action:         action,
			Resource:       resource,
			NewValues:      body,
			IPAddress:      c.ClientIP(),
			UserAgent:      c.GetHeader("User-Agent"),
		})
	}
}
