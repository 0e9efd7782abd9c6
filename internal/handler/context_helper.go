package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sas-tenancy-api/internal/middleware"
	"github.com/noah-isme/sas-tenancy-api/internal/models"
	appErrors "github.com/noah-isme/sas-tenancy-api/pkg/errors"
	"github.com/noah-isme/sas-tenancy-api/pkg/response"
)

// scope extracts the resolved RequestContext. A missing scope means the
// route was mounted outside the tenancy middleware, which is a wiring bug;
// it is answered as unauthorized rather than panicking.
func scope(c *gin.Context) (*models.RequestContext, bool) {
	rc, ok := middleware.Scope(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return rc, true
}

// claims extracts JWT claims set by the auth middleware.
func claims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	jwtClaims, ok := value.(*models.JWTClaims)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return jwtClaims, true
}

// boolQuery parses an optional bool query parameter.
func boolQuery(c *gin.Context, name string) *bool {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// paging parses page and limit query parameters.
func paging(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, size
}
