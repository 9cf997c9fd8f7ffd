package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
)

// TokenValidator turns a bearer token into an identity
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Identity, error)
}

// PermissionChecker resolves permissions and roles of an identity
type PermissionChecker interface {
	Require(ctx context.Context, identity auth.Identity, perm auth.Permission) error
	RequireOrgRole(ctx context.Context, identity auth.Identity, roles ...string) error
}

// RequireAuth is a middleware that validates JWT tokens. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
func RequireAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			Abort(c, apperrors.NewUnauthorizedError(""))
			return
		}

		identity, err := tokens.ValidateToken(tokenString)
		if err != nil {
			Abort(c, apperrors.NewUnauthorizedError(""))
			return
		}

		c.Set(constants.ContextKeyIdentity, *identity)
		c.Set(constants.ContextKeyToken, tokenString)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader(constants.HeaderAuthorization)
	if header != "" {
		if !strings.HasPrefix(header, constants.BearerPrefix) {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(header, constants.BearerPrefix))
	}
	return c.Query("token")
}

// GetIdentity extracts the authenticated identity from gin.Context
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	value, exists := c.Get(constants.ContextKeyIdentity)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}

// RequirePermission rejects callers lacking perm
func RequirePermission(checker PermissionChecker, perm auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			Abort(c, apperrors.NewUnauthorizedError(""))
			return
		}
		if err := checker.Require(c.Request.Context(), identity, perm); err != nil {
			Abort(c, err)
			return
		}
		c.Next()
	}
}

// RequireOrgRole rejects callers whose organization or stored role is not in roles
func RequireOrgRole(checker PermissionChecker, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			Abort(c, apperrors.NewUnauthorizedError(""))
			return
		}
		if err := checker.RequireOrgRole(c.Request.Context(), identity, roles...); err != nil {
			Abort(c, err)
			return
		}
		c.Next()
	}
}

// Abort writes the standard error body for err and stops the chain
func Abort(c *gin.Context, err error) {
	message := err.Error()
	c.AbortWithStatusJSON(apperrors.GetHTTPStatus(err), gin.H{
		constants.ResponseError:   message,
		constants.ResponseMessage: message,
		constants.ResponseCode:    apperrors.GetErrorCode(err),
		constants.ResponseData:    nil,
	})
}
