package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// AuthMiddleware verifies the bearer token and stores the session principal
// under utils.UserKey.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			utils.HandleError(c, utils.NewApiError(utils.KindNotAuthenticated, "missing bearer token", http.StatusUnauthorized, "MISSING_TOKEN"))
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			utils.HandleError(c, utils.NewApiError(utils.KindNotAuthenticated, "invalid token", http.StatusUnauthorized, "INVALID_TOKEN"))
			return
		}

		user, err := utils.ActingUserFromClaims(claims)
		if err != nil {
			utils.Logger.Warn().Err(err).Msg("token rejected")
			utils.HandleError(c, utils.NewApiError(utils.KindNotAuthenticated, err.Error(), http.StatusUnauthorized, "INVALID_TOKEN"))
			return
		}

		c.Set(utils.UserKey, user)
		utils.Logger.Debug().
			Str("email", user.Email).
			Str("role", string(user.Role)).
			Msg("request authenticated")
	}
}

// RequireRole rejects sessions whose role is not in roles. It must run after
// AuthMiddleware.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := utils.GetUser(c)
		if err != nil {
			utils.HandleError(c, err)
			return
		}
		for _, role := range roles {
			if user.Role == role {
				return
			}
		}
		utils.Logger.Info().
			Str("email", user.Email).
			Str("role", string(user.Role)).
			Str("path", c.Request.URL.Path).
			Msg("permission denied")
		utils.HandleError(c, utils.CreateForbiddenError())
	}
}

// CronAuth guards the rollover trigger. With a secret configured the caller
// must send it as the bearer token; otherwise an administrator session is
// required.
func CronAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		auth := AuthMiddleware()
		admin := RequireRole(models.UserRoleADMIN)
		return func(c *gin.Context) {
			auth(c)
			if c.IsAborted() {
				return
			}
			admin(c)
		}
	}

	return func(c *gin.Context) {
		token := bearerToken(c)
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			utils.HandleError(c, utils.NewApiError(utils.KindNotAuthenticated, "invalid cron secret", http.StatusUnauthorized, "INVALID_CRON_SECRET"))
			return
		}
	}
}
