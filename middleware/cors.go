package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the listed front-end origins, or every origin when the list
// is empty.
func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  len(origins) == 0,
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	})
}
