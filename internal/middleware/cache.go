package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids caching so back-navigation never shows a stale quiz or timer.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
