package middleware

import "github.com/gin-gonic/gin"

// NoStore keeps session-dependent responses out of shared and browser caches.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Writer.Header().Add("Vary", "Cookie")
		c.Next()
	}
}
