package middlewares

import (
	"context"
	"net/http"

	"bitbucket.org/gudangkita/inventory_backend/appctx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StoreMiddleware resolves the tenant from the X-Store header and rejects
// requests without one. Every query downstream is scoped to this store.
func StoreMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		store := c.Request.Header.Get("X-Store")
		if store == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Store header is required"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), appctx.ContextKeyStore, store)
		if username := c.Request.Header.Get("X-Username"); username != "" {
			ctx = context.WithValue(ctx, appctx.ContextKeyUsername, username)
		}
		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = context.WithValue(ctx, appctx.ContextKeyCorrelationId, correlationId)

		c.Header("X-Correlation-Id", correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
