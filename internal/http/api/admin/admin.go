package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/unigw/unigw/internal/config"
	handlers "github.com/unigw/unigw/internal/http/api/admin/handlers"
	"github.com/unigw/unigw/internal/routing"
	"github.com/unigw/unigw/internal/security"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers console auth and admin routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, discovery *routing.Discovery) {
	if r == nil || db == nil {
		return
	}

	authHandler := handlers.NewAuthHandler(jwtCfg)
	authGroup := r.Group("/api/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)

	authed := r.Group("/api/admin")
	authed.Use(adminAuthMiddleware(jwtCfg))

	providerHandler := handlers.NewProviderHandler(db)
	authed.GET("/providers", providerHandler.List)
	authed.POST("/providers", providerHandler.Create)
	authed.PUT("/providers/:name", providerHandler.Update)
	authed.DELETE("/providers/:name", providerHandler.Delete)

	keyHandler := handlers.NewKeyHandler(db)
	authed.GET("/keys", keyHandler.List)
	authed.POST("/keys", keyHandler.Create)
	authed.PUT("/keys/:key", keyHandler.Update)
	authed.DELETE("/keys/:key", keyHandler.Delete)

	groupHandler := handlers.NewGroupHandler(db)
	authed.GET("/groups", groupHandler.List)
	authed.POST("/groups", groupHandler.Create)
	authed.PUT("/groups/:id", groupHandler.Update)
	authed.DELETE("/groups/:id", groupHandler.Delete)
	authed.GET("/members", groupHandler.ListMembers)
	authed.POST("/members", groupHandler.CreateMember)
	authed.DELETE("/members/:id", groupHandler.DeleteMember)

	statsHandler := handlers.NewStatsHandler(db, discovery)
	authed.GET("/stats", statsHandler.Get)

	modelsHandler := handlers.NewModelsHandler(discovery)
	authed.GET("/models", modelsHandler.List)
}

// adminAuthMiddleware validates the console session before admin handlers run.
func adminAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
			return
		}
		if _, errJWT := security.ParseAdminToken(jwtCfg.Secret, token); errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		c.Next()
	}
}

// sessionToken extracts the session token from the cookie or bearer header.
func sessionToken(c *gin.Context) string {
	if cookie, errCookie := c.Cookie(handlers.SessionCookieName); errCookie == nil {
		if cookie = strings.TrimSpace(cookie); cookie != "" {
			return cookie
		}
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return ""
	}
	return strings.TrimSpace(token)
}
