package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mangashelf/internal/auth"
	"mangashelf/internal/category"
	"mangashelf/internal/entry"
	"mangashelf/internal/exchange"
	"mangashelf/internal/sync"
	"mangashelf/pkg/utils"
)

// NewRouter mounts every HTTP route. When auth is enabled, mutating routes
// require an owner token.
func (a *App) NewRouter(hub *sync.Hub, cfg utils.AuthConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := a.DB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	router.GET("/ws", sync.WSHandler(hub))

	var guard []gin.HandlerFunc
	if cfg.Enabled {
		tokens := auth.TokenService{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Duration: cfg.JWTDuration,
		}
		auth.NewHandler(cfg.PasswordHash, tokens).RegisterRoutes(router.Group("/auth"))
		guard = append(guard, auth.AuthMiddleware(tokens))
	}

	entry.NewHandler(a.Entries, a.Categories, hub).RegisterRoutes(
		router.Group("/entries"),
		router.Group("/entries", guard...),
	)
	category.NewHandler(a.Categories, hub).RegisterRoutes(
		router.Group("/categories"),
		router.Group("/categories", guard...),
	)
	xh := exchange.NewHandler(a.Engine, a.Exporter, hub)
	xh.Log = a.Log.With("component", "exchange")
	xh.RegisterRoutes(
		router.Group(""),
		router.Group("", guard...),
	)

	return router
}
