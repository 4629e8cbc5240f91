package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/broadcaster-pro/discord-broadcaster/src/webapi/config"
)

func attachRoutes(r *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.WebOrigin},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	authH := NewAuth(cfg, db, rdb)
	broadcastH := NewBroadcasts(db, cfg.BroadcastCost)
	walletH := NewWallet(db)

	limiter := NewRateLimiter(30, time.Minute)

	v1 := r.Group("/v1")
	{
		v1.GET("/auth/login", authH.Login)
		v1.GET("/auth/callback", authH.Callback)

		secured := v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)), RateLimitMiddleware(limiter))
		secured.POST("/broadcasts", broadcastH.Create)
		secured.GET("/broadcasts", broadcastH.List)
		secured.GET("/broadcasts/:id", broadcastH.Get)
		secured.DELETE("/broadcasts/:id", broadcastH.Delete)
		secured.GET("/wallet", walletH.Show)
	}
}
