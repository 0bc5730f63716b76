package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spriteops/key-server/internal/api/http/handler"
	"github.com/spriteops/key-server/internal/api/http/middleware"
)

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger(srvs.Metrics))

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	if srvs.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(srvs.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	adminHandler := handler.NewAdminHandler(srvs.Store, srvs.Mailer, srvs.Metrics, handler.AdminConfig{
		Secret:  srvs.AdminSecret,
		BaseURL: srvs.BaseURL,
		LinkTTL: srvs.LinkTTL,
	})
	admin := engine.Group("/admin", middleware.BearerAuth(srvs.AdminSecret))
	admin.POST("/request", adminHandler.CreateBatch)

	keyHandler := handler.NewKeyHandler(srvs.Store, srvs.Metrics, srvs.AdminSecret)
	key := engine.Group("/key",
		middleware.SecurityHeaders(),
		middleware.RateLimit(srvs.Limiter, srvs.Metrics),
	)
	key.GET("/:id", keyHandler.ShowForm)
	key.POST("/:id", keyHandler.Submit)
}
