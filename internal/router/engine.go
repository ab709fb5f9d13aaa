package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/internal/metrics"
	"github.com/tamias-pos/customer-display/internal/view"
	"github.com/tamias-pos/customer-display/pkg/config"
)

func InitEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(RequestLogger(log), RequestMetrics(), Recovery(log))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     []string{"GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.SetHTMLTemplate(view.Templates())
	return router
}

func InitializeRoutes(router *gin.Engine, h *Handler) {
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	displays := router.Group("/display")
	{
		displays.GET("/:storeRef", h.OpenDisplay)

		sessions := displays.Group("/sessions/:id")
		sessions.Use(SessionMiddleware(h.hub))
		{
			sessions.GET("/events", h.StreamDisplay)
			sessions.DELETE("", h.CloseDisplay)
			sessions.POST("/close", h.CloseDisplay)
			sessions.POST("/cashier", h.SelectCashier)
			sessions.DELETE("/cashier", h.ClearCashier)
			sessions.POST("/cashier/clear", h.ClearCashier)
		}
	}

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/stores/:storeRef", h.GetStore)
		api.DELETE("/stores/:storeRef/cache", h.InvalidateStore)

		sessions := api.Group("/display/sessions/:id")
		sessions.Use(SessionMiddleware(h.hub))
		{
			sessions.GET("", h.GetSession)
			sessions.GET("/presence", h.GetPresence)
		}
	}
}
