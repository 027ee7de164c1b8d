package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nutriscan/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	if cfg.Server.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	}

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger.Named("http")))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/blobs/*path", handler.ServeBlob)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sessions", handler.CreateSession)
		v1.GET("/plans", handler.ListPlans)

		// Everything else acts on the session named by X-Session-ID
		s := v1.Group("")
		s.Use(SessionMiddleware(handler.sessions))
		{
			s.GET("/session", handler.GetSession)
			s.DELETE("/session", handler.DeleteSession)
			s.POST("/session/login", handler.ShowLogin)
			s.POST("/session/home", handler.ShowHome)

			auth := s.Group("/auth")
			{
				auth.POST("/interactive", handler.SignInInteractive)
				auth.POST("/signin", handler.SignIn)
				auth.POST("/signup", handler.SignUp)
				auth.POST("/guest", handler.GuestLogin)
				auth.POST("/signout", handler.SignOut)
			}

			s.PUT("/view", handler.SetView)
			s.PUT("/language", handler.SetLanguage)
			s.PUT("/plan", handler.SetPlan)

			scans := s.Group("/scans")
			{
				scans.POST("/image", handler.ScanImage)
				scans.POST("/text", handler.ScanText)
			}

			history := s.Group("/history")
			{
				history.GET("", handler.ListHistory)
				history.GET("/:id", handler.GetHistoryItem)
				history.GET("/:id/share", handler.ShareHistoryItem)
				history.POST("/:id/rescan", handler.RescanItem)
				history.POST("/:id/delete", handler.RequestDelete)
			}

			s.POST("/delete/confirm", handler.ConfirmDelete)
			s.POST("/delete/cancel", handler.CancelDelete)
		}
	}

	return router
}
