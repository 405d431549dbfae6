package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ppplay-api/internal/auth"
	"ppplay-api/internal/logger"
	"ppplay-api/internal/ratelimit"
	"ppplay-api/internal/services"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	Auth          *services.AuthService
	Users         *services.UserService
	Ledger        *services.LedgerService
	Markets       *services.MarketService
	Predictions   *services.PredictionService
	Attendance    *services.AttendanceService
	Leaderboard   *services.LeaderboardService
	Notifications *services.NotificationService
	Comments      *services.CommentService
	Admin         *services.AdminService
	Export        *services.ExportService
}

// RouterConfig holds the cross-cutting settings of the router
type RouterConfig struct {
	Allowlist      *auth.Allowlist
	IPLimiter      *ratelimit.IPLimiter
	AllowedOrigins []string
	Location       *time.Location
}

// NewRouter builds the gin engine with every API route registered
func NewRouter(svc Services, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logger.RequestLogger())

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if cfg.IPLimiter != nil {
		router.Use(IPRateLimit(cfg.IPLimiter))
	}

	authHandler := NewAuthHandler(svc.Users)
	userHandler := NewUserHandler(svc.Users, svc.Ledger)
	marketHandler := NewMarketHandler(svc.Markets)
	predictionHandler := NewPredictionHandler(svc.Predictions)
	attendanceHandler := NewAttendanceHandler(svc.Attendance)
	leaderboardHandler := NewLeaderboardHandler(svc.Leaderboard)
	notificationHandler := NewNotificationHandler(svc.Notifications)
	commentHandler := NewCommentHandler(svc.Comments)
	adminHandler := NewAdminHandler(svc.Admin, svc.Comments, svc.Export, cfg.Location)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware(cfg.Allowlist), ProvisionUser(svc.Auth))
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	api := router.Group("/api")

	// Public routes; a valid token still identifies the caller
	public := api.Group("")
	public.Use(auth.OptionalAuth(cfg.Allowlist))
	{
		public.GET("/markets", marketHandler.GetMarkets)
		public.GET("/markets/:id", marketHandler.GetMarketByID)
		public.GET("/markets/:id/activity", marketHandler.GetActivity)
		public.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		public.GET("/comments", commentHandler.GetComments)
	}

	protected := api.Group("")
	protected.Use(auth.AuthMiddleware(cfg.Allowlist), ProvisionUser(svc.Auth))
	{
		protected.POST("/markets/create", marketHandler.CreateMarket)
		protected.POST("/predictions/create", predictionHandler.CreatePrediction)

		userRoutes := protected.Group("/user")
		{
			userRoutes.GET("/profile", userHandler.GetProfile)
			userRoutes.GET("/transactions", userHandler.GetTransactions)
			userRoutes.GET("/predictions", userHandler.GetPredictions)
			userRoutes.PATCH("/nickname", userHandler.UpdateNickname)
		}

		protected.GET("/attendance", attendanceHandler.GetStatus)
		protected.POST("/attendance", attendanceHandler.CheckIn)
		protected.GET("/attendance/history", attendanceHandler.GetHistory)

		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.PATCH("/notifications", notificationHandler.MarkRead)
		protected.DELETE("/notifications", notificationHandler.DeleteNotifications)

		protected.POST("/comments", commentHandler.CreateComment)
		protected.DELETE("/comments", commentHandler.DeleteComment)

		protected.GET("/admin/check", authHandler.CheckAdmin)
	}

	admin := protected.Group("/admin")
	admin.Use(auth.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/stats", adminHandler.GetPlatformStats)
		admin.GET("/markets", adminHandler.GetMarkets)
		admin.GET("/markets/pending", adminHandler.GetPendingMarkets)
		admin.POST("/markets/approve", adminHandler.ApproveMarket)
		admin.POST("/markets/reject", adminHandler.RejectMarket)
		admin.POST("/markets/settle", adminHandler.SettleMarket)
		admin.DELETE("/markets/:id", adminHandler.DeleteMarket)
		admin.PATCH("/markets/:id/restore", adminHandler.RestoreMarket)
		admin.GET("/comments", adminHandler.GetComments)
		admin.DELETE("/comments", adminHandler.DeleteComment)
		admin.POST("/notifications", adminHandler.CreateNotification)
		admin.POST("/points/adjust", adminHandler.AdjustPoints)
		admin.GET("/export/transactions", adminHandler.ExportTransactions)
		admin.GET("/logs", adminHandler.GetAdminLogs)
	}

	return router
}
