package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/liezira/simutbk-backend/internal/config"
	"github.com/liezira/simutbk-backend/internal/handler"
	"github.com/liezira/simutbk-backend/internal/middleware"
	"github.com/liezira/simutbk-backend/internal/response"
	"github.com/liezira/simutbk-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt     *handler.AttemptHandler
	Leaderboard *handler.LeaderboardHandler
	WS          *handler.WSHandler
	System      *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Operator metrics stream, gated by the OPS_TOKEN shared secret.
	router.GET("/ops/metrics", middleware.RequireOpsToken(cfg.OpsToken), handlers.System.SystemMetricsSSE)

	// ─── 1. Public Group (Rate Limited) ────────────────────────────────
	// Token redemption is the brute-force surface, so it gets its own
	// tighter bucket.
	redeemLimiter := middleware.NewRateLimiter(10, time.Minute)

	public := router.Group("/api/v1")
	{
		public.POST("/attempts", redeemLimiter.Middleware(), handlers.Attempt.Start)
		public.GET("/leaderboard", handlers.Leaderboard.Top)
	}

	// ─── 2. Attempt Group (Attempt JWT) ────────────────────────────────
	attemptAPI := router.Group("/api/v1/attempts/me")
	attemptAPI.Use(middleware.RequireAttemptJWT(authService))
	{
		attemptAPI.GET("", handlers.Attempt.State)
		attemptAPI.GET("/questions", handlers.Attempt.SectionQuestions)
		attemptAPI.POST("/answer", handlers.Attempt.Answer)
		attemptAPI.POST("/advance", handlers.Attempt.Advance)
		attemptAPI.POST("/integrity", handlers.Attempt.Integrity)
		attemptAPI.GET("/result", handlers.Attempt.Result)
	}

	// ─── 3. WebSocket Group (Attempt WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAttemptWSAuth(authService))
	{
		ws.GET("/attempts/stream", handlers.WS.AttemptStream)
	}

	return router
}
