package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/config"
	"github.com/tossconsultancy/assessment-backend/internal/handler"
	"github.com/tossconsultancy/assessment-backend/internal/middleware"
	"github.com/tossconsultancy/assessment-backend/internal/response"
	"github.com/tossconsultancy/assessment-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Quiz   *handler.QuizHandler
	Admin  *handler.AdminHandler
	System *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	sessions *service.SessionService,
	rdb *redis.Client,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when configured, otherwise allow all.
	// Credentials are needed for the session cookie, which rules out "*".
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Remaining"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	// ─── 1. Public Group (Rate Limited) ────────────────────────────────
	registerLimiter := middleware.NewRateLimiter(rdb, "register", cfg.RateLimitPerMinute, time.Minute, log)
	public := api.Group("")
	public.Use(registerLimiter.Middleware(), middleware.NoStore())
	{
		public.POST("/register-or-resume", handlers.Quiz.RegisterOrResume)
		public.POST("/check-attempt", handlers.Quiz.CheckAttempt)
	}

	// ─── 2. Candidate Group (JWT + Bound Session) ──────────────────────
	candidate := api.Group("")
	candidate.Use(
		middleware.RequireCandidateJWT(sessions),
		middleware.CheckCandidateSession(sessions),
		middleware.NoStore(),
	)
	{
		candidate.POST("/quiz", handlers.Quiz.StartQuiz)
		candidate.GET("/quiz", handlers.Quiz.ResumeQuiz)
		candidate.GET("/quiz/state", handlers.Quiz.GetState)
		candidate.POST("/answers/save", handlers.Quiz.SaveAnswer)
		candidate.POST("/timer/sync", handlers.Quiz.SyncTimer)
		candidate.POST("/position/update", handlers.Quiz.UpdatePosition)
		candidate.POST("/submit", handlers.Quiz.Submit)
		candidate.GET("/result", handlers.Quiz.GetResult)
	}

	// ─── 3. Auth Group (Public, Rate Limited) ──────────────────────────
	loginLimiter := middleware.NewRateLimiter(rdb, "admin_login", cfg.RateLimitPerMinute, time.Minute, log)
	auth := api.Group("/auth")
	auth.Use(loginLimiter.Middleware())
	{
		auth.POST("/admin/login", handlers.Admin.Login)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdminJWT(sessions))
	{
		admin.GET("/submissions", handlers.Admin.ListSubmissions)
		admin.GET("/candidates/:id/result", handlers.Admin.GetCandidateResult)
		admin.POST("/candidates/purge", handlers.Admin.PurgeCandidates)
		admin.GET("/system/status", handlers.System.Status)
	}

	return router
}
