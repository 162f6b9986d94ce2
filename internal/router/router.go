package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sekolahku/ujian-backend/internal/config"
	"github.com/sekolahku/ujian-backend/internal/handler"
	"github.com/sekolahku/ujian-backend/internal/middleware"
	"github.com/sekolahku/ujian-backend/internal/response"
	"github.com/sekolahku/ujian-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Enrollment *handler.EnrollmentHandler
	Correction *handler.CorrectionHandler
	WS         *handler.WSHandler
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/enrollments")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		// :id is the exam ID for start and the enrollment ID everywhere else.
		studentAPI.POST("/:id/start", handlers.Enrollment.Start)
		studentAPI.GET("/:id/status", handlers.Enrollment.Status)
		studentAPI.POST("/:id/answers", handlers.Enrollment.SubmitAnswer)
		studentAPI.POST("/:id/finish", handlers.Enrollment.Finish)
		studentAPI.GET("/:id/result", handlers.Enrollment.Result)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/enrollments/:id/stream", handlers.WS.SessionStream)
	}

	// ─── 3. Grader Group (JWT) ─────────────────────────────────────────
	graderAPI := router.Group("/api/v1")
	graderAPI.Use(middleware.RequireGraderJWT(authService))
	{
		graderAPI.POST("/answers/:id/manual-correction", handlers.Correction.ManualCorrect)
		graderAPI.POST("/answers/:id/auto-correct", handlers.Correction.AutoCorrect)
		graderAPI.POST("/results/recalculate", handlers.Correction.Recalculate)
		graderAPI.POST("/results/recorrect", handlers.Correction.Recorrect)
		// Prefixed with /grader because the student group already owns
		// GET /api/v1/enrollments/:id/result.
		graderAPI.GET("/grader/enrollments/:id/result", handlers.Correction.Result)
	}

	return router
}
