package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/gigcredit/backend/internal/auth"
	"github.com/gigcredit/backend/internal/config"
	"github.com/gigcredit/backend/internal/http/handlers"
	"github.com/gigcredit/backend/internal/http/middleware"
	"github.com/gigcredit/backend/internal/version"
	"github.com/gigcredit/backend/internal/ws"
)

const maxRequestBodyBytes = 1 << 20

type Dependencies struct {
	Pinger              handlers.Pinger
	LoanHandler         *handlers.LoanHandler
	LenderHandler       *handlers.LenderHandler
	NotificationHandler *handlers.NotificationHandler
	WSHandler           *ws.Handler
	JWTManager          *auth.JWTManager
	Redis               *redis.Client
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.Env == "prod" || cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
	r.Use(middleware.RequestBodyLimit(maxRequestBodyBytes))

	if len(cfg.CORSAllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	health := handlers.NewHealthHandler(deps.Pinger)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	if deps.JWTManager == nil {
		r.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		})
		return r
	}

	requireAuth := middleware.RequireAuth(deps.JWTManager)

	if deps.WSHandler != nil {
		r.GET("/ws", requireAuth, deps.WSHandler.HandleWebSocket)
	}

	if deps.NotificationHandler != nil {
		r.GET("/v1/notifications", requireAuth, deps.NotificationHandler.List)
	}

	if deps.LoanHandler != nil {
		borrowerGroup := r.Group("/v1/loans")
		borrowerGroup.Use(requireAuth, middleware.RequireRole(auth.RoleBorrower))
		if deps.Redis != nil {
			borrowerGroup.Use(middleware.Idempotency(deps.Redis, cfg.IdempotencyTTL))
		}
		borrowerGroup.GET("/eligibility", deps.LoanHandler.GetEligibility)
		borrowerGroup.POST("/apply", deps.LoanHandler.Apply)
		borrowerGroup.GET("/mine", deps.LoanHandler.ListMine)
		borrowerGroup.GET("/:loanId", deps.LoanHandler.GetLoan)
		borrowerGroup.PUT("/:loanId/offers/:offerId/accept", deps.LoanHandler.AcceptOffer)
		borrowerGroup.PUT("/:loanId/offers/:offerId/reject", deps.LoanHandler.RejectOffer)
		borrowerGroup.PUT("/:loanId/cancel", deps.LoanHandler.Cancel)
		borrowerGroup.POST("/:loanId/repay", deps.LoanHandler.SubmitPayment)
	}

	if deps.LenderHandler != nil {
		lenderGroup := r.Group("/v1/lender")
		lenderGroup.Use(requireAuth, middleware.RequireRole(auth.RoleLender))
		if deps.Redis != nil {
			lenderGroup.Use(middleware.Idempotency(deps.Redis, cfg.IdempotencyTTL))
		}
		lenderGroup.GET("/applications", deps.LenderHandler.ListApplications)
		lenderGroup.GET("/applications/:loanId", deps.LenderHandler.GetApplication)
		lenderGroup.POST("/applications/:loanId/offer", deps.LenderHandler.MakeOffer)
		lenderGroup.PUT("/applications/:loanId/pass", deps.LenderHandler.Pass)
		lenderGroup.PUT("/applications/:loanId/withdraw", deps.LenderHandler.WithdrawOffer)
		lenderGroup.PUT("/applications/:loanId/disburse", deps.LenderHandler.Disburse)
		lenderGroup.PUT("/applications/:loanId/payments/:recordId/confirm", deps.LenderHandler.ConfirmPayment)
		lenderGroup.PUT("/applications/:loanId/payments/:recordId/reject", deps.LenderHandler.RejectPayment)
		lenderGroup.PUT("/applications/:loanId/default", deps.LenderHandler.MarkDefault)
		lenderGroup.GET("/stats", deps.LenderHandler.Stats)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}
