package handler

import (
	"cstore/internal/adapter/http/middleware"
	redisStore "cstore/internal/adapter/storage/redis"
	"cstore/internal/core/ports"
	"cstore/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	EscrowSvc      ports.EscrowService
	ApprovalSvc    ports.ApprovalService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Registry       *prometheus.Registry // nil = metrics endpoint disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.Registry != nil {
		r.Use(metrics.Middleware())
	}

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus metrics
	if deps.Registry != nil {
		r.GET("/metrics", metrics.Handler(deps.Registry))
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	adminOnly := middleware.RequireAdmin()

	v1 := r.Group("/api/v1")

	// --- Escrow lifecycle ---
	escrowHandler := NewEscrowHandler(deps.EscrowSvc)
	escrow := v1.Group("/escrow", jwtAuth)
	{
		escrow.POST("", rl("escrow_create"), escrowHandler.Create)
		escrow.GET("", rl("escrow_read"), escrowHandler.List)
		escrow.GET("/stats", rl("admin"), adminOnly, escrowHandler.Stats)
		escrow.GET("/:id", rl("escrow_read"), escrowHandler.Get)
		escrow.POST("/:id/fund", rl("escrow_fund"), escrowHandler.Fund)
		escrow.POST("/:id/release", rl("escrow_action"), escrowHandler.Release)
		escrow.POST("/:id/refund", rl("escrow_action"), escrowHandler.Refund)
		escrow.POST("/:id/cancel", rl("escrow_action"), escrowHandler.Cancel)
		escrow.POST("/:id/dispute", rl("escrow_action"), escrowHandler.FileDispute)
		escrow.POST("/:id/dispute/:disputeId/resolve", rl("admin"), adminOnly, escrowHandler.ResolveDispute)
		escrow.POST("/:id/milestone/:milestoneId/complete", rl("escrow_action"), escrowHandler.CompleteMilestone)
		escrow.POST("/:id/milestone/:milestoneId/release", rl("escrow_action"), escrowHandler.ReleaseMilestone)
		escrow.POST("/:id/conditions/:conditionId/confirm", rl("escrow_action"), escrowHandler.ConfirmDelivery)
	}

	// --- Multi-sig wallet transfers ---
	approvalHandler := NewApprovalHandler(deps.ApprovalSvc)
	transfers := v1.Group("/wallets/multi-sig/transactions", jwtAuth)
	{
		transfers.POST("", rl("transfers"), approvalHandler.Create)
		transfers.GET("", rl("escrow_read"), approvalHandler.List)
		transfers.GET("/:id", rl("escrow_read"), approvalHandler.Get)
		transfers.POST("/:id/approve", rl("transfers"), approvalHandler.Approve)
		transfers.POST("/:id/execute", rl("transfers"), approvalHandler.Execute)
		transfers.DELETE("/:id", rl("transfers"), approvalHandler.Cancel)
	}

	return r
}
