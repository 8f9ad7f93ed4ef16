package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mis-sentinel/internal/cache"
	"github.com/mis-sentinel/internal/config"
	"github.com/mis-sentinel/internal/constants"
	ledgerhandlers "github.com/mis-sentinel/internal/http/handlers/ledger"
	"github.com/mis-sentinel/internal/http/response"
	"github.com/mis-sentinel/internal/logger"
	"github.com/mis-sentinel/internal/metrics"
	"github.com/mis-sentinel/internal/provider"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	ledgerHandler := ledgerhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", healthHandler(c))
	if cfg.Metrics.Enabled {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(metrics.Handler()))
	}

	apiV1 := r.Group("/api/v1")
	if cfg.Security.RateLimit.Enabled {
		apiV1.Use(RateLimitMiddleware(cache.Client(), RateLimitRule{
			Prefix:        fmt.Sprintf("%s:rate:api", redisPrefix),
			WindowSeconds: cfg.Security.RateLimit.WindowSeconds,
			MaxRequests:   cfg.Security.RateLimit.MaxRequests,
			BlockSeconds:  cfg.Security.RateLimit.BlockSeconds,
		}, KeyByIPAndOperator))
	}
	registerLedgerRoutes(apiV1, ledgerHandler)
	return r
}

func registerLedgerRoutes(api *gin.RouterGroup, h *ledgerhandlers.Handler) {
	partners := api.Group("/partners")
	{
		partners.POST("", h.CreatePartner)
		partners.GET("", h.ListPartners)
		partners.POST("/bulk-status", h.BulkUpdatePartnerStatus)
		partners.GET("/:id", h.GetPartner)
		partners.PUT("/:id", h.UpdatePartner)
		partners.DELETE("/:id", h.DeletePartner)
		partners.POST("/:id/activate", h.ActivatePartner)
		partners.POST("/:id/suspend", h.SuspendPartner)
		partners.GET("/:id/sub-partners", h.ListSubPartners)

		partners.POST("/:id/clients", h.CreateClient)
		partners.GET("/:id/clients", h.ListClients)
		partners.GET("/:id/clients/:client_id", h.GetClient)
		partners.PUT("/:id/clients/:client_id", h.UpdateClient)
		partners.DELETE("/:id/clients/:client_id", h.DeleteClient)
		partners.POST("/:id/clients/:client_id/cancel", h.CancelClient)
		partners.POST("/:id/clients/:client_id/payments", h.RecordPayment)

		partners.GET("/:id/earnings", h.ListEarnings)
		partners.POST("/:id/earnings", h.EarningAction)
		partners.GET("/:id/earnings/summary", h.GetEarningSummary)
		partners.GET("/:id/earnings/report", h.GetMonthlyReport)
		partners.GET("/:id/earnings/:earning_id/history", h.GetEarningHistory)
	}
}

// healthHandler 检查数据库与 Redis 连通性
func healthHandler(c *provider.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := gin.H{"database": "ok", "redis": "ok"}
		healthy := true
		if c == nil || c.DB == nil {
			status["database"] = "unavailable"
			healthy = false
		} else if sqlDB, err := c.DB.DB(); err != nil || sqlDB.PingContext(checkCtx) != nil {
			status["database"] = "unavailable"
			healthy = false
		}
		if !cache.Enabled() {
			status["redis"] = "disabled"
		} else if err := cache.Ping(checkCtx); err != nil {
			status["redis"] = "unavailable"
			healthy = false
		}

		if !healthy {
			ctx.JSON(http.StatusServiceUnavailable, response.Response{
				Success:   false,
				Data:      status,
				Error:     "dependency unavailable",
				RequestID: getRequestID(ctx),
			})
			return
		}
		response.Success(ctx, status)
	}
}
