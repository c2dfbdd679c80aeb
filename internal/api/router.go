package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/imaker-dev/restro-backend-sub004/internal/mw"
)

// RouterOptions tunes the middleware around the handlers.
type RouterOptions struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 20
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}

	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)
	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	// Bridge protocol. Polled every few seconds by remote agents; never
	// cached and not rate-limited beyond what the agents do themselves.
	bridge := r.Group("/api/bridge")
	{
		bridge.POST("/poll", h.BridgePoll)
		bridge.POST("/ack", h.BridgeAck)
		bridge.GET("/printers", h.BridgePrinterMap)
		bridge.POST("/status", h.BridgeStatusReport)
		bridge.GET("/ws", h.BridgeWS)
	}

	// Operator surface.
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/printers", h.CreatePrinter)
		api.GET("/printers", caching, h.ListPrinters)
		api.POST("/printers/:id/ping", h.PingPrinter)
		api.GET("/printers/status", h.PrinterStatus)

		api.POST("/kitchen-stations", h.CreateKitchenStation)

		api.POST("/bridges", h.CreateBridge)
		api.GET("/bridges", h.ListBridges)
		api.POST("/bridges/:id/deactivate", h.DeactivateBridge)

		api.POST("/jobs", h.EnqueueJob)
		api.GET("/jobs/pending", h.ListPendingJobs)
		api.GET("/jobs/failed", h.ListFailedJobs)
		api.GET("/jobs/stats", h.JobStats)
		api.GET("/jobs/:id/logs", h.JobLogs)
		api.POST("/jobs/:id/retry", h.RetryJob)
		api.POST("/jobs/:id/cancel", h.CancelJob)

		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
