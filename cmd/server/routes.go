package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/builders-garden/swifty/internal/interfaces/http/handlers"
	"github.com/builders-garden/swifty/internal/interfaces/http/middleware"
)

const (
	serviceName    = "swifty-backend"
	serviceVersion = "0.1.0"
)

type routeDeps struct {
	paymentLinkHandler    *handlers.PaymentLinkHandler
	attemptHandler        *handlers.AttemptHandler
	settlementHandler     *handlers.SettlementHandler
	authMiddleware        gin.HandlerFunc
	idempotencyMiddleware gin.HandlerFunc
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Checkout (public)
		v1.GET("/tokens", d.paymentLinkHandler.ListTokens)
		v1.GET("/pay/:slug", d.paymentLinkHandler.GetPaymentLink)

		protected := v1.Group("")
		protected.Use(d.authMiddleware)
		{
			// Attempts sign with the checkout wallet
			protected.POST("/pay/:slug/attempts", d.idempotencyMiddleware, d.attemptHandler.CreateAttempt)
			protected.DELETE("/attempts/:id", d.attemptHandler.CancelAttempt)
			protected.POST("/attempts/:id/settle", d.attemptHandler.SettleAttempt)

			// Merchant reads
			protected.GET("/transactions", d.settlementHandler.ListTransactions)
			protected.GET("/subscriptions", d.settlementHandler.ListSubscriptions)
		}
	}

	// Settlement write API
	public := r.Group("/api/public")
	public.Use(d.idempotencyMiddleware)
	{
		public.POST("/transactions", d.settlementHandler.RecordTransaction)
		public.POST("/subscriptions", d.settlementHandler.RegisterSubscription)
	}
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+middleware.IdempotencyHeader+", "+middleware.RequestIDHeader)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": serviceVersion,
		})
	})
}

func registerMetricsRoute(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
