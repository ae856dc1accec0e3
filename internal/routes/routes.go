// Package routes wires message patterns and ops HTTP routes for the auth service.
package routes

import (
	"log/slog"

	"github.com/GunarsK-portfolio/auth-rpc-service/internal/handlers"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/middleware"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/rpc"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRPC binds the auth message patterns to authHandler.
func RegisterRPC(server *rpc.Server, authHandler *handlers.AuthHandler) {
	server.Handle(handlers.PatternRegister, authHandler.Register)
	server.Handle(handlers.PatternLogin, authHandler.Login)
	server.Handle(handlers.PatternVerify, authHandler.Verify)
}

// Setup configures the ops HTTP routes. gatherer serves /metrics.
func Setup(router *gin.Engine, healthHandler *handlers.HealthHandler, gatherer prometheus.Gatherer, logger *slog.Logger) {
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Health check
	router.GET("/health", healthHandler.Check)
	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
