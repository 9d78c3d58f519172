package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/auth"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
)

// Server wires the HTTP routes to an http.Server.
type Server struct {
	config   *config.Config
	router   *gin.Engine
	handlers *handlers.Handlers
	verifier *auth.Verifier
	metrics  *metrics.Metrics
	http     *http.Server
	logger   *logging.LoggerV2
}

// New builds the router and registers every route.
func New(cfg *config.Config, h *handlers.Handlers, verifier *auth.Verifier, m *metrics.Metrics, logger *logging.LoggerV2) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(logger))

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		verifier: verifier,
		metrics:  m,
		logger:   logger,
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/live", s.handlers.Live)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")

	// The gateway cannot authenticate; the handler re-reads status from the gateway.
	api.POST("/webhooks/cielo", s.handlers.CieloWebhook)
	api.GET("/webhooks/cielo", s.handlers.CieloWebhookStatus)

	authed := api.Group("", auth.RequireAuth(s.verifier, handlers.HandleError))
	{
		authed.POST("/payment/authorize", s.handlers.AuthorizePayment)
		authed.POST("/payment/cancel", s.handlers.CancelPayment)
		authed.POST("/payment/capture", auth.RequireAdmin(handlers.HandleError), s.handlers.CapturePayment)

		authed.POST("/orders", s.handlers.CreateOrder)
		authed.GET("/orders", s.handlers.ListOrders)
		authed.GET("/orders/:id", s.handlers.GetOrder)
		authed.PUT("/orders/:id", auth.RequireAdmin(handlers.HandleError), s.handlers.UpdateOrderStatus)
		authed.DELETE("/orders/:id", s.handlers.CancelOrder)
		authed.GET("/orders/:id/payments", s.handlers.ListOrderPayments)
	}
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Server starting", logging.Fields{"addr": s.http.Addr})
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestID reuses a valid inbound X-Request-ID or generates one, and puts it
// on the request context for logging and gateway calls.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(logging.HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(logging.HeaderRequestID, id)
		c.Next()
	}
}

func requestLogger(logger *logging.LoggerV2) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithContext(c.Request.Context()).Info("Request handled", logging.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}
