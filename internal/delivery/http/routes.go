package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"careline/internal/config"
	wsDelivery "careline/internal/delivery/websocket"
	"careline/pkg/logger"
)

func MapHttpRoutes(r *chi.Mux, httpHandler *HttpHandler, gatewayHandler *wsDelivery.GatewayHandler, authMiddleware *AuthMiddleware, cfg *config.Config, log *logger.Logger) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(Logging(log))

	// persistent connection gateway; authenticates its own handshake
	r.Get("/ws", http.HandlerFunc(gatewayHandler.HandleWebSocket))

	r.Get("/healthz", http.HandlerFunc(httpHandler.Health))
	r.Handle("/metrics", promhttp.Handler())

	// Synchronous messaging facade
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(authMiddleware.Authenticate)

		r.Get("/conversations/{userId}", http.HandlerFunc(httpHandler.ListConversations))
		r.Get("/messages/{conversationId}", http.HandlerFunc(httpHandler.GetMessages))
		r.Put("/messages/{id}/read", http.HandlerFunc(httpHandler.MarkRead))
		r.Get("/unread-count/{userId}", http.HandlerFunc(httpHandler.UnreadCount))
	})
}
