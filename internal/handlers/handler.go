package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mossy-p/pit-signaling/config"
	"github.com/mossy-p/pit-signaling/internal/middleware"
	"github.com/mossy-p/pit-signaling/internal/session"
)

// Handler serves the signaling websocket and the admin API.
type Handler struct {
	Sessions   *session.Manager
	Hub        *Hub
	Signaling  config.SignalingConfig
	ICEServers []webrtc.ICEServer
}

func NewHandler(sessions *session.Manager, hub *Hub, signaling config.SignalingConfig, iceServers []webrtc.ICEServer) *Handler {
	return &Handler{
		Sessions:   sessions,
		Hub:        hub,
		Signaling:  signaling,
		ICEServers: iceServers,
	}
}

// NewRouter wires every route onto a fresh gin engine.
func (h *Handler) NewRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		stats := h.Sessions.Stats()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "peers": stats.Peers, "pits": stats.Pits})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Pit management API
	apiGroup := router.Group("/api")
	{
		// Login endpoint (public)
		apiGroup.POST("/auth/login", Login(cfg.JWTSecret))

		apiGroup.GET("/ice-servers", h.GetICEServers)

		apiGroup.POST("/pits", middleware.JWTAuth(cfg.JWTSecret), h.CreatePit)
		apiGroup.GET("/pits", h.ListPits)
		apiGroup.GET("/pits/:pitId", h.GetPit)
		apiGroup.DELETE("/pits/:pitId", middleware.JWTAuth(cfg.JWTSecret), h.DeletePit)
	}

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/signal", h.HandleSignaling)
	}

	return router
}
