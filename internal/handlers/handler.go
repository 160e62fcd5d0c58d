package handlers

import (
	"lamp_control/internal/logger"
	"lamp_control/internal/relay"
	"lamp_control/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options toggles relay behaviour that is decided by configuration.
type Options struct {
	// AdminRequiresToken gates /ws/admin behind a bearer token.
	AdminRequiresToken bool
	// StaticDir holds the built web panel; empty disables static serving.
	StaticDir string
}

// Handler wires HTTP layer to services, the websocket hub and logging.
type Handler struct {
	services *service.Service
	hub      *relay.Hub
	opts     Options
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, hub *relay.Hub, opts Options, log *logger.Logger) *Handler {
	return &Handler{services: services, hub: hub, opts: opts, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// WebSocket endpoints share the HTTP port
	h.registerSocketRoutes(router)

	h.registerStatic(router)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerDeviceRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.GET("/:id/state", h.getDeviceState)
		// Body: the full device state, e.g. {"power":true,"brightness":75,"color":[255,255,255],...}
		devices.POST("/:id/control", h.controlDevice)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}

func (h *Handler) registerSocketRoutes(r *gin.Engine) {
	ws := r.Group("/ws")
	{
		ws.GET("/device", h.wsDevice)
		ws.GET("/client", h.wsClient)
		ws.GET("/admin", h.adminTokenMiddleware, h.wsAdmin)
	}
}
