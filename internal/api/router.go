package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/middleware"
	"go.uber.org/zap"
)

// Allowed-method lists, one per handler surface. These are what a preflight
// gets back, and registering them per group keeps each surface's contract
// self-contained.
const (
	authMethods    = "POST, OPTIONS"
	userMethods    = "GET, POST, PUT, DELETE, OPTIONS"
	messageMethods = "GET, POST, OPTIONS"

	authHeaders    = "Content-Type"
	defaultHeaders = "Content-Type, X-User-Id"
)

// NewRouter wires the three handler surfaces into a gin engine. main.go and
// the handler tests both build the router through here, so the middleware
// chain under test is the one that ships.
func NewRouter(
	authHandler *AuthHandler,
	userHandler *UserHandler,
	messageHandler *MessageHandler,
	jwtSecret string,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Unsupported verbs on known paths answer 405, not 404. The NoMethod
	// handler bypasses group middleware, so it stamps the origin header
	// itself — failure responses must stay consumable by a browser client.
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	v1 := r.Group("/v1")

	v1.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := v1.Group("/auth")
	authGroup.Use(middleware.CORS(authMethods, authHeaders))
	authGroup.POST("/login", authHandler.Login)
	authGroup.OPTIONS("/login", middleware.Preflight)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.OPTIONS("/logout", middleware.Preflight)
	authGroup.GET("/session", middleware.Session(jwtSecret), authHandler.Session)

	userGroup := v1.Group("/users")
	userGroup.Use(middleware.CORS(userMethods, defaultHeaders))
	userGroup.GET("", userHandler.List)
	userGroup.POST("", userHandler.Create)
	userGroup.PUT("", userHandler.Update)
	userGroup.DELETE("", userHandler.Delete)
	userGroup.OPTIONS("", middleware.Preflight)

	messageGroup := v1.Group("/messages")
	messageGroup.Use(middleware.CORS(messageMethods, defaultHeaders))
	messageGroup.GET("", messageHandler.List)
	messageGroup.POST("", messageHandler.Send)
	messageGroup.OPTIONS("", middleware.Preflight)

	return r
}
