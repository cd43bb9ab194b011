package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hackrx-qa/docqa/engine/infra/server/middleware/auth"
	"github.com/hackrx-qa/docqa/engine/qa"
	"github.com/hackrx-qa/docqa/pkg/logger"
)

// RouterOptions collects the dependencies of the HTTP router.
type RouterOptions struct {
	AuthToken string
	Service   *qa.Service
	Log       logger.Logger
}

// NewRouter builds the gin engine with middleware and routes registered.
func NewRouter(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(opts.Log))
	router.GET("/", handleHealth)
	authManager := auth.NewManager(opts.AuthToken)
	api := router.Group("/hackrx")
	api.Use(authManager.Middleware())
	api.POST("/run", handleRun(opts.Service))
	return router
}

// requestLogger tags each request with an ID and injects a scoped logger
// into the request context.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		reqLog := log.With("request_id", requestID)
		ctx := logger.ContextWithLogger(c.Request.Context(), reqLog)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
		reqLog.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "API is running",
		"message":  "HackRx Document Q&A API",
		"endpoint": "/hackrx/run",
	})
}
