package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hackrx-qa/docqa/pkg/logger"
)

// Manager validates the static bearer token that protects the API.
type Manager struct {
	token string
}

// NewManager creates an auth middleware manager for the configured token.
func NewManager(token string) *Manager {
	return &Manager{token: token}
}

// Middleware returns the authentication middleware. Requests without a
// valid bearer token are rejected before any handler runs.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())
		token, err := extractBearerToken(c)
		if err != nil {
			log.Debug("Authentication failed", "reason", err.Error())
			handleAuthError(c, err)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			log.Debug("Authentication failed", "reason", "token mismatch")
			handleAuthError(c, &authError{message: "invalid token"})
			return
		}
		c.Next()
	}
}

// extractBearerToken extracts and validates the bearer token
func extractBearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", &authError{message: "no authorization header", public: true}
	}

	// Case-insensitive bearer check and handle extra spaces
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", &authError{message: "invalid format", public: true}
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", &authError{message: "empty token", public: true}
	}

	return token, nil
}

// handleAuthError sends appropriate error response
func handleAuthError(c *gin.Context, err error) {
	// Generic error message to prevent information leakage
	response := gin.H{
		"error":   "Authentication failed",
		"details": "Invalid or missing credentials",
	}
	if authErr, ok := err.(*authError); ok && authErr.public {
		response["details"] = "Invalid authorization header format"
	}
	c.JSON(http.StatusUnauthorized, response)
	c.Abort()
}

// authError represents an authentication error
type authError struct {
	message string
	public  bool // whether error details can be shown publicly
}

func (e *authError) Error() string {
	return e.message
}
