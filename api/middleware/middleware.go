package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborbank/harbor"
	"github.com/harborbank/harbor/config"
	"github.com/harborbank/harbor/model"
)

const (
	KeyHeader      = "X-Harbor-Key"
	IdentityHeader = "X-Harbor-Identity"

	// SessionKey is the gin context key the resolved session is stored under.
	SessionKey = "harbor_session"
)

// SecretKeyAuthMiddleware guards the whole surface with the shared server
// key when secure mode is on.
func SecretKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		conf, err := config.Fetch()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Secret key is not configured"})
			return
		}
		secretKey := conf.Server.SecretKey
		if secretKey == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Secret key is not configured"})
			return
		}

		clientSecret := c.GetHeader(KeyHeader)
		if clientSecret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing secret key"})
			return
		}
		if !secureCompare(secretKey, clientSecret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid secret key"})
			return
		}

		c.Next()
	}
}

// SessionMiddleware resolves the caller's identity from the identity header
// through the session cache and stores the session on the context. Requests
// without a resolvable identity are rejected.
func SessionMiddleware(service *harbor.Harbor) gin.HandlerFunc {
	return func(c *gin.Context) {
		identityID := c.GetHeader(IdentityHeader)
		if identityID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing identity header"})
			return
		}

		session, err := service.ResolveSession(c.Request.Context(), identityID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown identity"})
			return
		}

		c.Set(SessionKey, session)
		c.Next()
	}
}

// RequireAdmin gates the back-office routes. Must run after
// SessionMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFromContext(c)
		if session == nil || session.Role != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// SessionFromContext returns the session placed by SessionMiddleware, or nil.
func SessionFromContext(c *gin.Context) *harbor.Session {
	value, exists := c.Get(SessionKey)
	if !exists {
		return nil
	}
	session, ok := value.(*harbor.Session)
	if !ok {
		return nil
	}
	return session
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
