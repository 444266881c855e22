package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"radhiant_ops/internal/models"
)

// Claims carried by admin tokens.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWT issues and checks HS256 tokens.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	if secret == "" {
		secret = "supersecret" // fallback
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (j *JWT) GenerateToken(userID string, role models.Role) (string, error) {
	now := j.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWT) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// authenticate validates the bearer token and stores its claims on the
// context. It aborts the request and returns false on failure.
func (j *JWT) authenticate(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
		return false
	}

	claims, err := j.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return false
	}

	// Store claims in context for downstream handlers
	c.Set("user_id", claims.UserID)
	c.Set("role", claims.Role)
	return true
}

// RequireAuth ensures a valid JWT is present
func (j *JWT) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !j.authenticate(c) {
			return
		}
		c.Next()
	}
}

// RequireAuthWithRole ensures the JWT is valid and the user has a specific role
func (j *JWT) RequireAuthWithRole(requiredRole models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !j.authenticate(c) {
			return
		}

		role, ok := c.Get("role")
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Role not found in token"})
			return
		}
		if r, ok := role.(models.Role); !ok || r != requiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}
