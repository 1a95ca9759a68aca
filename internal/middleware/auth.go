package middleware

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"orderdesk/internal/identity"
	"orderdesk/pkg/response"
)

// Context keys set for downstream handlers.
const (
	CtxUserID    = "userID"
	CtxUserEmail = "userEmail"
	CtxUserRole  = "userRole"
)

var (
	jwtSecret []byte
	provider  identity.Provider
)

// Init wires the middleware's JWT secret and the identity provider used for
// revocation checks.
func Init(secret []byte, p identity.Provider) {
	jwtSecret = secret
	provider = p
}

// IssueToken signs a session token carrying the user id, email and role. The
// role claim is a UI hint only; services re-verify it at the point of use.
func IssueToken(session identity.Session, role string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   session.UserID,
		"email": session.Email,
		"role":  role,
		"exp":   time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(jwtSecret)
}

// SetTokenCookie sets the access token as an HttpOnly cookie.
func SetTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", token, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie.
func ClearTokenCookie(c *gin.Context) {
	c.SetCookie("access_token", "", -1, "/", "", false, true)
}

// SessionFrom rebuilds the identity session from the request context.
func SessionFrom(c *gin.Context) identity.Session {
	return identity.Session{
		UserID: c.GetString(CtxUserID),
		Email:  c.GetString(CtxUserEmail),
	}
}

// authenticate validates the JWT from cookie or Authorization header and
// rejects revoked sessions (forced sign-out takes effect immediately). It
// aborts the request and reports false on failure.
func authenticate(c *gin.Context) bool {
	tokenString, cookieErr := c.Cookie("access_token")
	if cookieErr != nil || tokenString == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return false
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
			return false
		}
		tokenString = parts[1]
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
		return false
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Subject not found in token"))
		return false
	}
	if provider != nil && !provider.IsSignedIn(userID) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Session has been revoked"))
		return false
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	c.Set(CtxUserID, userID)
	c.Set(CtxUserEmail, email)
	c.Set(CtxUserRole, role)
	return true
}

// RequireAuth admits any valid, unrevoked token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c)
	}
}

// RequireRole layers a coarse route-level role check on top of RequireAuth.
// Services still re-verify against the store before mutating anything.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c) {
			return
		}

		userRole := c.GetString(CtxUserRole)
		for _, role := range allowedRoles {
			if userRole == role {
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}
