package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"lightsats/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ctxUserID = "userID"

// SessionClaims for a logged-in user session
type SessionClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

func (s *Server) jwtSecret() []byte {
	if s.cfg.Server.JWTSecret == "" {
		return []byte("dev-secret-do-not-use-in-prod")
	}
	return []byte(s.cfg.Server.JWTSecret)
}

// GenerateSessionToken creates a standard access token for a user
func (s *Server) GenerateSessionToken(user *domain.User) (string, error) {
	claims := SessionClaims{
		UserID: user.ID,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(48 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "lightsats",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret())
}

// ValidateSessionToken parses and validates the session token
func (s *Server) ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireAuth extracts and validates the bearer token, storing the user ID
// in the request context.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := s.ValidateSessionToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Next()
	}
}

type loginRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,url"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// HandleLogin exchanges a verified identity for a session token. Identity
// verification (sign-in provider, magic link) happens upstream; this
// endpoint only finds or creates the matching user record.
func (s *Server) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if user == nil {
		user = &domain.User{
			ID:        uuid.NewString(),
			Name:      req.Name,
			Email:     req.Email,
			AvatarURL: req.AvatarURL,
			Locale:    s.cfg.Tips.DefaultLocale,
		}
		if err := s.store.CreateUser(user); err != nil {
			s.writeError(c, err)
			return
		}
	} else if req.AvatarURL != "" && req.AvatarURL != user.AvatarURL {
		// The identity provider is the source of truth for the avatar, so a
		// changed URL on sign-in updates the record. The cached image is
		// refreshed by the next avatar sync.
		user.AvatarURL = req.AvatarURL
		user.AvatarPath = ""
		if err := s.store.SaveUser(user); err != nil {
			s.writeError(c, err)
			return
		}
	}

	token, err := s.GenerateSessionToken(user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token, User: user})
}

// HandleMe returns the authenticated user's record.
func (s *Server) HandleMe(c *gin.Context) {
	user, err := s.store.GetUser(c.GetString(ctxUserID))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}
