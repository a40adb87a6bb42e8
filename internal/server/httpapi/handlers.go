package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmanankin/authvault/internal/common"
	"github.com/dmanankin/authvault/internal/server/models"
)

// Caller-facing error messages are deliberately uniform: login failures
// never reveal whether the email exists, and refresh failures never reveal
// whether the token was unknown, expired, or replayed. The distinction is
// logged server-side only.
const (
	msgInvalidCredentials = "invalid email or password"
	msgInvalidToken       = "invalid or expired token"
	msgInternal           = "internal error"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type registerResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type userResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type tokenPairResponse struct {
	UserID       string `json:"userId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpireIn     int64  `json:"expireIn"`
}

func toTokenPairResponse(pair *models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		UserID:       pair.UserID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpireIn:     pair.ExpiresIn,
	}
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := s.svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		s.logger.Error(c.Request.Context(), "registration failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}

	c.JSON(http.StatusCreated, registerResponse{UserID: user.ID, Email: user.Email})
}

func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	pair, err := s.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgInvalidCredentials})
			return
		}
		s.logger.Error(c.Request.Context(), "login failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}

	c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

func (s *Server) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	pair, err := s.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if isTokenRejection(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgInvalidToken})
			return
		}
		s.logger.Error(c.Request.Context(), "refresh failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}

	c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

func (s *Server) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := s.svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		s.logger.Error(c.Request.Context(), "logout failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) me(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	user, err := s.svc.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgInvalidToken})
			return
		}
		s.logger.Error(c.Request.Context(), "user lookup failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}

	c.JSON(http.StatusOK, userResponse{UserID: user.ID, Email: user.Email})
}

func isTokenRejection(err error) bool {
	return errors.Is(err, common.ErrInvalidToken) ||
		errors.Is(err, common.ErrTokenReused) ||
		errors.Is(err, common.ErrRefreshTokenExpired)
}
