package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required,min=2,max=255"`
	Phone    string `json:"phone" binding:"required,min=8,max=20"`
	Password string `json:"password" binding:"required,min=8,max=100"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register handles account creation
func (h *AuthHandlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	profile, err := h.authService.Register(c.Request.Context(), core.Registration{
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Password: req.Password,
	})
	switch {
	case errors.Is(err, core.ErrAccountExists), errors.Is(err, core.ErrPhoneTaken):
		detail(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		detail(c, http.StatusInternalServerError, "Failed to register")
		return
	}

	c.JSON(http.StatusCreated, profile)
}

// Login handles the OAuth2 password form login
func (h *AuthHandlers) Login(c *gin.Context) {
	email, password := c.PostForm("username"), c.PostForm("password")
	if email == "" || password == "" {
		invalidRequest(c, errors.New("username and password are required"))
		return
	}

	pair, err := h.authService.Login(c.Request.Context(), email, password)
	switch {
	case errors.Is(err, core.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		detail(c, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, core.ErrAccountDisabled):
		detail(c, http.StatusForbidden, err.Error())
		return
	case err != nil:
		detail(c, http.StatusInternalServerError, "Authentication failed")
		return
	}

	tokens(c, pair)
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	switch {
	case errors.Is(err, core.ErrAccountDisabled):
		detail(c, http.StatusUnauthorized, "User not found or inactive")
		return
	case errors.Is(err, core.ErrInvalidToken),
		errors.Is(err, core.ErrTokenExpired),
		errors.Is(err, core.ErrTokenInvalidated):
		detail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	case err != nil:
		detail(c, http.StatusInternalServerError, "Failed to refresh tokens")
		return
	}

	tokens(c, pair)
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	err := h.authService.Logout(c.Request.Context(), req.RefreshToken)
	switch {
	case errors.Is(err, core.ErrInvalidToken):
		detail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	case err != nil:
		detail(c, http.StatusInternalServerError, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	profile, err := h.authService.Profile(accountID(c))
	if err != nil {
		unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMe changes the authenticated user's profile
func (h *AuthHandlers) UpdateMe(c *gin.Context) {
	var req core.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	profile, err := h.authService.UpdateProfile(c.Request.Context(), accountID(c), req)
	switch {
	case errors.Is(err, core.ErrPhoneTaken):
		detail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, core.ErrNotFound):
		unauthorized(c)
		return
	case err != nil:
		detail(c, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, profile)
}

func tokens(c *gin.Context, pair service.TokenPair) {
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "bearer",
	})
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// invalidRequest answers 422 with a validation error list
func invalidRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"detail": []gin.H{{
			"loc":  []string{"body"},
			"msg":  err.Error(),
			"type": "value_error",
		}},
	})
}
