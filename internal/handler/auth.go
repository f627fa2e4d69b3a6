package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/go-storefront-api/internal/dto"
	"github.com/flicky/go-storefront-api/internal/middleware"
	"github.com/flicky/go-storefront-api/internal/service"
)

const accessCookieMaxAge = 15 * 60 // seconds, mirrors the access token TTL

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			fail(c, http.StatusBadRequest, "user already exists with this email")
			return
		}
		fail(c, http.StatusInternalServerError, "server error during registration")
		return
	}

	ok(c, http.StatusCreated,
		"user registered successfully, please check your email for verification",
		gin.H{"user": user})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			fail(c, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrAccountLocked):
			fail(c, http.StatusLocked, "account temporarily locked")
		default:
			fail(c, http.StatusInternalServerError, "server error during login")
		}
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("token", resp.AccessToken, accessCookieMaxAge, "/", "", false, true)
	ok(c, http.StatusOK, "login successful", resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	_ = c.ShouldBindJSON(&req)

	resp, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingRefreshToken):
			fail(c, http.StatusUnauthorized, "refresh token required")
		case errors.Is(err, service.ErrInvalidRefreshToken):
			fail(c, http.StatusForbidden, "invalid refresh token")
		default:
			fail(c, http.StatusInternalServerError, "server error refreshing token")
		}
		return
	}

	ok(c, http.StatusOK, "", resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.LogoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		fail(c, http.StatusInternalServerError, "server error during logout")
		return
	}

	c.SetCookie("token", "", -1, "/", "", false, true)
	ok(c, http.StatusOK, "logged out successfully", nil)
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	err := h.authService.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			fail(c, http.StatusNotFound, "user not found with this email")
			return
		}
		fail(c, http.StatusInternalServerError, "server error sending reset email")
		return
	}

	ok(c, http.StatusOK, "password reset email sent", nil)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	err := h.authService.ResetPassword(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidResetToken) {
			fail(c, http.StatusBadRequest, "invalid or expired reset token")
			return
		}
		fail(c, http.StatusInternalServerError, "server error resetting password")
		return
	}

	ok(c, http.StatusOK, "password reset successful", nil)
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	err := h.authService.VerifyEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidVerifyToken) {
			fail(c, http.StatusBadRequest, "invalid verification token")
			return
		}
		fail(c, http.StatusInternalServerError, "server error verifying email")
		return
	}

	ok(c, http.StatusOK, "email verified successfully", nil)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	err := h.authService.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrWrongPassword) {
			fail(c, http.StatusBadRequest, "current password is incorrect")
			return
		}
		fail(c, http.StatusInternalServerError, "server error changing password")
		return
	}

	ok(c, http.StatusOK, "password changed successfully", nil)
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.authService.GetProfile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "server error fetching profile")
		return
	}
	ok(c, http.StatusOK, "", gin.H{"user": user})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		fail(c, http.StatusInternalServerError, "server error updating profile")
		return
	}
	ok(c, http.StatusOK, "profile updated successfully", gin.H{"user": user})
}
