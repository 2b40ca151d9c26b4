package handlers

import (
	"fmt"
	"net/http"
	"time"

	"quiz-portal-go/config"
	"quiz-portal-go/logging"
	"quiz-portal-go/middleware"
	"quiz-portal-go/models"
	"quiz-portal-go/services"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService  *services.AuthService
	emailService *services.EmailService
	config       *config.Config
	logger       *logging.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *services.AuthService, emailService *services.EmailService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		emailService: emailService,
		config:       cfg,
		logger:       logging.WithPrefix("AuthHandler"),
	}
}

// Signup handles account registration
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.Signup(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.setAuthCookie(w, resp.Token)
	WriteJSON(w, http.StatusCreated, resp)
}

// Login authenticates by email or username
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Identity == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "email/username and password are required")
		return
	}

	resp, err := h.authService.Login(r.Context(), req.Identity, req.Password)
	if err != nil {
		h.logger.Warnf("Login failed for %s: %v", req.Identity, err)
		WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.setAuthCookie(w, resp.Token)
	h.logger.Infof("User %s logged in", resp.User.Username)
	WriteJSON(w, http.StatusOK, resp)
}

// Logout clears the auth cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   !h.config.Server.BehindProxy,
		SameSite: http.SameSiteStrictMode,
	})
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ForgotPassword generates a reset token and emails it. The response
// never reveals whether the email exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		WriteError(w, http.StatusBadRequest, "email is required")
		return
	}

	genericBody := map[string]string{"message": "if the email exists, a reset link has been sent"}

	token, err := h.authService.RequestPasswordReset(r.Context(), req.Email)
	if err != nil || token == "" {
		if err != nil {
			h.logger.Warnf("Password reset request failed for %s: %v", req.Email, err)
		}
		WriteJSON(w, http.StatusOK, genericBody)
		return
	}

	if h.emailService.IsConfigured() {
		username := req.Email
		if user, err := h.authService.GetUserByEmail(r.Context(), req.Email); err == nil {
			username = user.Username
		}
		baseURL := h.config.Server.BaseURL
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://%s", r.Host)
		}
		if err := h.emailService.SendPasswordResetEmail(req.Email, username, token, baseURL, h.config.App.EventName); err != nil {
			h.logger.Errorf("Failed to send password reset email to %s: %v", req.Email, err)
		}
		WriteJSON(w, http.StatusOK, genericBody)
		return
	}

	// Email not configured: surface the reset URL directly in development
	if h.config.App.IsDevelopment {
		resetURL := fmt.Sprintf("http://%s/reset-password?token=%s", r.Host, token)
		h.logger.Infof("Email service not configured, reset URL: %s", resetURL)
		WriteJSON(w, http.StatusOK, map[string]string{
			"message":  "email delivery is not configured",
			"resetUrl": resetURL,
		})
		return
	}

	WriteJSON(w, http.StatusOK, genericBody)
}

// ResetPassword sets a new password using a valid reset token
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetForm
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Token == "" {
		WriteError(w, http.StatusBadRequest, "reset token is required")
		return
	}
	if req.NewPassword == "" || req.NewPassword != req.ConfirmPassword {
		WriteError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		if services.IsValidation(err) {
			writeServiceError(w, err)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid or expired reset token")
		return
	}

	h.logger.Info("Password reset completed")
	WriteJSON(w, http.StatusOK, map[string]string{"message": "password reset successful"})
}

// Me returns the current user's information
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	WriteJSON(w, http.StatusOK, user.ToSafeUser())
}

// setAuthCookie sets the authentication cookie
func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(24 * 180 * time.Hour),
		HttpOnly: true,
		Secure:   !h.config.Server.BehindProxy,
		SameSite: http.SameSiteStrictMode,
	})
}
