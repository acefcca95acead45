package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/tasklit/tasklit/internal/auth"
	"github.com/tasklit/tasklit/internal/services"
	apperrors "github.com/tasklit/tasklit/pkg/errors"
	"github.com/tasklit/tasklit/pkg/metrics"
	"github.com/tasklit/tasklit/pkg/response"
)

// AuthHandler owns every /api/auth endpoint. The handler is the only layer
// that touches cookies: the service decides whether an identity is valid, the
// handler turns that decision into session and marker cookies.
type AuthHandler struct {
	auth    *services.AuthService
	jwt     *iauth.JWTService
	cookies *iauth.CookieManager
}

// NewAuthHandler wires the auth endpoints.
func NewAuthHandler(auth *services.AuthService, jwt *iauth.JWTService, cookies *iauth.CookieManager) *AuthHandler {
	return &AuthHandler{auth: auth, jwt: jwt, cookies: cookies}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// Register creates a pending account and mails a verification code. No
// session is issued until the email is verified.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		metrics.Registrations.WithLabelValues("failure").Inc()
		return
	}

	user, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		metrics.Registrations.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}
	metrics.Registrations.WithLabelValues("success").Inc()

	h.cookies.SetPendingVerification(c, user.Email)
	response.MessageWithData(c, http.StatusCreated,
		"Registration successful. Check your email for the verification code.", user)
}

type verifyEmailRequest struct {
	Code string `json:"code" validate:"required"`
}

// VerifyEmail consumes the code sent at registration. The email comes from
// the pending-verification cookie, never the body. Success logs the user in.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	email, ok := h.cookies.PendingVerification(c)
	if !ok {
		response.Error(c, apperrors.ErrVerificationSessionExpired)
		return
	}

	user, err := h.auth.VerifyEmail(c.Request.Context(), email, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.ClearPendingVerification(c)
	if !h.issueSession(c, user.ID, user.Role) {
		return
	}

	response.MessageWithData(c, http.StatusOK, "Email verified successfully", user)
}

// ResendVerification issues a fresh code for the pending account named by the
// verification cookie, invalidating the previous one.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	email, ok := h.cookies.PendingVerification(c)
	if !ok {
		response.Error(c, apperrors.ErrVerificationSessionExpired)
		return
	}

	user, err := h.auth.ResendVerification(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetPendingVerification(c, user.Email)
	response.Message(c, http.StatusOK, "Verification code sent")
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges credentials for a session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	if !h.issueSession(c, user.ID, user.Role) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return
	}
	metrics.AuthAttempts.WithLabelValues("success").Inc()

	response.MessageWithData(c, http.StatusOK, "Logged in", user)
}

// Logout clears the session cookie. Safe to call without a session.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookies.ClearSession(c)
	response.Message(c, http.StatusOK, "Logged out")
}

// Me returns the profile behind the active session. The guard already loaded
// the user record, so no extra query is needed.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, user)
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required"`
}

// UpdateProfile changes the display name. Email and role are immutable here.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), userID, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.MessageWithData(c, http.StatusOK, "Profile updated", user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// ChangePassword replaces the password after re-checking the current one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "Password changed")
}

type deleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

// DeleteAccount removes the account after password re-entry and ends the session.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req deleteAccountRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.DeleteAccount(c.Request.Context(), userID, req.Password); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.ClearSession(c)
	response.Message(c, http.StatusOK, "Account deleted")
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword mails a reset code and sets the reset marker cookie. Unknown
// emails get a 404; this endpoint does not hide account existence.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.auth.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetPasswordReset(c, user.Email)
	response.Message(c, http.StatusOK, "Password reset code sent")
}

type resetPasswordRequest struct {
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// ResetForgottenPassword consumes the mailed reset code. The email comes from
// the reset cookie. No session is issued; the user logs in afterwards.
func (h *AuthHandler) ResetForgottenPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	email, ok := h.cookies.PasswordReset(c)
	if !ok {
		response.Error(c, apperrors.ErrResetSessionMissing)
		return
	}

	if err := h.auth.ResetForgottenPassword(c.Request.Context(), email, req.Code, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.ClearPasswordReset(c)
	response.Message(c, http.StatusOK, "Password reset. Please log in.")
}

// ListUsers is the admin-only account listing.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, users)
}

func (h *AuthHandler) issueSession(c *gin.Context, userID, role string) bool {
	token, err := h.jwt.GenerateSessionToken(userID, role)
	if err != nil {
		response.Error(c, apperrors.ErrInternalServer.WithInternal(err))
		return false
	}
	h.cookies.SetSession(c, token)
	return true
}
