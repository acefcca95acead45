package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/tasklit/tasklit/internal/auth"
	"github.com/tasklit/tasklit/internal/handlers/testutil"
	"github.com/tasklit/tasklit/pkg/response"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func registerAndVerify(t *testing.T, env *testutil.Env, client *testutil.Client, email, password, role string) {
	t.Helper()

	w := client.Do(http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": password,
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = client.Do(http.MethodPost, "/api/auth/verify-email", map[string]string{
		"code": env.Mailer.LastCode(t),
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRegistrationToSessionFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	client := env.NewClient(t)

	w := client.Do(http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Registration sets the pending marker but never a session.
	_, ok := client.Cookie(iauth.VerifyEmailCookie)
	require.True(t, ok)
	_, ok = client.Cookie(iauth.SessionCookie)
	require.False(t, ok)

	// A protected route is still off limits.
	w = client.Do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong code is rejected without burning the real one.
	w = client.Do(http.MethodPost, "/api/auth/verify-email", map[string]string{"code": "000000"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = client.Do(http.MethodPost, "/api/auth/verify-email", map[string]string{
		"code": env.Mailer.LastCode(t),
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Verification logs the user in and drops the marker.
	_, ok = client.Cookie(iauth.SessionCookie)
	require.True(t, ok)
	_, ok = client.Cookie(iauth.VerifyEmailCookie)
	require.False(t, ok)

	w = client.Do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	user, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ada@example.com", user["email"])
	require.NotContains(t, user, "password")

	// Logout ends the session.
	w = client.Do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = client.Do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Credentials still work afterwards.
	w = client.Do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDuplicateRegistration(t *testing.T) {
	env := testutil.NewEnv(t)
	client := env.NewClient(t)

	registerAndVerify(t, env, client, "dup@example.com", "secret123", "")

	w := env.NewClient(t).Do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "dup@example.com",
		"password": "other-pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "CONFLICT", decode(t, w).Error.Code)
}

func TestLoginBeforeVerification(t *testing.T) {
	env := testutil.NewEnv(t)
	client := env.NewClient(t)

	w := client.Do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "pending@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Correct credentials, unverified account.
	w = client.Do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "pending@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "EMAIL_NOT_VERIFIED", decode(t, w).Error.Code)

	// Wrong password is reported as bad credentials, not as unverified.
	w = client.Do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "pending@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_CREDENTIALS", decode(t, w).Error.Code)
}

func TestVerifyWithoutPendingCookie(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.NewClient(t).Do(http.MethodPost, "/api/auth/verify-email", map[string]string{
		"code": "123456",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VERIFICATION_SESSION_EXPIRED", decode(t, w).Error.Code)
}

func TestExpiredVerificationCode(t *testing.T) {
	env := testutil.NewEnv(t)
	client := env.NewClient(t)

	w := client.Do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "late@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	code := env.Mailer.LastCode(t)

	env.Advance(11 * time.Minute)

	w = client.Do(http.MethodPost, "/api/auth/verify-email", map[string]string{"code": code})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_OR_EXPIRED_CODE", decode(t, w).Error.Code)
}

func TestResendInvalidatesOldCode(t *testing.T) {
	env := testutil.NewEnv(t)
	client := env.NewClient(t)

	w := client.Do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "resend@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	oldCode := env.Mailer.LastCode(t)

	w = client.Do(http.MethodPost, "/api/auth/resend-verification", nil)
	require.Equal(t, http.StatusOK, w.Code)
	newCode := env.Mailer.LastCode(t)

	if oldCode != newCode {
		w = client.Do(http.MethodPost, "/api/auth/verify-email", map[string]string{"code": oldCode})
		require.Equal(t, http.StatusBadRequest, w.Code)
	}

	w = client.Do(http.MethodPost, "/api/auth/verify-email", map[string]string{"code": newCode})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	client := env.NewClient(t)
	registerAndVerify(t, env, client, "reset@example.com", "original-pass", "")

	w := client.Do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = client.Do(http.MethodPost, "/api/auth/forget-password", map[string]string{
		"email": "reset@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := client.Cookie(iauth.ResetEmailCookie)
	require.True(t, ok)
	code := env.Mailer.LastCode(t)

	w = client.Do(http.MethodPost, "/api/auth/reset-forget-password", map[string]string{
		"code":         "999999",
		"new_password": "brand-new-pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = client.Do(http.MethodPost, "/api/auth/reset-forget-password", map[string]string{
		"code":         code,
		"new_password": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The reset does not log the user in.
	w = client.Do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = client.Do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "reset@example.com",
		"password": "original-pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = client.Do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "reset@example.com",
		"password": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.NewClient(t).Do(http.MethodPost, "/api/auth/forget-password", map[string]string{
		"email": "nobody@example.com",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetWithoutCookie(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.NewClient(t).Do(http.MethodPost, "/api/auth/reset-forget-password", map[string]string{
		"code":         "123456",
		"new_password": "whatever-pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "RESET_SESSION_MISSING", decode(t, w).Error.Code)
}

func TestChangePasswordAndDeleteAccount(t *testing.T) {
	env := testutil.NewEnv(t)
	client := env.NewClient(t)
	registerAndVerify(t, env, client, "churn@example.com", "first-pass", "")

	w := client.Do(http.MethodPatch, "/api/auth/password", map[string]string{
		"current_password": "wrong",
		"new_password":     "second-pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = client.Do(http.MethodPatch, "/api/auth/password", map[string]string{
		"current_password": "first-pass",
		"new_password":     "second-pass",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = client.Do(http.MethodPost, "/api/auth/account", map[string]string{
		"password": "second-pass",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The session dies with the account.
	w = client.Do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = client.Do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "churn@example.com",
		"password": "second-pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProfileChangesOnlyName(t *testing.T) {
	env := testutil.NewEnv(t)
	client := env.NewClient(t)
	registerAndVerify(t, env, client, "profile@example.com", "secret123", "")

	w := client.Do(http.MethodPatch, "/api/auth/profile", map[string]string{
		"name":  "Renamed",
		"email": "other@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = client.Do(http.MethodGet, "/api/auth/me", nil)
	resp := decode(t, w)
	user := resp.Data.(map[string]any)
	require.Equal(t, "Renamed", user["name"])
	require.Equal(t, "profile@example.com", user["email"])
}

func TestAdminGate(t *testing.T) {
	env := testutil.NewEnv(t)

	regular := env.NewClient(t)
	registerAndVerify(t, env, regular, "user@example.com", "secret123", "")

	admin := env.NewClient(t)
	registerAndVerify(t, env, admin, "admin@example.com", "secret123", "admin")

	w := regular.Do(http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = admin.Do(http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	users, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, users, 2)
}

func TestSessionExpiry(t *testing.T) {
	env := testutil.NewEnv(t)
	client := env.NewClient(t)
	registerAndVerify(t, env, client, "expiry@example.com", "secret123", "")

	w := client.Do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env.Advance(2 * time.Hour)

	w = client.Do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitOnCodeEndpoints(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithRateLimit(4, 10*time.Minute))
	client := env.NewClient(t)
	registerAndVerify(t, env, client, "limited@example.com", "secret123", "")

	for i := 0; i < 4; i++ {
		w := client.Do(http.MethodPost, "/api/auth/forget-password", map[string]string{
			"email": "limited@example.com",
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := client.Do(http.MethodPost, "/api/auth/forget-password", map[string]string{
		"email": "limited@example.com",
	})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}
