package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tasklit/tasklit/internal/models"
	"github.com/tasklit/tasklit/pkg/crypto"
	apperrors "github.com/tasklit/tasklit/pkg/errors"
	"github.com/tasklit/tasklit/pkg/mail"
	"github.com/tasklit/tasklit/pkg/metrics"
)

const defaultCodeTTL = 10 * time.Minute

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)

// AuthOption customises the AuthService.
type AuthOption func(*AuthService)

// WithCodeTTL overrides the lifetime of verification and reset codes.
func WithCodeTTL(d time.Duration) AuthOption {
	return func(s *AuthService) {
		if d > 0 {
			s.codeTTL = d
		}
	}
}

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) AuthOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// AuthService drives the credential lifecycle: registration, email
// verification, login, password reset, profile management and account
// deletion. Session issuance stays with the HTTP layer; this service only
// decides whether an identity is valid.
//
// A user moves Pending -> Verified exactly once. Each purpose (verification,
// reset) has at most one active code: issuing a code always overwrites the
// stored pair, and consuming one always nulls both fields in the same write.
type AuthService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	codeTTL time.Duration
	now     func() time.Time
}

// NewAuthService constructs the service with the provided collaborators.
func NewAuthService(db *gorm.DB, mailer mail.Mailer, opts ...AuthOption) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}

	service := &AuthService{
		db:      db,
		mailer:  mailer,
		codeTTL: defaultCodeTTL,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CodeTTL reports the configured one-time-code lifetime.
func (s *AuthService) CodeTTL() time.Duration {
	return s.codeTTL
}

// RegisterInput describes the fields accepted on registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Register creates a pending user and emails a verification code. No session
// is issued; the caller must verify first.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := normaliseEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	role := strings.TrimSpace(input.Role)
	switch role {
	case "":
		role = models.RoleUser
	case models.RoleUser, models.RoleAdmin:
	default:
		return nil, apperrors.NewBadRequest("role must be user or admin")
	}

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	switch {
	case err == nil:
		return nil, apperrors.ErrEmailTaken
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("auth service: lookup email: %w", err)
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	code, err := crypto.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	expires := s.now().Add(s.codeTTL)

	user := &models.User{
		Name:                    strings.TrimSpace(input.Name),
		Email:                   email,
		Password:                hashed,
		Role:                    role,
		IsVerified:              false,
		VerificationCode:        &code,
		VerificationCodeExpires: &expires,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, fmt.Errorf("auth service: create user: %w", err)
	}

	if err := s.sendVerificationEmail(ctx, user, code); err != nil {
		return nil, err
	}

	return user, nil
}

// VerifyEmail consumes a pending verification code for the given email.
// Wrong and expired codes are indistinguishable to the caller.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	email = normaliseEmail(email)
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewBadRequest("code is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND verification_code = ? AND verification_code_expires > ?", email, code, s.now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("auth service: find pending user: %w", err)
	}

	// Both members of the pair are cleared alongside the flag flip so the
	// code can never be replayed.
	updates := map[string]any{
		"is_verified":               true,
		"verification_code":         nil,
		"verification_code_expires": nil,
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("auth service: mark verified: %w", err)
	}

	user.IsVerified = true
	user.VerificationCode = nil
	user.VerificationCodeExpires = nil
	return &user, nil
}

// ResendVerification issues a fresh code for a pending account, discarding
// any prior unconsumed code.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (*models.User, error) {
	email = normaliseEmail(email)

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth service: find user: %w", err)
	}

	if user.IsVerified {
		return nil, apperrors.ErrAlreadyVerified
	}

	code, err := crypto.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	expires := s.now().Add(s.codeTTL)

	updates := map[string]any{
		"verification_code":         code,
		"verification_code_expires": expires,
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("auth service: store new code: %w", err)
	}

	if err := s.sendVerificationEmail(ctx, &user, code); err != nil {
		return nil, err
	}

	user.VerificationCode = &code
	user.VerificationCodeExpires = &expires
	return &user, nil
}

// Login checks credentials and the verified state, in that order. Unknown
// email and wrong password produce the identical error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = normaliseEmail(email)

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth service: find user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsVerified {
		return nil, apperrors.ErrEmailNotVerified
	}

	return &user, nil
}

// UpdateProfile changes the display name and nothing else.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name string) (*models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("name", strings.TrimSpace(name)).Error; err != nil {
		return nil, fmt.Errorf("auth service: update profile: %w", err)
	}

	user.Name = strings.TrimSpace(name)
	return user, nil
}

// ChangePassword replaces the password hash after re-checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewBadRequest("new password is required")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(user.Password, currentPassword) {
		return apperrors.ErrInvalidCredentials
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("auth service: store password: %w", err)
	}

	return nil
}

// DeleteAccount removes the user record after password re-entry. Irreversible.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return apperrors.ErrInvalidCredentials
	}

	if err := s.db.WithContext(ctx).Delete(user).Error; err != nil {
		return fmt.Errorf("auth service: delete user: %w", err)
	}

	return nil
}

// ForgotPassword issues a reset code. Only the sha256 digest is stored; the
// clear code goes out by email. Unknown emails are reported as not found --
// this endpoint deliberately does not hide account existence.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*models.User, error) {
	email = normaliseEmail(email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth service: find user: %w", err)
	}

	code, err := crypto.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	digest := crypto.HashCode(code)
	expires := s.now().Add(s.codeTTL)

	updates := map[string]any{
		"reset_password_code":    digest,
		"reset_password_expires": expires,
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("auth service: store reset code: %w", err)
	}

	if err := s.sendMail(ctx, mail.Message{
		To:      user.Email,
		Subject: "Reset Password",
		Body:    fmt.Sprintf("<h2>Password Reset Code</h2><h1>%s</h1><p>This code expires in %d minutes.</p>", code, int(s.codeTTL.Minutes())),
		HTML:    true,
	}, "reset"); err != nil {
		return nil, err
	}

	user.ResetPasswordCode = &digest
	user.ResetPasswordExpires = &expires
	return &user, nil
}

// ResetForgottenPassword consumes a reset code and replaces the password.
// No session is issued; the user logs in explicitly afterwards.
func (s *AuthService) ResetForgottenPassword(ctx context.Context, email, code, newPassword string) error {
	email = normaliseEmail(email)
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(newPassword) == "" {
		return apperrors.NewBadRequest("code and new password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND reset_password_code = ? AND reset_password_expires > ?", email, crypto.HashCode(code), s.now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("auth service: find reset user: %w", err)
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}

	updates := map[string]any{
		"password":               hashed,
		"reset_password_code":    nil,
		"reset_password_expires": nil,
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return fmt.Errorf("auth service: store password: %w", err)
	}

	return nil
}

// ListUsers returns every account, newest first. Admin-only; the caller is
// responsible for gating.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("auth service: list users: %w", err)
	}
	return users, nil
}

func (s *AuthService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user *models.User, code string) error {
	name := user.Name
	if name == "" {
		name = user.Email
	}

	body := fmt.Sprintf(
		"<h2>Hello %s</h2><p>Your verification code:</p><h1>%s</h1><p>This code expires in %d minutes.</p>",
		name, code, int(s.codeTTL.Minutes()),
	)

	return s.sendMail(ctx, mail.Message{
		To:      user.Email,
		Subject: "Verify your email",
		Body:    body,
		HTML:    true,
	}, "verification")
}

func (s *AuthService) sendMail(ctx context.Context, msg mail.Message, kind string) error {
	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, mail.ErrDisabled) {
			return nil
		}
		return fmt.Errorf("auth service: send %s email: %w", kind, err)
	}
	metrics.VerificationEmails.WithLabelValues(kind).Inc()
	return nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
