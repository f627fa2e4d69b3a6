package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/flicky/go-storefront-api/internal/config"
	"github.com/flicky/go-storefront-api/internal/dto"
	"github.com/flicky/go-storefront-api/internal/mailer"
	"github.com/flicky/go-storefront-api/internal/metrics"
	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/repository"
	"github.com/flicky/go-storefront-api/internal/token"
)

var (
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account temporarily locked")
	ErrUserNotFound        = errors.New("user not found")
	ErrWrongPassword       = errors.New("current password is incorrect")
	ErrMissingRefreshToken = errors.New("refresh token required")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrInvalidVerifyToken  = errors.New("invalid verification token")
	ErrResetMailFailed     = errors.New("could not send reset email")
)

type AuthService struct {
	userRepo  repository.UserRepository
	tokens    *token.Service
	mailer    mailer.Mailer
	cfg       config.AuthConfig
	clientURL string
	log       *slog.Logger
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokens *token.Service,
	m mailer.Mailer,
	cfg config.AuthConfig,
	clientURL string,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo, tokens: tokens, mailer: m,
		cfg: cfg, clientURL: clientURL, log: log,
	}
}

// Register creates the account and kicks off verification mail delivery in
// the background. Mail failure is logged, never propagated: the registration
// has already succeeded from the caller's point of view.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.UserResponse, error) {
	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:              req.Name,
		Email:             req.Email,
		Password:          string(hashed),
		Role:              "customer",
		VerificationToken: randomToken(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		err := s.mailer.Send(sendCtx, mailer.Message{
			To:       user.Email,
			Subject:  "Email Verification",
			Template: mailer.TemplateEmailVerification,
			Data: map[string]any{
				"Name":            user.Name,
				"VerificationURL": fmt.Sprintf("%s/verify-email/%s", s.clientURL, user.VerificationToken),
			},
		})
		if err != nil {
			s.log.Error("send verification email", "user_id", user.ID, "error", err)
		}
	}()

	resp := toUserResponse(user)
	return &resp, nil
}

// Login walks the lockout state machine: a locked account fails regardless
// of credential correctness, a password mismatch bumps the attempt counter,
// and a success resets it and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		metrics.LoginFailures.Inc()
		return nil, ErrInvalidCredentials
	}
	if user.Locked(time.Now()) {
		return nil, ErrAccountLocked
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		metrics.LoginFailures.Inc()
		if _, ferr := s.userRepo.RecordLoginFailure(ctx, user.ID, s.cfg.MaxLoginAttempts, s.cfg.LockoutDuration); ferr != nil {
			s.log.Error("record login failure", "user_id", user.ID, "error", ferr)
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.userRepo.RecordLoginSuccess(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	expires := time.Now().Add(s.tokens.RefreshExpiry())
	if err := s.userRepo.AddRefreshToken(ctx, user.ID, pair.RefreshToken, expires); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &dto.AuthResponse{
		User:         toUserResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Refresh rotates the presented refresh token: the old one is consumed and
// replaced in a single store operation, so it can be used at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenPairResponse, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	expires := time.Now().Add(s.tokens.RefreshExpiry())

	ownerID, err := s.userRepo.RotateRefreshToken(ctx, refreshToken, pair.RefreshToken, expires)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if ownerID == uuid.Nil || ownerID != userID {
		return nil, ErrInvalidRefreshToken
	}

	return &dto.TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout removes the token from whichever account holds it. Removing an
// unknown token still reports success.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.userRepo.RemoveRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("remove refresh token: %w", err)
	}
	return nil
}

// ForgotPassword issues a short-lived reset token and mails it. Unlike the
// other flows, mail failure here revokes the token and fails the call: the
// caller must not be left in a reset flow with no email in flight.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	resetToken := randomToken()
	expires := time.Now().Add(s.cfg.ResetTokenExpiry)
	if err := s.userRepo.SetResetToken(ctx, user.ID, resetToken, expires); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	err = s.mailer.Send(ctx, mailer.Message{
		To:       user.Email,
		Subject:  "Password Reset Request",
		Template: mailer.TemplatePasswordReset,
		Data: map[string]any{
			"Name":     user.Name,
			"ResetURL": fmt.Sprintf("%s/reset-password/%s", s.clientURL, resetToken),
		},
	})
	if err != nil {
		s.log.Error("send reset email", "user_id", user.ID, "error", err)
		if clearErr := s.userRepo.ClearResetToken(ctx, user.ID); clearErr != nil {
			s.log.Error("rollback reset token", "user_id", user.ID, "error", clearErr)
		}
		return ErrResetMailFailed
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	user, err := s.userRepo.GetByResetToken(ctx, resetToken)
	if err != nil {
		return fmt.Errorf("get user by reset token: %w", err)
	}
	if user == nil {
		return ErrInvalidResetToken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// VerifyEmail consumes the verification token: the second call with the
// same token fails because the token is cleared on first use.
func (s *AuthService) VerifyEmail(ctx context.Context, verifyToken string) error {
	user, err := s.userRepo.GetByVerificationToken(ctx, verifyToken)
	if err != nil {
		return fmt.Errorf("get user by verification token: %w", err)
	}
	if user == nil {
		return ErrInvalidVerifyToken
	}
	if err := s.userRepo.MarkEmailVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return ErrWrongPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, req dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Addresses != nil {
		user.Addresses = req.Addresses
	}
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// EnsureAdmin provisions the bootstrap admin account. It is idempotent: when
// an account with the configured email already exists it is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin := &model.User{
		Name:          "Admin",
		Email:         email,
		Password:      string(hashed),
		Role:          "admin",
		EmailVerified: true,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	s.log.Info("provisioned admin account", "email", email)
	return nil
}

func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Phone:         user.Phone,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
		Addresses:     user.Addresses,
		LastLogin:     user.LastLogin,
		CreatedAt:     user.CreatedAt,
	}
}
