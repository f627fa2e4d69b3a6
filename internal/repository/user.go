package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/go-storefront-api/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*model.User, error)
	GetByResetToken(ctx context.Context, token string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error
	ClearResetToken(ctx context.Context, id uuid.UUID) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration) (int, error)
	RecordLoginSuccess(ctx context.Context, id uuid.UUID) error
	AddRefreshToken(ctx context.Context, userID uuid.UUID, token string, expires time.Time) error
	RotateRefreshToken(ctx context.Context, oldToken, newToken string, expires time.Time) (uuid.UUID, error)
	RemoveRefreshToken(ctx context.Context, token string) error
}

type pgUserRepo struct{ pool *pgxpool.Pool }

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepo{pool: pool}
}

const userColumns = `id, name, email, password_hash, phone, role, email_verified,
	verification_token, reset_token, reset_token_expires, login_attempts,
	locked_until, last_login, addresses, created_at, updated_at`

func (r *pgUserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.New()
	// Normalized before the insert so the struct and the row agree.
	user.Email = strings.ToLower(user.Email)
	addresses, err := json.Marshal(user.Addresses)
	if err != nil {
		return fmt.Errorf("marshal addresses: %w", err)
	}
	query := `INSERT INTO users (id, name, email, password_hash, phone, role, email_verified,
				verification_token, addresses, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			  RETURNING created_at, updated_at`
	err = r.pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.Password, user.Phone, user.Role,
		user.EmailVerified, user.VerificationToken, addresses,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *pgUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *pgUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
}

func (r *pgUserRepo) GetByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	return r.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE verification_token = $1 AND verification_token <> ''`,
		token)
}

// GetByResetToken only matches unexpired tokens.
func (r *pgUserRepo) GetByResetToken(ctx context.Context, token string) (*model.User, error) {
	return r.getOne(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE reset_token = $1 AND reset_token <> '' AND reset_token_expires > NOW()`,
		token)
}

func (r *pgUserRepo) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	user := &model.User{}
	var addresses []byte
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Name, &user.Email, &user.Password, &user.Phone, &user.Role,
		&user.EmailVerified, &user.VerificationToken, &user.ResetToken,
		&user.ResetTokenExpires, &user.LoginAttempts, &user.LockedUntil,
		&user.LastLogin, &addresses, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(addresses) > 0 {
		if err := json.Unmarshal(addresses, &user.Addresses); err != nil {
			return nil, fmt.Errorf("unmarshal addresses: %w", err)
		}
	}
	return user, nil
}

func (r *pgUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	addresses, err := json.Marshal(user.Addresses)
	if err != nil {
		return fmt.Errorf("marshal addresses: %w", err)
	}
	query := `UPDATE users SET name=$2, phone=$3, addresses=$4, updated_at=NOW()
			  WHERE id=$1 RETURNING updated_at`
	if err := r.pool.QueryRow(ctx, query, user.ID, user.Name, user.Phone, addresses).
		Scan(&user.UpdatedAt); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (r *pgUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash=$2, reset_token='', reset_token_expires=NULL, updated_at=NOW()
		 WHERE id=$1`, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (r *pgUserRepo) SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token=$2, reset_token_expires=$3, updated_at=NOW() WHERE id=$1`,
		id, token, expires)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

func (r *pgUserRepo) ClearResetToken(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token='', reset_token_expires=NULL, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

func (r *pgUserRepo) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET email_verified=TRUE, verification_token='', updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

// RecordLoginFailure bumps the attempt counter in a single statement so
// concurrent failures cannot lose updates, and arms the lockout window once
// the counter reaches maxAttempts. A failure after an expired lock restarts
// the counter at 1 and drops the stale window, so re-locking takes the full
// threshold again. Returns the new counter value.
func (r *pgUserRepo) RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET
			login_attempts = CASE WHEN locked_until IS NOT NULL AND locked_until < NOW()
				THEN 1 ELSE login_attempts + 1 END,
			locked_until = CASE
				WHEN locked_until IS NOT NULL AND locked_until < NOW() THEN NULL
				WHEN login_attempts + 1 >= $2 THEN NOW() + $3::interval
				ELSE locked_until END,
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING login_attempts`,
		id, maxAttempts, lockFor.String(),
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	return attempts, nil
}

func (r *pgUserRepo) RecordLoginSuccess(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET login_attempts=0, locked_until=NULL, last_login=NOW(), updated_at=NOW()
		 WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

func (r *pgUserRepo) AddRefreshToken(ctx context.Context, userID uuid.UUID, token string, expires time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at, created_at) VALUES ($1, $2, $3, NOW())`,
		token, userID, expires)
	if err != nil {
		return fmt.Errorf("add refresh token: %w", err)
	}
	return nil
}

// RotateRefreshToken swaps the old token for the new one in one statement.
// Two concurrent refreshes with the same stale token race on the row update;
// exactly one sees rows affected and wins. Expired rows never match.
func (r *pgUserRepo) RotateRefreshToken(ctx context.Context, oldToken, newToken string, expires time.Time) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`UPDATE refresh_tokens SET token=$2, expires_at=$3, created_at=NOW()
		 WHERE token=$1 AND expires_at > NOW()
		 RETURNING user_id`,
		oldToken, newToken, expires,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	return userID, nil
}

// RemoveRefreshToken is idempotent; removing an unknown token is not an error.
func (r *pgUserRepo) RemoveRefreshToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("remove refresh token: %w", err)
	}
	return nil
}
