package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"authsvc/internal/domain/models"
	"authsvc/internal/storage"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

// New returns a new instance of the Storage.
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.sqlite.SaveUser"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, pass_hash, role_id, active, email_verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Email, user.PassHash, user.RoleID,
		user.Active, user.EmailVerified, user.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.sqlite.UserByEmail"

	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, pass_hash, role_id, active, email_verified, created_at, updated_at, last_login_at
		 FROM users WHERE email = ?`, email)
	return scanUser(row, op)
}

func (s *Storage) UserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	const op = "storage.sqlite.UserByID"

	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, pass_hash, role_id, active, email_verified, created_at, updated_at, last_login_at
		 FROM users WHERE id = ?`, userID.String())
	return scanUser(row, op)
}

func scanUser(row *sql.Row, op string) (*models.User, error) {
	var (
		user models.User
		id   string
	)
	err := row.Scan(&id, &user.Email, &user.PassHash, &user.RoleID,
		&user.Active, &user.EmailVerified, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

func (s *Storage) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	const op = "storage.sqlite.RoleByName"

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM roles WHERE name = ?", name)
	var role models.Role
	err := row.Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrRoleNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &role, nil
}

func (s *Storage) RoleByID(ctx context.Context, roleID int) (*models.Role, error) {
	const op = "storage.sqlite.RoleByID"

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM roles WHERE id = ?", roleID)
	var role models.Role
	err := row.Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrRoleNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &role, nil
}

func (s *Storage) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	const op = "storage.sqlite.UpdateLastLogin"

	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login_at = ? WHERE id = ?", at, userID.String())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkEmailVerified flips email_verified to true. The flag is
// monotonic: this is the only mutation and there is no reverse path.
func (s *Storage) MarkEmailVerified(ctx context.Context, userID uuid.UUID, at time.Time) error {
	const op = "storage.sqlite.MarkEmailVerified"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?", at, userID.String())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}

func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.sqlite.SaveRefreshToken"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, ip, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID.String(), token.UserID.String(), token.Token,
		token.ExpiresAt, token.CreatedAt, token.Revoked, token.IP, token.UserAgent,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%s: %w", op, storage.ErrTokenAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) RefreshTokenByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	const op = "storage.sqlite.RefreshTokenByValue"

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, created_at, revoked, ip, user_agent
		 FROM refresh_tokens WHERE token = ?`, value)

	var (
		token  models.RefreshToken
		id     string
		userID string
	)
	err := row.Scan(&id, &userID, &token.Token, &token.ExpiresAt,
		&token.CreatedAt, &token.Revoked, &token.IP, &token.UserAgent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if token.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if token.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &token, nil
}

// RevokeRefreshToken flips the revoked flag. Returns ErrTokenNotFound
// when no row matches; revoking an already revoked token is fine.
func (s *Storage) RevokeRefreshToken(ctx context.Context, value string) error {
	const op = "storage.sqlite.RevokeRefreshToken"

	res, err := s.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE token = ?", value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
	}
	return nil
}

// RotateRefreshToken revokes the presented token and inserts its
// replacement in one transaction. The UPDATE only matches a still
// unrevoked row, so of two concurrent rotations of the same value
// exactly one wins; the loser gets ErrTokenNotFound.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldValue string, newToken *models.RefreshToken) error {
	const op = "storage.sqlite.RotateRefreshToken"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE token = ? AND revoked = 0", oldValue)
	if err != nil {
		return fmt.Errorf("%s: revoke old: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrTokenNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, ip, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		newToken.ID.String(), newToken.UserID.String(), newToken.Token,
		newToken.ExpiresAt, newToken.CreatedAt, newToken.Revoked, newToken.IP, newToken.UserAgent,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%s: insert new: %w", op, storage.ErrTokenAlreadyExists)
		}
		return fmt.Errorf("%s: insert new: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
