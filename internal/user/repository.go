package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/stockapi-core/internal/infrastructure/database"
)

const userColumns = "id, uuid, username, password, is_superuser, created_at, updated_at"

// Repository reads and writes users inside one session.
type Repository struct {
	s *database.Session
}

// NewRepository creates a user repository bound to s.
func NewRepository(s *database.Session) *Repository {
	return &Repository{s: s}
}

// Create inserts a new user with a generated UUIDv7.
//
// Parameters:
//   - username: Unique login name
//   - passwordHash: Already hashed password
//   - isSuperuser: Grants administrative access
//
// Returns:
//   - *User: The stored user, including its database id
//   - error: ErrUsernameExists if the username is taken, or a validation error
func (r *Repository) Create(ctx context.Context, username, passwordHash string, isSuperuser bool) (*User, error) {
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if passwordHash == "" {
		return nil, ErrEmptyPassword
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating user uuid: %w", err)
	}

	// Microsecond precision is the finest every backend stores.
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &User{
		UUID:        id.String(),
		Username:    username,
		Password:    passwordHash,
		IsSuperuser: isSuperuser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	u.ID, err = r.s.InsertID(ctx,
		`INSERT INTO users (uuid, username, password, is_superuser, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.UUID, u.Username, u.Password, u.IsSuperuser, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by database id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.get(ctx, "id = ?", id)
}

// GetByUUID retrieves a user by public identifier.
func (r *Repository) GetByUUID(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, "uuid = ?", id)
}

// GetByUsername retrieves a user by login name.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.get(ctx, "username = ?", username)
}

// List returns all users ordered by id.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := r.s.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY id ASC"); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Delete removes a user and, through the foreign key, their stock history.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.s.ExecContext(ctx, r.s.Rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // supported by every registered driver
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) get(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := r.s.GetContext(ctx, &u, r.s.Rebind("SELECT "+userColumns+" FROM users WHERE "+where), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}
