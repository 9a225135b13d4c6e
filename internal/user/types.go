package user

import (
	"errors"
	"regexp"
	"time"
)

// Sentinel errors for user operations.
var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user: not found")

	// ErrUsernameExists is returned when creating a user whose username is taken.
	ErrUsernameExists = errors.New("user: username already exists")

	// ErrInvalidUsername is returned when a username fails format validation.
	ErrInvalidUsername = errors.New("user: invalid username")

	// ErrEmptyPassword is returned when no password hash is supplied.
	ErrEmptyPassword = errors.New("user: password hash is required")
)

// maxUsernameLength matches the users.username column width.
const maxUsernameLength = 100

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]+$`)

// IsValidUsername checks if a username meets format requirements:
// 1-100 characters, alphanumeric plus dots, hyphens, underscores and @.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// User is a stockapi account.
type User struct {
	ID          int64     `db:"id" json:"id"`
	UUID        string    `db:"uuid" json:"uuid"`
	Username    string    `db:"username" json:"username"`
	Password    string    `db:"password" json:"-"` // hash, never serialised
	IsSuperuser bool      `db:"is_superuser" json:"is_superuser"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
