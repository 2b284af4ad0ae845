package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// User represents an authenticated marketplace user. Profile fields stay
// nil until voice onboarding collects them.
type User struct {
	ID            string     `json:"id"`
	Phone         string     `json:"phone"`
	PhoneVerified bool       `json:"phone_verified"`
	Name          *string    `json:"name,omitempty"`
	Village       *string    `json:"village,omitempty"`
	District      *string    `json:"district,omitempty"`
	Role          string     `json:"role"`
	Language      string     `json:"language"`
	AadhaarLast4  *string    `json:"aadhaar_last4,omitempty"`
	Onboarded     bool       `json:"onboarded"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Profile holds the onboarding fields written once the voice flow completes.
type Profile struct {
	Name         string `json:"name"`
	Village      string `json:"village"`
	District     string `json:"district"`
	Role         string `json:"role"`
	Language     string `json:"language"`
	AadhaarLast4 string `json:"aadhaar_last4"`
}

// UserSession represents a JWT session for logout/invalidation
type UserSession struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"token_hash"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

const userColumns = `id, phone, phone_verified, name, village, district, role, language, aadhaar_last4, onboarded, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Phone, &u.PhoneVerified, &u.Name, &u.Village, &u.District,
		&u.Role, &u.Language, &u.AadhaarLast4, &u.Onboarded,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByPhone retrieves a user by phone number.
func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE phone = $1
	`, phone))
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
}

// FindOrCreateUser finds a user by phone or creates a new one.
// If the user exists, marks phone as verified and updates last_login_at.
func (s *Store) FindOrCreateUser(ctx context.Context, phone string) (*User, bool, error) {
	u, err := s.GetUserByPhone(ctx, phone)
	if err == pgx.ErrNoRows {
		u, err = scanUser(s.db.QueryRow(ctx, `
			INSERT INTO users (phone, phone_verified, last_login_at)
			VALUES ($1, true, NOW())
			RETURNING `+userColumns+`
		`, phone))
		if err != nil {
			return nil, false, err
		}
		return u, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE users
		SET phone_verified = true, last_login_at = NOW()
		WHERE id = $1
	`, u.ID)
	if err != nil {
		return nil, false, err
	}
	u.PhoneVerified = true
	return u, false, nil
}

// CompleteOnboarding writes the collected profile and marks the user
// onboarded in one statement.
func (s *Store) CompleteOnboarding(ctx context.Context, userID string, p Profile) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET name = $2, village = $3, district = $4, role = $5, language = $6,
		    aadhaar_last4 = $7, onboarded = true, updated_at = NOW()
		WHERE id = $1
	`, userID, p.Name, p.Village, p.District, p.Role, p.Language, p.AadhaarLast4)
	return err
}

// UpdateUserProfile updates the mutable profile fields. Nil pointers leave
// the existing value in place.
func (s *Store) UpdateUserProfile(ctx context.Context, userID string, name, village, district, language *string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
		    village = COALESCE($3, village),
		    district = COALESCE($4, district),
		    language = COALESCE($5, language),
		    updated_at = NOW()
		WHERE id = $1
	`, userID, name, village, district, language)
	return err
}

// ResetUserOnboarding clears the collected profile so voice onboarding can
// run again. Listings and orders are preserved.
func (s *Store) ResetUserOnboarding(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET name = NULL, village = NULL, district = NULL, aadhaar_last4 = NULL,
		    onboarded = false, updated_at = NOW()
		WHERE id = $1
	`, userID)
	return err
}

// ============================================================================
// Session operations
// ============================================================================

// CreateSession creates a new user session.
func (s *Store) CreateSession(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	return err
}

// RevokeSession revokes a session by token hash.
func (s *Store) RevokeSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_sessions SET revoked_at = NOW() WHERE token_hash = $1
	`, tokenHash)
	return err
}

// IsSessionValid checks if a session is valid (not revoked and not expired).
func (s *Store) IsSessionValid(ctx context.Context, tokenHash string) (bool, error) {
	var valid bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_sessions
			WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
		)
	`, tokenHash).Scan(&valid)
	return valid, err
}
