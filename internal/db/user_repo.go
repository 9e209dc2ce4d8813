package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"meteoalert/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a UserRepository backed by a pool or transaction.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns is the column order scanUser expects.
const userColumns = `id, email, password_hash, first_name, last_name, age, location,
	alert_preferences, push_subscription, created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Age,
		&u.Location,
		&u.AlertPreferences,
		&u.PushSubscription,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return types.NewAppError(types.ErrCodeInternalDB, msg, err)
}

// Create inserts u. CreatedAt and UpdatedAt are filled from the database.
// A duplicate email yields conflict_email_exists.
func (r *UserRepository) Create(ctx context.Context, u *types.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, age, location, alert_preferences)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Age, u.Location, u.AlertPreferences,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "email already registered", nil)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// GetByID returns the user with id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "failed to retrieve user")
	}
	return u, nil
}

// GetByEmail returns the user registered with email. Emails are stored
// lowercased, so callers pass the canonical form.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, notFoundOr(err, "failed to retrieve user by email")
	}
	return u, nil
}

// UpdateProfile replaces the editable profile fields and returns the
// updated user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, p types.ProfileUpdate) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users
		 SET first_name = $2, last_name = $3, age = $4, location = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, p.FirstName, p.LastName, p.Age, p.Location))
	if err != nil {
		return nil, notFoundOr(err, "failed to update profile")
	}
	return u, nil
}

// UpdateAlertPreferences stores prefs as the user's preference document.
func (r *UserRepository) UpdateAlertPreferences(ctx context.Context, id string, prefs *types.StoredPreferences) error {
	return r.execOne(ctx, "failed to update alert preferences",
		`UPDATE users SET alert_preferences = $2, updated_at = NOW() WHERE id = $1`, id, prefs)
}

// SetPushSubscription replaces the user's push subscription.
func (r *UserRepository) SetPushSubscription(ctx context.Context, id string, sub *types.PushSubscription) error {
	return r.execOne(ctx, "failed to save push subscription",
		`UPDATE users SET push_subscription = $2, updated_at = NOW() WHERE id = $1`, id, sub)
}

// ClearPushSubscription removes the user's push subscription.
func (r *UserRepository) ClearPushSubscription(ctx context.Context, id string) error {
	return r.execOne(ctx, "failed to clear push subscription",
		`UPDATE users SET push_subscription = NULL, updated_at = NOW() WHERE id = $1`, id)
}

// Delete removes the user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "failed to delete user", `DELETE FROM users WHERE id = $1`, id)
}

// ListWithPushSubscription returns every user who can receive push alerts,
// oldest first.
func (r *UserRepository) ListWithPushSubscription(ctx context.Context) ([]*types.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE push_subscription IS NOT NULL
		 ORDER BY created_at`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscribed users", err)
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate users", err)
	}
	return users, nil
}

func (r *UserRepository) execOne(ctx context.Context, msg, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, msg, err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}
