package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

const userColumns = `user_id, name, email, profile, travel_preferences, travel_constraints, created_at, updated_at`

// CreateUser validates and stores a new user. The email must be unused.
func (b *Backend) CreateUser(ctx context.Context, in *types.User) (_ *types.User, err error) {
	defer b.observe("create_user", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	u := *in
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if err := u.Validate(); err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := b.now()
	u.UserID = id
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := insertUser(ctx, b.db, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser returns the user with the given ID.
func (b *Backend) GetUser(ctx context.Context, userID string) (_ *types.User, err error) {
	defer b.observe("get_user", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return getUser(ctx, b.db, userID)
}

// GetUserByEmail looks a user up by exact email.
func (b *Backend) GetUserByEmail(ctx context.Context, email string) (_ *types.User, err error) {
	defer b.observe("get_user_by_email", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	row := b.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := hydrateUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Entity: "user", ID: email}
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns every user, oldest first.
func (b *Backend) ListUsers(ctx context.Context) (_ []*types.User, err error) {
	defer b.observe("list_users", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return queryUsers(ctx, b.db, `SELECT `+userColumns+` FROM users ORDER BY created_at, user_id`)
}

// UpdateUserProfile applies patch to the user's mutable fields. Identity
// fields are not part of the patch.
func (b *Backend) UpdateUserProfile(ctx context.Context, userID string, patch types.UserProfilePatch) (_ *types.User, err error) {
	defer b.observe("update_user_profile", time.Now(), &err)
	unlock, err := b.guard()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *types.User
	err = b.inTx(ctx, func(tx *sql.Tx) error {
		u, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		patch.Apply(u)
		u.Name = strings.TrimSpace(u.Name)
		if err := u.Validate(); err != nil {
			return err
		}
		u.UpdatedAt = b.now()

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET name = ?, profile = ?, travel_preferences = ?, travel_constraints = ?, updated_at = ?
             WHERE user_id = ?`,
			u.Name, u.Profile, u.TravelPreferences, u.TravelConstraints, formatTime(u.UpdatedAt), u.UserID,
		)
		if err != nil {
			return fmt.Errorf("updating user: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertUser(ctx context.Context, q querier, u *types.User) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UserID, u.Name, u.Email, u.Profile, u.TravelPreferences, u.TravelConstraints,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &types.ValidationError{Entity: "user", Field: "email", Constraint: "unique", Value: u.Email}
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func getUser(ctx context.Context, q querier, userID string) (*types.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	u, err := hydrateUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Entity: "user", ID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", userID, err)
	}
	return u, nil
}

func queryUsers(ctx context.Context, q querier, query string, args ...any) ([]*types.User, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		u, err := hydrateUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func hydrateUser(row scanner) (*types.User, error) {
	var (
		u                    types.User
		createdAt, updatedAt string
	)
	err := row.Scan(&u.UserID, &u.Name, &u.Email, &u.Profile, &u.TravelPreferences, &u.TravelConstraints,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
