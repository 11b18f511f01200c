package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/murmurnet/murmur/internal/models"
)

const userColumns = `id, name, email, username, password_hash, picture, bio, dob, verified, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Username, &user.PasswordHash,
		&user.Picture, &user.Bio, &user.DOB, &user.Verified, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// CreateUser inserts a new user, assigning its id.
func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	_, err := d.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, username, password_hash, picture, bio, dob)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Name, user.Email, user.Username, user.PasswordHash, user.Picture, user.Bio, user.DOB)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	d.log.Debug().Str("username", user.Username).Stringer("id", user.ID).Msg("user created")
	return nil
}

// GetUserByID returns the user or (nil, nil) when no row exists.
func (d *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user or (nil, nil) when no row exists.
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetUserByUsername returns the user or (nil, nil) when no row exists.
func (d *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// SearchUsers matches name or username prefixes, case-insensitively.
func (d *DB) SearchUsers(ctx context.Context, query string) ([]*models.User, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE name ILIKE $1 || '%' OR username ILIKE $1 || '%'
		 ORDER BY username LIMIT 20`, query)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser writes the mutable profile fields.
func (d *DB) UpdateUser(ctx context.Context, user *models.User) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE users SET name = $2, username = $3, picture = $4, bio = $5, dob = $6 WHERE id = $1`,
		user.ID, user.Name, user.Username, user.Picture, user.Bio, user.DOB)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// DeleteUser removes the account; owned rows cascade.
func (d *DB) DeleteUser(ctx context.Context, id uuid.UUID) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// MarkVerified flips the verified flag after a successful OTP check.
func (d *DB) MarkVerified(ctx context.Context, email string) error {
	_, err := d.pool.Exec(ctx, `UPDATE users SET verified = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// FollowUser adds a follow edge. It reports false when the edge already
// existed; the insert-on-conflict keeps concurrent follows race-free.
func (d *DB) FollowUser(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	tag, err := d.pool.Exec(ctx,
		`INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("insert follow: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UnfollowUser removes a follow edge, reporting whether it existed.
func (d *DB) UnfollowUser(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	tag, err := d.pool.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("delete follow: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FollowCounts returns how many users follow id, and how many id follows.
func (d *DB) FollowCounts(ctx context.Context, id uuid.UUID) (followers, following int, err error) {
	err = d.pool.QueryRow(ctx,
		`SELECT
			(SELECT count(*) FROM follows WHERE followee_id = $1),
			(SELECT count(*) FROM follows WHERE follower_id = $1)`, id).
		Scan(&followers, &following)
	if err != nil {
		return 0, 0, fmt.Errorf("count follows: %w", err)
	}
	return followers, following, nil
}
