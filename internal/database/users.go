package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ewbrowntech/atto-host/internal/models"
)

var ErrDuplicateUsername = errors.New("username is already taken")
var ErrUserNotFound = errors.New("user not found")

type CreateUserParams struct {
	Username     string
	PasswordHash string
	Automated    bool
}

func (q *Queries) CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_automated)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, is_admin, is_automated, api_key_hash, created_at
	`
	var user models.User

	err := q.db.QueryRow(ctx, query, params.Username, params.PasswordHash, params.Automated).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Admin,
		&user.Automated,
		&user.APIKeyHash,
		&user.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}

	return &user, nil
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT
			id,
			username,
			password_hash,
			is_admin,
			is_automated,
			api_key_hash,
			created_at
		FROM users
		WHERE username = $1
	`
	var user models.User

	err := q.db.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Admin,
		&user.Automated,
		&user.APIKeyHash,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT
			id,
			username,
			password_hash,
			is_admin,
			is_automated,
			api_key_hash,
			created_at
		FROM users
		WHERE id = $1
	`
	var user models.User

	err := q.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Admin,
		&user.Automated,
		&user.APIKeyHash,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// UpdateAPIKeyHash overwrites the stored api_key digest in a single UPDATE,
// so concurrent rotations for the same account cannot interleave.
func (q *Queries) UpdateAPIKeyHash(ctx context.Context, userID int64, digest string) error {
	query := `UPDATE users SET api_key_hash = $2 WHERE id = $1`

	tag, err := q.db.Exec(ctx, query, userID, digest)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}
