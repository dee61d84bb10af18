package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const userColumns = `id, username, email, full_name, password_hash, avatar, cover_image, refresh_token, created_at, updated_at`

// PostgresRepository stores users in the users table created by the goose
// migrations.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create checks uniqueness and inserts in one transaction. The unique
// constraints still guard against a concurrent insert slipping between the two.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var exists bool
		query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`
		if err := tx.QueryRowContext(ctx, query, user.Username, user.Email).Scan(&exists); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if exists {
			return common.ErrConflict
		}

		query = `INSERT INTO users (username, email, full_name, password_hash, avatar, cover_image)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`
		err := tx.QueryRowContext(ctx, query,
			user.Username, user.Email, user.FullName, user.PasswordHash, user.Avatar, user.CoverImage,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return common.ErrConflict
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	if username == "" && email == "" {
		return nil, common.ErrRecordNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, username, email))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrRecordNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, id string, token *string) error {
	query := `UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2`
	return r.execOne(ctx, query, nullString(token), id)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`
	return r.execOne(ctx, query, passwordHash, id)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrRecordNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var refresh sql.NullString
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash,
		&user.Avatar, &user.CoverImage, &refresh, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrRecordNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if refresh.Valid {
		user.RefreshToken = &refresh.String
	}
	return user, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
