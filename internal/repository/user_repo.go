package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"yello-auth/internal/model"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, name, role, school_id, avatar, password_hash,
	access_token, refresh_token, created_at, updated_at`

// UserRepository is the Postgres backed user directory.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM directory_users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))
	account, err := scanAccount(row)
	if err != nil {
		return model.Account{}, wrapLookup("find user by email", err)
	}
	return account, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM directory_users WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		return model.Account{}, wrapLookup("find user by id", err)
	}
	return account, nil
}

func (r *UserRepository) FirstByRole(ctx context.Context, role model.Role) (model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM directory_users WHERE role = $1 ORDER BY seq LIMIT 1`,
		string(role))
	account, err := scanAccount(row)
	if err != nil {
		return model.Account{}, wrapLookup("find first user by role", err)
	}
	return account, nil
}

func (r *UserRepository) Insert(ctx context.Context, account model.Account) error {
	u := account.User
	_, err := r.pool.Exec(ctx,
		`INSERT INTO directory_users (id, email, name, role, school_id, avatar, password_hash,
		                              access_token, refresh_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Email, u.Name, string(u.Role), u.SchoolID, u.Avatar, account.PasswordHash,
		u.AccessToken, u.RefreshToken, u.CreatedAt, u.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateTokens(ctx context.Context, id string, tokens model.TokenPair, updatedAt time.Time) (model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE directory_users
		 SET access_token = $2, refresh_token = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING `+accountColumns,
		id, tokens.AccessToken, tokens.RefreshToken, updatedAt)
	account, err := scanAccount(row)
	if err != nil {
		return model.Account{}, wrapLookup("update tokens", err)
	}
	return account, nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM directory_users ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, account.User.User)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM directory_users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var (
		account model.Account
		role    string
	)
	u := &account.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.SchoolID, &u.Avatar, &account.PasswordHash,
		&u.AccessToken, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.Account{}, err
	}
	u.Role = model.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return account, nil
}

func wrapLookup(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
