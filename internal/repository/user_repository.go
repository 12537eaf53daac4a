// Package repository implements data access for the users table on sqlx.
// Queries use "?" placeholders, which both supported drivers understand.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/invito-app/invito/internal/domain"
)

const timeFormat = "2006-01-02 15:04:05"

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// userRow mirrors the users table. Timestamps are kept as text because the
// two supported drivers disagree on how datetime columns scan.
type userRow struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	UserName       string         `db:"user_name"`
	RefCode        sql.NullString `db:"ref_code"`
	AddedByRefCode int            `db:"added_by_ref_code"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
}

func (r userRow) toUser() domain.User {
	user := domain.User{
		ID:             r.ID,
		Email:          r.Email,
		UserName:       r.UserName,
		RefCode:        r.RefCode.String,
		AddedByRefCode: r.AddedByRefCode,
	}
	user.CreatedAt, _ = time.Parse(timeFormat, r.CreatedAt)
	user.UpdatedAt, _ = time.Parse(timeFormat, r.UpdatedAt)
	return user
}

const selectColumns = "id, email, user_name, ref_code, added_by_ref_code, created_at, updated_at"

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows := make([]userRow, 0, limit)

	err := r.db.SelectContext(ctx, &rows,
		"SELECT "+selectColumns+" FROM users ORDER BY created_at, id LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]domain.User, len(rows))
	for i, row := range rows {
		users[i] = row.toUser()
	}

	return users, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "SELECT "+selectColumns+" FROM users WHERE id = ?", id)
}

func (r *UserRepository) FindByUserName(ctx context.Context, userName string) (*domain.User, error) {
	return r.findOne(ctx, "SELECT "+selectColumns+" FROM users WHERE user_name = ?", userName)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "SELECT "+selectColumns+" FROM users WHERE email = ?", email)
}

func (r *UserRepository) FindByRefCode(ctx context.Context, refCode string) (*domain.User, error) {
	return r.findOne(ctx, "SELECT "+selectColumns+" FROM users WHERE ref_code = ?", refCode)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var row userRow

	err := r.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	user := row.toUser()
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, user_name, ref_code, added_by_ref_code, created_at, updated_at) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		user.ID,
		user.Email,
		user.UserName,
		user.RefCode,
		user.AddedByRefCode,
		user.CreatedAt.UTC().Format(timeFormat),
		user.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET email = ?, user_name = ?, updated_at = ? WHERE id = ?",
		user.Email,
		user.UserName,
		user.UpdatedAt.UTC().Format(timeFormat),
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) IncrementReferralCount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET added_by_ref_code = added_by_ref_code + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to increment referral count: %w", err)
	}

	return nil
}
