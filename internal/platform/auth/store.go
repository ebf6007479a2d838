package auth

import (
	"context"
	"database/sql"
	"errors"
)

type Account struct {
	ID           string
	PasswordHash string
	Email        sql.NullString
	IsAdmin      bool
	IsDisabled   bool
	CreatedAt    string
}

type AccountStore interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id string) (int64, error)
	SetDisabled(ctx context.Context, id string, disabled bool) (int64, error)
	IsAdmin(ctx context.Context, id string) (bool, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) AccountStore {
	return &Store{db: db}
}

func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	const q = `
SELECT id, password_hash, email, is_admin, is_disabled, created_at
FROM auth_accounts
WHERE id = ?
LIMIT 1
`
	var a Account
	var isAdminInt, isDisabledInt int
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID,
		&a.PasswordHash,
		&a.Email,
		&isAdminInt,
		&isDisabledInt,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.IsAdmin = isAdminInt != 0
	a.IsDisabled = isDisabledInt != 0
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `
INSERT INTO auth_accounts (id, password_hash, email, is_admin, is_disabled, created_at)
VALUES (?, ?, ?, ?, 0, NOW(6))
`
	isAdmin := 0
	if a.IsAdmin {
		isAdmin = 1
	}
	_, err := s.db.ExecContext(ctx, q, a.ID, a.PasswordHash, nullStrOrNil(a.Email), isAdmin)
	return err
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	const q = `DELETE FROM auth_accounts WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) SetDisabled(ctx context.Context, id string, disabled bool) (int64, error) {
	const q = `UPDATE auth_accounts SET is_disabled = ? WHERE id = ?`
	v := 0
	if disabled {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, q, v, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsAdmin はロール解決で参照する管理者フラグ。存在しないIDは非管理者扱い。
func (s *Store) IsAdmin(ctx context.Context, id string) (bool, error) {
	const q = `SELECT is_admin FROM auth_accounts WHERE id = ? LIMIT 1`
	var v int
	err := s.db.QueryRowContext(ctx, q, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func nullStrOrNil(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}
