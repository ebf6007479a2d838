package persons

import (
	"context"
	"database/sql"
	"strings"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Insert(ctx context.Context, p *Person) error {
	const q = `
	INSERT INTO persons (first_name, last_name, department, email, user_id)
	VALUES (?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		p.FirstName, p.LastName, nullStrOrNil(p.Department), nullStrOrNil(p.Email), nullStrOrNil(p.UserID))
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	p.PersonID = id
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Person, error) {
	const q = `
	SELECT person_id, first_name, last_name, department, email, user_id
	FROM persons WHERE person_id = ?`
	var p Person
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&p.PersonID, &p.FirstName, &p.LastName, &p.Department, &p.Email, &p.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("person not found")
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) List(ctx context.Context, f PersonFilter) ([]Person, error) {
	q := `
	SELECT person_id, first_name, last_name, department, email, user_id
	FROM persons WHERE 1=1`
	args := []any{}
	if f.Name != "" {
		q += ` AND (first_name LIKE ? OR last_name LIKE ?)`
		pat := likePrefix(f.Name)
		args = append(args, pat, pat)
	}
	if f.Email != "" {
		q += ` AND email LIKE ?`
		args = append(args, likePrefix(f.Email))
	}
	if f.Department != "" {
		q += ` AND department = ?`
		args = append(args, f.Department)
	}
	q += ` ORDER BY last_name, first_name`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.PersonID, &p.FirstName, &p.LastName, &p.Department, &p.Email, &p.UserID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, id int64, in UpdatePersonRequest) (int64, error) {
	const q = `
	UPDATE persons SET
		first_name = COALESCE(?, first_name),
		last_name  = COALESCE(?, last_name),
		department = COALESCE(?, department),
		email      = COALESCE(?, email)
	WHERE person_id = ?`
	res, err := s.db.ExecContext(ctx, q, in.FirstName, in.LastName, in.Department, in.Email, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetUserID: nil で解除
func (s *Store) SetUserID(ctx context.Context, id int64, userID *string) (int64, error) {
	const q = `UPDATE persons SET user_id = ? WHERE person_id = ?`
	res, err := s.db.ExecContext(ctx, q, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM persons WHERE person_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func likePrefix(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v) + "%"
}

func nullStrOrNil(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}
