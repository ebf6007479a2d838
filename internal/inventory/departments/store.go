package departments

import (
	"context"
	"database/sql"

	platformdb "ALMS-backend/internal/platform/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) InsertDepartment(ctx context.Context, d *Department) error {
	const q = `INSERT INTO departments (name) VALUES (?)`
	res, err := s.db.ExecContext(ctx, q, d.Name)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	d.DepartmentID = id
	return nil
}

func (s *Store) GetDepartmentByID(ctx context.Context, id int64) (*Department, error) {
	const q = `SELECT department_id, name FROM departments WHERE department_id = ?`
	var d Department
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&d.DepartmentID, &d.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("department not found")
		}
		return nil, err
	}
	return &d, nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	const q = `SELECT department_id, name FROM departments ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.DepartmentID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDepartment(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM departments WHERE department_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type positionRow struct {
	DepartmentPosition
	DepartmentName string
}

func (s *Store) InsertPosition(ctx context.Context, p *DepartmentPosition) error {
	const q = `INSERT INTO department_positions (department_id, number) VALUES (?, ?)`
	res, err := s.db.ExecContext(ctx, q, p.DepartmentID, p.Number)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	p.PositionID = id
	return nil
}

func (s *Store) GetPositionByID(ctx context.Context, id int64) (*positionRow, error) {
	const q = `
	SELECT p.position_id, p.department_id, p.number, d.name
	FROM department_positions p
	JOIN departments d ON d.department_id = p.department_id
	WHERE p.position_id = ?`
	var p positionRow
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&p.PositionID, &p.DepartmentID, &p.Number, &p.DepartmentName); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("position not found")
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPositions(ctx context.Context, departmentID int64) ([]positionRow, error) {
	const q = `
	SELECT p.position_id, p.department_id, p.number, d.name
	FROM department_positions p
	JOIN departments d ON d.department_id = p.department_id
	WHERE p.department_id = ?
	ORDER BY p.number`
	rows, err := s.db.QueryContext(ctx, q, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []positionRow
	for rows.Next() {
		var p positionRow
		if err := rows.Scan(&p.PositionID, &p.DepartmentID, &p.Number, &p.DepartmentName); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePosition(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM department_positions WHERE position_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EnsureDefault はデフォルト部門とその席をなければ作る。
// 起動時に1回呼ぶ。フォーム構築の副作用として行っていた種まきの置き換え。
func (s *Store) EnsureDefault(ctx context.Context, name string, positions int) error {
	return platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT department_id FROM departments WHERE name = ?`, name).Scan(&id)
		if err == sql.ErrNoRows {
			res, err := tx.ExecContext(ctx, `INSERT INTO departments (name) VALUES (?)`, name)
			if err != nil {
				return err
			}
			id, _ = res.LastInsertId()
		} else if err != nil {
			return err
		}

		for n := 1; n <= positions; n++ {
			if _, err := tx.ExecContext(ctx,
				`INSERT IGNORE INTO department_positions (department_id, number) VALUES (?, ?)`, id, n); err != nil {
				return err
			}
		}
		return nil
	})
}
