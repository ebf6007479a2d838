package locations

import (
	"context"
	"database/sql"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// ---- Office ----

func (s *Store) InsertOffice(ctx context.Context, o *Office) error {
	const q = `INSERT INTO offices (name, address) VALUES (?, ?)`
	res, err := s.db.ExecContext(ctx, q, o.Name, nullStrOrNil(o.Address))
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	o.OfficeID = id
	return nil
}

func (s *Store) GetOfficeByID(ctx context.Context, id int64) (*Office, error) {
	const q = `SELECT office_id, name, address FROM offices WHERE office_id = ?`
	var o Office
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&o.OfficeID, &o.Name, &o.Address); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("office not found")
		}
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListOffices(ctx context.Context) ([]Office, error) {
	const q = `SELECT office_id, name, address FROM offices ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Office
	for rows.Next() {
		var o Office
		if err := rows.Scan(&o.OfficeID, &o.Name, &o.Address); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) UpdateOffice(ctx context.Context, id int64, name *string, address *string) (int64, error) {
	const q = `UPDATE offices SET name = COALESCE(?, name), address = COALESCE(?, address) WHERE office_id = ?`
	res, err := s.db.ExecContext(ctx, q, name, address, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteOffice(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM offices WHERE office_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- Room ----

type roomRow struct {
	Room
	OfficeName string
}

func (s *Store) InsertRoom(ctx context.Context, r *Room) error {
	const q = `INSERT INTO rooms (office_id, name, type) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, r.OfficeID, r.Name, r.Type)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	r.RoomID = id
	return nil
}

func (s *Store) GetRoomByID(ctx context.Context, id int64) (*roomRow, error) {
	const q = `
	SELECT r.room_id, r.office_id, r.name, r.type, o.name
	FROM rooms r
	JOIN offices o ON o.office_id = r.office_id
	WHERE r.room_id = ?`
	var r roomRow
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&r.RoomID, &r.OfficeID, &r.Name, &r.Type, &r.OfficeName); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("room not found")
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRooms(ctx context.Context, officeID *int64) ([]roomRow, error) {
	q := `
	SELECT r.room_id, r.office_id, r.name, r.type, o.name
	FROM rooms r
	JOIN offices o ON o.office_id = r.office_id`
	args := []any{}
	if officeID != nil {
		q += ` WHERE r.office_id = ?`
		args = append(args, *officeID)
	}
	q += ` ORDER BY o.name, r.name`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roomRow
	for rows.Next() {
		var r roomRow
		if err := rows.Scan(&r.RoomID, &r.OfficeID, &r.Name, &r.Type, &r.OfficeName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRoom(ctx context.Context, id int64, name, typ *string) (int64, error) {
	const q = `UPDATE rooms SET name = COALESCE(?, name), type = COALESCE(?, type) WHERE room_id = ?`
	res, err := s.db.ExecContext(ctx, q, name, typ, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteRoom(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM rooms WHERE room_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- Desk ----

type deskRow struct {
	Desk
	RoomName   string
	OfficeID   int64
	OfficeName string
}

func (s *Store) InsertDesk(ctx context.Context, d *Desk) error {
	const q = `INSERT INTO desks (room_id, code) VALUES (?, ?)`
	res, err := s.db.ExecContext(ctx, q, d.RoomID, d.Code)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	d.DeskID = id
	return nil
}

func (s *Store) GetDeskByID(ctx context.Context, id int64) (*deskRow, error) {
	const q = `
	SELECT d.desk_id, d.room_id, d.code, r.name, o.office_id, o.name
	FROM desks d
	JOIN rooms r ON r.room_id = d.room_id
	JOIN offices o ON o.office_id = r.office_id
	WHERE d.desk_id = ?`
	var d deskRow
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&d.DeskID, &d.RoomID, &d.Code, &d.RoomName, &d.OfficeID, &d.OfficeName); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("desk not found")
		}
		return nil, err
	}
	return &d, nil
}

// ListDesks: office / room での絞り込み付き一覧
func (s *Store) ListDesks(ctx context.Context, officeID, roomID *int64) ([]deskRow, error) {
	q := `
	SELECT d.desk_id, d.room_id, d.code, r.name, o.office_id, o.name
	FROM desks d
	JOIN rooms r ON r.room_id = d.room_id
	JOIN offices o ON o.office_id = r.office_id
	WHERE 1=1`
	args := []any{}
	if officeID != nil {
		q += ` AND o.office_id = ?`
		args = append(args, *officeID)
	}
	if roomID != nil {
		q += ` AND d.room_id = ?`
		args = append(args, *roomID)
	}
	q += ` ORDER BY o.name, r.name, d.code`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []deskRow
	for rows.Next() {
		var d deskRow
		if err := rows.Scan(&d.DeskID, &d.RoomID, &d.Code, &d.RoomName, &d.OfficeID, &d.OfficeName); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDesk(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM desks WHERE desk_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStrOrNil(ns sql.NullString) any {
	if ns.Valid {
		return ns.String
	}
	return nil
}
