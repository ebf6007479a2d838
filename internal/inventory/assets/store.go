package assets

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// ---- Category ----

func (s *Store) InsertCategory(ctx context.Context, c *Category) error {
	const q = `INSERT INTO asset_categories (name) VALUES (?)`
	res, err := s.db.ExecContext(ctx, q, c.Name)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	c.CategoryID = id
	return nil
}

func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*Category, error) {
	const q = `SELECT category_id, name FROM asset_categories WHERE category_id = ?`
	var c Category
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&c.CategoryID, &c.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("category not found")
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	const q = `SELECT category_id, name FROM asset_categories ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.CategoryID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM asset_categories WHERE category_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- Asset ----

type assetRow struct {
	Asset
	CategoryName string
}

func (s *Store) InsertAsset(ctx context.Context, a *Asset) error {
	const q = `
	INSERT INTO assets (category_id, name, serial_number, asset_tag, status, purchase_date, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		a.CategoryID,
		a.Name,
		a.SerialNumber,
		nullStrOrNil(a.AssetTag),
		a.Status,
		nullTimeOrNil(a.PurchaseDate),
		nullStrOrNil(a.Notes),
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	a.AssetID = id
	return nil
}

func (s *Store) GetAssetByID(ctx context.Context, id int64) (*assetRow, error) {
	const q = `
	SELECT a.asset_id, a.category_id, a.name, a.serial_number, a.asset_tag, a.status, a.purchase_date, a.notes, c.name
	FROM assets a
	JOIN asset_categories c ON c.category_id = a.category_id
	WHERE a.asset_id = ?`
	var r assetRow
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&r.AssetID, &r.CategoryID, &r.Name, &r.SerialNumber, &r.AssetTag, &r.Status, &r.PurchaseDate, &r.Notes,
		&r.CategoryName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("asset not found")
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListAssets(ctx context.Context, f AssetFilter, p Page) ([]assetRow, int64, error) {
	where, args := buildAssetWhere(f)

	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	q := fmt.Sprintf(`
	SELECT a.asset_id, a.category_id, a.name, a.serial_number, a.asset_tag, a.status, a.purchase_date, a.notes, c.name
	FROM assets a
	JOIN asset_categories c ON c.category_id = a.category_id
	%s
	ORDER BY a.asset_id %s
	LIMIT ? OFFSET ?`, where, order)
	argsList := append(append([]any{}, args...), p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, q, argsList...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []assetRow
	for rows.Next() {
		var r assetRow
		if err := rows.Scan(
			&r.AssetID, &r.CategoryID, &r.Name, &r.SerialNumber, &r.AssetTag, &r.Status, &r.PurchaseDate, &r.Notes,
			&r.CategoryName,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	cq := fmt.Sprintf(`SELECT COUNT(*) FROM assets a JOIN asset_categories c ON c.category_id = a.category_id %s`, where)
	var total int64
	if err := s.db.QueryRowContext(ctx, cq, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildAssetWhere(f AssetFilter) (string, []any) {
	conds := []string{"1=1"}
	args := []any{}
	if f.Name != "" {
		conds = append(conds, "a.name LIKE ?")
		args = append(args, likePrefix(f.Name))
	}
	if f.SerialNumber != "" {
		conds = append(conds, "a.serial_number LIKE ?")
		args = append(args, likePrefix(f.SerialNumber))
	}
	if len(f.Statuses) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?,", len(f.Statuses)), ",")
		conds = append(conds, fmt.Sprintf("a.status IN (%s)", ph))
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.CategoryID != nil {
		conds = append(conds, "a.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// likePrefix: 前方一致。LIKEのメタ文字はエスケープする。
func likePrefix(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v) + "%"
}

func (s *Store) UpdateAsset(ctx context.Context, id int64, in UpdateAssetRequest, purchaseDate any) (int64, error) {
	const q = `
	UPDATE assets SET
		category_id   = COALESCE(?, category_id),
		name          = COALESCE(?, name),
		asset_tag     = COALESCE(?, asset_tag),
		status        = COALESCE(?, status),
		purchase_date = COALESCE(?, purchase_date),
		notes         = COALESCE(?, notes)
	WHERE asset_id = ?`
	res, err := s.db.ExecContext(ctx, q, in.CategoryID, in.Name, in.AssetTag, in.Status, purchaseDate, in.Notes, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteAsset(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM assets WHERE asset_id = ?`
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

func nullTimeOrNil(nt sql.NullTime) any {
	if nt.Valid {
		return nt.Time
	}
	return nil
}
