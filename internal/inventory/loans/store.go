package loans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"

	"ALMS-backend/internal/inventory/assets"
	platformdb "ALMS-backend/internal/platform/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// ---- カタログ読み取り(戦略の事前チェック用) ----

type catalog struct {
	q platformdb.DBTX
}

func (s *Store) Catalog() catalogReader { return catalog{q: s.db} }

func (c catalog) AssetStatus(ctx context.Context, assetID int64) (string, error) {
	const q = `SELECT status FROM assets WHERE asset_id = ?`
	var status string
	if err := c.q.QueryRowContext(ctx, q, assetID).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound(fmt.Sprintf("asset %d not found", assetID))
		}
		return "", err
	}
	return status, nil
}

func (c catalog) PersonRef(ctx context.Context, personID int64) (*personRef, error) {
	const q = `SELECT person_id, department FROM persons WHERE person_id = ?`
	var ref personRef
	var dept sql.NullString
	if err := c.q.QueryRowContext(ctx, q, personID).Scan(&ref.PersonID, &dept); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound(fmt.Sprintf("person %d not found", personID))
		}
		return nil, err
	}
	ref.Department = dept.String
	return &ref, nil
}

// user_id のリンクを優先し、なければアカウントのメールアドレスと
// persons.email の一致で解決する。どちらも無ければ (nil, nil)。
func (c catalog) PersonByAccount(ctx context.Context, accountID string) (*personRef, error) {
	const linked = `SELECT person_id, department FROM persons WHERE user_id = ?`
	var ref personRef
	var dept sql.NullString
	err := c.q.QueryRowContext(ctx, linked, accountID).Scan(&ref.PersonID, &dept)
	if err == nil {
		ref.Department = dept.String
		return &ref, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	const byEmail = `
	SELECT p.person_id, p.department
	FROM persons p
	JOIN auth_accounts ac ON ac.email = p.email
	WHERE ac.id = ? AND p.email IS NOT NULL
	ORDER BY p.person_id
	LIMIT 1`
	err = c.q.QueryRowContext(ctx, byEmail, accountID).Scan(&ref.PersonID, &dept)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ref.Department = dept.String
	return &ref, nil
}

func (c catalog) OfficeExists(ctx context.Context, officeID int64) (bool, error) {
	const q = `SELECT 1 FROM offices WHERE office_id = ?`
	var one int
	if err := c.q.QueryRowContext(ctx, q, officeID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c catalog) DeskOfficeID(ctx context.Context, deskID int64) (int64, error) {
	const q = `
	SELECT r.office_id
	FROM desks d
	JOIN rooms r ON r.room_id = d.room_id
	WHERE d.desk_id = ?`
	var officeID int64
	if err := c.q.QueryRowContext(ctx, q, deskID).Scan(&officeID); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound(fmt.Sprintf("desk %d not found", deskID))
		}
		return 0, err
	}
	return officeID, nil
}

func (c catalog) PositionLabel(ctx context.Context, positionID int64) (string, error) {
	const q = `
	SELECT dpt.name, dp.number
	FROM department_positions dp
	JOIN departments dpt ON dpt.department_id = dp.department_id
	WHERE dp.position_id = ?`
	var name string
	var number int
	if err := c.q.QueryRowContext(ctx, q, positionID).Scan(&name, &number); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound(fmt.Sprintf("position %d not found", positionID))
		}
		return "", err
	}
	return fmt.Sprintf("%s #%d", name, number), nil
}

func (c catalog) PositionOnActiveLoan(ctx context.Context, positionID int64) (bool, error) {
	const q = `SELECT COUNT(*) FROM loans WHERE position_id = ? AND return_date IS NULL`
	var n int64
	if err := c.q.QueryRowContext(ctx, q, positionID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c catalog) DeskOnActiveLoan(ctx context.Context, deskID int64) (bool, error) {
	const q = `SELECT COUNT(*) FROM loans WHERE desk_id = ? AND return_date IS NULL`
	var n int64
	if err := c.q.QueryRowContext(ctx, q, deskID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---- 作成 ----

// 同一ターゲットへの同時INSERTはギャップロック同士が両立するため、
// InnoDBがどちらかを 1213 (deadlock) で巻き戻すことがある。巻き戻された
// 側は一度だけTxを取り直す。取り直し時には勝者の行が見えるので、
// 事前チェックと同じエラーコードに落ちる。
func runWithLockRetry(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx platformdb.DBTX) error) error {
	err := platformdb.Serializable(ctx, db, fn)
	if !isLockConflict(err) {
		return err
	}
	err = platformdb.Serializable(ctx, db, fn)
	if isLockConflict(err) {
		return ErrTargetAlreadyAssigned("lost a concurrent update on the same target")
	}
	return err
}

// 1213: deadlock, 1205: lock wait timeout
func isLockConflict(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == 1213 || me.Number == 1205
}

// CreateLoan は資産の行ロック下で空き状態を取り直してから
// 貸出行のINSERTと資産ステータスの遷移を同一Txで行う。
// 競合の敗者は事前チェックと同じエラーコードを受け取る。
func (s *Store) CreateLoan(ctx context.Context, l *Loan, b TargetBinding) error {
	return runWithLockRetry(ctx, s.db, func(ctx context.Context, tx platformdb.DBTX) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM assets WHERE asset_id = ? FOR UPDATE`, l.AssetID).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrNotFound(fmt.Sprintf("asset %d not found", l.AssetID))
		}
		if err != nil {
			return err
		}
		if status != assets.StatusAvailable {
			return ErrAssetUnavailable(fmt.Sprintf("asset %d is not available (status=%s)", l.AssetID, status))
		}

		if b.Kind == KindPosition {
			var n int64
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM loans WHERE position_id = ? AND return_date IS NULL FOR UPDATE`,
				b.PositionID).Scan(&n)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrTargetAlreadyAssigned(fmt.Sprintf("position %d already has an active loan", b.PositionID))
			}
		}
		if deskID := b.deskColumn(); deskID != 0 {
			var n int64
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM loans WHERE desk_id = ? AND return_date IS NULL FOR UPDATE`,
				deskID).Scan(&n)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrTargetAlreadyAssigned(fmt.Sprintf("desk %d already has an active loan", deskID))
			}
		}

		const ins = `
		INSERT INTO loans
		  (loan_ulid, asset_id, created_by, person_id, desk_id, office_id, position_id,
		   department, loan_date, due_date, issued_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, ins,
			l.LoanULID,
			l.AssetID,
			nullStrOrNil(l.CreatedBy),
			idOrNil(b.Kind == KindPerson, b.PersonID),
			idOrNil(b.deskColumn() != 0, b.deskColumn()),
			idOrNil(b.Kind == KindOffice, b.OfficeID),
			idOrNil(b.Kind == KindPosition, b.PositionID),
			strOrNil(b.Department),
			l.LoanDate,
			nullTimeOrNil(l.DueDate),
			nullStrOrNil(l.IssuedBy),
			l.CreatedAt,
		)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		l.LoanID = id

		_, err = tx.ExecContext(ctx,
			`UPDATE assets SET status = ? WHERE asset_id = ?`, assets.StatusAssigned, l.AssetID)
		return err
	})
}

// ---- 返却 ----

// ReturnLoan は貸出行のロック、権限確認、return_date の確定、
// 資産の available への遷移を同一Txで行う。return_date は一度
// 入ったら以後変更されない。
func (s *Store) ReturnLoan(ctx context.Context, loanID int64, actorID string, isAdmin bool, today time.Time) error {
	return runWithLockRetry(ctx, s.db, func(ctx context.Context, tx platformdb.DBTX) error {
		const lock = `
		SELECT l.asset_id, l.created_by, l.return_date, p.user_id
		FROM loans l
		LEFT JOIN persons p ON p.person_id = l.person_id
		WHERE l.loan_id = ?
		FOR UPDATE`
		var assetID int64
		var createdBy, personUserID sql.NullString
		var returnDate sql.NullTime
		err := tx.QueryRowContext(ctx, lock, loanID).Scan(&assetID, &createdBy, &returnDate, &personUserID)
		if err == sql.ErrNoRows {
			return ErrNotFound(fmt.Sprintf("loan %d not found", loanID))
		}
		if err != nil {
			return err
		}
		if returnDate.Valid {
			return ErrAlreadyReturned(fmt.Sprintf("loan %d is already returned", loanID))
		}
		if !isAdmin {
			owns := (createdBy.Valid && createdBy.String == actorID) ||
				(personUserID.Valid && personUserID.String == actorID)
			if !owns {
				return ErrForbidden("not allowed to return this loan")
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE loans SET return_date = ? WHERE loan_id = ?`, today, loanID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE assets SET status = ? WHERE asset_id = ?`, assets.StatusAvailable, assetID)
		return err
	})
}

// ---- 取得・一覧 ----

type loanRow struct {
	Loan
	AssetName        string
	Serial           string
	PersonFirstName  sql.NullString
	PersonLastName   sql.NullString
	DeskCode         sql.NullString
	DeskRoomName     sql.NullString
	DeskOfficeName   sql.NullString
	OfficeName       sql.NullString
	PositionNumber   sql.NullInt64
	PositionDeptName sql.NullString
}

const loanSelect = `
SELECT l.loan_id, l.loan_ulid, l.asset_id, l.created_by,
       l.person_id, l.desk_id, l.office_id, l.position_id,
       l.department, l.loan_date, l.due_date, l.return_date, l.issued_by, l.created_at,
       a.name, a.serial_number,
       p.first_name, p.last_name,
       d.code, r.name, dofc.name,
       o.name,
       dp.number, dpt.name
FROM loans l
JOIN assets a ON a.asset_id = l.asset_id
LEFT JOIN persons p ON p.person_id = l.person_id
LEFT JOIN desks d ON d.desk_id = l.desk_id
LEFT JOIN rooms r ON r.room_id = d.room_id
LEFT JOIN offices dofc ON dofc.office_id = r.office_id
LEFT JOIN offices o ON o.office_id = l.office_id
LEFT JOIN department_positions dp ON dp.position_id = l.position_id
LEFT JOIN departments dpt ON dpt.department_id = dp.department_id`

func scanLoanRow(sc interface{ Scan(dest ...any) error }, lr *loanRow) error {
	return sc.Scan(
		&lr.LoanID, &lr.LoanULID, &lr.AssetID, &lr.CreatedBy,
		&lr.PersonID, &lr.DeskID, &lr.OfficeID, &lr.PositionID,
		&lr.Department, &lr.LoanDate, &lr.DueDate, &lr.ReturnDate, &lr.IssuedBy, &lr.CreatedAt,
		&lr.AssetName, &lr.Serial,
		&lr.PersonFirstName, &lr.PersonLastName,
		&lr.DeskCode, &lr.DeskRoomName, &lr.DeskOfficeName,
		&lr.OfficeName,
		&lr.PositionNumber, &lr.PositionDeptName,
	)
}

// 非adminには authored か本人リンクの行しか見せない。
// このゲートは一覧・単体取得・履歴のすべてに同じ条件で掛かる。
const visibilityGate = `(l.created_by = ? OR p.user_id = ?)`

func (s *Store) GetLoanByID(ctx context.Context, loanID int64, actorID string, isAdmin bool) (*loanRow, error) {
	q := loanSelect + ` WHERE l.loan_id = ?`
	args := []any{loanID}
	if !isAdmin {
		q += ` AND ` + visibilityGate
		args = append(args, actorID, actorID)
	}

	var lr loanRow
	if err := scanLoanRow(s.db.QueryRowContext(ctx, q, args...), &lr); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound(fmt.Sprintf("loan %d not found", loanID))
		}
		return nil, err
	}
	return &lr, nil
}

var sortColumns = map[string]string{
	"id":        "l.loan_id",
	"loan_date": "l.loan_date",
	"due_date":  "l.due_date",
}

func (s *Store) ListLoans(ctx context.Context, actorID string, isAdmin bool, f ListFilter) ([]loanRow, error) {
	var conds []string
	var args []any

	if !f.IncludeReturned {
		conds = append(conds, "l.return_date IS NULL")
	}
	if f.AssetID != nil {
		conds = append(conds, "l.asset_id = ?")
		args = append(args, *f.AssetID)
	}
	if !isAdmin {
		conds = append(conds, visibilityGate)
		args = append(args, actorID, actorID)
	}

	q := loanSelect
	if len(conds) > 0 {
		q += "\nWHERE " + strings.Join(conds, " AND ")
	}

	col, ok := sortColumns[f.Sort]
	if !ok {
		col = "l.loan_id"
	}
	dir := "ASC"
	if strings.EqualFold(f.Direction, "desc") {
		dir = "DESC"
	}
	q += fmt.Sprintf("\nORDER BY %s %s", col, dir)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []loanRow
	for rows.Next() {
		var lr loanRow
		if err := scanLoanRow(rows, &lr); err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, rows.Err()
}

// ---- helpers ----

func idOrNil(set bool, id int64) any {
	if set {
		return id
	}
	return nil
}

func strOrNil(v string) any {
	if v == "" {
		return nil
	}
	return v
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
