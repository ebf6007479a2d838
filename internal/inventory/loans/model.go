package loans

import (
	"database/sql"
	"time"
)

// 貸出先の種別。1件の貸出はちょうど1つの種別に結び付く。
type TargetKind string

const (
	KindPerson   TargetKind = "person"
	KindDesk     TargetKind = "desk"
	KindOffice   TargetKind = "office"
	KindPosition TargetKind = "department_position"
)

func ValidKind(k TargetKind) bool {
	switch k {
	case KindPerson, KindDesk, KindOffice, KindPosition:
		return true
	}
	return false
}

// TargetBinding は検証済みの貸出先。Kind が単一の貸出先を表し、
// 対応するID以外は 0 のまま。person の場合のみ DeskID を
// 座席情報として併せて持てる(貸出先はあくまで person)。
// Department は貸出時点のスナップショット。
type TargetBinding struct {
	Kind       TargetKind
	PersonID   int64
	DeskID     int64
	OfficeID   int64
	PositionID int64
	Department string
}

// 永続化時に desk_id 列へ入れる値。desk ターゲットまたは
// person + 座席の場合だけ非NULLになる。
func (b TargetBinding) deskColumn() int64 {
	switch b.Kind {
	case KindDesk:
		return b.DeskID
	case KindPerson:
		return b.DeskID // 0 なら座席なし
	}
	return 0
}

type Loan struct {
	LoanID     int64
	LoanULID   string
	AssetID    int64
	CreatedBy  sql.NullString
	PersonID   sql.NullInt64
	DeskID     sql.NullInt64
	OfficeID   sql.NullInt64
	PositionID sql.NullInt64
	Department sql.NullString
	LoanDate   time.Time
	DueDate    sql.NullTime
	ReturnDate sql.NullTime
	IssuedBy   sql.NullString
	CreatedAt  time.Time
}

// Kind は永続化された4列からターゲット種別を復元する。
// person と desk が両方入っている行は person(+座席)扱い。
func (l *Loan) Kind() TargetKind {
	switch {
	case l.PersonID.Valid:
		return KindPerson
	case l.DeskID.Valid:
		return KindDesk
	case l.OfficeID.Valid:
		return KindOffice
	default:
		return KindPosition
	}
}
