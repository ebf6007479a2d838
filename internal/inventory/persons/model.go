package persons

import "database/sql"

// Person は従業員（貸出先）を表す。user_id で認証アカウントに1対1で紐づけられる。
// department は表示用の自由記述（正規化しない）。
type Person struct {
	PersonID   int64
	FirstName  string
	LastName   string
	Department sql.NullString
	Email      sql.NullString
	UserID     sql.NullString
}

func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}
