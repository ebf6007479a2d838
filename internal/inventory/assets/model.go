package assets

import "database/sql"

// Asset の状態。assigned/available の遷移は貸出エンジンのみが行う。
// in_service/retired は管理操作で設定する。
const (
	StatusAvailable = "available"
	StatusAssigned  = "assigned"
	StatusInService = "in_service"
	StatusRetired   = "retired"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusAssigned, StatusInService, StatusRetired:
		return true
	}
	return false
}

type Category struct {
	CategoryID int64
	Name       string
}

// Asset は assets テーブルの1行を表す
type Asset struct {
	AssetID      int64
	CategoryID   int64
	Name         string
	SerialNumber string
	AssetTag     sql.NullString
	Status       string
	PurchaseDate sql.NullTime
	Notes        sql.NullString
}
