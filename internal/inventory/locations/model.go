package locations

import "database/sql"

// Office は offices テーブルの1行を表す
type Office struct {
	OfficeID int64
	Name     string
	Address  sql.NullString
}

// Room は1つのOfficeに属する
type Room struct {
	RoomID   int64
	OfficeID int64
	Name     string
	Type     string
}

// Desk は1つのRoomに属する。(room_id, code) でユニーク。
type Desk struct {
	DeskID int64
	RoomID int64
	Code   string
}
