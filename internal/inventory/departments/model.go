package departments

// Department は全社で一意な名前を持つ（後期スキーマ準拠、office紐付けなし）
type Department struct {
	DepartmentID int64
	Name         string
}

// DepartmentPosition は部門内の割当可能な「席」。(department_id, number) でユニーク。
type DepartmentPosition struct {
	PositionID   int64
	DepartmentID int64
	Number       int
}
