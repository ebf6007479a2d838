package loans

// 貸出作成。target_type に応じて必要なIDが変わる。
// employee ロールでは target_type は無視され、本人の Person が
// 暗黙の貸出先になる(office_id と desk_id が必須)。
type CreateLoanRequest struct {
	TargetType string  `json:"target_type"`
	AssetID    int64   `json:"asset_id" binding:"required"`
	PersonID   *int64  `json:"person_id,omitempty"`
	DeskID     *int64  `json:"desk_id,omitempty"`
	OfficeID   *int64  `json:"office_id,omitempty"`
	PositionID *int64  `json:"position_id,omitempty"`
	Department *string `json:"department,omitempty"` // company の office 貸出時のみ自由記述
	LoanDate   string  `json:"loan_date" binding:"required"`
	DueDate    *string `json:"due_date,omitempty"`
	IssuedBy   *string `json:"issued_by,omitempty"`
}

// 表示用ターゲット。種別とラベルの組。
type TargetDTO struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

type LoanResponse struct {
	LoanID     int64   `json:"loan_id"`
	LoanULID   string  `json:"loan_ulid"`
	AssetID    int64   `json:"asset_id"`
	AssetName  string  `json:"asset_name"`
	Serial     string  `json:"serial_number"`
	CreatedBy  *string `json:"created_by,omitempty"`
	PersonID   *int64  `json:"person_id,omitempty"`
	DeskID     *int64  `json:"desk_id,omitempty"`
	OfficeID   *int64  `json:"office_id,omitempty"`
	PositionID *int64  `json:"position_id,omitempty"`

	Target          TargetDTO `json:"target"`
	TargetLabel     string    `json:"target_label"`
	OfficeLabel     string    `json:"office_label"`
	DeskLabel       string    `json:"desk_label"`
	DepartmentLabel string    `json:"department_label"`

	LoanDate   string  `json:"loan_date"`
	DueDate    *string `json:"due_date,omitempty"`
	ReturnDate *string `json:"return_date,omitempty"`
	IssuedBy   *string `json:"issued_by,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// 一覧の絞り込みと並び順
type ListFilter struct {
	IncludeReturned bool
	AssetID         *int64
	Sort            string // id / loan_date / due_date
	Direction       string // asc / desc
}
