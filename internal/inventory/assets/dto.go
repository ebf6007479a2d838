package assets

type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

type CategoryResponse struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

type CreateAssetRequest struct {
	CategoryID   int64   `json:"category_id" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	SerialNumber string  `json:"serial_number" binding:"required"`
	AssetTag     *string `json:"asset_tag,omitempty"`
	// "2006-01-02" 形式
	PurchaseDate *string `json:"purchase_date,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

type UpdateAssetRequest struct {
	CategoryID *int64  `json:"category_id,omitempty"`
	Name       *string `json:"name,omitempty"`
	AssetTag   *string `json:"asset_tag,omitempty"`
	// available / in_service / retired のみ指定可。assigned は貸出エンジン専用。
	Status       *string `json:"status,omitempty"`
	PurchaseDate *string `json:"purchase_date,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

type AssetResponse struct {
	AssetID      int64   `json:"asset_id"`
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Name         string  `json:"name"`
	SerialNumber string  `json:"serial_number"`
	AssetTag     *string `json:"asset_tag,omitempty"`
	Status       string  `json:"status"`
	PurchaseDate *string `json:"purchase_date,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// 一覧の検索条件（name/serial は前方一致）
type AssetFilter struct {
	Name         string
	SerialNumber string
	Statuses     []string
	CategoryID   *int64
}

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" | "desc"（asset_id順）
}
