package departments

type CreateDepartmentRequest struct {
	Name string `json:"name" binding:"required"`
}

type DepartmentResponse struct {
	DepartmentID int64  `json:"department_id"`
	Name         string `json:"name"`
}

type CreatePositionRequest struct {
	Number int `json:"number" binding:"required"`
}

type PositionResponse struct {
	PositionID     int64  `json:"position_id"`
	DepartmentID   int64  `json:"department_id"`
	DepartmentName string `json:"department_name"`
	Number         int    `json:"number"`
	Label          string `json:"label"` // 例: "IT #3"
}
