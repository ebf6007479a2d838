package persons

type CreatePersonRequest struct {
	FirstName  string  `json:"first_name" binding:"required"`
	LastName   string  `json:"last_name" binding:"required"`
	Department *string `json:"department,omitempty"`
	Email      *string `json:"email,omitempty"`
}

type UpdatePersonRequest struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Department *string `json:"department,omitempty"`
	Email      *string `json:"email,omitempty"`
}

type LinkAccountRequest struct {
	UserID *string `json:"user_id"` // null で解除
}

type PersonResponse struct {
	PersonID   int64   `json:"person_id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	FullName   string  `json:"full_name"`
	Department *string `json:"department,omitempty"`
	Email      *string `json:"email,omitempty"`
	UserID     *string `json:"user_id,omitempty"`
}

// 一覧の検索条件。Name は first/last どちらかの前方一致。
type PersonFilter struct {
	Name       string
	Email      string
	Department string
}
