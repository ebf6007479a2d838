package locations

// ---- Office ----

type CreateOfficeRequest struct {
	Name    string  `json:"name" binding:"required"`
	Address *string `json:"address,omitempty"`
}

type UpdateOfficeRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
}

type OfficeResponse struct {
	OfficeID int64   `json:"office_id"`
	Name     string  `json:"name"`
	Address  *string `json:"address,omitempty"`
}

// ---- Room ----

type CreateRoomRequest struct {
	OfficeID int64   `json:"office_id" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Type     *string `json:"type,omitempty"` // 省略時 open_space
}

type UpdateRoomRequest struct {
	Name *string `json:"name,omitempty"`
	Type *string `json:"type,omitempty"`
}

type RoomResponse struct {
	RoomID     int64  `json:"room_id"`
	OfficeID   int64  `json:"office_id"`
	OfficeName string `json:"office_name"`
	Name       string `json:"name"`
	Type       string `json:"type"`
}

// ---- Desk ----

type CreateDeskRequest struct {
	RoomID int64  `json:"room_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

type DeskResponse struct {
	DeskID     int64  `json:"desk_id"`
	RoomID     int64  `json:"room_id"`
	RoomName   string `json:"room_name"`
	OfficeID   int64  `json:"office_id"`
	OfficeName string `json:"office_name"`
	Code       string `json:"code"`
}
