package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
)

// ===== Error model =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// mapMySQLError: 一意制約・FK違反をAPIErrorへ寄せる
func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062: // duplicate key
			return ErrConflict("duplicate entry")
		case 1451: // row is referenced
			return ErrConflict("still referenced by other rows")
		case 1452: // FK constraint fails
			return ErrInvalid("referenced row does not exist")
		}
	}
	return err
}

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(db *sql.DB) *Service { return &Service{db: db, store: NewStore(db)} }

// ---- Office ----

func (s *Service) CreateOffice(ctx context.Context, in CreateOfficeRequest) (OfficeResponse, error) {
	if strings.TrimSpace(in.Name) == "" {
		return OfficeResponse{}, ErrInvalid("name is required")
	}

	o := &Office{Name: strings.TrimSpace(in.Name)}
	if in.Address != nil && *in.Address != "" {
		o.Address = sql.NullString{String: *in.Address, Valid: true}
	}
	if err := s.store.InsertOffice(ctx, o); err != nil {
		return OfficeResponse{}, mapMySQLError(err)
	}
	return buildOfficeResponse(o), nil
}

func (s *Service) GetOffice(ctx context.Context, id int64) (OfficeResponse, error) {
	o, err := s.store.GetOfficeByID(ctx, id)
	if err != nil {
		return OfficeResponse{}, err
	}
	return buildOfficeResponse(o), nil
}

func (s *Service) ListOffices(ctx context.Context) ([]OfficeResponse, error) {
	items, err := s.store.ListOffices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]OfficeResponse, 0, len(items))
	for i := range items {
		out = append(out, buildOfficeResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) UpdateOffice(ctx context.Context, id int64, in UpdateOfficeRequest) (OfficeResponse, error) {
	n, err := s.store.UpdateOffice(ctx, id, in.Name, in.Address)
	if err != nil {
		return OfficeResponse{}, mapMySQLError(err)
	}
	if n == 0 {
		// 変更なし更新もここに落ちるので存在確認で区別する
		if _, err := s.store.GetOfficeByID(ctx, id); err != nil {
			return OfficeResponse{}, err
		}
	}
	return s.GetOffice(ctx, id)
}

func (s *Service) DeleteOffice(ctx context.Context, id int64) error {
	n, err := s.store.DeleteOffice(ctx, id)
	if err != nil {
		return mapMySQLError(err)
	}
	if n == 0 {
		return ErrNotFound("office not found")
	}
	return nil
}

// ---- Room ----

func (s *Service) CreateRoom(ctx context.Context, in CreateRoomRequest) (RoomResponse, error) {
	if strings.TrimSpace(in.Name) == "" {
		return RoomResponse{}, ErrInvalid("name is required")
	}
	typ := "open_space"
	if in.Type != nil && *in.Type != "" {
		typ = *in.Type
	}

	r := &Room{OfficeID: in.OfficeID, Name: strings.TrimSpace(in.Name), Type: typ}
	if err := s.store.InsertRoom(ctx, r); err != nil {
		return RoomResponse{}, mapMySQLError(err)
	}
	return s.GetRoom(ctx, r.RoomID)
}

func (s *Service) GetRoom(ctx context.Context, id int64) (RoomResponse, error) {
	r, err := s.store.GetRoomByID(ctx, id)
	if err != nil {
		return RoomResponse{}, err
	}
	return buildRoomResponse(r), nil
}

func (s *Service) ListRooms(ctx context.Context, officeID *int64) ([]RoomResponse, error) {
	items, err := s.store.ListRooms(ctx, officeID)
	if err != nil {
		return nil, err
	}
	out := make([]RoomResponse, 0, len(items))
	for i := range items {
		out = append(out, buildRoomResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) UpdateRoom(ctx context.Context, id int64, in UpdateRoomRequest) (RoomResponse, error) {
	if _, err := s.store.UpdateRoom(ctx, id, in.Name, in.Type); err != nil {
		return RoomResponse{}, mapMySQLError(err)
	}
	return s.GetRoom(ctx, id)
}

func (s *Service) DeleteRoom(ctx context.Context, id int64) error {
	n, err := s.store.DeleteRoom(ctx, id)
	if err != nil {
		return mapMySQLError(err)
	}
	if n == 0 {
		return ErrNotFound("room not found")
	}
	return nil
}

// ---- Desk ----

func (s *Service) CreateDesk(ctx context.Context, in CreateDeskRequest) (DeskResponse, error) {
	if strings.TrimSpace(in.Code) == "" {
		return DeskResponse{}, ErrInvalid("code is required")
	}

	d := &Desk{RoomID: in.RoomID, Code: strings.TrimSpace(in.Code)}
	if err := s.store.InsertDesk(ctx, d); err != nil {
		return DeskResponse{}, mapMySQLError(err)
	}
	return s.GetDesk(ctx, d.DeskID)
}

func (s *Service) GetDesk(ctx context.Context, id int64) (DeskResponse, error) {
	d, err := s.store.GetDeskByID(ctx, id)
	if err != nil {
		return DeskResponse{}, err
	}
	return buildDeskResponse(d), nil
}

func (s *Service) ListDesks(ctx context.Context, officeID, roomID *int64) ([]DeskResponse, error) {
	items, err := s.store.ListDesks(ctx, officeID, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]DeskResponse, 0, len(items))
	for i := range items {
		out = append(out, buildDeskResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) DeleteDesk(ctx context.Context, id int64) error {
	n, err := s.store.DeleteDesk(ctx, id)
	if err != nil {
		return mapMySQLError(err)
	}
	if n == 0 {
		return ErrNotFound("desk not found")
	}
	return nil
}

// ---- helpers ----

func buildOfficeResponse(o *Office) OfficeResponse {
	resp := OfficeResponse{OfficeID: o.OfficeID, Name: o.Name}
	if o.Address.Valid {
		v := o.Address.String
		resp.Address = &v
	}
	return resp
}

func buildRoomResponse(r *roomRow) RoomResponse {
	return RoomResponse{
		RoomID:     r.RoomID,
		OfficeID:   r.OfficeID,
		OfficeName: r.OfficeName,
		Name:       r.Name,
		Type:       r.Type,
	}
}

func buildDeskResponse(d *deskRow) DeskResponse {
	return DeskResponse{
		DeskID:     d.DeskID,
		RoomID:     d.RoomID,
		RoomName:   d.RoomName,
		OfficeID:   d.OfficeID,
		OfficeName: d.OfficeName,
		Code:       d.Code,
	}
}
