package departments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
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

const (
	defaultDepartmentName = "General"
	defaultPositionCount  = 5
)

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(db *sql.DB) *Service { return &Service{db: db, store: NewStore(db)} }

// EnsureDefault: 起動時の冪等な初期化。
func (s *Service) EnsureDefault(ctx context.Context) error {
	if err := s.store.EnsureDefault(ctx, defaultDepartmentName, defaultPositionCount); err != nil {
		return err
	}
	log.Printf("[INFO] default department %q ensured", defaultDepartmentName)
	return nil
}

func (s *Service) CreateDepartment(ctx context.Context, in CreateDepartmentRequest) (DepartmentResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return DepartmentResponse{}, ErrInvalid("name is required")
	}

	d := &Department{Name: name}
	if err := s.store.InsertDepartment(ctx, d); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return DepartmentResponse{}, ErrConflict("department name already exists")
		}
		return DepartmentResponse{}, err
	}
	return DepartmentResponse{DepartmentID: d.DepartmentID, Name: d.Name}, nil
}

func (s *Service) GetDepartment(ctx context.Context, id int64) (DepartmentResponse, error) {
	d, err := s.store.GetDepartmentByID(ctx, id)
	if err != nil {
		return DepartmentResponse{}, err
	}
	return DepartmentResponse{DepartmentID: d.DepartmentID, Name: d.Name}, nil
}

func (s *Service) ListDepartments(ctx context.Context) ([]DepartmentResponse, error) {
	items, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DepartmentResponse, 0, len(items))
	for _, d := range items {
		out = append(out, DepartmentResponse{DepartmentID: d.DepartmentID, Name: d.Name})
	}
	return out, nil
}

func (s *Service) DeleteDepartment(ctx context.Context, id int64) error {
	n, err := s.store.DeleteDepartment(ctx, id)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1451 {
			return ErrConflict("department has positions referenced by loans")
		}
		return err
	}
	if n == 0 {
		return ErrNotFound("department not found")
	}
	return nil
}

func (s *Service) CreatePosition(ctx context.Context, departmentID int64, in CreatePositionRequest) (PositionResponse, error) {
	if in.Number <= 0 {
		return PositionResponse{}, ErrInvalid("number must be > 0")
	}

	p := &DepartmentPosition{DepartmentID: departmentID, Number: in.Number}
	if err := s.store.InsertPosition(ctx, p); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case 1062:
				return PositionResponse{}, ErrConflict("position number already exists in department")
			case 1452:
				return PositionResponse{}, ErrNotFound("department not found")
			}
		}
		return PositionResponse{}, err
	}
	return s.GetPosition(ctx, p.PositionID)
}

func (s *Service) GetPosition(ctx context.Context, id int64) (PositionResponse, error) {
	p, err := s.store.GetPositionByID(ctx, id)
	if err != nil {
		return PositionResponse{}, err
	}
	return buildPositionResponse(p), nil
}

func (s *Service) ListPositions(ctx context.Context, departmentID int64) ([]PositionResponse, error) {
	items, err := s.store.ListPositions(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	out := make([]PositionResponse, 0, len(items))
	for i := range items {
		out = append(out, buildPositionResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) DeletePosition(ctx context.Context, id int64) error {
	n, err := s.store.DeletePosition(ctx, id)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1451 {
			return ErrConflict("position is referenced by loans")
		}
		return err
	}
	if n == 0 {
		return ErrNotFound("position not found")
	}
	return nil
}

func buildPositionResponse(p *positionRow) PositionResponse {
	return PositionResponse{
		PositionID:     p.PositionID,
		DepartmentID:   p.DepartmentID,
		DepartmentName: p.DepartmentName,
		Number:         p.Number,
		Label:          fmt.Sprintf("%s #%d", p.DepartmentName, p.Number),
	}
}
