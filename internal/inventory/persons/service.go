package persons

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

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(db *sql.DB) *Service { return &Service{db: db, store: NewStore(db)} }

func (s *Service) Create(ctx context.Context, in CreatePersonRequest) (PersonResponse, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return PersonResponse{}, ErrInvalid("first_name and last_name are required")
	}

	p := &Person{FirstName: first, LastName: last}
	if in.Department != nil && *in.Department != "" {
		p.Department = sql.NullString{String: strings.TrimSpace(*in.Department), Valid: true}
	}
	if in.Email != nil && *in.Email != "" {
		p.Email = sql.NullString{String: strings.TrimSpace(*in.Email), Valid: true}
	}

	if err := s.store.Insert(ctx, p); err != nil {
		return PersonResponse{}, err
	}
	return buildPersonResponse(p), nil
}

func (s *Service) Get(ctx context.Context, id int64) (PersonResponse, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return PersonResponse{}, err
	}
	return buildPersonResponse(p), nil
}

func (s *Service) List(ctx context.Context, f PersonFilter) ([]PersonResponse, error) {
	items, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]PersonResponse, 0, len(items))
	for i := range items {
		out = append(out, buildPersonResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdatePersonRequest) (PersonResponse, error) {
	if _, err := s.store.Update(ctx, id, in); err != nil {
		return PersonResponse{}, err
	}
	return s.Get(ctx, id)
}

// LinkAccount は認証アカウントとの1対1紐付けを張り替える。
// 従業員ロールの暗黙ターゲット解決で最優先に参照される紐付け。
func (s *Service) LinkAccount(ctx context.Context, id int64, userID *string) (PersonResponse, error) {
	if userID != nil && strings.TrimSpace(*userID) == "" {
		userID = nil
	}
	n, err := s.store.SetUserID(ctx, id, userID)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case 1062:
				return PersonResponse{}, ErrConflict("account already linked to another person")
			case 1452:
				return PersonResponse{}, ErrInvalid("account does not exist")
			}
		}
		return PersonResponse{}, err
	}
	if n == 0 {
		if _, err := s.store.GetByID(ctx, id); err != nil {
			return PersonResponse{}, err
		}
	}
	return s.Get(ctx, id)
}

// Delete: 貸出履歴のある人は消せない（FK RESTRICT）
func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1451 {
			return ErrConflict("person is referenced by loans")
		}
		return err
	}
	if n == 0 {
		return ErrNotFound("person not found")
	}
	return nil
}

func buildPersonResponse(p *Person) PersonResponse {
	resp := PersonResponse{
		PersonID:  p.PersonID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		FullName:  p.FullName(),
	}
	if p.Department.Valid {
		v := p.Department.String
		resp.Department = &v
	}
	if p.Email.Valid {
		v := p.Email.String
		resp.Email = &v
	}
	if p.UserID.Valid {
		v := p.UserID.String
		resp.UserID = &v
	}
	return resp
}
