package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

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

const dateLayout = "2006-01-02"

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(db *sql.DB) *Service { return &Service{db: db, store: NewStore(db)} }

// ---- Category ----

func (s *Service) CreateCategory(ctx context.Context, in CreateCategoryRequest) (CategoryResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return CategoryResponse{}, ErrInvalid("name is required")
	}

	c := &Category{Name: name}
	if err := s.store.InsertCategory(ctx, c); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return CategoryResponse{}, ErrConflict("category name already exists")
		}
		return CategoryResponse{}, err
	}
	return CategoryResponse{CategoryID: c.CategoryID, Name: c.Name}, nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (CategoryResponse, error) {
	c, err := s.store.GetCategoryByID(ctx, id)
	if err != nil {
		return CategoryResponse{}, err
	}
	return CategoryResponse{CategoryID: c.CategoryID, Name: c.Name}, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]CategoryResponse, error) {
	items, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryResponse, 0, len(items))
	for _, c := range items {
		out = append(out, CategoryResponse{CategoryID: c.CategoryID, Name: c.Name})
	}
	return out, nil
}

// DeleteCategory: 資産が残っているカテゴリは消せない（FK RESTRICT）
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	n, err := s.store.DeleteCategory(ctx, id)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1451 {
			return ErrConflict("category still has assets")
		}
		return err
	}
	if n == 0 {
		return ErrNotFound("category not found")
	}
	return nil
}

// ---- Asset ----

func (s *Service) CreateAsset(ctx context.Context, in CreateAssetRequest) (AssetResponse, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.SerialNumber) == "" {
		return AssetResponse{}, ErrInvalid("name and serial_number are required")
	}

	a := &Asset{
		CategoryID:   in.CategoryID,
		Name:         strings.TrimSpace(in.Name),
		SerialNumber: strings.TrimSpace(in.SerialNumber),
		Status:       StatusAvailable,
	}
	if in.AssetTag != nil && *in.AssetTag != "" {
		a.AssetTag = sql.NullString{String: *in.AssetTag, Valid: true}
	}
	if in.Notes != nil && *in.Notes != "" {
		a.Notes = sql.NullString{String: *in.Notes, Valid: true}
	}
	if in.PurchaseDate != nil && *in.PurchaseDate != "" {
		t, err := time.Parse(dateLayout, *in.PurchaseDate)
		if err != nil {
			return AssetResponse{}, ErrInvalid("invalid purchase_date format, expected YYYY-MM-DD")
		}
		a.PurchaseDate = sql.NullTime{Time: t, Valid: true}
	}

	if err := s.store.InsertAsset(ctx, a); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case 1062:
				return AssetResponse{}, ErrConflict("serial_number or asset_tag already exists")
			case 1452:
				return AssetResponse{}, ErrInvalid("invalid category_id")
			}
		}
		return AssetResponse{}, err
	}
	return s.GetAsset(ctx, a.AssetID)
}

func (s *Service) GetAsset(ctx context.Context, id int64) (AssetResponse, error) {
	r, err := s.store.GetAssetByID(ctx, id)
	if err != nil {
		return AssetResponse{}, err
	}
	return buildAssetResponse(r), nil
}

func (s *Service) ListAssets(ctx context.Context, f AssetFilter, p Page) ([]AssetResponse, int64, error) {
	for _, st := range f.Statuses {
		if !ValidStatus(st) {
			return nil, 0, ErrInvalid(fmt.Sprintf("unknown status: %s", st))
		}
	}
	items, total, err := s.store.ListAssets(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]AssetResponse, 0, len(items))
	for i := range items {
		out = append(out, buildAssetResponse(&items[i]))
	}
	return out, total, nil
}

// UpdateAsset: assigned への遷移、また貸出中資産のステータス変更は拒否する。
// assigned/available の切り替えは貸出エンジンだけが行う。
func (s *Service) UpdateAsset(ctx context.Context, id int64, in UpdateAssetRequest) (AssetResponse, error) {
	cur, err := s.store.GetAssetByID(ctx, id)
	if err != nil {
		return AssetResponse{}, err
	}

	if in.Status != nil {
		st := *in.Status
		if !ValidStatus(st) {
			return AssetResponse{}, ErrInvalid(fmt.Sprintf("unknown status: %s", st))
		}
		if st == StatusAssigned {
			return AssetResponse{}, ErrInvalid("status 'assigned' is managed by the loan lifecycle")
		}
		if cur.Status == StatusAssigned {
			return AssetResponse{}, ErrConflict("asset is on an active loan")
		}
	}

	var purchaseDate any
	if in.PurchaseDate != nil && *in.PurchaseDate != "" {
		t, err := time.Parse(dateLayout, *in.PurchaseDate)
		if err != nil {
			return AssetResponse{}, ErrInvalid("invalid purchase_date format, expected YYYY-MM-DD")
		}
		purchaseDate = t
	}

	if _, err := s.store.UpdateAsset(ctx, id, in, purchaseDate); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case 1062:
				return AssetResponse{}, ErrConflict("asset_tag already exists")
			case 1452:
				return AssetResponse{}, ErrInvalid("invalid category_id")
			}
		}
		return AssetResponse{}, err
	}
	return s.GetAsset(ctx, id)
}

// DeleteAsset: 貸出履歴のある資産は消せない（FK RESTRICT）
func (s *Service) DeleteAsset(ctx context.Context, id int64) error {
	n, err := s.store.DeleteAsset(ctx, id)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1451 {
			return ErrConflict("asset is referenced by loans")
		}
		return err
	}
	if n == 0 {
		return ErrNotFound("asset not found")
	}
	return nil
}

// ---- helpers ----

func buildAssetResponse(r *assetRow) AssetResponse {
	resp := AssetResponse{
		AssetID:      r.AssetID,
		CategoryID:   r.CategoryID,
		CategoryName: r.CategoryName,
		Name:         r.Name,
		SerialNumber: r.SerialNumber,
		Status:       r.Status,
	}
	if r.AssetTag.Valid {
		v := r.AssetTag.String
		resp.AssetTag = &v
	}
	if r.PurchaseDate.Valid {
		v := r.PurchaseDate.Time.Format(dateLayout)
		resp.PurchaseDate = &v
	}
	if r.Notes.Valid {
		v := r.Notes.String
		resp.Notes = &v
	}
	return resp
}
