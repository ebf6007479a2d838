package assets

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysql "github.com/go-sql-driver/mysql"
)

var assetColumns = []string{
	"asset_id", "category_id", "name", "serial_number", "asset_tag", "status", "purchase_date", "notes", "category_name",
}

func assetRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows(assetColumns).
		AddRow(int64(1), int64(2), "ThinkPad X1", "SN-001", nil, status, nil, nil, "Laptop")
}

func codeOf(t *testing.T, err error) Code {
	t.Helper()
	var api *APIError
	if !errors.As(err, &api) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	return api.Code
}

func ptr[T any](v T) *T { return &v }

func TestUpdateAssetRejectsAssignedStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM assets a").WithArgs(int64(1)).WillReturnRows(assetRows(StatusAvailable))

	svc := NewService(db)
	_, err = svc.UpdateAsset(context.Background(), 1, UpdateAssetRequest{Status: ptr(StatusAssigned)})
	if codeOf(t, err) != CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestUpdateAssetOnActiveLoanIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM assets a").WithArgs(int64(1)).WillReturnRows(assetRows(StatusAssigned))

	svc := NewService(db)
	_, err = svc.UpdateAsset(context.Background(), 1, UpdateAssetRequest{Status: ptr(StatusRetired)})
	if codeOf(t, err) != CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestDeleteAssetReferencedByLoans(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM assets").WithArgs(int64(1)).
		WillReturnError(&mysql.MySQLError{Number: 1451})

	svc := NewService(db)
	err = svc.DeleteAsset(context.Background(), 1)
	if codeOf(t, err) != CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO asset_categories").WithArgs("Laptop").
		WillReturnError(&mysql.MySQLError{Number: 1062})

	svc := NewService(db)
	_, err = svc.CreateCategory(context.Background(), CreateCategoryRequest{Name: "Laptop"})
	if codeOf(t, err) != CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestListAssetsRejectsUnknownStatus(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	svc := NewService(db)
	_, _, err = svc.ListAssets(context.Background(), AssetFilter{Statuses: []string{"broken"}}, Page{})
	if codeOf(t, err) != CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestCreateAssetValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	svc := NewService(db)
	_, err = svc.CreateAsset(context.Background(), CreateAssetRequest{CategoryID: 1, Name: "  ", SerialNumber: "SN"})
	if codeOf(t, err) != CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}
