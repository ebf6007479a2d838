package departments

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysql "github.com/go-sql-driver/mysql"
)

func codeOf(t *testing.T, err error) Code {
	t.Helper()
	var api *APIError
	if !errors.As(err, &api) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	return api.Code
}

func TestEnsureDefaultCreatesDepartmentAndPositions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT department_id FROM departments").WithArgs("General").
		WillReturnRows(sqlmock.NewRows([]string{"department_id"}))
	mock.ExpectExec("INSERT INTO departments").WithArgs("General").
		WillReturnResult(sqlmock.NewResult(1, 1))
	for n := 1; n <= 5; n++ {
		mock.ExpectExec("INSERT IGNORE INTO department_positions").WithArgs(int64(1), n).
			WillReturnResult(sqlmock.NewResult(int64(n), 1))
	}
	mock.ExpectCommit()

	svc := NewService(db)
	if err := svc.EnsureDefault(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureDefaultIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	// 2回目の起動: 部門は既にあり、席は INSERT IGNORE が0行で流れる
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT department_id FROM departments").WithArgs("General").
		WillReturnRows(sqlmock.NewRows([]string{"department_id"}).AddRow(int64(1)))
	for n := 1; n <= 5; n++ {
		mock.ExpectExec("INSERT IGNORE INTO department_positions").WithArgs(int64(1), n).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	svc := NewService(db)
	if err := svc.EnsureDefault(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateDepartmentDuplicateName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO departments").WithArgs("IT").
		WillReturnError(&mysql.MySQLError{Number: 1062})

	svc := NewService(db)
	_, err = svc.CreateDepartment(context.Background(), CreateDepartmentRequest{Name: "IT"})
	if codeOf(t, err) != CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestPositionLabel(t *testing.T) {
	p := &positionRow{
		DepartmentPosition: DepartmentPosition{PositionID: 3, DepartmentID: 1, Number: 3},
		DepartmentName:     "IT",
	}
	res := buildPositionResponse(p)
	if res.Label != "IT #3" {
		t.Fatalf("unexpected label: %q", res.Label)
	}
}
