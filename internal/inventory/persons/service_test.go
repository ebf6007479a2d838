package persons

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

func ptr[T any](v T) *T { return &v }

func TestLinkAccountAlreadyLinkedElsewhere(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE persons SET user_id").
		WillReturnError(&mysql.MySQLError{Number: 1062})

	svc := NewService(db)
	_, err = svc.LinkAccount(context.Background(), 7, ptr("u1"))
	if codeOf(t, err) != CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestLinkAccountUnknownAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE persons SET user_id").
		WillReturnError(&mysql.MySQLError{Number: 1452})

	svc := NewService(db)
	_, err = svc.LinkAccount(context.Background(), 7, ptr("ghost"))
	if codeOf(t, err) != CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestCreateRequiresNames(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	svc := NewService(db)
	_, err = svc.Create(context.Background(), CreatePersonRequest{FirstName: " ", LastName: "Lovelace"})
	if codeOf(t, err) != CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestDeletePersonReferencedByLoans(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM persons").WithArgs(int64(7)).
		WillReturnError(&mysql.MySQLError{Number: 1451})

	svc := NewService(db)
	err = svc.Delete(context.Background(), 7)
	if codeOf(t, err) != CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestFullName(t *testing.T) {
	p := Person{FirstName: "Ada", LastName: "Lovelace"}
	if p.FullName() != "Ada Lovelace" {
		t.Fatalf("unexpected full name: %q", p.FullName())
	}
}
