package loans

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ALMS-backend/internal/platform/auth"
	"ALMS-backend/internal/platform/roles"
)

func newTestRouter(t *testing.T, actorID string, role roles.Role) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, actorID)
		c.Set(auth.CtxRoleKey, string(role))
	})
	RegisterRoutes(r, newTestService(db))
	return r, mock
}

func TestHandlerCreateRejectsInvalidJSON(t *testing.T) {
	r, _ := newTestRouter(t, "admin1", roles.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(`{"asset_id":`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body errorDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeInvalidArgument, body.Error.Code)
}

func TestHandlerReturnRejectsBadID(t *testing.T) {
	r, _ := newTestRouter(t, "admin1", roles.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/loans/abc/return", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerListReturnsLoans(t *testing.T) {
	r, mock := newTestRouter(t, "admin1", roles.RoleAdmin)

	mock.ExpectQuery("FROM loans l").WillReturnRows(officeLoanRows(5, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/loans", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var items []LoanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].LoanID)
	assert.Equal(t, "office", items[0].Target.Type)
	assert.Equal(t, "Berlin", items[0].Target.Label)
}

func TestHandlerGetMapsNotFoundToStatus(t *testing.T) {
	r, mock := newTestRouter(t, "admin1", roles.RoleAdmin)

	mock.ExpectQuery("FROM loans l").WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(loanColumns))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/loans/42", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body errorDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeNotFound, body.Error.Code)
}

func TestHandlerTargetKindsForRole(t *testing.T) {
	r, _ := newTestRouter(t, "c1", roles.RoleCompany)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/loans/target-kinds", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		TargetKinds []TargetKind `json:"target_kinds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []TargetKind{KindOffice, KindPosition}, body.TargetKinds)
}

func TestHandlerCreateRejectsUnknownTargetType(t *testing.T) {
	r, mock := newTestRouter(t, "admin1", roles.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/loans",
		strings.NewReader(`{"target_type":"room","asset_id":1,"loan_date":"2026-03-02"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// DBに触れる前に弾く
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body errorDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeInvalidArgument, body.Error.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerExportWritesCSV(t *testing.T) {
	r, mock := newTestRouter(t, "admin1", roles.RoleAdmin)

	mock.ExpectQuery("FROM loans l").WillReturnRows(officeLoanRows(5, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/loans/export", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "loans.csv")
	assert.Contains(t, w.Body.String(), "loan_id,loan_ulid")
	assert.Contains(t, w.Body.String(), "Berlin")
}

func TestHandlerExportUnknownEncodingIsJSONError(t *testing.T) {
	r, mock := newTestRouter(t, "admin1", roles.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/loans/export?encoding=ebcdic", nil)
	r.ServeHTTP(w, req)

	// CSVヘッダを出す前に失敗するので、素のJSONエラーが返る
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Empty(t, w.Header().Get("Content-Disposition"))

	var body errorDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeInvalidArgument, body.Error.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
