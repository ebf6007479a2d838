package loans

import (
	"context"
	"crypto/rand"
	"database/sql"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"ALMS-backend/internal/platform/csvenc"
	"ALMS-backend/internal/platform/obs"
	"ALMS-backend/internal/platform/roles"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ===== Service本体 =====

type Service struct {
	db    *sql.DB
	store *Store
	clock Clock
	id    IDGen
}

func NewService(db *sql.DB) *Service {
	return &Service{
		db:    db,
		store: NewStore(db),
		clock: realClock{},
		id:    ulidGen{},
	}
}

const dateLayout = "2006-01-02"

// 貸出作成。日付の検証 → ロール別戦略による貸出先の解決 →
// Tx内での再チェック付き永続化、の順で進む。検証に落ちた場合は
// 何も書き込まれない。
func (s *Service) CreateLoan(ctx context.Context, actorID string, role roles.Role, req CreateLoanRequest) (LoanResponse, error) {
	loanDate, dueDate, err := s.parseDates(req)
	if err != nil {
		return LoanResponse{}, err
	}

	strategy := strategyFor(role)
	binding, err := strategy.ValidateAndBind(ctx, s.store.Catalog(), actorID, req)
	if err != nil {
		return LoanResponse{}, err
	}

	id, err := s.id.New()
	if err != nil {
		return LoanResponse{}, err
	}

	l := &Loan{
		LoanULID:  id,
		AssetID:   req.AssetID,
		LoanDate:  loanDate,
		CreatedAt: s.clock.Now(),
	}
	if actorID != "" {
		l.CreatedBy = sql.NullString{String: actorID, Valid: true}
	}
	if dueDate != nil {
		l.DueDate = sql.NullTime{Time: *dueDate, Valid: true}
	}
	if req.IssuedBy != nil && *req.IssuedBy != "" {
		l.IssuedBy = sql.NullString{String: *req.IssuedBy, Valid: true}
	}

	if err := s.store.CreateLoan(ctx, l, binding); err != nil {
		return LoanResponse{}, err
	}

	obs.LoansCreatedTotal.Inc()
	log.Printf("[INFO] loan created: id=%d ulid=%s asset=%d target=%s by=%s",
		l.LoanID, l.LoanULID, l.AssetID, binding.Kind, actorID)

	lr, err := s.store.GetLoanByID(ctx, l.LoanID, actorID, true)
	if err != nil {
		return LoanResponse{}, err
	}
	return buildLoanResponse(lr), nil
}

func (s *Service) parseDates(req CreateLoanRequest) (time.Time, *time.Time, error) {
	loanDate, err := time.Parse(dateLayout, req.LoanDate)
	if err != nil {
		return time.Time{}, nil, ErrInvalid("loan_date must be YYYY-MM-DD")
	}
	today := dateOnly(s.clock.Now())
	if loanDate.Before(today) {
		return time.Time{}, nil, ErrInvalid("loan_date must not be in the past")
	}
	if req.DueDate == nil || *req.DueDate == "" {
		return loanDate, nil, nil
	}
	dueDate, err := time.Parse(dateLayout, *req.DueDate)
	if err != nil {
		return time.Time{}, nil, ErrInvalid("due_date must be YYYY-MM-DD")
	}
	if dueDate.Before(loanDate) {
		return time.Time{}, nil, ErrInvalid("due_date must be on or after loan_date")
	}
	return loanDate, &dueDate, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// 返却。adminは全件、それ以外は自分が作成したか本人リンクの
// 貸出のみ返却できる。2度目の呼び出しは ALREADY_RETURNED。
func (s *Service) ReturnLoan(ctx context.Context, actorID string, role roles.Role, loanID int64) (LoanResponse, error) {
	isAdmin := role == roles.RoleAdmin
	today := dateOnly(s.clock.Now())

	if err := s.store.ReturnLoan(ctx, loanID, actorID, isAdmin, today); err != nil {
		return LoanResponse{}, err
	}

	obs.LoansReturnedTotal.Inc()
	log.Printf("[INFO] loan returned: id=%d by=%s", loanID, actorID)

	lr, err := s.store.GetLoanByID(ctx, loanID, actorID, true)
	if err != nil {
		return LoanResponse{}, err
	}
	return buildLoanResponse(lr), nil
}

func (s *Service) Get(ctx context.Context, actorID string, role roles.Role, loanID int64) (LoanResponse, error) {
	lr, err := s.store.GetLoanByID(ctx, loanID, actorID, role == roles.RoleAdmin)
	if err != nil {
		return LoanResponse{}, err
	}
	return buildLoanResponse(lr), nil
}

func (s *Service) List(ctx context.Context, actorID string, role roles.Role, f ListFilter) ([]LoanResponse, error) {
	if f.Sort != "" {
		if _, ok := sortColumns[f.Sort]; !ok {
			return nil, ErrInvalid("sort must be one of id, loan_date, due_date")
		}
	}
	if f.Direction != "" && !strings.EqualFold(f.Direction, "asc") && !strings.EqualFold(f.Direction, "desc") {
		return nil, ErrInvalid("direction must be asc or desc")
	}

	items, err := s.store.ListLoans(ctx, actorID, role == roles.RoleAdmin, f)
	if err != nil {
		return nil, err
	}
	out := make([]LoanResponse, 0, len(items))
	for i := range items {
		out = append(out, buildLoanResponse(&items[i]))
	}
	return out, nil
}

// AllowedTargetKinds はロールが選べる貸出先種別。
// フォーム側の選択肢の出し分けに使う。
func (s *Service) AllowedTargetKinds(role roles.Role) []TargetKind {
	return strategyFor(role).AllowedTargetKinds()
}

// ExportCSV は可視範囲の貸出をCSVで書き出す。encoding に cp932 を
// 指定するとExcel向けの Shift_JIS になる。
func (s *Service) ExportCSV(ctx context.Context, actorID string, role roles.Role, f ListFilter, w io.Writer, encoding string) error {
	cw, err := csvenc.NewWriter(w, encoding)
	if err != nil {
		return ErrInvalid(err.Error())
	}

	items, err := s.List(ctx, actorID, role, f)
	if err != nil {
		return err
	}

	header := []string{"loan_id", "loan_ulid", "asset_name", "serial_number",
		"target_type", "target_label", "office", "desk", "department",
		"loan_date", "due_date", "return_date", "issued_by"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, it := range items {
		rec := []string{
			strconv.FormatInt(it.LoanID, 10),
			it.LoanULID,
			it.AssetName,
			it.Serial,
			it.Target.Type,
			it.TargetLabel,
			it.OfficeLabel,
			it.DeskLabel,
			it.DepartmentLabel,
			it.LoanDate,
			strOrDash(it.DueDate),
			strOrDash(it.ReturnDate),
			strOrDash(it.IssuedBy),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func strOrDash(p *string) string {
	if p == nil || *p == "" {
		return "-"
	}
	return *p
}

// ===== 表示用ラベルの組み立て =====

const noLabel = "-"

func buildLoanResponse(lr *loanRow) LoanResponse {
	res := LoanResponse{
		LoanID:    lr.LoanID,
		LoanULID:  lr.LoanULID,
		AssetID:   lr.AssetID,
		AssetName: lr.AssetName,
		Serial:    lr.Serial,
		LoanDate:  lr.LoanDate.Format(dateLayout),
		CreatedAt: lr.CreatedAt.Format(time.RFC3339),
	}
	if lr.CreatedBy.Valid {
		res.CreatedBy = &lr.CreatedBy.String
	}
	if lr.PersonID.Valid {
		res.PersonID = &lr.PersonID.Int64
	}
	if lr.DeskID.Valid {
		res.DeskID = &lr.DeskID.Int64
	}
	if lr.OfficeID.Valid {
		res.OfficeID = &lr.OfficeID.Int64
	}
	if lr.PositionID.Valid {
		res.PositionID = &lr.PositionID.Int64
	}
	if lr.DueDate.Valid {
		d := lr.DueDate.Time.Format(dateLayout)
		res.DueDate = &d
	}
	if lr.ReturnDate.Valid {
		d := lr.ReturnDate.Time.Format(dateLayout)
		res.ReturnDate = &d
	}
	if lr.IssuedBy.Valid {
		res.IssuedBy = &lr.IssuedBy.String
	}

	res.DeskLabel = deskLabel(lr)
	res.OfficeLabel = officeLabel(lr)
	res.DepartmentLabel = noLabel
	if lr.Department.Valid && lr.Department.String != "" {
		res.DepartmentLabel = lr.Department.String
	}

	kind := lr.Kind()
	res.TargetLabel = targetLabel(lr, kind)
	res.Target = TargetDTO{Type: string(kind), Label: res.TargetLabel}
	return res
}

// "Office / Room / Code" 形式。desk の無い貸出は "-"。
func deskLabel(lr *loanRow) string {
	if !lr.DeskID.Valid {
		return noLabel
	}
	parts := []string{lr.DeskOfficeName.String, lr.DeskRoomName.String, lr.DeskCode.String}
	return strings.Join(parts, " / ")
}

// office ターゲットの貸出はその事業所名、desk 経由の貸出は
// desk の属する事業所名を出す。
func officeLabel(lr *loanRow) string {
	if lr.OfficeName.Valid {
		return lr.OfficeName.String
	}
	if lr.DeskID.Valid && lr.DeskOfficeName.Valid {
		return lr.DeskOfficeName.String
	}
	return noLabel
}

func targetLabel(lr *loanRow, kind TargetKind) string {
	switch kind {
	case KindPerson:
		name := strings.TrimSpace(lr.PersonFirstName.String + " " + lr.PersonLastName.String)
		if name == "" {
			return noLabel
		}
		return name
	case KindDesk:
		return deskLabel(lr)
	case KindOffice:
		if lr.OfficeName.Valid {
			return lr.OfficeName.String
		}
		return noLabel
	case KindPosition:
		if lr.PositionDeptName.Valid && lr.PositionNumber.Valid {
			return lr.PositionDeptName.String + " #" + strconv.FormatInt(lr.PositionNumber.Int64, 10)
		}
		return noLabel
	}
	return noLabel
}
