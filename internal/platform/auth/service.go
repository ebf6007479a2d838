package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ALMS-backend/internal/platform/roles"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrAuthFailed    = errors.New("authentication failed")
)

type Service struct {
	store  AccountStore
	groups roles.GroupStore
	secret []byte
	ttl    time.Duration
}

func NewService(db *sql.DB, groups roles.GroupStore, secret string, ttl time.Duration) *Service {
	return &Service{
		store:  NewStore(db),
		groups: groups,
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Secret はミドルウェア設定用
func (s *Service) Secret() []byte { return s.secret }

// AdminChecker はロール解決に渡すアカウント側フラグの参照。
func (s *Service) AdminChecker() roles.AdminChecker { return s.store }

func (s *Service) Login(ctx context.Context, id, password string) (string, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrAuthFailed
	}
	if acct.IsDisabled {
		return "", errors.New("account disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthFailed
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": acct.ID,
		"exp": time.Now().Add(s.ttl).Unix(),
	})

	return token.SignedString(s.secret)
}

// Register はアカウントを作成し、指定があればロールグループへ登録する。
// ロール自体はトークンに焼かず、リクエストごとに解決する。
func (s *Service) Register(ctx context.Context, id, password, email string, group roles.Role) error {
	exists, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if exists != nil {
		return ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	a := &Account{
		ID:           id,
		PasswordHash: string(hash),
	}
	if e := strings.TrimSpace(email); e != "" {
		a.Email = sql.NullString{String: e, Valid: true}
	}
	if err := s.store.Create(ctx, a); err != nil {
		return err
	}

	if group != "" {
		if err := s.groups.AddMember(ctx, group, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	// グループ所属も掃除する（残っても解決結果には実害なし）
	for _, g := range roles.Names {
		_ = s.groups.RemoveMember(ctx, g, id)
	}
	return nil
}

func (s *Service) SetDisabled(ctx context.Context, id string, disabled bool) error {
	n, err := s.store.SetDisabled(ctx, id, disabled)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignGroup はアカウントを指定グループへ付け替える。
func (s *Service) AssignGroup(ctx context.Context, id string, group roles.Role) error {
	if !roles.Valid(group) {
		return errors.New("unknown role group")
	}
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrNotFound
	}
	for _, g := range roles.Names {
		if g == group {
			continue
		}
		if err := s.groups.RemoveMember(ctx, g, id); err != nil {
			return err
		}
	}
	return s.groups.AddMember(ctx, group, id)
}
