package roles

import (
	"context"
)

// Role はアクターに割り当てる権限区分。必ずどれか1つに解決される。
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleCompany  Role = "company"
)

// グループ照合の優先順。最初に一致したものを採用する。
var Names = []Role{RoleAdmin, RoleEmployee, RoleCompany}

func Valid(r Role) bool {
	for _, n := range Names {
		if n == r {
			return true
		}
	}
	return false
}

// GroupStore はロールグループの所属情報を持つKVストア。
type GroupStore interface {
	EnsureGroups(ctx context.Context) error
	IsMember(ctx context.Context, group Role, accountID string) (bool, error)
	AddMember(ctx context.Context, group Role, accountID string) error
	RemoveMember(ctx context.Context, group Role, accountID string) error
}

// AdminChecker はアカウント側の管理者フラグを参照する。
// グループ所属より優先される。
type AdminChecker interface {
	IsAdmin(ctx context.Context, accountID string) (bool, error)
}

type Resolver struct {
	groups GroupStore
	admin  AdminChecker
}

func NewResolver(groups GroupStore, admin AdminChecker) *Resolver {
	return &Resolver{groups: groups, admin: admin}
}

// Resolve はアクターをちょうど1つのロールへ解決する。
//   - 管理者フラグ → admin
//   - グループ所属 → 最初に一致したグループ
//   - どれでもない → employee（最小権限）
func (r *Resolver) Resolve(ctx context.Context, accountID string) (Role, error) {
	if accountID == "" {
		return RoleEmployee, nil
	}

	isAdmin, err := r.admin.IsAdmin(ctx, accountID)
	if err != nil {
		return "", err
	}
	if isAdmin {
		return RoleAdmin, nil
	}

	for _, name := range Names {
		ok, err := r.groups.IsMember(ctx, name, accountID)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	return RoleEmployee, nil
}
