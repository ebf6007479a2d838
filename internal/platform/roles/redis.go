package roles

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const registryKey = "role:groups"

func groupKey(name Role) string { return fmt.Sprintf("role:group:%s", name) }

// RedisGroups はロールグループの所属をRedisのSetで持つ。
type RedisGroups struct {
	rdb *redis.Client
}

func NewRedisGroups(rdb *redis.Client) *RedisGroups { return &RedisGroups{rdb: rdb} }

// EnsureGroups は正規グループを登録する。何度呼んでも結果は同じ。
func (s *RedisGroups) EnsureGroups(ctx context.Context) error {
	members := make([]any, 0, len(Names))
	for _, n := range Names {
		members = append(members, string(n))
	}
	return s.rdb.SAdd(ctx, registryKey, members...).Err()
}

func (s *RedisGroups) IsMember(ctx context.Context, group Role, accountID string) (bool, error) {
	return s.rdb.SIsMember(ctx, groupKey(group), accountID).Result()
}

func (s *RedisGroups) AddMember(ctx context.Context, group Role, accountID string) error {
	if !Valid(group) {
		return fmt.Errorf("unknown role group: %s", group)
	}
	return s.rdb.SAdd(ctx, groupKey(group), accountID).Err()
}

func (s *RedisGroups) RemoveMember(ctx context.Context, group Role, accountID string) error {
	return s.rdb.SRem(ctx, groupKey(group), accountID).Err()
}
