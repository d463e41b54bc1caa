package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a minimal byte-value cache with per-entry TTL. Three instances are
// wired into the engine: a shared edge cache (categories), a durable cache
// (auto-recruit aggregate) and a process-local hot cache (member lists,
// resolved permissions). Values are JSON-encoded by callers.
//
// A Cache is always an optimization: callers must treat any error, including
// ErrMiss, as a miss and fall through to the repository.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key builders. Keeping these in one place keeps invalidation call sites and
// read call sites in agreement.

func GroupMembersKey(groupID string) string {
	return fmt.Sprintf("group:%s:member_ids", groupID)
}

func UserPermissionsKey(userID string) string {
	return fmt.Sprintf("user:%s:permissions", userID)
}

func CategoryListKey() string {
	return "categories:all"
}

func AutoRecruitGroupsKey() string {
	return "groups:auto_recruit"
}

// IsMiss reports whether err is an ordinary cache miss rather than a backend
// failure. Both degrade to a repository read; the distinction only matters
// for logging.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
