package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - account:{account_id}:credits - short TTL, role and balance for the credit check

const DefaultAccountTTL = 30 * time.Second

// AccountCache is the cached part of an account used by the credit check.
type AccountCache struct {
	AccountID string    `json:"account_id"`
	Role      string    `json:"role"`
	Balance   int64     `json:"balance"`
	CachedAt  time.Time `json:"cached_at"`
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client     *goredis.Client
	accountTTL time.Duration
}

func NewCacheStore(client *goredis.Client, accountTTL time.Duration) *CacheStore {
	if accountTTL <= 0 {
		accountTTL = DefaultAccountTTL
	}
	return &CacheStore{client: client, accountTTL: accountTTL}
}

func accountKey(accountID string) string {
	return fmt.Sprintf("account:%s:credits", accountID)
}

// GetAccount returns nil without error on a cache miss.
func (c *CacheStore) GetAccount(ctx context.Context, accountID string) (*AccountCache, error) {
	data, err := c.client.Get(ctx, accountKey(accountID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a AccountCache
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *CacheStore) SetAccount(ctx context.Context, a *AccountCache) error {
	if a.CachedAt.IsZero() {
		a.CachedAt = time.Now().UTC()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, accountKey(a.AccountID), data, c.accountTTL).Err()
}

// InvalidateAccount drops the cached credits so the next check reads the database.
func (c *CacheStore) InvalidateAccount(ctx context.Context, accountID string) error {
	return c.client.Del(ctx, accountKey(accountID)).Err()
}

func (c *CacheStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
