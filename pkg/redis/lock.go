package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`

// Lock is a SET NX lock with a TTL. A key acquired by this Lock is only
// released by it, so an expired lock taken over by another holder survives
// a late Release.
type Lock struct {
	client   redis.Cmdable
	newToken func() string

	mu     sync.Mutex
	tokens map[string]string
}

func NewLock(client redis.Cmdable) *Lock {
	return &Lock{
		client:   client,
		newToken: func() string { return uuid.NewString() },
		tokens:   make(map[string]string),
	}
}

// Acquire takes key for ttl. It returns false when someone else holds it.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return false, err
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Release frees key if this Lock still holds it
func (l *Lock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return l.client.Eval(ctx, releaseScript, []string{key}, token).Err()
}
