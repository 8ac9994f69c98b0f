package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport or server failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when a session key does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// ErrCorrupt is returned when the stored identity blob cannot be decoded.
// The key is removed before the error is returned.
var ErrCorrupt = errors.New("session corrupt")

const setIfExistsScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`

var setIfExistsLua = redis.NewScript(setIfExistsScript)

const compareAndDeleteScript = `
local current = redis.call("HGET", KEYS[1], ARGV[1])
if current and current == ARGV[2] then
  redis.call("HDEL", KEYS[1], ARGV[1])
  return 1
end
return 0
`

var compareAndDeleteLua = redis.NewScript(compareAndDeleteScript)

// Store is a Redis-backed session store. Each session is one hash whose TTL
// is the inactivity window; reads slide the TTL forward when sliding is on.
type Store struct {
	redis            redis.UniversalClient
	prefix           string
	sliding          bool
	absoluteLifetime time.Duration
}

// NewStore creates a session [Store]. prefix sets the key namespace;
// absoluteLifetime caps an authenticated session regardless of activity
// (zero disables the cap).
func NewStore(rdb redis.UniversalClient, prefix string, sliding bool, absoluteLifetime time.Duration) *Store {
	return &Store{
		redis:            rdb,
		prefix:           prefix,
		sliding:          sliding,
		absoluteLifetime: absoluteLifetime,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Create writes an empty anonymous session.
//
//	Performance: 1 MULTI/EXEC (HSET + EXPIRE).
func (s *Store) Create(ctx context.Context, sessionID string, ttl time.Duration) error {
	key := s.key(sessionID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldCreated, time.Now().Unix())
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Establish binds id to a fresh session key and removes priorID in the same
// transaction. Either both happen or neither does.
//
//	Performance: 1 MULTI/EXEC (DEL + HSET + EXPIRE).
func (s *Store) Establish(ctx context.Context, priorID, sessionID string, id *Identity) error {
	data, err := Encode(id)
	if err != nil {
		return err
	}

	ttl := s.capTTL(id, id.IdleTTL, time.Now())
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	key := s.key(sessionID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if priorID != "" && priorID != sessionID {
			pipe.Del(ctx, s.key(priorID))
		}
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldIdentity, data, fieldCreated, id.EstablishedAt)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load reads the whole session and, when sliding is enabled, pushes its
// expiry forward. anonTTL is the window for sessions without an identity.
//
//	Performance: 1 HGETALL + 1 EXPIRE.
func (s *Store) Load(ctx context.Context, sessionID string, anonTTL time.Duration) (*State, error) {
	key := s.key(sessionID)

	vals, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}

	state := &State{
		SessionID:    sessionID,
		ForgeryToken: vals[fieldCSRF],
		Flash:        vals[fieldFlash],
		Next:         vals[fieldNext],
	}
	if c, ok := vals[fieldCreated]; ok {
		state.CreatedAt, _ = strconv.ParseInt(c, 10, 64)
	}

	ttl := anonTTL
	if blob, ok := vals[fieldIdentity]; ok {
		id, decErr := Decode([]byte(blob))
		if decErr != nil {
			if err := s.Delete(ctx, sessionID); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, decErr)
		}
		state.Identity = id
		ttl = s.capTTL(id, id.IdleTTL, time.Now())
		if ttl <= 0 {
			if err := s.Delete(ctx, sessionID); err != nil {
				return nil, err
			}
			return nil, ErrNotFound
		}
	}

	if s.sliding && ttl > 0 {
		if err := s.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return state, nil
}

// Set writes field only if the session still exists. It reports whether the
// write happened.
func (s *Store) Set(ctx context.Context, sessionID string, field Field, value string) (bool, error) {
	res, err := setIfExistsLua.Run(ctx, s.redis, []string{s.key(sessionID)}, string(field), value).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

// Get returns field, or "" when either the session or the field is absent.
func (s *Store) Get(ctx context.Context, sessionID string, field Field) (string, error) {
	v, err := s.redis.HGet(ctx, s.key(sessionID), string(field)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return v, nil
}

// Pop returns field and removes it in one transaction.
//
//	Performance: 1 MULTI/EXEC (HGET + HDEL).
func (s *Store) Pop(ctx context.Context, sessionID string, field Field) (string, error) {
	key := s.key(sessionID)

	var get *redis.StringCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, key, string(field))
		pipe.HDel(ctx, key, string(field))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	v, err := get.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return v, nil
}

// CompareAndDelete removes field only if it still holds expected. Callers
// compare secrets themselves in constant time; this guards against a
// concurrent rotation between their read and the delete.
func (s *Store) CompareAndDelete(ctx context.Context, sessionID string, field Field, expected string) (bool, error) {
	res, err := compareAndDeleteLua.Run(ctx, s.redis, []string{s.key(sessionID)}, string(field), expected).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) capTTL(id *Identity, ttl time.Duration, now time.Time) time.Duration {
	if s.absoluteLifetime <= 0 {
		return ttl
	}
	remaining := time.Unix(id.EstablishedAt, 0).Add(s.absoluteLifetime).Sub(now)
	if remaining < ttl {
		return remaining
	}
	return ttl
}
