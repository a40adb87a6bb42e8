package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmanankin/authvault/internal/common"
	"github.com/dmanankin/authvault/internal/server/models"
)

// RedisStore implements Store over Redis. Records live in hashes keyed by
// token digest, with a small id→key index for revocation by id. Atomicity
// of Rotate and Revoke comes from Lua scripts, which Redis executes without
// interleaving other commands.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore constructs a store bound to the given Redis client.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func tokenKey(hash string) string { return "refresh:token:" + hash }
func idKey(id string) string      { return "refresh:id:" + id }

// rotateScript flips the old record revoked and writes the replacement in
// one atomic step. Returns 0 when the old record is missing or already
// revoked (the caller lost the rotation race).
var rotateScript = redis.NewScript(`
local revoked = redis.call('HGET', KEYS[1], 'revoked')
if not revoked or revoked == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'revoked', '1')
redis.call('HSET', KEYS[2], 'id', ARGV[1], 'user_id', ARGV[2], 'issued_at', ARGV[3], 'expires_at', ARGV[4], 'revoked', '0')
redis.call('PEXPIRE', KEYS[2], ARGV[5])
redis.call('SET', KEYS[3], KEYS[2], 'PX', ARGV[5])
return 1
`)

// revokeScript marks the record behind an id index revoked. A missing index
// or record is a no-op, keeping Revoke idempotent.
var revokeScript = redis.NewScript(`
local key = redis.call('GET', KEYS[1])
if not key then
  return 0
end
if redis.call('EXISTS', key) == 1 then
  redis.call('HSET', key, 'revoked', '1')
end
return 1
`)

// Create stores a new unrevoked token hash with a TTL of validity, plus the
// id index entry. Expired records disappear on their own, which doubles as
// the cleanup process.
func (s *RedisStore) Create(ctx context.Context, userID string, validity time.Duration) (*models.RefreshToken, error) {
	value, err := newTokenValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(validity),
	}

	key := tokenKey(hashToken(value))
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"id", token.ID,
		"user_id", userID,
		"issued_at", strconv.FormatInt(token.IssuedAt.Unix(), 10),
		"expires_at", strconv.FormatInt(token.ExpiresAt.Unix(), 10),
		"revoked", "0",
	)
	pipe.PExpire(ctx, key, validity)
	pipe.Set(ctx, idKey(token.ID), key, validity)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return token, nil
}

// Find returns the record for the given raw value, or common.ErrorNotFound.
func (s *RedisStore) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	fields, err := s.rdb.HGetAll(ctx, tokenKey(hashToken(token))).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}
	return decodeRecord(fields)
}

// Revoke marks the record with the given id revoked. Idempotent.
func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	if err := revokeScript.Run(ctx, s.rdb, []string{idKey(id)}).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// Rotate atomically revokes the record for token and creates a replacement
// for userID. Losers of the race get common.ErrTokenReused.
func (s *RedisStore) Rotate(ctx context.Context, token string, userID string, validity time.Duration) (*models.RefreshToken, error) {
	value, err := newTokenValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	created := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(validity),
	}

	keys := []string{
		tokenKey(hashToken(token)),
		tokenKey(hashToken(value)),
		idKey(created.ID),
	}
	res, err := rotateScript.Run(ctx, s.rdb, keys,
		created.ID,
		userID,
		strconv.FormatInt(created.IssuedAt.Unix(), 10),
		strconv.FormatInt(created.ExpiresAt.Unix(), 10),
		validity.Milliseconds(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if res == 0 {
		return nil, common.ErrTokenReused
	}
	return created, nil
}

func decodeRecord(fields map[string]string) (*models.RefreshToken, error) {
	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, errors.New("corrupt refresh token record")
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, errors.New("corrupt refresh token record")
	}
	return &models.RefreshToken{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		IssuedAt:  time.Unix(issued, 0),
		ExpiresAt: time.Unix(expires, 0),
		Revoked:   fields["revoked"] == "1",
	}, nil
}
