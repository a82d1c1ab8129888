package otpcodes

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/common"
	"github.com/dmitrijs2005/shopkeeper/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	fieldCodeHash  = "code_hash"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)

// RedisStore keeps each code in a hash that expires together with the code.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "otp:"}
}

func (s *RedisStore) key(email string) string {
	return s.prefix + email
}

func (s *RedisStore) Put(ctx context.Context, code *models.OTPCode) error {
	if !code.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("otp: expires_at must be in the future")
	}

	key := s.key(code.Email)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldCodeHash, code.CodeHash,
			fieldExpiresAt, code.ExpiresAt.UnixMilli(),
			fieldAttempts, 0,
		)
		pipe.PExpireAt(ctx, key, code.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, email string) (*models.OTPCode, error) {
	values, err := s.client.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(values) == 0 {
		return nil, common.ErrorNotFound
	}
	return decodeCode(email, values)
}

func decodeCode(email string, values map[string]string) (*models.OTPCode, error) {
	expiresAt, err := strconv.ParseInt(values[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp: bad %s: %w", fieldExpiresAt, err)
	}
	attempts, err := strconv.Atoi(values[fieldAttempts])
	if err != nil {
		return nil, fmt.Errorf("otp: bad %s: %w", fieldAttempts, err)
	}
	return &models.OTPCode{
		Email:     email,
		CodeHash:  []byte(values[fieldCodeHash]),
		ExpiresAt: time.UnixMilli(expiresAt),
		Attempts:  attempts,
	}, nil
}

// incrementIfExists never recreates a key that expired between calls.
var incrementIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
`)

func (s *RedisStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrementIfExists.Run(ctx, s.client, []string{s.key(email)}, fieldAttempts).Int()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	if n < 0 {
		return 0, common.ErrorNotFound
	}
	return n, nil
}

var deleteIfHashMatches = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisStore) Consume(ctx context.Context, email string, codeHash []byte) (bool, error) {
	n, err := deleteIfHashMatches.Run(ctx, s.client, []string{s.key(email)}, fieldCodeHash, codeHash).Int()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
