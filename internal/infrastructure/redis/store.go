// Package redis holds a Redis-backed Pending-Registration Store for
// deployments that run more than one API instance.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-email-verify/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// consumeScript performs lookup, expiry check and removal in one server-side
// step. Replies: {0} missing, {1} expired (key deleted), {2} mismatch,
// {3, record} consumed.
var consumeScript = goredis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return {0}
end
local rec = cjson.decode(raw)
if tonumber(rec.issued_at_ms) < tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return {1}
end
if rec.code ~= ARGV[1] then
  return {2}
end
redis.call('DEL', KEYS[1])
return {3, raw}
`)

const (
	replyMissing  = 0
	replyExpired  = 1
	replyMismatch = 2
	replyConsumed = 3
)

// record is the JSON value stored under each key.
type record struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Nickname   string `json:"nickname"`
	Password   string `json:"password"`
	Code       string `json:"code"`
	IssuedAtMS int64  `json:"issued_at_ms"`
}

// Store keeps one key per email. Keys outlive the validity window by
// retention so a late attempt still reports "expired". Once TTL plus
// retention has passed, Redis drops the key and the email reads as
// "not found", unlike the memory store which reports "expired" until a
// sweep runs.
type Store struct {
	client    goredis.UniversalClient
	prefix    string
	ttl       time.Duration
	retention time.Duration
}

// Options configures a Store.
type Options struct {
	Prefix    string
	TTL       time.Duration
	Retention time.Duration // defaults to TTL
}

func NewStore(client goredis.UniversalClient, opts Options) *Store {
	if opts.Retention <= 0 {
		opts.Retention = opts.TTL
	}
	return &Store{client: client, prefix: opts.Prefix, ttl: opts.TTL, retention: opts.Retention}
}

// NewClient connects to addr and verifies the connection with PING.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *Store) key(email string) string {
	if s.prefix == "" {
		return "pending:" + email
	}
	return s.prefix + ":pending:" + email
}

// Put overwrites the key for reg.Email.
func (s *Store) Put(ctx context.Context, reg *domain.PendingRegistration) error {
	raw, err := encode(reg)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(reg.Email), raw, s.ttl+s.retention).Err(); err != nil {
		return fmt.Errorf("redis set pending registration: %w", err)
	}
	return nil
}

// TryConsume runs the consume script against the key for email.
func (s *Store) TryConsume(ctx context.Context, email, code string, now time.Time) (*domain.PendingRegistration, error) {
	cutoff := now.Add(-s.ttl).UnixMilli()
	reply, err := consumeScript.Run(ctx, s.client, []string{s.key(email)}, code, cutoff).Slice()
	if err != nil {
		return nil, fmt.Errorf("redis consume pending registration: %w", err)
	}
	return parseReply(reply)
}

func encode(reg *domain.PendingRegistration) (string, error) {
	b, err := json.Marshal(record{
		ID:         reg.ID,
		Email:      reg.Email,
		Nickname:   reg.Nickname,
		Password:   reg.Password,
		Code:       reg.Code,
		IssuedAtMS: reg.IssuedAt.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("encode pending registration: %w", err)
	}
	return string(b), nil
}

func decode(raw string) (*domain.PendingRegistration, error) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode pending registration: %w", err)
	}
	return &domain.PendingRegistration{
		ID:       rec.ID,
		Email:    rec.Email,
		Nickname: rec.Nickname,
		Password: rec.Password,
		Code:     rec.Code,
		IssuedAt: time.UnixMilli(rec.IssuedAtMS).UTC(),
	}, nil
}

func parseReply(reply []interface{}) (*domain.PendingRegistration, error) {
	if len(reply) == 0 {
		return nil, fmt.Errorf("redis consume: empty reply")
	}
	status, ok := reply[0].(int64)
	if !ok {
		return nil, fmt.Errorf("redis consume: unexpected status %T", reply[0])
	}
	switch status {
	case replyMissing:
		return nil, domain.ErrNotFound
	case replyExpired:
		return nil, domain.ErrExpired
	case replyMismatch:
		return nil, domain.ErrCodeMismatch
	case replyConsumed:
		if len(reply) < 2 {
			return nil, fmt.Errorf("redis consume: missing record")
		}
		raw, ok := reply[1].(string)
		if !ok {
			return nil, fmt.Errorf("redis consume: unexpected record %T", reply[1])
		}
		return decode(raw)
	default:
		return nil, fmt.Errorf("redis consume: unknown status %d", status)
	}
}
