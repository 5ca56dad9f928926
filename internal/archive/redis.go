package archive

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/tafl-htp-bot/internal/domain"
)

const (
	DefaultTTL = 7 * 24 * time.Hour
	recentCap  = 100
)

// RedisStore keeps each match as JSON under match:<uuid> with a TTL and a
// capped list of recent uuids.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// OpenRedis dials and pings the server at rawURL (redis:// or rediss://).
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) keyMatch(sessionUUID string) string { return "match:" + strings.TrimSpace(sessionUUID) }
func (s *RedisStore) keyRecent() string                  { return "match:recent" }

func (s *RedisStore) Save(ctx context.Context, m *domain.Match) error {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.keyMatch(m.SessionUUID), raw, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateMatch
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, s.keyRecent(), m.SessionUUID)
	pipe.LTrim(ctx, s.keyRecent(), 0, recentCap-1)
	pipe.Expire(ctx, s.keyRecent(), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, sessionUUID string) (*domain.Match, error) {
	raw, err := s.rdb.Get(ctx, s.keyMatch(sessionUUID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m domain.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Recent skips list entries whose match key already expired.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]*domain.Match, error) {
	if limit <= 0 || limit > recentCap {
		limit = recentCap
	}
	ids, err := s.rdb.LRange(ctx, s.keyRecent(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Match, 0, len(ids))
	for _, id := range ids {
		m, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "6379"
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("redis db %q: %w", p, err)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: net.JoinHostPort(host, port), Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
