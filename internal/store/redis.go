package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/session"
)

const redisKeyPrefix = "leadpipe:"

// RedisSessionStore shares sessions between replicas. Each snapshot lives under
// leadpipe:session:{id} and expires after the session timeout; the phone and address indexes and
// the set of known ids are cleaned up by SweepExpired.
type RedisSessionStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

var _ session.Store = (*RedisSessionStore)(nil)

// NewRedisClient connects to the server at url (redis:// or rediss://) and pings it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewRedisSessionStore creates a store on rdb. A non-positive timeout uses session.DefaultTimeout.
func NewRedisSessionStore(rdb *redis.Client, timeout time.Duration) *RedisSessionStore {
	if timeout <= 0 {
		timeout = session.DefaultTimeout
	}
	return &RedisSessionStore{rdb: rdb, timeout: timeout}
}

func sessionKey(id string) string  { return redisKeyPrefix + "session:" + id }
func phoneKey(phone string) string { return redisKeyPrefix + "phone:" + phone }
func addressKey(ch models.Channel, address string) string {
	return redisKeyPrefix + "address:" + string(ch) + ":" + address
}

const allSessionsKey = redisKeyPrefix + "sessions"

// Close closes the underlying client.
func (r *RedisSessionStore) Close() error {
	return r.rdb.Close()
}

// Get loads the snapshot with id.
func (r *RedisSessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return session.Decode(data)
}

// Put writes the snapshot and refreshes its expiry and indexes.
func (r *RedisSessionStore) Put(ctx context.Context, s *session.Session) error {
	data, err := session.Encode(s)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(s.ID), data, r.timeout)
		p.SAdd(ctx, allSessionsKey, s.ID)
		if s.Phone != "" {
			p.Set(ctx, phoneKey(s.Phone), s.ID, r.timeout)
		}
		if s.Address != "" {
			p.SAdd(ctx, addressKey(s.Channel, s.Address), s.ID)
		}
		return nil
	})
	if err != nil {
		slog.Error("RedisSessionStore.Put failed", "error", err, "session", s.ID)
		return fmt.Errorf("failed to store session %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes the session and its index entries.
func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	return r.remove(ctx, id, s)
}

func (r *RedisSessionStore) remove(ctx context.Context, id string, s *session.Session) error {
	if s != nil && s.Phone != "" {
		if owner, err := r.rdb.Get(ctx, phoneKey(s.Phone)).Result(); err == nil && owner == id {
			r.rdb.Del(ctx, phoneKey(s.Phone))
		}
	}
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(id))
		p.SRem(ctx, allSessionsKey, id)
		if s != nil && s.Address != "" {
			p.SRem(ctx, addressKey(s.Channel, s.Address), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// GetByPhone follows the phone index to the session stored last for phone.
func (r *RedisSessionStore) GetByPhone(ctx context.Context, phone string) (*session.Session, error) {
	id, err := r.rdb.Get(ctx, phoneKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up phone index: %w", err)
	}
	return r.Get(ctx, id)
}

// SweepExpired drops index entries of snapshots Redis has already expired, and removes snapshots
// idle longer than timeout. Expiry itself is driven by the key TTL.
func (r *RedisSessionStore) SweepExpired(ctx context.Context, now time.Time, timeout time.Duration) (int, error) {
	ids, err := r.rdb.SMembers(ctx, allSessionsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	n := 0
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		switch {
		case errors.Is(err, session.ErrNotFound):
			if err := r.rdb.SRem(ctx, allSessionsKey, id).Err(); err != nil {
				return n, fmt.Errorf("failed to drop expired session %s: %w", id, err)
			}
			n++
		case err != nil:
			slog.Warn("RedisSessionStore.SweepExpired: unreadable session", "session", id, "error", err)
		case s.Expired(now, timeout):
			if err := r.remove(ctx, id, s); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// DeleteByAddress removes every session of ch opened against address.
func (r *RedisSessionStore) DeleteByAddress(ctx context.Context, ch models.Channel, address string) (int, error) {
	key := addressKey(ch, address)
	ids, err := r.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions for %s %s: %w", ch, address, err)
	}
	n := 0
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if err := r.remove(ctx, id, s); err != nil {
			return n, err
		}
		n++
	}
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return n, fmt.Errorf("failed to clear address index: %w", err)
	}
	return n, nil
}

// Count returns the number of known session ids, including ones expired since the last sweep.
func (r *RedisSessionStore) Count(ctx context.Context) (int, error) {
	n, err := r.rdb.SCard(ctx, allSessionsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}
