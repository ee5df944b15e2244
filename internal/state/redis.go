package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ay9334524-ux/mecfinder-backend/internal/log"
)

const DefaultKeyPrefix = "mecfinder:dispatch:"

// RedisStore keeps dispatch state under <prefix>{snapshot,offer,seq}:<job>
// keys and relies on native key expiry.
type RedisStore struct {
	rdb          redis.UniversalClient
	prefix       string
	now          func() time.Time
	seqRetention time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		rdb:          rdb,
		prefix:       prefix,
		now:          time.Now,
		seqRetention: DefaultSeqRetention,
	}
}

// ConnectRedis builds a client and pings it once.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisStore) snapshotKey(jobID string) string { return s.prefix + "snapshot:" + jobID }
func (s *RedisStore) offerKey(jobID string) string    { return s.prefix + "offer:" + jobID }
func (s *RedisStore) seqKey(jobID string) string      { return s.prefix + "seq:" + jobID }

func (s *RedisStore) SaveSnapshot(ctx context.Context, snap Snapshot, ttl time.Duration) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.SavedAt = s.now().UTC()
	body, err := seal(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.snapshotKey(snap.JobID), body, ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteSnapshot(ctx context.Context, jobID string) error {
	if err := s.rdb.Del(ctx, s.snapshotKey(jobID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListSnapshots scans the snapshot keyspace. Keys that expire between SCAN
// and GET are skipped, as are entries that fail their checksum.
func (s *RedisStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	var out []Snapshot
	iter := s.rdb.Scan(ctx, 0, s.prefix+"snapshot:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", key, err)
		}
		var snap Snapshot
		if err := open(raw, &snap); err != nil {
			log.WithComponent("state").Warn("skipping unreadable snapshot", "key", key, "error", err)
			continue
		}
		out = append(out, snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return out, nil
}

func (s *RedisStore) SetOffer(ctx context.Context, m OfferMarker, ttl time.Duration) error {
	if m.JobID == "" || m.WorkerID == "" {
		return fmt.Errorf("offer marker needs job and worker ids")
	}
	m.ExpiresAt = s.now().Add(ttl).UTC()
	body, err := seal(m)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.offerKey(m.JobID), body, ttl).Err(); err != nil {
		return fmt.Errorf("set offer marker: %w", err)
	}
	return nil
}

func (s *RedisStore) GetOffer(ctx context.Context, jobID string) (*OfferMarker, error) {
	raw, err := s.rdb.Get(ctx, s.offerKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read offer marker: %w", err)
	}
	var m OfferMarker
	if err := open(raw, &m); err != nil {
		log.WithComponent("state").Warn("ignoring unreadable offer marker", "job_id", jobID, "error", err)
		return nil, nil
	}
	return &m, nil
}

func (s *RedisStore) ClearOffer(ctx context.Context, jobID string) error {
	if err := s.rdb.Del(ctx, s.offerKey(jobID)).Err(); err != nil {
		return fmt.Errorf("clear offer marker: %w", err)
	}
	return nil
}

// NextOfferSeq runs INCR and EXPIRE in one MULTI/EXEC.
func (s *RedisStore) NextOfferSeq(ctx context.Context, jobID string) (int64, error) {
	key := s.seqKey(jobID)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.seqRetention)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("next offer seq: %w", err)
	}
	return incr.Val(), nil
}
