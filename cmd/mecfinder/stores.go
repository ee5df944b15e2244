package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/config"
	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/state"
	"github.com/ay9334524-ux/mecfinder-backend/internal/storage"
)

const connectAttemptTimeout = 5 * time.Second

// recordStore is a dispatch.RecordStore that can also seed bookings.
type recordStore interface {
	dispatch.RecordStore
	Create(ctx context.Context, rec *booking.Record) error
}

type stores struct {
	records recordStore
	state   dispatch.StateStore
	// pruner is set when dispatch state lives in SQLite and needs sweeping.
	pruner  *state.SQLiteStore
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the record and state stores named by cfg. Network
// stores are retried with exponential backoff for up to
// records.connect_timeout.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	s := &stores{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	var db *sql.DB
	if cfg.UsesSQLite() {
		var err error
		db, err = storage.OpenSQLite(ctx, cfg.Records.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Records.SQLitePath, err)
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		logger.Info("database opened", "path", cfg.Records.SQLitePath)
	}

	switch cfg.Records.Driver {
	case config.DriverSQLite:
		s.records = booking.NewSQLStore(db)
	case config.DriverMongo:
		client, err := connectWithRetry(ctx, "mongo", cfg.Records.ConnectTimeout, logger, func(ctx context.Context) (*mongo.Client, error) {
			return booking.ConnectMongo(ctx, cfg.Records.MongoURI)
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Disconnect(context.Background()) })
		coll := client.Database(cfg.Records.MongoDatabase).Collection(booking.CollectionName)
		s.records = booking.NewMongoStore(coll)
		logger.Info("mongo connected", "database", cfg.Records.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown records driver %q", cfg.Records.Driver)
	}

	switch cfg.State.Driver {
	case config.DriverSQLite:
		st := state.NewSQLiteStore(db)
		s.state, s.pruner = st, st
	case config.DriverRedis:
		rdb, err := connectWithRetry(ctx, "redis", cfg.Records.ConnectTimeout, logger, func(ctx context.Context) (*redis.Client, error) {
			return state.ConnectRedis(ctx, cfg.State.RedisAddr, cfg.State.RedisPassword, cfg.State.RedisDB)
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		s.state = state.NewRedisStore(rdb, cfg.State.KeyPrefix)
		logger.Info("redis connected", "addr", cfg.State.RedisAddr, "prefix", cfg.State.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown state driver %q", cfg.State.Driver)
	}

	ok = true
	return s, nil
}

// connectWithRetry calls connect until it succeeds, ctx ends or maxElapsed
// passes.
func connectWithRetry[T any](ctx context.Context, what string, maxElapsed time.Duration, logger *slog.Logger, connect func(context.Context) (T, error)) (T, error) {
	op := func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, connectAttemptTimeout)
		defer cancel()
		return connect(attemptCtx)
	}
	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("store not reachable yet; retrying", "store", what, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		return v, fmt.Errorf("connect %s: %w", what, err)
	}
	return v, nil
}
