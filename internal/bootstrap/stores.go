package bootstrap

import (
	"context"

	"github.com/turtacn/ProtocolIQ/internal/config"
	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/database/memory"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/database/postgres"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/database/redis"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/database/sqlite"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/storage/localfs"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/storage/minio"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// Store holds profiles, action events and success patterns.
type Store interface {
	profile.RecordStore
	corpus.PatternStore
}

// openedStore is a Store plus whatever must be released with it.
type openedStore struct {
	Store
	redis  *redis.Client
	health func(ctx context.Context) error
	close  func() error
}

func openStore(ctx context.Context, cfg *config.Config, log logging.Logger) (*openedStore, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return &openedStore{Store: memory.NewStore()}, nil

	case config.StoreRedis:
		rc := cfg.Redis
		client, err := redis.NewClient(&rc, log)
		if err != nil {
			return nil, err
		}
		return &openedStore{
			Store:  redis.NewRecordStore(client, cfg.Store.MaxEvents),
			redis:  client,
			health: client.Ping,
			close:  client.Close,
		}, nil

	case config.StoreSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLite.Path, cfg.SQLite.BusyTimeout)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite store opened", logging.String("path", st.Path()))
		return &openedStore{Store: st, close: st.Close}, nil

	case config.StorePostgres:
		if cfg.Postgres.AutoMigrate {
			conn, err := postgres.NewConnection(cfg.Postgres, log)
			if err != nil {
				return nil, err
			}
			err = conn.RunMigrations()
			_ = conn.Close()
			if err != nil {
				return nil, err
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return &openedStore{
			Store:  postgres.NewStore(pool),
			health: pool.Ping,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	}
	return nil, errors.Newf(errors.ErrCodeValidation, "unknown store backend %q", cfg.Store.Backend)
}

// OpenSource opens the configured corpus. dir, when non-empty, overrides
// corpus.dir for the filesystem source.
func OpenSource(ctx context.Context, cfg *config.Config, dir string, log logging.Logger) (corpus.Source, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	switch cfg.Corpus.Source {
	case config.SourceFilesystem:
		if dir == "" {
			dir = cfg.Corpus.Dir
		}
		return localfs.New(dir), nil
	case config.SourceMinIO:
		client, err := minio.NewClient(ctx, cfg.MinIO, log)
		if err != nil {
			return nil, err
		}
		return minio.NewSource(client, cfg.Corpus.Prefix), nil
	}
	return nil, errors.Newf(errors.ErrCodeValidation, "unknown corpus source %q", cfg.Corpus.Source)
}
