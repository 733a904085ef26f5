// Package storage selects and opens the storage backend once at startup.
package storage

import (
	"context"
	"errors"
	"fmt"

	"lbx/config"
	"lbx/database"
	"lbx/repository"
	"lbx/repository/memory"
	"lbx/repository/mongodb"
	"lbx/service"

	log "github.com/sirupsen/logrus"
)

// Mode names the backend a Storage runs on
type Mode string

const (
	ModePostgres Mode = "postgres"
	ModeMongo    Mode = "mongo"
	ModeMemory   Mode = "memory"
	// ModeFile is the memory backend persisted to a state file
	ModeFile Mode = "file"
)

// Storage bundles the repositories of the selected backend
type Storage struct {
	Mode Mode
	// Fallback is true when a durable driver was configured but unreachable
	Fallback bool

	Accounts       service.AccountRepository
	Jackpots       service.JackpotRepository
	Promos         service.PromoRepository
	StreamEvents   service.StreamEventRepository
	EventRules     service.EventRulesRepository
	RechargeOrders service.RechargeOrderRepository

	closeFn func(ctx context.Context) error
}

// Close releases the backend. For the memory backend it performs the final state flush.
func (s *Storage) Close(ctx context.Context) error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}

// Durable reports whether writes survive a restart
func (s *Storage) Durable() bool {
	return s.Mode != ModeMemory
}

// The connectors are variables so tests can simulate an unreachable backend
var (
	connectPostgres = openPostgres
	connectMongo    = openMongo
)

// Open connects to the configured driver. An unreachable durable driver falls back
// to the memory backend only when AllowMemoryFallback is set.
func Open(ctx context.Context, cfg *config.Config) (*Storage, error) {
	var (
		store *Storage
		err   error
	)

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		store, err = connectPostgres(ctx, cfg)
	case config.StorageDriverMongo:
		store, err = connectMongo(ctx, cfg)
	case config.StorageDriverMemory, "":
		return openMemory(cfg, false)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if err == nil {
		log.WithField("mode", store.Mode).Info("Storage backend ready")
		return store, nil
	}

	if !cfg.AllowMemoryFallback {
		log.WithFields(log.Fields{
			"driver": cfg.StorageDriver,
			"error":  err,
		}).Error("Storage backend unavailable")
		return nil, fmt.Errorf("%w: %s: %v", service.ErrStorageUnavailable, cfg.StorageDriver, err)
	}

	log.WithFields(log.Fields{
		"driver": cfg.StorageDriver,
		"error":  err,
	}).Warn("Storage backend unavailable, falling back to memory")
	return openMemory(cfg, true)
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	databaseURL := cfg.GetDatabaseURL()

	db, err := database.NewConnectionWithOptions(ctx, databaseURL, database.PoolOptions{
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}

	if err := database.RunMigrationsWithURL(databaseURL); err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{
		Mode:           ModePostgres,
		Accounts:       repository.NewAccountRepository(db),
		Jackpots:       repository.NewJackpotRepository(db),
		Promos:         repository.NewPromoRepository(db),
		StreamEvents:   repository.NewStreamEventRepository(db),
		EventRules:     repository.NewEventRulesRepository(db),
		RechargeOrders: repository.NewRechargeOrderRepository(db),
		closeFn: func(context.Context) error {
			db.Close()
			return nil
		},
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is empty")
	}

	client, err := mongodb.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	db := client.Database()
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &Storage{
		Mode:           ModeMongo,
		Accounts:       mongodb.NewAccountRepository(db),
		Jackpots:       mongodb.NewJackpotRepository(db),
		Promos:         mongodb.NewPromoRepository(db),
		StreamEvents:   mongodb.NewStreamEventRepository(db),
		EventRules:     mongodb.NewEventRulesRepository(db),
		RechargeOrders: mongodb.NewRechargeOrderRepository(db),
		closeFn:        client.Disconnect,
	}, nil
}

// openMemory builds the memory backend. The state file is the first writable
// candidate and is only used when StatePersist is set.
func openMemory(cfg *config.Config, fallback bool) (*Storage, error) {
	opts := memory.Options{SaveDelay: cfg.StateSaveDelay}
	if cfg.StatePersist {
		for _, candidate := range cfg.StateFileCandidates() {
			if memory.Writable(candidate) {
				opts.Path = candidate
				break
			}
			log.WithField("path", candidate).Warn("State file location not writable")
		}
		if opts.Path == "" {
			log.Warn("No writable state file found, state will not persist")
		}
	}

	store, err := memory.NewStore(opts)
	if err != nil {
		return nil, err
	}

	mode := ModeMemory
	if store.Persistent() {
		mode = ModeFile
	}
	log.WithFields(log.Fields{
		"mode":     mode,
		"path":     store.Path(),
		"fallback": fallback,
	}).Info("Memory storage ready")

	return &Storage{
		Mode:           mode,
		Fallback:       fallback,
		Accounts:       memory.NewAccountRepository(store),
		Jackpots:       memory.NewJackpotRepository(store),
		Promos:         memory.NewPromoRepository(store),
		StreamEvents:   memory.NewStreamEventRepository(store),
		EventRules:     memory.NewEventRulesRepository(store),
		RechargeOrders: memory.NewRechargeOrderRepository(store),
		closeFn: func(context.Context) error {
			return store.Close()
		},
	}, nil
}
