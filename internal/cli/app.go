package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tripstate/internal/config"
	"github.com/mesh-intelligence/tripstate/internal/keylock/redislock"
	"github.com/mesh-intelligence/tripstate/internal/logging"
	"github.com/mesh-intelligence/tripstate/internal/metrics"
	"github.com/mesh-intelligence/tripstate/internal/paths"
	"github.com/mesh-intelligence/tripstate/internal/sqlite"
)

// redisKeyPrefix namespaces the distributed lock keys.
const redisKeyPrefix = "tripstate:"

// app carries the state of one tripctl invocation.
type app struct {
	flags rootFlags

	cfg      *config.Config
	dataDir  string
	logger   *zap.Logger
	registry *prometheus.Registry
	redis    *redis.Client
	store    *sqlite.Backend
}

// load resolves directories and reads the configuration.
func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolving config dir: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolving data dir: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg, a.dataDir, a.logger = cfg, dataDir, logger
	return nil
}

// open attaches the store on first use. A configured Redis address adds
// the distributed locker under the per-key locks.
func (a *app) open() (*sqlite.Backend, error) {
	if a.store != nil {
		return a.store, nil
	}
	if err := a.load(); err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	opts := []sqlite.Option{
		sqlite.WithLogger(a.logger),
		sqlite.WithRecorder(metrics.NewRecorder(a.registry)),
		sqlite.WithLockTTL(a.cfg.LockTTL),
	}
	if a.cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
		})
		opts = append(opts, sqlite.WithLocker(redislock.New(a.redis, redisKeyPrefix)))
		a.logger.Debug("distributed locking enabled", zap.String("redis_addr", a.cfg.RedisAddr))
	}

	store := sqlite.NewBackend(opts...)
	if err := store.Attach(a.cfg.Store(a.dataDir)); err != nil {
		return nil, fmt.Errorf("attaching store at %s: %w", a.dataDir, err)
	}
	a.store = store
	return store, nil
}

// close releases whatever open acquired.
func (a *app) close() error {
	var err error
	if a.store != nil {
		err = multierr.Append(err, a.store.Detach())
		a.store = nil
	}
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
		a.redis = nil
	}
	if a.logger != nil {
		// Syncing stderr fails harmlessly on some platforms.
		_ = a.logger.Sync()
	}
	return err
}

// withStore runs fn against the attached store and releases it afterwards.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, store *sqlite.Backend) error) (err error) {
	store, err := a.open()
	if err != nil {
		return multierr.Append(err, a.close())
	}
	defer func() { err = multierr.Append(err, a.close()) }()
	return fn(cmd.Context(), store)
}

// emit writes v as indented JSON in --json mode and calls text otherwise.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if a.flags.jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		return nil
	}
	text(w)
	return nil
}
