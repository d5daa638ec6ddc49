package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contract-review/internal/attribution"
	"github.com/sells-group/contract-review/internal/config"
	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/postback"
	"github.com/sells-group/contract-review/internal/query"
	"github.com/sells-group/contract-review/internal/resilience"
	"github.com/sells-group/contract-review/internal/review"
	"github.com/sells-group/contract-review/internal/store"
	sfpkg "github.com/sells-group/contract-review/pkg/salesforce"
)

// drainTimeout bounds how long shutdown waits for queued postbacks.
const drainTimeout = 15 * time.Second

// reviewEnv holds everything the review, serve and inspection commands
// share. Callers should defer env.Close().
type reviewEnv struct {
	Store      store.Store
	Engine     *attribution.Engine
	Query      *query.Service
	Recorder   *review.Recorder
	Dispatcher *postback.Dispatcher // nil unless postbacks were requested

	closers []func() error
}

// Close drains queued postbacks and releases the store and cache.
func (e *reviewEnv) Close() {
	if e.Dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := e.Dispatcher.Close(ctx); err != nil {
			zap.L().Warn("postback queue not drained", zap.Error(err), zap.Int64("dropped", e.Dispatcher.Dropped()))
		}
		cancel()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// initEnv opens and migrates the store, builds the attribution engine with
// the configured cache and, when withPostback is set, starts the postback
// dispatcher and hooks it into the recorder.
func initEnv(ctx context.Context, withPostback bool) (*reviewEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &reviewEnv{Store: st, closers: []func() error{st.Close}}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, err
	}

	cache, closeCache, err := initCache(ctx, cfg.Cache)
	if err != nil {
		env.Close()
		return nil, err
	}
	if closeCache != nil {
		env.closers = append(env.closers, closeCache)
	}
	env.Engine = attribution.NewEngine(st, cache)
	env.Query = query.NewService(st, env.Engine)

	opts := []review.Option{review.WithInvalidator(env.Engine)}
	if withPostback {
		notifier, err := initNotifier(cfg.Postback)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Dispatcher = postback.NewDispatcher(notifier, st, postback.DispatcherConfig{
			Workers:   cfg.Postback.Workers,
			QueueSize: cfg.Postback.QueueSize,
			Timeout:   cfg.Postback.Timeout() * time.Duration(cfg.Postback.RetryCount+1),
			Breaker:   resilience.FromCircuitConfig(cfg.Postback.BreakerThreshold, cfg.Postback.BreakerResetSecs),
		})
		opts = append(opts, review.WithNotifier(env.Dispatcher))
	}

	env.Recorder = review.NewRecorder(st, review.Config{
		Timeout:         cfg.Review.Timeout(),
		DefaultStatus:   model.DocumentStatus(cfg.Review.DefaultStatus),
		ConflictRetries: cfg.Review.ConflictRetries,
	}, opts...)
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "contract-review.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for postgres (REVIEW_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCache returns the attribution cache and an optional closer.
func initCache(ctx context.Context, c config.CacheConfig) (attribution.Cache, func() error, error) {
	switch c.Driver {
	case "redis":
		rc, err := attribution.NewRedisCache(ctx, c.RedisAddr, c.TTL())
		if err != nil {
			return nil, nil, err
		}
		return rc, rc.Close, nil
	case "none":
		return attribution.NopCache{}, nil, nil
	default:
		return attribution.NewMemoryCache(c.TTL()), nil, nil
	}
}

func initNotifier(c config.PostbackConfig) (postback.Notifier, error) {
	switch c.Target {
	case "salesforce":
		if !c.Enabled {
			return nil, eris.New("postback.target salesforce requires postback.enabled")
		}
		sf, err := initSalesforce()
		if err != nil {
			return nil, err
		}
		return postback.NewSalesforceNotifier(sf, c.SObject), nil
	default:
		return postback.NewCongaClient(postback.CongaConfig{
			Enabled:    c.Enabled,
			Mock:       c.Mock,
			BaseURL:    c.BaseURL,
			ReviewPath: c.ReviewPath,
			APIKey:     c.APIKey,
			OutputFile: c.OutputFile,
			RetryCount: c.RetryCount,
			Timeout:    c.Timeout(),
		}), nil
	}
}

func initSalesforce() (sfpkg.Client, error) {
	return sfpkg.Connect(sfpkg.JWTConfig{
		LoginURL: cfg.Salesforce.LoginURL,
		Username: cfg.Salesforce.Username,
		ClientID: cfg.Salesforce.ClientID,
		KeyPath:  cfg.Salesforce.KeyPath,
	}, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit))
}
