package bootstrap

import (
	"context"
	"fmt"

	"github.com/lyzr/pubmigrate/common/cache"
	"github.com/lyzr/pubmigrate/common/config"
	"github.com/lyzr/pubmigrate/common/db"
	"github.com/lyzr/pubmigrate/common/logger"
	rediscommon "github.com/lyzr/pubmigrate/common/redis"
	"github.com/lyzr/pubmigrate/common/telemetry"
)

const mappingCachePrefix = "pubmigrate:"

// Setup initializes all service components
// This is the main entry point for every migrator command
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize audit database (if enabled and not skipped)
	if !options.skipDB && components.Config.Database.Enabled {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize mapping cache (if not skipped)
	if !options.skipCache && components.Config.Cache.Backend != "none" {
		components.Logger.Info("initializing cache",
			"backend", components.Config.Cache.Backend,
		)

		switch components.Config.Cache.Backend {
		case "redis":
			client, err := rediscommon.Connect(ctx, rediscommon.Options{
				Addr:     components.Config.Cache.RedisAddr,
				Password: components.Config.Cache.RedisPassword,
				DB:       components.Config.Cache.RedisDB,
			}, components.Logger)
			if err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("failed to connect to redis: %w", err)
			}
			components.Redis = client
			components.Cache = cache.NewRedisCache(client, mappingCachePrefix)
		default:
			components.Cache = cache.NewMemoryCache(components.Logger)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing cache")
			return components.Cache.Close()
		})
	}

	// 5. Initialize telemetry (if not skipped)
	if !options.skipTelemetry {
		components.Telemetry = telemetry.New(components.Config.Telemetry.PprofPort, components.Logger)

		if components.Config.Telemetry.EnablePprof {
			if err := components.Telemetry.Start(ctx); err != nil {
				components.Logger.Warn("failed to start telemetry", "error", err)
			}
			components.addCleanup(func() error {
				return components.Telemetry.Stop(context.Background())
			})
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}
