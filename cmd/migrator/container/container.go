package container

import (
	"fmt"
	"time"

	"github.com/lyzr/pubmigrate/cmd/migrator/mapping"
	"github.com/lyzr/pubmigrate/cmd/migrator/service"
	"github.com/lyzr/pubmigrate/common/bootstrap"
	"github.com/lyzr/pubmigrate/common/clients"
	"github.com/lyzr/pubmigrate/common/ratelimit"
	"github.com/lyzr/pubmigrate/common/repository"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories, nil when the audit database is disabled
	RunRepo *repository.RunRepository

	// Clients
	Source       *clients.SourceClient
	Target       *clients.TargetClient
	ConfigSource *clients.TargetClient
	Recorder     *service.DryRunRecorder

	// Services
	Suggester *mapping.Suggester
	Mapper    *mapping.Mapper
	Types     *mapping.TypeResolver
	Runner    *service.Runner
}

// NewContainer initializes all services once. Components.Config decides
// between a live and a dry run.
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	c := &Container{Components: components}

	if components.DB != nil {
		c.RunRepo = repository.NewRunRepository(components.DB)
	}

	// Initialize clients
	c.Source = clients.NewSourceClient(cfg.Source.BaseURL, cfg.Source.BaseID, cfg.Source.APIKey, cfg.Source.Timeout, log)
	c.Target = clients.NewTargetClient(cfg.Target.CommunityURL(), cfg.Target.APIKey, cfg.Target.Timeout, log)
	if cfg.ConfigSource.Enabled() {
		c.ConfigSource = clients.NewTargetClient(cfg.ConfigSource.CommunityURL(), cfg.ConfigSource.APIKey, cfg.Target.Timeout, log)
	}
	c.Source.SetLimiter(c.limiter("source:"+cfg.Source.BaseID, cfg.Source.RateLimit))
	if cfg.Target.RateLimit > 0 {
		c.Target.SetLimiter(c.limiter("target:"+cfg.Target.CommunitySlug, cfg.Target.RateLimit))
	}

	// Initialize mapping (bottom-up: dependencies first)
	suggester, err := mapping.NewSuggester(mapping.DefaultRules(), mapping.DefaultTypeFallbacks())
	if err != nil {
		return nil, fmt.Errorf("failed to build mapping rules: %w", err)
	}
	c.Suggester = suggester
	c.Mapper = mapping.NewMapper(suggester, mapping.NewMappingCache(components.Cache, cfg.Cache.TTL))
	c.Types = mapping.NewTypeResolver(cfg.Migration.TableTypes, mapping.DefaultTableTypeRules())

	// A dry run reads the live target but records every write
	var target service.EntityStore = c.Target
	if cfg.Migration.DryRun {
		var reader service.ConfigSource
		if cfg.Target.APIKey != "" {
			reader = c.Target
		}
		c.Recorder = service.NewDryRunRecorder(c.Target.Routes(), reader, log)
		target = c.Recorder
	}

	deps := service.RunnerDeps{
		Source:    c.Source,
		Target:    target,
		Mapper:    c.Mapper,
		Types:     c.Types,
		Telemetry: components.Telemetry,
		Logger:    log,
	}
	if c.ConfigSource != nil {
		deps.ConfigSource = c.ConfigSource
	}
	if c.RunRepo != nil {
		deps.Runs = c.RunRepo
	}

	c.Runner = service.NewRunner(deps, service.RunnerOptions{
		Community:    cfg.Target.CommunitySlug,
		DryRun:       cfg.Migration.DryRun,
		SkipMigrated: cfg.Migration.SkipMigrated,
		Migrator: service.MigratorOptions{
			CommunitySlug:  cfg.Target.CommunitySlug,
			TitleFallbacks: cfg.Migration.TitleFallbacks,
			DefaultStage:   cfg.Migration.DefaultStage,
			Concurrency:    cfg.Migration.Concurrency,
			Verify:         cfg.Migration.Verify,
		},
	})

	log.Info("service container initialized",
		"dry_run", cfg.Migration.DryRun,
		"config_transfer", c.ConfigSource != nil,
		"audit_db", c.RunRepo != nil,
	)
	return c, nil
}

// limiter counts against a Redis window shared by every process when Redis is
// enabled, otherwise against an in-process bucket
func (c *Container) limiter(key string, perSecond float64) ratelimit.Limiter {
	if c.Components.Redis == nil || perSecond <= 0 {
		return ratelimit.NewLocal(perSecond)
	}
	limit := int64(perSecond)
	if limit < 1 {
		limit = 1
	}
	return ratelimit.NewRedisLimiter(c.Components.Redis, key, limit, time.Second, c.Components.Logger)
}
