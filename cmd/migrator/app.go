package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lyzr/pubmigrate/cmd/migrator/container"
	"github.com/lyzr/pubmigrate/common/bootstrap"
	"github.com/lyzr/pubmigrate/common/config"
	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/repository"
)

// loadConfig reads .env files and the environment. Config errors are usage
// errors.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return cfg, nil
}

// setup bootstraps components and the service container. Logs go to stderr
// so stdout carries only command output.
func setup(ctx context.Context, cfg *config.Config, opts ...bootstrap.Option) (*bootstrap.Components, *container.Container, error) {
	opts = append(opts,
		bootstrap.WithCustomConfig(cfg),
		bootstrap.WithCustomLogger(logger.NewWithWriter(os.Stderr, cfg.Service.LogLevel, cfg.Service.LogFormat)),
		bootstrap.WithDBInitHook(repository.ApplySchema),
	)

	components, err := bootstrap.Setup(ctx, serviceName, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap %s: %w", serviceName, err)
	}

	c, err := container.NewContainer(components)
	if err != nil {
		_ = components.Shutdown(ctx)
		return nil, nil, fmt.Errorf("failed to initialize service container: %w", err)
	}
	return components, c, nil
}

func writeJSONLine(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}
