package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/suricata-config/internal/config"
	"github.com/eugenenazirov/suricata-config/internal/suricata"
	"github.com/eugenenazirov/suricata-config/internal/watcher"
)

// ErrNoSettingsFile is returned by Watch when no settings file was given.
var ErrNoSettingsFile = errors.New("watch requires a settings file")

// App encapsulates the dependencies needed to materialize Suricata configs.
type App struct {
	overrides    *config.CLIOverrides
	load         func(*config.CLIOverrides) (suricata.Config, error)
	materializer *suricata.Materializer
	logger       *zap.Logger
	watchOpts    []watcher.Option
}

// Option configures an App.
type Option func(*App)

// WithLoader overrides how configuration is resolved (primarily for tests).
func WithLoader(load func(*config.CLIOverrides) (suricata.Config, error)) Option {
	return func(a *App) {
		a.load = load
	}
}

// WithWatchOptions passes options through to the settings file watcher.
func WithWatchOptions(opts ...watcher.Option) Option {
	return func(a *App) {
		a.watchOpts = append(a.watchOpts, opts...)
	}
}

// New initializes the application from the provided CLI overrides.
func New(overrides *config.CLIOverrides, logger *zap.Logger, opts ...Option) *App {
	if overrides == nil {
		overrides = &config.CLIOverrides{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		overrides:    overrides,
		load:         config.Load,
		materializer: suricata.NewMaterializer(logger),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Render resolves the configuration and returns the rendered suricata.yaml.
func (a *App) Render() ([]byte, error) {
	cfg, err := a.load(a.overrides)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return a.materializer.Render(cfg)
}

// Materialize resolves the configuration and writes it to its destination.
// The resolved configuration is returned so callers can locate the executable.
func (a *App) Materialize() (suricata.Config, error) {
	cfg, err := a.load(a.overrides)
	if err != nil {
		return suricata.Config{}, fmt.Errorf("load configuration: %w", err)
	}
	if err := a.materializer.Materialize(cfg); err != nil {
		return suricata.Config{}, err
	}
	a.logger.Info("suricata config materialized",
		zap.String("path", cfg.MaterializeConfigTo),
		zap.String("exe", cfg.ExePath),
		zap.Bool("stats", cfg.EnableStats),
		zap.Uint16("max_pending_packets", cfg.MaxPendingPackets),
	)
	return cfg, nil
}

// Watch materializes once, then again every time the settings file changes,
// until ctx is cancelled. Only the initial materialization is fatal.
func (a *App) Watch(ctx context.Context) error {
	if a.overrides.ConfigFile == "" {
		return ErrNoSettingsFile
	}
	if _, err := a.Materialize(); err != nil {
		return err
	}

	w := watcher.New(a.overrides.ConfigFile, func() error {
		_, err := a.Materialize()
		return err
	}, a.logger, a.watchOpts...)
	return w.Run(ctx)
}
