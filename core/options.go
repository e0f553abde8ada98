package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

// ConfigProvider loads configuration over the given defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

// RawConfigLoader yields the raw key/value tree a ConfigProvider builds
// from (file, env, flags).
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// OptionsResolver merges defaults, loaded config, and runtime overrides
// into the effective configuration.
type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded config < runtime overrides.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	httpLayer := map[string]any{}
	if includeZero || cfg.HTTP.Port != 0 {
		httpLayer["port"] = cfg.HTTP.Port
	}
	if includeZero || strings.TrimSpace(cfg.HTTP.APIKey) != "" {
		httpLayer["api_key"] = cfg.HTTP.APIKey
	}
	if len(httpLayer) > 0 {
		layer["http"] = httpLayer
	}

	databaseLayer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Database.Driver) != "" {
		databaseLayer["driver"] = cfg.Database.Driver
	}
	if includeZero || strings.TrimSpace(cfg.Database.DSN) != "" {
		databaseLayer["dsn"] = cfg.Database.DSN
	}
	if includeZero || cfg.Database.Debug {
		databaseLayer["debug"] = cfg.Database.Debug
	}
	if len(databaseLayer) > 0 {
		layer["database"] = databaseLayer
	}

	webhookLayer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Webhook.Token) != "" {
		webhookLayer["token"] = cfg.Webhook.Token
	}
	if includeZero || cfg.Webhook.RequireToken {
		webhookLayer["require_token"] = cfg.Webhook.RequireToken
	}
	if len(webhookLayer) > 0 {
		layer["webhook"] = webhookLayer
	}

	amqpLayer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.AMQP.URL) != "" {
		amqpLayer["url"] = cfg.AMQP.URL
	}
	if includeZero || strings.TrimSpace(cfg.AMQP.Exchange) != "" {
		amqpLayer["exchange"] = cfg.AMQP.Exchange
	}
	if len(amqpLayer) > 0 {
		layer["amqp"] = amqpLayer
	}

	routingLayer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Routing.Depot) != "" {
		routingLayer["depot"] = cfg.Routing.Depot
	}
	if includeZero || cfg.Routing.DaysPerWeek != 0 {
		routingLayer["days_per_week"] = cfg.Routing.DaysPerWeek
	}
	if includeZero || cfg.Routing.WindowMinutes != 0 {
		routingLayer["window_minutes"] = cfg.Routing.WindowMinutes
	}
	if includeZero || strings.TrimSpace(cfg.Routing.GoogleMapsAPIKey) != "" {
		routingLayer["google_maps_api_key"] = cfg.Routing.GoogleMapsAPIKey
	}
	if len(routingLayer) > 0 {
		layer["routing"] = routingLayer
	}

	return layer
}
