package core

import (
	"fmt"
	"strings"
)

type HTTPConfig struct {
	Port   int    `koanf:"port" mapstructure:"port"`
	APIKey string `koanf:"api_key" mapstructure:"api_key"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type WebhookConfig struct {
	// Token is the shared secret the dispatch provider sends on each
	// webhook. RequireToken gates enforcement so staging environments can
	// run without provider-side configuration.
	Token        string `koanf:"token" mapstructure:"token"`
	RequireToken bool   `koanf:"require_token" mapstructure:"require_token"`
}

type AMQPConfig struct {
	URL      string `koanf:"url" mapstructure:"url"`
	Exchange string `koanf:"exchange" mapstructure:"exchange"`
}

type RoutingConfig struct {
	Depot         string `koanf:"depot" mapstructure:"depot"`
	DaysPerWeek   int    `koanf:"days_per_week" mapstructure:"days_per_week"`
	WindowMinutes int    `koanf:"window_minutes" mapstructure:"window_minutes"`
	// GoogleMapsAPIKey enables the live travel-time matrix. Empty falls
	// back to the offline estimator.
	GoogleMapsAPIKey string `koanf:"google_maps_api_key" mapstructure:"google_maps_api_key"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	AMQP        AMQPConfig     `koanf:"amqp" mapstructure:"amqp"`
	Routing     RoutingConfig  `koanf:"routing" mapstructure:"routing"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "courier-ops",
		HTTP: HTTPConfig{
			Port: 3000,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
		},
		Webhook: WebhookConfig{
			RequireToken: true,
		},
		AMQP: AMQPConfig{
			Exchange: "courier.status",
		},
		Routing: RoutingConfig{
			Depot:         "Birmingham, UK",
			DaysPerWeek:   5,
			WindowMinutes: 180,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("core: http.port %d is out of range", c.HTTP.Port)
	}
	if c.Webhook.RequireToken && strings.TrimSpace(c.Webhook.Token) == "" {
		return fmt.Errorf("core: webhook.token is required when webhook.require_token is set")
	}
	if c.Routing.DaysPerWeek <= 0 || c.Routing.DaysPerWeek > 7 {
		return fmt.Errorf("core: routing.days_per_week %d is out of range", c.Routing.DaysPerWeek)
	}
	return nil
}
