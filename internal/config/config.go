package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	GrpcServer config.GrpcServerConfig `koanf:"grpc"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Storage    config.StorageConfig    `koanf:"storage"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Nats       config.NATSConfig       `koanf:"nats"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	IdP        config.IdP              `koanf:"idp"`
	Catalog    CatalogConfig           `koanf:"catalog"`
	Sessions   SessionsConfig          `koanf:"sessions"`
}

// CatalogConfig points at a product document. An empty path uses the built-in catalog.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// SessionsConfig controls how long an idle session's store stays in memory.
type SessionsConfig struct {
	Idle  time.Duration `koanf:"idle"`
	Sweep time.Duration `koanf:"sweep"`
}

const (
	defaultSessionIdle  = 30 * time.Minute
	defaultSessionSweep = time.Minute
)

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.GrpcServer.String())
	b.WriteString(c.Storage.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.IdP.String())

	b.WriteString("\n--- Catalog & Sessions ---\n")
	path := c.Catalog.Path
	if path == "" {
		path = "<built-in>"
	}
	b.WriteString(fmt.Sprintf("  catalog.path: %s\n", path))
	b.WriteString(fmt.Sprintf("  sessions.idle: %s\n", c.Sessions.Idle))
	b.WriteString(fmt.Sprintf("  sessions.sweep: %s\n", c.Sessions.Sweep))

	b.WriteString(c.Log.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.GrpcServer.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Resilience.Validate(); err != nil {
		return err
	}
	if err := c.Nats.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.IdP.Validate(); err != nil {
		return err
	}
	if c.Sessions.Idle <= 0 {
		log.Println("Using default value for sessions.idle")
		c.Sessions.Idle = defaultSessionIdle
	}
	if c.Sessions.Sweep <= 0 {
		log.Println("Using default value for sessions.sweep")
		c.Sessions.Sweep = defaultSessionSweep
	}
	return nil
}
