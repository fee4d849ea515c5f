package config

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Snapshot storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

const defaultNamespace = "eclat-store"
const defaultStorageTimeout = 2 * time.Second

// StorageConfig selects where cart and wishlist snapshots are kept.
type StorageConfig struct {
	Driver    string         `koanf:"driver"`
	Namespace string         `koanf:"namespace"`
	Timeout   time.Duration  `koanf:"timeout"`
	File      FileConfig     `koanf:"file"`
	Redis     RedisConfig    `koanf:"redis"`
	Database  DatabaseConfig `koanf:"database"`
}

type FileConfig struct {
	Dir string `koanf:"dir"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
	// TTL expires idle snapshots; zero keeps them forever.
	TTL time.Duration `koanf:"ttl"`
}

type DatabaseConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

func (c *StorageConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	b.WriteString(fmt.Sprintf("  namespace: %s\n", c.Namespace))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	switch c.Driver {
	case DriverFile:
		b.WriteString(fmt.Sprintf("  file.dir: %s\n", c.File.Dir))
	case DriverRedis:
		b.WriteString(fmt.Sprintf("  redis.url: %s\n", MaskURL(c.Redis.URL)))
		b.WriteString(fmt.Sprintf("  redis.ttl: %s\n", c.Redis.TTL))
	case DriverPostgres:
		b.WriteString(fmt.Sprintf("  database.url: %s\n", MaskURL(c.Database.URL)))
		b.WriteString(fmt.Sprintf("  database.timeout: %s\n", c.Database.Timeout))
	}
	return b.String()
}

func (c *StorageConfig) Validate() error {
	if c.Driver == "" {
		log.Println("Using default value for storage.driver")
		c.Driver = DriverMemory
	}
	if c.Namespace == "" {
		log.Println("Using default value for storage.namespace")
		c.Namespace = defaultNamespace
	}
	if c.Timeout <= 0 {
		log.Println("Using default value for storage.timeout")
		c.Timeout = defaultStorageTimeout
	}
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverFile:
		if c.File.Dir == "" {
			return fmt.Errorf("storage.file.dir is not configured")
		}
		return nil
	case DriverRedis:
		if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
			return fmt.Errorf("redis URL must start with 'redis://' or 'rediss://': %s", MaskURL(c.Redis.URL))
		}
		if c.Redis.TTL < 0 {
			return fmt.Errorf("redis TTL must not be negative")
		}
		return nil
	case DriverPostgres:
		return c.Database.Validate()
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Driver)
	}
}

func (c *DatabaseConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("database URL is not configured")
	}
	if !isValidPostgresURL(c.URL) {
		return fmt.Errorf("database URL must start with 'postgres://': %s", MaskURL(c.URL))
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("database connect timeout is not configured")
	}
	return nil
}

// isValidPostgresURL checks if the provided URL is a valid PostgreSQL URL
func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

// MaskURL hides the credentials part of a connection URL.
func MaskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		scheme, _, _ := strings.Cut(parts[0], "://")
		return scheme + "://****@" + parts[1]
	}
	return url
}
