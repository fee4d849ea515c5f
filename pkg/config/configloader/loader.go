// Package configloader layers configuration sources into a typed config struct.
package configloader

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Validator interface {
	Validate() error
}

// Options tells Load where to look. Zero values fall back to config.yaml, .env
// and the upper-cased service name as the env prefix.
type Options struct {
	ConfigFile string
	EnvFile    string
	EnvPrefix  string
}

func (o Options) withDefaults(serviceName string) Options {
	if o.EnvPrefix == "" {
		o.EnvPrefix = fmt.Sprintf("%s_", strings.ToUpper(serviceName))
	}
	if o.ConfigFile == "" {
		o.ConfigFile = os.Getenv(o.EnvPrefix + "CONFIG_FILE")
	}
	if o.ConfigFile == "" {
		o.ConfigFile = "config.yaml"
	}
	if o.EnvFile == "" {
		o.EnvFile = ".env"
	}
	return o
}

// Load reads the yaml file, then the .env file, then the process environment;
// later sources win. STOREFRONT_STORAGE_REDIS_URL maps to storage.redis.url.
func Load[T Validator](serviceName string) (T, error) {
	return LoadWith[T](serviceName, Options{})
}

func LoadWith[T Validator](serviceName string, opts Options) (T, error) {
	var cfg T
	opts = opts.withDefaults(serviceName)
	k := koanf.New(".")

	// 1. yaml file
	if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: error loading YAML config file '%s': %v", opts.ConfigFile, err)
		}
	}

	envTransformer := func(key string) string {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, strings.ToLower(opts.EnvPrefix))
		return strings.ReplaceAll(key, "_", ".")
	}

	// 2. .env file, prefixed keys only
	if envFileMap, err := godotenv.Read(opts.EnvFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			if !strings.HasPrefix(strings.ToUpper(key), opts.EnvPrefix) {
				continue
			}
			envMap[envTransformer(key)] = value
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 3. process environment, the highest priority
	if err := k.Load(env.Provider(opts.EnvPrefix, ".", envTransformer), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
