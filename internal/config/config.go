// Package config loads Drey's configuration: board settings from an optional
// drey.yml, secrets strictly from the environment. Every required value is
// checked before any store call is attempted, so a misconfigured agent fails
// fast with a configuration error instead of a confusing store failure.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks missing or invalid configuration. Always fatal at
// startup; never retried.
var ErrConfiguration = errors.New("configuration error")

// Store backend names.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendDrive = "drive"
)

// Config is the merged runtime configuration.
type Config struct {
	AgentID   string        // identity this process posts and claims as; generated if empty
	Namespace string        // board namespace shared by collaborating agents
	Backend   string        // file, redis, or drive
	OpTimeout time.Duration // per-store-call timeout

	File  FileBackend
	Redis RedisBackend
	Drive DriveBackend
}

// FileBackend configures the shared-folder store.
type FileBackend struct {
	Root string
}

// RedisBackend configures the Redis store.
type RedisBackend struct {
	Addr     string
	Password string
	DB       int
}

// DriveBackend configures the remote drive store. The three secrets come
// only from the environment, never from drey.yml.
type DriveBackend struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SitePath     string
}

// yamlConfig is the drey.yml shape. Everything is optional; the environment
// overrides whatever is set here.
type yamlConfig struct {
	Version   string `yaml:"version"`
	Namespace string `yaml:"namespace,omitempty"`
	Backend   string `yaml:"backend,omitempty"`
	File      struct {
		Root string `yaml:"root,omitempty"`
	} `yaml:"file,omitempty"`
	Redis struct {
		Addr string `yaml:"addr,omitempty"`
		DB   int    `yaml:"db,omitempty"`
	} `yaml:"redis,omitempty"`
	Drive struct {
		SitePath string `yaml:"site_path,omitempty"`
	} `yaml:"drive,omitempty"`
}

// envConfig is processed with the DREY_ prefix, e.g. DREY_AGENT_ID.
type envConfig struct {
	AgentID           string        `envconfig:"AGENT_ID"`
	Namespace         string        `envconfig:"NAMESPACE"`
	Backend           string        `envconfig:"BACKEND"`
	OpTimeout         time.Duration `envconfig:"OP_TIMEOUT" default:"30s"`
	FileRoot          string        `envconfig:"FILE_ROOT"`
	RedisAddr         string        `envconfig:"REDIS_ADDR"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB"`
	DriveTenantID     string        `envconfig:"DRIVE_TENANT_ID"`
	DriveClientID     string        `envconfig:"DRIVE_CLIENT_ID"`
	DriveClientSecret string        `envconfig:"DRIVE_CLIENT_SECRET"`
	DriveSitePath     string        `envconfig:"DRIVE_SITE_PATH"`
}

// Load reads drey.yml (path may be empty, meaning ./drey.yml), layers the
// environment on top, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	// A local .env is a development convenience; load errors are ignored.
	_ = godotenv.Load()

	if path == "" {
		path = "drey.yml"
	}

	var yml yamlConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &yml); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrConfiguration, path, err)
		}
		if yml.Version != "" && yml.Version != "1.0" {
			return nil, fmt.Errorf("%w: unsupported %s version: %s (expected: 1.0)", ErrConfiguration, path, yml.Version)
		}
	case os.IsNotExist(err):
		// drey.yml is optional
	default:
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrConfiguration, path, err)
	}

	var env envConfig
	if err := envconfig.Process("drey", &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	cfg := &Config{
		AgentID:   env.AgentID,
		Namespace: firstNonEmpty(env.Namespace, yml.Namespace, "default"),
		Backend:   firstNonEmpty(env.Backend, yml.Backend, BackendFile),
		OpTimeout: env.OpTimeout,
		File: FileBackend{
			Root: firstNonEmpty(env.FileRoot, yml.File.Root, "./drey-data"),
		},
		Redis: RedisBackend{
			Addr:     firstNonEmpty(env.RedisAddr, yml.Redis.Addr, "localhost:6379"),
			Password: env.RedisPassword,
			DB:       yml.Redis.DB,
		},
		Drive: DriveBackend{
			TenantID:     env.DriveTenantID,
			ClientID:     env.DriveClientID,
			ClientSecret: env.DriveClientSecret,
			SitePath:     firstNonEmpty(env.DriveSitePath, yml.Drive.SitePath),
		},
	}
	if env.RedisDB != 0 {
		cfg.Redis.DB = env.RedisDB
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.File.Root == "" {
			return fmt.Errorf("%w: file backend requires a root directory (DREY_FILE_ROOT or file.root)", ErrConfiguration)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis backend requires an address (DREY_REDIS_ADDR or redis.addr)", ErrConfiguration)
		}
	case BackendDrive:
		switch {
		case c.Drive.TenantID == "":
			return fmt.Errorf("%w: drive backend requires DREY_DRIVE_TENANT_ID", ErrConfiguration)
		case c.Drive.ClientID == "":
			return fmt.Errorf("%w: drive backend requires DREY_DRIVE_CLIENT_ID", ErrConfiguration)
		case c.Drive.ClientSecret == "":
			return fmt.Errorf("%w: drive backend requires DREY_DRIVE_CLIENT_SECRET", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q (expected file, redis, or drive)", ErrConfiguration, c.Backend)
	}

	if c.Namespace == "" {
		return fmt.Errorf("%w: namespace cannot be empty", ErrConfiguration)
	}
	if c.OpTimeout <= 0 {
		return fmt.Errorf("%w: operation timeout must be positive", ErrConfiguration)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
