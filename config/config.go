/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/suparena/entitysession/datastore"
	"github.com/suparena/entitysession/datastore/ddb"
	"github.com/suparena/entitysession/datastore/memory"
	"github.com/suparena/entitysession/datastore/sqlite"
	"github.com/suparena/entitysession/errors"
	"github.com/suparena/entitysession/logger"
)

// EnvPrefix prefixes every environment override, e.g. ENTITYSESSION_DRIVER.
const EnvPrefix = "ENTITYSESSION_"

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// Config selects and configures the storage driver of a session.
type Config struct {
	Driver   string         `yaml:"driver" env:"DRIVER"`
	SQLite   SQLiteConfig   `yaml:"sqlite" envPrefix:"SQLITE_"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb" envPrefix:"DYNAMODB_"`
	Log      logger.Config  `yaml:"log" envPrefix:"LOG_"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type DynamoDBConfig struct {
	Region       string        `yaml:"region" env:"REGION"`
	Table        string        `yaml:"table" env:"TABLE"`
	AccessKey    string        `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey    string        `yaml:"secret_key" env:"SECRET_KEY"`
	Endpoint     string        `yaml:"endpoint" env:"ENDPOINT"`
	PageSize     int32         `yaml:"page_size" env:"PAGE_SIZE"`
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Driver: DriverMemory,
		SQLite: SQLiteConfig{Path: "./entitysession.db"},
		DynamoDB: DynamoDBConfig{
			PageSize:     100,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
		},
		Log: logger.Config{Level: "INFO", Format: "text"},
	}
}

// Load reads an optional .env file, the YAML file at path (skipped when path
// is empty) and ENTITYSESSION_* environment overrides, in that order.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = Default().SQLite.Path
	}
}

// Validate checks that the selected driver has what it needs.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return errors.NewValidationError("sqlite.path", "required for the sqlite driver")
		}
	case DriverDynamoDB:
		if c.DynamoDB.Region == "" {
			return errors.NewValidationError("dynamodb.region", "required for the dynamodb driver")
		}
		if c.DynamoDB.Table == "" {
			return errors.NewValidationError("dynamodb.table", "required for the dynamodb driver")
		}
		if c.DynamoDB.AccessKey != "" && c.DynamoDB.SecretKey == "" {
			return errors.NewValidationError("dynamodb.secret_key", "required with an access key")
		}
	default:
		return errors.NewValidationError("driver", fmt.Sprintf("unknown driver %q", c.Driver))
	}
	return nil
}

// OpenDriver constructs the configured driver.
func OpenDriver(ctx context.Context, c *Config) (datastore.Driver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Driver {
	case DriverSQLite:
		d, err := sqlite.Open(c.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return d, nil
	case DriverDynamoDB:
		client, err := ddb.NewClient(ctx, ddb.ClientConfig{
			AccessKey: c.DynamoDB.AccessKey,
			SecretKey: c.DynamoDB.SecretKey,
			Region:    c.DynamoDB.Region,
			Endpoint:  c.DynamoDB.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		d, err := ddb.New(client, ddb.Options{
			TableName:    c.DynamoDB.Table,
			PageSize:     c.DynamoDB.PageSize,
			MaxRetries:   c.DynamoDB.MaxRetries,
			RetryBackoff: c.DynamoDB.RetryBackoff,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return memory.New(), nil
	}
}
