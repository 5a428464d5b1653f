// Package config handles configuration for the server component: defaults,
// then a JSON file, then USERLEDGER_* environment variables, then
// command-line flags. Later sources win.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/dmitrijs2005/userledger/internal/models"
)

const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StorageMemory   = "memory"

	ACLNone   = "none"
	ACLGRPC   = "grpc"
	ACLPolicy = "policy"
)

// Config holds runtime settings for the registry server.
//
// Exactly one of OwnerAddress or OwnerACL names the owner written when the
// store is instantiated for the first time; both are ignored afterwards.
// ACLRules is only read from the JSON file.
type Config struct {
	EndpointAddrGRPC            string            `env:"USERLEDGER_GRPC_ADDR"`
	MetricsAddr                 string            `env:"USERLEDGER_METRICS_ADDR"`
	StorageDriver               string            `env:"USERLEDGER_STORAGE"`
	DatabaseDSN                 string            `env:"USERLEDGER_DATABASE_DSN"`
	RedisAddr                   string            `env:"USERLEDGER_REDIS_ADDR"`
	RedisPrefix                 string            `env:"USERLEDGER_REDIS_PREFIX"`
	SecretKey                   string            `env:"USERLEDGER_SECRET_KEY"`
	AccessTokenValidityDuration time.Duration     `env:"USERLEDGER_ACCESS_TOKEN_TTL"`
	DefaultSessionTimeout       time.Duration     `env:"USERLEDGER_SESSION_TIMEOUT"`
	ACLMode                     string            `env:"USERLEDGER_ACL_MODE"`
	ACLEndpoint                 string            `env:"USERLEDGER_ACL_ENDPOINT"`
	ACLRules                    map[string]string
	OwnerAddress                string            `env:"USERLEDGER_OWNER"`
	OwnerACL                    string            `env:"USERLEDGER_OWNER_ACL"`
	LogLevel                    string            `env:"USERLEDGER_LOG_LEVEL"`
}

// LoadDefaults populates Config with development defaults. The secret key
// is not safe for production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.MetricsAddr = ":9090"
	c.StorageDriver = StorageSQLite
	c.DatabaseDSN = "file:userledger.db"
	c.RedisAddr = "localhost:6379"
	c.RedisPrefix = "userledger"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.DefaultSessionTimeout = 48 * time.Hour
	c.ACLMode = ACLNone
	c.LogLevel = "info"
}

// Owner returns the owner to instantiate the store with.
func (c *Config) Owner() models.Owner {
	if c.OwnerACL != "" {
		return models.ACLOwner(c.OwnerACL)
	}
	return models.AddressOwner(c.OwnerAddress)
}

func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{StoragePostgres, StorageSQLite, StorageRedis, StorageMemory}, c.StorageDriver) {
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}
	if !slices.Contains([]string{ACLNone, ACLGRPC, ACLPolicy}, c.ACLMode) {
		errs = append(errs, fmt.Errorf("unknown acl mode %q", c.ACLMode))
	}
	if c.ACLMode == ACLGRPC && c.ACLEndpoint == "" {
		errs = append(errs, errors.New("acl mode grpc needs an acl endpoint"))
	}
	if c.ACLMode == ACLPolicy && len(c.ACLRules) == 0 {
		errs = append(errs, errors.New("acl mode policy needs acl rules"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is empty"))
	}
	if c.AccessTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("access token validity must be positive"))
	}
	if c.DefaultSessionTimeout < time.Second {
		errs = append(errs, errors.New("default session timeout must be at least 1s"))
	}
	switch {
	case c.OwnerAddress == "" && c.OwnerACL == "":
		errs = append(errs, errors.New("one of owner address, owner acl is required"))
	case c.OwnerAddress != "" && c.OwnerACL != "":
		errs = append(errs, errors.New("owner address and owner acl are mutually exclusive"))
	}
	return errors.Join(errs...)
}

// Load builds a Config from args (without the program name) and the
// process environment.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}
