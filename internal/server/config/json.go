package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/userledger/internal/flagx"
	"github.com/dmitrijs2005/userledger/internal/timex"
)

// JsonConfig is the file format. Durations accept "90s" style strings or
// integer nanoseconds. Absent fields keep their previous value.
type JsonConfig struct {
	EndpointAddrGRPC            string            `json:"endpoint_addr_grpc"`
	MetricsAddr                 string            `json:"metrics_addr"`
	StorageDriver               string            `json:"storage_driver"`
	DatabaseDSN                 string            `json:"database_dsn"`
	RedisAddr                   string            `json:"redis_addr"`
	RedisPrefix                 string            `json:"redis_prefix"`
	SecretKey                   string            `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration   `json:"access_token_validity_duration"`
	DefaultSessionTimeout       *timex.Duration   `json:"default_session_timeout"`
	ACLMode                     string            `json:"acl_mode"`
	ACLEndpoint                 string            `json:"acl_endpoint"`
	ACLRules                    map[string]string `json:"acl_rules"`
	OwnerAddress                string            `json:"owner_address"`
	OwnerACL                    string            `json:"owner_acl"`
	LogLevel                    string            `json:"log_level"`
}

// parseJson overlays the file named by -c/-config, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPrefix, c.RedisPrefix)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.ACLMode, c.ACLMode)
	setString(&config.ACLEndpoint, c.ACLEndpoint)
	setString(&config.OwnerAddress, c.OwnerAddress)
	setString(&config.OwnerACL, c.OwnerACL)
	setString(&config.LogLevel, c.LogLevel)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.DefaultSessionTimeout != nil {
		config.DefaultSessionTimeout = c.DefaultSessionTimeout.Duration
	}
	if c.ACLRules != nil {
		config.ACLRules = c.ACLRules
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
