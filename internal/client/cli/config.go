package cli

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/userledger/internal/server/auth"
)

// Config holds connection settings for the command-line client.
//
// When AccessToken is empty and both SecretKey and Sender are set, a
// short-lived token for Sender is minted locally.
type Config struct {
	ServerEndpointAddr string        `env:"USERLEDGER_ENDPOINT"`
	AccessToken        string        `env:"USERLEDGER_ACCESS_TOKEN"`
	SecretKey          string        `env:"USERLEDGER_SECRET_KEY"`
	Sender             string        `env:"USERLEDGER_SENDER"`
	TokenValidity      time.Duration `env:"USERLEDGER_ACCESS_TOKEN_TTL"`
	Timeout            time.Duration `env:"USERLEDGER_CLI_TIMEOUT"`
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.TokenValidity = 5 * time.Minute
	c.Timeout = 10 * time.Second
}

// LoadConfig applies defaults, environment and flags, and returns the
// arguments left after the flags: the command and its operands.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := env.Parse(cfg); err != nil {
		return nil, nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.AccessToken, "token", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key used to mint a token")
	fs.StringVar(&cfg.Sender, "sender", cfg.Sender, "address to mint a token for")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-command timeout")
	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("parse flags: %w", err)
	}
	return cfg, fs.Args(), nil
}

// Token returns the configured access token or mints one.
func (c *Config) Token() (string, error) {
	if c.AccessToken != "" || c.SecretKey == "" || c.Sender == "" {
		return c.AccessToken, nil
	}
	return auth.GenerateToken(c.Sender, []byte(c.SecretKey), c.TokenValidity)
}
