package core

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultRecvWindow is the clock-skew tolerance, in milliseconds, sent with signed requests.
const DefaultRecvWindow int64 = 5000

// DefaultUserAgent identifies this client to the venue.
const DefaultUserAgent = "swapline"

// Credentials holds API authentication credentials for an exchange.
// Both fields may be empty; signed calls are then still built and the venue rejects them.
type Credentials struct {
	// APIKey is the public API key identifier.
	APIKey string `json:"api_key" yaml:"api_key"`
	// SecretKey is the private key used for signing requests. It is never transmitted.
	SecretKey string `json:"secret_key" yaml:"secret_key"`
}

// String hides the secret so credentials can be printed safely.
func (c Credentials) String() string {
	if c.SecretKey == "" {
		return fmt.Sprintf("Credentials{APIKey:%q}", c.APIKey)
	}
	return fmt.Sprintf("Credentials{APIKey:%q SecretKey:***}", c.APIKey)
}

// Config contains all configuration options for an exchange client.
type Config struct {
	Exchange    string       `json:"exchange" yaml:"exchange" validate:"required"`
	Host        string       `json:"host" yaml:"host" validate:"required,url"`
	Credentials *Credentials `json:"credentials,omitempty" yaml:"credentials,omitempty"`

	// Timeout is the maximum duration for HTTP requests.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"min=1ms"`
	// RecvWindow is sent with every signed request, in milliseconds.
	RecvWindow int64  `json:"recv_window" yaml:"recv_window" validate:"min=1,max=60000"`
	UserAgent  string `json:"user_agent" yaml:"user_agent"`

	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config for the exchange targeting host.
// Default values: 10s timeout, 5000ms recvWindow, "swapline" user agent, info logging.
func DefaultConfig(exchange, host string) *Config {
	return &Config{
		Exchange:   exchange,
		Host:       host,
		Timeout:    10 * time.Second,
		RecvWindow: DefaultRecvWindow,
		UserAgent:  DefaultUserAgent,
		LogLevel:   "info",
	}
}

// LoadConfig reads a YAML config file. Fields absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig("", "")
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

var validate = validator.New()

// Validate checks the config against its field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%s: %w", ErrCodeInvalidConfig, err)
	}
	return nil
}

// Creds returns the configured credentials, or empty ones when none are set.
func (c *Config) Creds() Credentials {
	if c.Credentials == nil {
		return Credentials{}
	}
	return *c.Credentials
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithHost retargets the config at another base URL, e.g. a testnet or mirror.
func (c *Config) WithHost(host string) *Config {
	c.Host = host
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRecvWindow sets the recvWindow sent with signed requests.
func (c *Config) WithRecvWindow(ms int64) *Config {
	c.RecvWindow = ms
	return c
}
