// Package config loads the client configuration from environment variables
// (WASHSYNC_ prefix) and YAML files.
package config

import (
	"net/url"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/payment"
)

// Config holds the complete client configuration.
type Config struct {
	BaseURL         string               `env:"BASE_URL" yaml:"base_url" usage:"Backend REST base URL"`
	WebSocketURL    string               `env:"WEBSOCKET_URL" yaml:"websocket_url" usage:"Realtime push endpoint; derived from BaseURL when empty"`
	Token           string               `env:"TOKEN" yaml:"token" usage:"Initial bearer token; the shell normally sets it via PUT /session"`
	Line            string               `env:"LINE" yaml:"line" default:"wash" usage:"Order line: wash or detailing"`
	PollInterval    time.Duration        `env:"POLL_INTERVAL" yaml:"poll_interval" default:"30s" usage:"Full order refetch period, 0 disables polling"`
	CatalogInterval time.Duration        `env:"CATALOG_INTERVAL" yaml:"catalog_interval" default:"10m" usage:"Service catalog refetch period, 0 disables it"`
	BridgeAddr      string               `env:"BRIDGE_ADDR" yaml:"bridge_addr" default:"127.0.0.1:8765" usage:"Local bridge listen address"`
	AllowedOrigins  []string             `env:"ALLOWED_ORIGINS" yaml:"allowed_origins" usage:"Origins of the shell web view allowed by CORS"`
	PaymentMethods  PaymentMethodsConfig `env:"PAYMENT_METHODS" yaml:"payment_methods"`
	Reconnect       ReconnectConfig      `env:"RECONNECT" yaml:"reconnect"`
	Graceful        GracefulConfig       `env:"GRACEFUL" yaml:"graceful"`
}

// PaymentMethodsConfig maps payment methods to backend method ids.
type PaymentMethodsConfig struct {
	Cash    int `env:"CASH" yaml:"cash" default:"1" usage:"Backend id of the cash method"`
	NonCash int `env:"NON_CASH" yaml:"non_cash" default:"2" usage:"Backend id of the non-cash method"`
	Mixed   int `env:"MIXED" yaml:"mixed" default:"3" usage:"Backend id of the mixed method"`
}

// ReconnectConfig paces realtime reconnection.
type ReconnectConfig struct {
	InitialInterval time.Duration `env:"INITIAL_INTERVAL" yaml:"initial_interval" default:"1s" usage:"First reconnect delay"`
	MaxInterval     time.Duration `env:"MAX_INTERVAL" yaml:"max_interval" default:"1m" usage:"Reconnect delay ceiling"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" default:"10s" usage:"Maximum shutdown duration"`
}

// Methods converts the configured ids for the payment reconciler.
func (c PaymentMethodsConfig) Methods() payment.Methods {
	return payment.Methods{Cash: c.Cash, NonCash: c.NonCash, Mixed: c.Mixed}
}

// Load reads the configuration from the given files (defaulting to
// washsync.yaml and /etc/washsync/config.yaml) and the environment, then
// validates it.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{"washsync.yaml", "/etc/washsync/config.yaml"}
	}
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "WASHSYNC",
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and fills WebSocketURL from BaseURL.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required: set WASHSYNC_BASE_URL")
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil || base.Host == "" {
		return errors.Errorf("invalid base URL %q", c.BaseURL)
	}
	if _, err := c.OrderLine(); err != nil {
		return err
	}
	if c.PollInterval < 0 || c.CatalogInterval < 0 {
		return errors.New("intervals must not be negative")
	}
	if c.WebSocketURL == "" {
		c.WebSocketURL = deriveWebSocketURL(base)
	}
	return nil
}

// OrderLine returns the configured line.
func (c *Config) OrderLine() (enum.Line, error) {
	line := enum.Line(c.Line)
	switch line {
	case enum.LineWash, enum.LineDetailing:
		return line, nil
	default:
		return "", errors.Errorf("unknown line %q", c.Line)
	}
}

// deriveWebSocketURL maps http(s)://host/api to ws(s)://host/ws.
func deriveWebSocketURL(base *url.URL) string {
	u := *base
	u.Scheme = "ws"
	if base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String()
}
