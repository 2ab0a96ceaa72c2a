package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Env var names, referenced by tests.
const (
	EnvAppEnv      = "STOREFRONT_APP_ENV"
	EnvAPIBaseURL  = "STOREFRONT_API_BASE_URL"
	EnvShippingFee = "STOREFRONT_SHIPPING_FEE"
)

type Config struct {
	App      AppConfig
	API      APIConfig
	Checkout CheckoutConfig
	Cart     CartConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.API.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"development"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type APIConfig struct {
	BaseURL        string        `envconfig:"STOREFRONT_API_BASE_URL" default:"http://localhost:5000/api"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_API_REQUEST_TIMEOUT" default:"10s"`
}

func (a *APIConfig) normalize() error {
	parsed, err := url.Parse(a.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvAPIBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", EnvAPIBaseURL, a.BaseURL)
	}
	a.BaseURL = strings.TrimRight(a.BaseURL, "/")
	return nil
}

type CheckoutConfig struct {
	// ShippingFee is a flat amount added to the subtotal. No rate engine.
	ShippingFee decimal.Decimal `envconfig:"STOREFRONT_SHIPPING_FEE" default:"15"`
}

type CartConfig struct {
	ToastTTL time.Duration `envconfig:"STOREFRONT_TOAST_TTL" default:"3s"`
}
