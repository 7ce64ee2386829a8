package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type ExchangeConfig struct {
	MarketURL        string
	CentralBankURL   string
	LocalMarketURL   string
	InternationalURL string
	ProviderTimeout  time.Duration
	// FallbackRate is the last persisted configured rate, used when every
	// provider fails.
	FallbackRate decimal.Decimal
}

type SifenConfig struct {
	BaseURL       string
	APIKey        string
	SubmitTimeout time.Duration
}

type CatalogConfig struct {
	CacheTTL time.Duration
	// DefaultDepartmentCode is the jurisdiction used when the client's
	// department text matches nothing in the catalog.
	DefaultDepartmentCode int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Exchange    ExchangeConfig
	Sifen       SifenConfig
	Catalog     CatalogConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Exchange: ExchangeConfig{
			MarketURL:        v.GetString("EXCHANGE_MARKET_URL"),
			CentralBankURL:   v.GetString("EXCHANGE_CENTRAL_BANK_URL"),
			LocalMarketURL:   v.GetString("EXCHANGE_LOCAL_MARKET_URL"),
			InternationalURL: v.GetString("EXCHANGE_INTERNATIONAL_URL"),
			ProviderTimeout:  v.GetDuration("EXCHANGE_PROVIDER_TIMEOUT"),
		},
		Sifen: SifenConfig{
			BaseURL:       v.GetString("SIFEN_BASE_URL"),
			APIKey:        v.GetString("SIFEN_API_KEY"),
			SubmitTimeout: v.GetDuration("SIFEN_SUBMIT_TIMEOUT"),
		},
		Catalog: CatalogConfig{
			CacheTTL:              v.GetDuration("CATALOG_CACHE_TTL"),
			DefaultDepartmentCode: v.GetInt("CATALOG_DEFAULT_DEPARTMENT"),
		},
	}

	if raw := strings.TrimSpace(v.GetString("EXCHANGE_FALLBACK_RATE")); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("EXCHANGE_FALLBACK_RATE is not a number: %w", err)
		}
		cfg.Exchange.FallbackRate = rate
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7092
	}
	if cfg.Exchange.ProviderTimeout == 0 {
		cfg.Exchange.ProviderTimeout = 3 * time.Second
	}
	if cfg.Sifen.SubmitTimeout == 0 {
		cfg.Sifen.SubmitTimeout = 30 * time.Second
	}
	if cfg.Catalog.CacheTTL == 0 {
		cfg.Catalog.CacheTTL = time.Hour
	}
	if cfg.Catalog.DefaultDepartmentCode == 0 {
		cfg.Catalog.DefaultDepartmentCode = 1 // Capital
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Sifen.BaseURL == "" {
		return fmt.Errorf("SIFEN_BASE_URL is required")
	}
	return nil
}
