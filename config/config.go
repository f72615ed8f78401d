// Package config loads the application configuration from a yaml file with
// sane defaults for every knob. Provider API keys are never stored in the
// file; they are resolved from the environment at adapter construction.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	defaultFinnhubBaseURL      = "https://finnhub.io/api/v1"
	defaultAlphaVantageBaseURL = "https://www.alphavantage.co"

	defaultQuoteTTL    = 15 * time.Second
	defaultSearchTTL   = 10 * time.Minute
	defaultHTTPTimeout = 10 * time.Second

	defaultStartingCash = "10000"
	defaultMaxResets    = 3
	defaultStateDir     = "./state"
	defaultWebAddr      = ":8080"
)

// ProviderConfig holds the per-provider tunables: endpoint, quota window and
// cache TTLs. Quote TTLs are seconds-scale; search results change far less
// often and get a much longer TTL.
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url"`
	MaxCalls       int           `yaml:"max_calls"`
	WindowDuration time.Duration `yaml:"window_duration"`
	QuoteTTL       time.Duration `yaml:"quote_ttl"`
	SearchTTL      time.Duration `yaml:"search_ttl"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
}

// LedgerConfig holds the paper-trading account settings.
type LedgerConfig struct {
	StartingCash decimal.Decimal
	MaxResets    int
	StateDir     string
}

// Config is the full application configuration.
type Config struct {
	Finnhub      ProviderConfig
	AlphaVantage ProviderConfig
	Ledger       LedgerConfig
	WebAddr      string
}

type ledgerTmp struct {
	StartingCash string `yaml:"starting_cash,omitempty"`
	MaxResets    *int   `yaml:"max_resets,omitempty"`
	StateDir     string `yaml:"state_dir,omitempty"`
}

type configTmp struct {
	Finnhub      ProviderConfig `yaml:"finnhub,omitempty"`
	AlphaVantage ProviderConfig `yaml:"alphavantage,omitempty"`
	Ledger       ledgerTmp      `yaml:"ledger,omitempty"`
	WebAddr      string         `yaml:"web_addr,omitempty"`
}

// Default returns the configuration used when no yaml file is supplied.
func Default() Config {
	startingCash, _ := decimal.NewFromString(defaultStartingCash)
	return Config{
		Finnhub: ProviderConfig{
			BaseURL:        defaultFinnhubBaseURL,
			MaxCalls:       30,
			WindowDuration: time.Second,
			QuoteTTL:       defaultQuoteTTL,
			SearchTTL:      defaultSearchTTL,
			HTTPTimeout:    defaultHTTPTimeout,
		},
		AlphaVantage: ProviderConfig{
			BaseURL:        defaultAlphaVantageBaseURL,
			MaxCalls:       5,
			WindowDuration: time.Minute,
			QuoteTTL:       defaultQuoteTTL,
			SearchTTL:      defaultSearchTTL,
			HTTPTimeout:    defaultHTTPTimeout,
		},
		Ledger: LedgerConfig{
			StartingCash: startingCash,
			MaxResets:    defaultMaxResets,
			StateDir:     defaultStateDir,
		},
		WebAddr: defaultWebAddr,
	}
}

// Get resolves the configuration from the --config flag, falling back to
// defaults when the flag is absent.
func Get() (Config, error) {
	path := flag.String("config", "", "path to yaml config")
	flag.Parse()

	if *path == "" {
		return Default(), nil
	}
	return FromYaml(*path)
}

// FromYaml loads a config file, filling every omitted field with its default.
func FromYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "parse yaml config")
	}

	cfg := Default()
	mergeProvider(&cfg.Finnhub, tmp.Finnhub)
	mergeProvider(&cfg.AlphaVantage, tmp.AlphaVantage)

	if tmp.Ledger.StartingCash != "" {
		startingCash, err := decimal.NewFromString(tmp.Ledger.StartingCash)
		if err != nil {
			return Config{}, errors.Wrapf(err, "incorrect 'starting_cash' param in yaml config: %s", tmp.Ledger.StartingCash)
		}
		if startingCash.LessThanOrEqual(decimal.Zero) {
			return Config{}, errors.Errorf("'starting_cash' must be positive, got %s", startingCash.String())
		}
		cfg.Ledger.StartingCash = startingCash
	}
	if tmp.Ledger.MaxResets != nil {
		if *tmp.Ledger.MaxResets < 0 {
			return Config{}, errors.Errorf("'max_resets' must not be negative, got %d", *tmp.Ledger.MaxResets)
		}
		cfg.Ledger.MaxResets = *tmp.Ledger.MaxResets
	}
	if tmp.Ledger.StateDir != "" {
		cfg.Ledger.StateDir = tmp.Ledger.StateDir
	}
	if tmp.WebAddr != "" {
		cfg.WebAddr = tmp.WebAddr
	}

	return cfg, nil
}

func mergeProvider(dst *ProviderConfig, src ProviderConfig) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.MaxCalls > 0 {
		dst.MaxCalls = src.MaxCalls
	}
	if src.WindowDuration > 0 {
		dst.WindowDuration = src.WindowDuration
	}
	if src.QuoteTTL > 0 {
		dst.QuoteTTL = src.QuoteTTL
	}
	if src.SearchTTL > 0 {
		dst.SearchTTL = src.SearchTTL
	}
	if src.HTTPTimeout > 0 {
		dst.HTTPTimeout = src.HTTPTimeout
	}
}
