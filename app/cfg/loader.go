package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"rss_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"rss_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"rss_deck" description:"Database name"`

	// Application configuration
	SourcesDir   string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing subscription seed files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed processing"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Feed gateway configuration
	GatewayBaseURL string `long:"gateway-base-url" env:"GATEWAY_BASE_URL" default:"https://rsshub.app" description:"Base URL of the feed gateway used by the rsshub:// scheme"`

	// Outbound proxy configuration
	ProxyEnabled bool   `long:"proxy-enabled" env:"PROXY_ENABLED" description:"Route outbound requests through a proxy"`
	ProxyURL     string `long:"proxy-url" env:"PROXY_URL" description:"Explicit proxy URL (e.g., http://127.0.0.1:7890)"`
	ProxyAuto    bool   `long:"proxy-auto" env:"PROXY_AUTO" description:"Auto-detect a local proxy by probing well-known ports"`

	// Enrichment configuration
	RedisAddr         string  `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address for the translation cache"`
	EnrichProvider    string  `long:"enrich-provider" env:"ENRICH_PROVIDER" default:"openai" description:"Enrichment provider identity"`
	EnrichBaseURL     string  `long:"enrich-base-url" env:"ENRICH_BASE_URL" default:"https://api.openai.com/v1" description:"Enrichment API base URL"`
	EnrichModel       string  `long:"enrich-model" env:"ENRICH_MODEL" default:"gpt-4o-mini" description:"Enrichment model identifier"`
	EnrichAPIKey      string  `long:"enrich-api-key" env:"ENRICH_API_KEY" description:"Enrichment API credential"`
	EnrichTemperature float64 `long:"enrich-temperature" env:"ENRICH_TEMPERATURE" default:"0.3" description:"Enrichment sampling temperature"`
	EnrichTargetLang  string  `long:"enrich-target-lang" env:"ENRICH_TARGET_LANG" default:"zh" description:"Target language tag for translation"`
	EnrichConcurrency int     `long:"enrich-concurrency" env:"ENRICH_CONCURRENCY" default:"10" description:"Maximum concurrent enrichment jobs"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:            raw.DBHost,
		DBPort:            raw.DBPort,
		DBUser:            raw.DBUser,
		DBPassword:        raw.DBPassword,
		DBName:            raw.DBName,
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		APIAccessKey:      raw.APIAccessKey,
		GatewayBaseURL:    raw.GatewayBaseURL,
		ProxyEnabled:      raw.ProxyEnabled,
		ProxyURL:          raw.ProxyURL,
		ProxyAuto:         raw.ProxyAuto,
		RedisAddr:         raw.RedisAddr,
		EnrichProvider:    raw.EnrichProvider,
		EnrichBaseURL:     raw.EnrichBaseURL,
		EnrichModel:       raw.EnrichModel,
		EnrichAPIKey:      raw.EnrichAPIKey,
		EnrichTemperature: raw.EnrichTemperature,
		EnrichTargetLang:  raw.EnrichTargetLang,
		EnrichConcurrency: raw.EnrichConcurrency,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
