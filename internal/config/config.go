package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Engine   EngineConfig   `yaml:"engine"`
	Spam     SpamConfig     `yaml:"spam"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Alert    AlertConfig    `yaml:"alert"`
	Peaks    PeaksConfig    `yaml:"peaks"`
	Stores   StoresConfig   `yaml:"stores"`
	PubSub   PubSubConfig   `yaml:"pubsub"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AppConfig struct {
	InstanceID       string        `yaml:"instance_id"`
	CycleInterval    time.Duration `yaml:"cycle_interval"`    // cadence between cycle starts
	EpochLength      time.Duration `yaml:"epoch_length"`      // full reset period
	SnapshotInterval time.Duration `yaml:"snapshot_interval"` // warm-start snapshot cadence; 0 -> disabled
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type JWTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Alg            string        `yaml:"alg"` // RS256
	PublicKeyPath  string        `yaml:"public_key_path"`
	PrivateKeyPath string        `yaml:"private_key_path"` // dev-only token minting
	Audience       string        `yaml:"audience"`
	Issuer         string        `yaml:"issuer"`
	Leeway         time.Duration `yaml:"leeway"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

type IngestConfig struct {
	BaseURL     string        `yaml:"base_url"` // webhook requests endpoint
	APIKey      string        `yaml:"api_key"`
	MaxPages    int           `yaml:"max_pages"` // pages pulled per cycle
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	MintSuffix  string        `yaml:"mint_suffix"` // token eligibility naming convention
}

type EngineConfig struct {
	Retention time.Duration `yaml:"retention"` // prune horizon, >= the largest ranking window
}

type SpamConfig struct {
	Window    time.Duration `yaml:"window"`    // trailing activity window per account
	Threshold int           `yaml:"threshold"` // events above which the account is spamming
}

type DedupeConfig struct {
	MaxEntries int `yaml:"max_entries"` // ledger cap; cleared wholesale when exceeded
}

type WindowSpec struct {
	Window time.Duration `yaml:"window"`
	TopN   int           `yaml:"top_n"`
}

type RankingConfig struct {
	Windows []WindowSpec `yaml:"windows"` // ascending by window
}

type AlertConfig struct {
	Threshold     int           `yaml:"threshold"` // 1m leader count that fires an alert
	Duration      time.Duration `yaml:"duration"`
	FlashInterval time.Duration `yaml:"flash_interval"`
}

type PeaksConfig struct {
	LedgerPath string `yaml:"ledger_path"` // append-only CSV file
}

type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ClickHouseWriterConfig struct {
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

type ClickHouseConfig struct {
	Enabled bool                   `yaml:"enabled"`
	DSN     string                 `yaml:"dsn"`
	Writer  ClickHouseWriterConfig `yaml:"writer"`
}

type StoresConfig struct {
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type NATSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url"`
	BroadcastPrefix string `yaml:"broadcast_prefix"`
}

type PubSubConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

// Config for 2 bucket
type RateBucket struct {
	RefillPerSec int           `yaml:"refill_per_sec"` // how many tokens are add every second
	Burst        int           `yaml:"burst"`          // max len bucket
	TTL          time.Duration `yaml:"ttl"`            // how long should you keep a key if it isn't use
}

type RateLimitConfig struct {
	Enabled bool       `yaml:"enabled"`
	ByIP    RateBucket `yaml:"by_ip"`
	ByJWT   RateBucket `yaml:"by_jwt"`
}

type HTTPConfig struct {
	Addr         string          `yaml:"addr"`
	ReadTimeout  time.Duration   `yaml:"read_timeout"`
	WriteTimeout time.Duration   `yaml:"write_timeout"`
	IdleTimeout  time.Duration   `yaml:"idle_timeout"`
	CORS         CORSConfig      `yaml:"cors"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

type APIConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

type PyroscopeConfig struct {
	Enabled    bool              `yaml:"enabled"`
	AppName    string            `yaml:"app_name"`
	ServerAddr string            `yaml:"server_addr"`
	AuthToken  string            `yaml:"auth_token"`
	Tags       map[string]string `yaml:"tags"`
}

type MetricsConfig struct {
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Zero values fall back to the monitor's canonical constants
func (c *Config) ApplyDefaults() {
	if c.App.CycleInterval <= 0 {
		c.App.CycleInterval = 15 * time.Second
	}
	if c.App.EpochLength <= 0 {
		c.App.EpochLength = 2 * time.Hour
	}
	if c.App.ShutdownTimeout <= 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	if c.Ingest.MaxPages <= 0 {
		c.Ingest.MaxPages = 15
	}
	if c.Ingest.HTTPTimeout <= 0 {
		c.Ingest.HTTPTimeout = 10 * time.Second
	}
	if len(c.Ranking.Windows) == 0 {
		c.Ranking.Windows = []WindowSpec{
			{Window: time.Minute, TopN: 5},
			{Window: 3 * time.Minute, TopN: 25},
			{Window: 5 * time.Minute, TopN: 25},
		}
	}
	if c.Engine.Retention <= 0 {
		c.Engine.Retention = c.Ranking.Windows[len(c.Ranking.Windows)-1].Window
	}
	if c.Spam.Window <= 0 {
		c.Spam.Window = time.Minute
	}
	if c.Spam.Threshold <= 0 {
		c.Spam.Threshold = 15
	}
	if c.Dedupe.MaxEntries <= 0 {
		c.Dedupe.MaxEntries = 10000
	}
	if c.Alert.Threshold <= 0 {
		c.Alert.Threshold = 5
	}
	if c.Alert.Duration <= 0 {
		c.Alert.Duration = 15 * time.Second
	}
	if c.Alert.FlashInterval <= 0 {
		c.Alert.FlashInterval = 500 * time.Millisecond
	}
	if c.Peaks.LedgerPath == "" {
		c.Peaks.LedgerPath = "top_pumps.csv"
	}
}
