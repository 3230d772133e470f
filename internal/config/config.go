package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/joho/godotenv"
)

// Queue backends.
const (
	BackendHTTP  = "http"
	BackendRedis = "redis"
	BackendAMQP  = "amqp"
	BackendKafka = "kafka"
)

// DefaultMaxRank caps how many stations one day's search may read. Set
// MAX_RANK=0 to walk every station.
const DefaultMaxRank = 10

// GHCND archive sources.
const (
	GHCNDSourceAll    = "all"
	GHCNDSourceByYear = "by-year"
)

// Station selection policies.
const (
	PolicyComplete     = "complete"
	PolicyFirstStation = "first-station"
)

// Config holds all settings shared by the coordinator and workers,
// populated from environment variables.
type Config struct {
	QueueBackend      string
	QueueAddrs        []string
	QueueUser         string
	QueueSecret       string
	QueueNamespace    string
	QueueClaimTimeout time.Duration
	BatchSize         int

	// Element codes written after the station-info columns, in order.
	Columns []string

	StationDBDriver string
	StationDBDSN    string

	CacheDir        string
	ArchiveURLGHCND string
	ArchiveURLGSOD  string
	ArchiveURLCOOP  string
	DownloadTimeout time.Duration
	MaxRetries      int
	RetryStep       time.Duration

	// GHCNDSource "by-year" reads GHCND stations from per-year archives
	// imported into the SQLite database at GHCNDDBDSN.
	GHCNDSource           string
	ArchiveURLGHCNDByYear string
	GHCNDDBDSN            string

	MaxRank         int
	MaxDistance     int
	SelectionPolicy string
	RankCacheSize   int
	RankCacheDepth  int

	WorkerConcurrency int
	PollInterval      time.Duration
	ShutdownGrace     time.Duration
	ShutdownTimeout   time.Duration

	HTTPAddr  string
	LogLevel  string
	LogFormat string
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables that are already set keep their values.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	if err := LoadEnvFile(os.Getenv("CONFIG_FILE")); err != nil {
		return nil, err
	}

	claimTimeout, err := parseDuration("QUEUE_CLAIM_TIMEOUT", "2s", false)
	if err != nil {
		return nil, err
	}
	batchSize, err := parseInt("BATCH_SIZE", 10, 1, 1000)
	if err != nil {
		return nil, err
	}
	downloadTimeout, err := parseDuration("DOWNLOAD_TIMEOUT", "10m", false)
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("MAX_RETRIES", 5, 0, 100)
	if err != nil {
		return nil, err
	}
	retryStep, err := parseDuration("RETRY_STEP", "10s", true)
	if err != nil {
		return nil, err
	}
	maxRank, err := parseInt("MAX_RANK", DefaultMaxRank, 0, 1_000_000)
	if err != nil {
		return nil, err
	}
	maxDistance, err := parseInt("MAX_DISTANCE", 0, 0, domain.MaxDistance)
	if err != nil {
		return nil, err
	}
	rankCacheSize, err := parseInt("RANK_CACHE_SIZE", 256, 1, 1_000_000)
	if err != nil {
		return nil, err
	}
	rankCacheDepth, err := parseInt("RANK_CACHE_DEPTH", 100, 1, 1_000_000)
	if err != nil {
		return nil, err
	}
	concurrency, err := parseInt("WORKER_CONCURRENCY", 1, 1, 256)
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "100ms", false)
	if err != nil {
		return nil, err
	}
	grace, err := parseDuration("SHUTDOWN_GRACE", "3s", true)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	columns := domain.DefaultElements
	if path := os.Getenv("COLUMNS_FILE"); path != "" {
		columns, err = LoadColumns(path)
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		QueueBackend:      strings.ToLower(sharedcfg.EnvOrDefault("QUEUE_BACKEND", BackendHTTP)),
		QueueAddrs:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("QUEUE_ADDR", "127.0.0.1:50000")),
		QueueUser:         os.Getenv("QUEUE_USER"),
		QueueSecret:       os.Getenv("QUEUE_SECRET"),
		QueueNamespace:    sharedcfg.EnvOrDefault("QUEUE_NAMESPACE", "zip2wd"),
		QueueClaimTimeout: claimTimeout,
		BatchSize:         batchSize,

		Columns: columns,

		StationDBDriver: sharedcfg.EnvOrDefault("STATION_DB_DRIVER", "sqlite3"),
		StationDBDSN:    sharedcfg.EnvOrDefault("STATION_DB_DSN", "data/zip2ws.sqlite"),

		CacheDir:        sharedcfg.EnvOrDefault("CACHE_DIR", "data"),
		ArchiveURLGHCND: sharedcfg.EnvOrDefault("ARCHIVE_URL_GHCND", "https://www.ncei.noaa.gov/pub/data/ghcn/daily/all/{station}.dly"),
		ArchiveURLGSOD:  sharedcfg.EnvOrDefault("ARCHIVE_URL_GSOD", "https://www.ncei.noaa.gov/pub/data/gsod/{year}/{station}-{year}.op.gz"),
		ArchiveURLCOOP:  sharedcfg.EnvOrDefault("ARCHIVE_URL_COOP", "https://www.ncei.noaa.gov/pub/data/3200/{year}/3200{mon}{year}"),
		DownloadTimeout: downloadTimeout,
		MaxRetries:      maxRetries,
		RetryStep:       retryStep,

		GHCNDSource:           strings.ToLower(sharedcfg.EnvOrDefault("GHCND_SOURCE", GHCNDSourceAll)),
		ArchiveURLGHCNDByYear: sharedcfg.EnvOrDefault("ARCHIVE_URL_GHCND_BY_YEAR", "https://www.ncei.noaa.gov/pub/data/ghcn/daily/by_year/{year}.csv.gz"),
		GHCNDDBDSN:            sharedcfg.EnvOrDefault("GHCND_DB_DSN", "data/ghcn-daily/by_year/ghcnd.sqlite?_busy_timeout=10000"),

		MaxRank:         maxRank,
		MaxDistance:     maxDistance,
		SelectionPolicy: strings.ToLower(sharedcfg.EnvOrDefault("SELECTION_POLICY", PolicyComplete)),
		RankCacheSize:   rankCacheSize,
		RankCacheDepth:  rankCacheDepth,

		WorkerConcurrency: concurrency,
		PollInterval:      pollInterval,
		ShutdownGrace:     grace,
		ShutdownTimeout:   shutdownTimeout,

		HTTPAddr:  os.Getenv("HTTP_ADDR"),
		LogLevel:  sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.QueueBackend {
	case BackendHTTP, BackendRedis, BackendAMQP, BackendKafka:
	default:
		return fmt.Errorf("invalid QUEUE_BACKEND %q", c.QueueBackend)
	}
	if len(c.QueueAddrs) == 0 {
		return errors.New("QUEUE_ADDR is required")
	}
	if c.QueueSecret == "" {
		return errors.New("QUEUE_SECRET is required")
	}
	if c.QueueNamespace == "" {
		return errors.New("QUEUE_NAMESPACE is required")
	}
	switch c.SelectionPolicy {
	case PolicyComplete, PolicyFirstStation:
	default:
		return fmt.Errorf("invalid SELECTION_POLICY %q", c.SelectionPolicy)
	}
	switch c.GHCNDSource {
	case GHCNDSourceAll, GHCNDSourceByYear:
	default:
		return fmt.Errorf("invalid GHCND_SOURCE %q", c.GHCNDSource)
	}
	switch c.StationDBDriver {
	case "sqlite3", "mysql":
	default:
		return fmt.Errorf("invalid STATION_DB_DRIVER %q", c.StationDBDriver)
	}
	if len(c.Columns) == 0 {
		return errors.New("COLUMNS_FILE lists no element codes")
	}
	return nil
}

// LoadColumns reads element codes, one per line. Blank lines and lines
// starting with '#' are skipped.
func LoadColumns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open columns file: %w", err)
	}
	defer f.Close()

	var cols []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols = append(cols, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read columns file: %w", err)
	}
	return cols, nil
}
