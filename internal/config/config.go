package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"corevo/go-backend/internal/securestore"
	"corevo/go-backend/internal/storage"
	"corevo/go-backend/pkg/models"

	"gopkg.in/yaml.v3"
)

const (
	BackendBolt   = "bolt"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Config is the resolved runtime configuration of the corevo CLI.
type Config struct {
	LogLevel      string
	SS58Prefix    uint16
	Parallelism   int
	Backend       string
	BoltPath      string
	Mongo         storage.MongoConfig
	SubmitRate    float64
	SubmitBurst   int
	WatchInterval time.Duration
	KeystorePath  string
	KeystoreKDF   securestore.KDFParams
	MetricsListen string
}

func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		SS58Prefix:    models.GenericSS58Prefix,
		Parallelism:   4,
		Backend:       BackendBolt,
		BoltPath:      "corevo-ledger.db",
		Mongo:         storage.DefaultMongoConfig(),
		SubmitRate:    1,
		SubmitBurst:   4,
		WatchInterval: 6 * time.Second,
		KeystorePath:  "corevo-keystore.enc",
		KeystoreKDF:   securestore.DefaultKDFParams(),
	}
}

// FileConfig mirrors the YAML layout. Unset fields keep their defaults.
type FileConfig struct {
	Log      FileLogConfig      `yaml:"log"`
	Chain    FileChainConfig    `yaml:"chain"`
	Store    FileStoreConfig    `yaml:"store"`
	Keystore FileKeystoreConfig `yaml:"keystore"`
	Indexer  FileIndexerConfig  `yaml:"indexer"`
	Metrics  FileMetricsConfig  `yaml:"metrics"`
}

type FileLogConfig struct {
	Level string `yaml:"level"`
}

type FileChainConfig struct {
	URL           string        `yaml:"url"`
	SS58Prefix    *uint16       `yaml:"ss58Prefix"`
	SubmitRate    float64       `yaml:"submitRate"`
	SubmitBurst   int           `yaml:"submitBurst"`
	WatchInterval time.Duration `yaml:"watchInterval"`
}

type FileStoreConfig struct {
	Backend  string              `yaml:"backend"`
	BoltPath string              `yaml:"boltPath"`
	Mongo    storage.MongoConfig `yaml:"mongo"`
}

type FileKeystoreConfig struct {
	Path string                `yaml:"path"`
	KDF  securestore.KDFParams `yaml:"kdf"`
}

type FileIndexerConfig struct {
	Parallelism int `yaml:"parallelism"`
}

type FileMetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoadFromPath reads the first readable candidate, merges it over the
// defaults and applies COREVO_* overrides. An unreadable explicit path is an
// error; missing default candidates are not.
func LoadFromPath(configPath string) (Config, error) {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"corevo.yaml",
			"configs/config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			continue
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func Merge(dst *Config, src FileConfig) {
	if src.Log.Level != "" {
		dst.LogLevel = src.Log.Level
	}
	if src.Chain.URL != "" {
		dst.SS58Prefix = models.SS58PrefixForChain(src.Chain.URL)
	}
	if src.Chain.SS58Prefix != nil {
		dst.SS58Prefix = *src.Chain.SS58Prefix
	}
	if src.Chain.SubmitRate != 0 {
		dst.SubmitRate = src.Chain.SubmitRate
	}
	if src.Chain.SubmitBurst != 0 {
		dst.SubmitBurst = src.Chain.SubmitBurst
	}
	if src.Chain.WatchInterval != 0 {
		dst.WatchInterval = src.Chain.WatchInterval
	}
	if src.Store.Backend != "" {
		dst.Backend = src.Store.Backend
	}
	if src.Store.BoltPath != "" {
		dst.BoltPath = src.Store.BoltPath
	}
	mergeMongo(&dst.Mongo, src.Store.Mongo)
	if src.Keystore.Path != "" {
		dst.KeystorePath = src.Keystore.Path
	}
	if src.Keystore.KDF.Time != 0 {
		dst.KeystoreKDF.Time = src.Keystore.KDF.Time
	}
	if src.Keystore.KDF.MemoryKB != 0 {
		dst.KeystoreKDF.MemoryKB = src.Keystore.KDF.MemoryKB
	}
	if src.Keystore.KDF.Threads != 0 {
		dst.KeystoreKDF.Threads = src.Keystore.KDF.Threads
	}
	if src.Indexer.Parallelism != 0 {
		dst.Parallelism = src.Indexer.Parallelism
	}
	if src.Metrics.Listen != "" {
		dst.MetricsListen = src.Metrics.Listen
	}
}

func mergeMongo(dst *storage.MongoConfig, src storage.MongoConfig) {
	if src.URI != "" {
		dst.URI = src.URI
	}
	if src.Database != "" {
		dst.Database = src.Database
	}
	if src.BlockField != "" {
		dst.BlockField = src.BlockField
	}
	if src.IndexField != "" {
		dst.IndexField = src.IndexField
	}
	if src.ConnectTimeout != 0 {
		dst.ConnectTimeout = src.ConnectTimeout
	}
}

// ApplyEnvOverrides applies COREVO_* variables. Malformed numeric values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := env("COREVO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("COREVO_CHAIN_URL"); v != "" {
		cfg.SS58Prefix = models.SS58PrefixForChain(v)
	}
	if v := env("COREVO_SS58_PREFIX"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.SS58Prefix = uint16(n)
		}
	}
	if v := env("COREVO_STORE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := env("COREVO_BOLT_PATH"); v != "" {
		cfg.BoltPath = v
	}
	if v := env("COREVO_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := env("COREVO_MONGO_DATABASE"); v != "" {
		cfg.Mongo.Database = v
	}
	if v := env("COREVO_KEYSTORE_PATH"); v != "" {
		cfg.KeystorePath = v
	}
	if v := env("COREVO_WATCH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WatchInterval = d
		}
	}
	if v := env("COREVO_SUBMIT_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SubmitRate = f
		}
	}
	if v := env("COREVO_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Parallelism = n
		}
	}
	if v := env("COREVO_METRICS_LISTEN"); v != "" {
		cfg.MetricsListen = v
	}
}

func normalize(cfg *Config) {
	def := DefaultConfig()
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch cfg.Backend {
	case BackendBolt, BackendMongo, BackendMemory:
	default:
		cfg.Backend = def.Backend
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = def.WatchInterval
	}
	if cfg.SubmitRate < 0 {
		cfg.SubmitRate = 0
	}
	if cfg.SubmitBurst <= 0 {
		cfg.SubmitBurst = def.SubmitBurst
	}
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
