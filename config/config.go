package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	envPrefix = "SNAPDB"

	DefaultEngine = "goleveldb"
	DefaultAddr   = "127.0.0.1:11001"
)

type Config struct {
	Engine   string         `mapstructure:"engine"`
	DataDir  string         `mapstructure:"data_dir"`
	InMemory bool           `mapstructure:"in_memory"`
	LevelDB  LevelDBConfig  `mapstructure:"leveldb"`
	Badger   BadgerConfig   `mapstructure:"badger"`
	Pebble   PebbleConfig   `mapstructure:"pebble"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Server   ServerC        `mapstructure:"server"`
	Debug    DebugC         `mapstructure:"debug"`
}

type LevelDBConfig struct {
	Compression     bool `mapstructure:"compression"`
	BlockSize       int  `mapstructure:"block_size"`
	WriteBufferSize int  `mapstructure:"write_buffer_size"`
	CacheSize       int  `mapstructure:"cache_size"`
	MaxOpenFiles    int  `mapstructure:"max_open_files"`
	// HotCacheSize is the ristretto tier capacity, unit: MB.
	HotCacheSize int64 `mapstructure:"hot_cache_size"`
}

type BadgerConfig struct {
	ValueLogFileSize int64 `mapstructure:"value_log_file_size"`
}

type PebbleConfig struct {
	CacheSize int64 `mapstructure:"cache_size"`
}

type SnapshotConfig struct {
	// AsyncWorkers bounds the pool serving asynchronous reads.
	AsyncWorkers int `mapstructure:"async_workers"`
}

type ServerC struct {
	Addr string `mapstructure:"addr"`
}

type DebugC struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
}

// NewConfigDefault returns an in-memory goleveldb configuration.
func NewConfigDefault() *Config {
	return &Config{
		Engine:   DefaultEngine,
		DataDir:  "data",
		InMemory: true,
		LevelDB: LevelDBConfig{
			Compression:     false,
			BlockSize:       4 * 1024,
			WriteBufferSize: 4 * 1024 * 1024,
			CacheSize:       4 * 1024 * 1024,
			MaxOpenFiles:    1024,
			HotCacheSize:    64,
		},
		Badger: BadgerConfig{
			ValueLogFileSize: 64 << 20,
		},
		Pebble: PebbleConfig{
			CacheSize: 8 << 20,
		},
		Snapshot: SnapshotConfig{
			AsyncWorkers: runtime.NumCPU(),
		},
		Server: ServerC{
			Addr: DefaultAddr,
		},
		Debug: DebugC{
			Addr: "127.0.0.1:16060",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := NewConfigDefault()
	v.SetDefault("engine", d.Engine)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("in_memory", false)
	v.SetDefault("leveldb.compression", d.LevelDB.Compression)
	v.SetDefault("leveldb.block_size", d.LevelDB.BlockSize)
	v.SetDefault("leveldb.write_buffer_size", d.LevelDB.WriteBufferSize)
	v.SetDefault("leveldb.cache_size", d.LevelDB.CacheSize)
	v.SetDefault("leveldb.max_open_files", d.LevelDB.MaxOpenFiles)
	v.SetDefault("leveldb.hot_cache_size", d.LevelDB.HotCacheSize)
	v.SetDefault("badger.value_log_file_size", d.Badger.ValueLogFileSize)
	v.SetDefault("pebble.cache_size", d.Pebble.CacheSize)
	v.SetDefault("snapshot.async_workers", d.Snapshot.AsyncWorkers)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("debug.enable", d.Debug.Enable)
	v.SetDefault("debug.addr", d.Debug.Addr)
}

// Load reads the config file at path. A .env file next to it, if present,
// is loaded into the environment first; SNAPDB_* variables override file
// values (SNAPDB_LEVELDB_CACHE_SIZE -> leveldb.cache_size).
func Load(path string) (*Config, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "load %s", envFile)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Engine == "" {
		return errors.New("config: engine must be set")
	}
	if !c.InMemory && c.DataDir == "" {
		return errors.New("config: data_dir must be set unless in_memory is enabled")
	}
	if c.Snapshot.AsyncWorkers <= 0 {
		return errors.Errorf("config: snapshot.async_workers must be positive, got %d", c.Snapshot.AsyncWorkers)
	}
	return nil
}

var defaultConfig = NewConfigDefault()

func InitConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	defaultConfig = cfg
	return nil
}

func Get() *Config {
	return defaultConfig
}
