// Package config loads, validates, and binds the process-wide
// configuration for the data-room server: storage engine selection,
// SSC parameters, audit window policy, the NFS listener, and logging.
//
// Configuration is TOML, read with spf13/viper and decoded into the
// typed Config struct below via mitchellh/mapstructure decode hooks;
// see DESIGN.md for why TOML rather than YAML.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// StorageConfig selects and configures the Backing Store engine:
// storage.rocksdb_path / storage.auditdb_path / storage.namespace_id /
// storage.community, plus the cluster keys.
type StorageConfig struct {
	// RocksDBPath is the embedded-KV data file path. The config key
	// keeps this name even though the embedded engine actually wired
	// up is BadgerDB, not RocksDB -- see DESIGN.md.
	RocksDBPath string `mapstructure:"rocksdb_path" validate:"required_without=ClusterNodes"`
	AuditDBPath string `mapstructure:"auditdb_path" validate:"required"`

	NamespaceID string `mapstructure:"namespace_id" validate:"required"`
	Community   string `mapstructure:"community" validate:"required"`

	ClusterNodes       []string `mapstructure:"cluster_nodes"`
	RedisPoolMaxSize   int      `mapstructure:"redis_pool_max_size" validate:"omitempty,min=1"`
}

// Engine reports which Backing Store adapter the configuration
// selects: the embedded path wins when both are set ("embedded unless
// cluster is explicit" precedence).
func (s StorageConfig) Engine() string {
	if s.RocksDBPath != "" {
		return "badger"
	}
	return "cluster"
}

// CodecConfig is the SSC tuning surface: chunk_size, threshold,
// share_amount, prime, thread_number.
type CodecConfig struct {
	ChunkSize   int    `mapstructure:"chunk_size" validate:"required,min=1"`
	Threshold   int    `mapstructure:"threshold" validate:"required,min=2"`
	ShareAmount int    `mapstructure:"share_amount" validate:"required,gtefield=Threshold"`
	Prime       string `mapstructure:"prime" validate:"required"`
	ThreadNumber int   `mapstructure:"thread_number" validate:"omitempty,min=1"`
	Compress    bool   `mapstructure:"compress"`
}

// AuditConfig tunes Time-Windowed Merkle Audit window rollover.
type AuditConfig struct {
	WindowDuration     time.Duration `mapstructure:"window_duration" validate:"omitempty,gt=0"`
	MaxEventsPerWindow int           `mapstructure:"max_events_per_window" validate:"omitempty,min=1"`
	// SnarkEnabled lets audit-reader's --snark flag build Groth16
	// commitments for inclusion proofs with the keys below. Off by
	// default. The audit log itself never proves: appending and sealing
	// windows do not involve the SNARK layer.
	SnarkEnabled      bool   `mapstructure:"snark_enabled"`
	ProvingKeyPath    string `mapstructure:"proving_key_path" validate:"required_if=SnarkEnabled true"`
	VerifyingKeyPath  string `mapstructure:"verifying_key_path" validate:"required_if=SnarkEnabled true"`
	MaxMerklePathLen  int    `mapstructure:"max_merkle_path_len" validate:"omitempty,min=1"`
}

// NFSConfig is the listener and protocol surface: nfs.data_room_address,
// plus the adapter's connection/timeout knobs.
type NFSConfig struct {
	DataRoomAddress string        `mapstructure:"data_room_address" validate:"required"`
	MaxConnections  int           `mapstructure:"max_connections" validate:"omitempty,min=1"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"omitempty,gt=0"`

	ExportPath string `mapstructure:"export_path" validate:"required"`

	FlushThreshold int           `mapstructure:"flush_threshold" validate:"omitempty,min=1"`
	IdleFlush      time.Duration `mapstructure:"idle_flush"`
}

// LoggingConfig controls the process-wide internal/logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	ModuleFilter string `mapstructure:"module_filter"`
	Format      string `mapstructure:"format" validate:"required,oneof=text json"`
	Output      string `mapstructure:"output" validate:"required"`
}

// MetricsConfig turns on the Prometheus registry and its HTTP
// exposition port.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// Config is the fully bound, validated configuration tree.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Codec   CodecConfig   `mapstructure:"codec"`
	Audit   AuditConfig   `mapstructure:"audit"`
	NFS     NFSConfig     `mapstructure:"nfs"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load reads configPath (or the default search path if empty), binds
// environment variables under the SHAREFS_ prefix, applies defaults
// for anything left unset, validates, and returns the Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, fmt.Errorf("config: read config file: %w", err)
	}
	if !found && configPath != "" {
		return nil, fmt.Errorf("config: file not found: %s", configPath)
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// MustLoad is Load with the "use the default path when none is given"
// convention made explicit, for CLI entry points that resolve --config
// themselves before calling in.
func MustLoad(configPath string) (*Config, error) {
	return Load(configPath)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetConfigType("toml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("data-room")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
		v.AddConfigPath("/etc/data-room")
	}

	v.SetEnvPrefix("SHAREFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// durationDecodeHook lets TOML config values for duration fields be
// written as human-readable strings ("30s", "5m", "1h") rather than
// raw nanosecond integers.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return dir + "/data-room"
}

// GetConfigDir returns the directory InitConfig writes into by
// default.
func GetConfigDir() string {
	return getConfigDir()
}

// GetDefaultConfigPath returns the default config file location, used
// by InitConfig and by the CLI's "start" command when --config is
// omitted.
func GetDefaultConfigPath() string {
	return getConfigDir() + "/data-room.toml"
}

// DefaultConfigExists reports whether a config file is already present
// at GetDefaultConfigPath.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// validate is the process-wide validator instance: struct tags carry
// the rules, this function just runs them and formats the result.
var validate = validator.New()

// Validate runs struct-tag validation over cfg, plus one cross-field
// check (share_amount >= threshold) that validator's gtefield tag
// already covers declaratively.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}
