package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is the template written by InitConfig/InitConfigToPath:
// a commented TOML skeleton covering every section of Config, loadable
// as-is.
const sampleConfig = `# data-room server configuration file

[storage]
rocksdb_path = "./data/shares.db"
auditdb_path = "./data/audit.db"
namespace_id = "default"
community    = "default"
# cluster_nodes = ["127.0.0.1:7000", "127.0.0.1:7001"]
# redis_pool_max_size = 16

[codec]
chunk_size   = 32
threshold    = 3
share_amount = 5
prime        = "208351617316091241234326746312124448251235562226470491514186331217050270460481"
thread_number = 4
compress     = false

[audit]
window_duration       = "1h"
max_events_per_window = 10000
snark_enabled         = false
# proving_key_path    = "./data/proving.key"
# verifying_key_path  = "./data/verifying.key"
max_merkle_path_len   = 32

[nfs]
data_room_address = ":2049"
export_path       = "/"
max_connections   = 256
shutdown_timeout  = "5s"
flush_threshold   = 64

[logging]
level  = "INFO"
format = "text"
output = "stdout"

[metrics]
enabled = false
port    = 9090
`

// InitConfig writes sampleConfig to the default config path
// (GetDefaultConfigPath), failing if the file already exists and force
// is not set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes sampleConfig to path, creating parent
// directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
