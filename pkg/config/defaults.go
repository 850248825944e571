package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields, after file/env binding and before validation: zero values
// are replaced, explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyCodecDefaults(&cfg.Codec)
	applyAuditDefaults(&cfg.Audit)
	applyNFSDefaults(&cfg.NFS)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyCodecDefaults(cfg *CodecConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 4096
	}
	if cfg.ThreadNumber == 0 {
		cfg.ThreadNumber = 4
	}
}

// applyAuditDefaults leaves WindowDuration and MaxEventsPerWindow at
// zero unless the operator sets them; a zero trigger is disabled, so
// with neither set a window closes only on Seal. Window rollover fires
// on whichever configured trigger reaches its threshold first.
func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.MaxMerklePathLen == 0 {
		cfg.MaxMerklePathLen = 32
	}
}

func applyNFSDefaults(cfg *NFSConfig) {
	if cfg.DataRoomAddress == "" {
		cfg.DataRoomAddress = ":2049"
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 256
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.FlushThreshold == 0 {
		cfg.FlushThreshold = 64
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}
