package config

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"

	"github.com/shamirnfs/shamirnfs/internal/nfs/mount"
	"github.com/shamirnfs/shamirnfs/internal/nfs/v3"
	"github.com/shamirnfs/shamirnfs/pkg/adapter/nfs"
	"github.com/shamirnfs/shamirnfs/pkg/audit"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore/badger"
	"github.com/shamirnfs/shamirnfs/pkg/backingstore/cluster"
	"github.com/shamirnfs/shamirnfs/pkg/sbfs"
	"github.com/shamirnfs/shamirnfs/pkg/snark"
	"github.com/shamirnfs/shamirnfs/pkg/ssc"
)

// CreateBackingStore opens the Backing Store engine selected by
// cfg.Storage: one function per store kind, picked by a config
// discriminant, simplified to two engines.
func CreateBackingStore(cfg StorageConfig) (backingstore.Store, error) {
	switch cfg.Engine() {
	case "badger":
		return badger.Open(cfg.RocksDBPath)
	default:
		return cluster.Open(cluster.Config{
			Nodes:       cfg.ClusterNodes,
			PoolMaxSize: cfg.RedisPoolMaxSize,
		})
	}
}

// CreateCodec builds the SSC codec from cfg, parsing the configured
// prime and wiring a bounded worker pool sized by thread_number.
func CreateCodec(cfg CodecConfig) (*ssc.Codec, error) {
	prime, ok := new(big.Int).SetString(cfg.Prime, 10)
	if !ok {
		return nil, fmt.Errorf("config: codec.prime is not a valid base-10 integer: %q", cfg.Prime)
	}
	var pool *ssc.WorkerPool
	if cfg.ThreadNumber > 0 {
		pool = ssc.NewWorkerPool(cfg.ThreadNumber)
	}
	return ssc.New(ssc.Params{
		Prime:     prime,
		ChunkSize: cfg.ChunkSize,
		Threshold: cfg.Threshold,
		Shares:    cfg.ShareAmount,
		Compress:  cfg.Compress,
		Pool:      pool,
	})
}

// CreateAuditLog opens the TWMA log against store. SNARK commitment
// generation (cfg.SnarkEnabled) is wired separately through
// CreateProver/CreateVerifier, consumed by cmd/audit-reader -- the
// log itself only ever produces raw Merkle inclusion proofs.
func CreateAuditLog(ctx context.Context, store backingstore.Store, cfg AuditConfig) (*audit.Log, error) {
	return audit.Open(ctx, store, audit.Config{
		WindowDuration:     cfg.WindowDuration,
		MaxEventsPerWindow: cfg.MaxEventsPerWindow,
	})
}

// CreateProver loads the proving key at cfg.ProvingKeyPath if it
// exists, or runs gnark's unsafe (non-ceremony) setup and persists a
// fresh key pair otherwise. A real ceremony-derived key pair is out of
// scope here -- operators deploying this for real would substitute one
// at cfg.ProvingKeyPath / cfg.VerifyingKeyPath.
func CreateProver(cfg AuditConfig) (*snark.Prover, error) {
	if !cfg.SnarkEnabled {
		return nil, fmt.Errorf("config: audit.snark_enabled is false")
	}
	if _, err := os.Stat(cfg.ProvingKeyPath); err == nil {
		return loadProver(cfg)
	}

	prover, vk, err := snark.NewProver(cfg.MaxMerklePathLen)
	if err != nil {
		return nil, err
	}
	if err := writeKeyFile(cfg.ProvingKeyPath, prover.ProvingKey()); err != nil {
		return nil, err
	}
	if err := writeKeyFile(cfg.VerifyingKeyPath, vk); err != nil {
		return nil, err
	}
	return prover, nil
}

// CreateVerifier loads the verifying key at cfg.VerifyingKeyPath,
// which must already have been produced by a prior CreateProver call
// (the prover and verifier share one key pair).
func CreateVerifier(cfg AuditConfig) (*snark.Verifier, error) {
	if !cfg.SnarkEnabled {
		return nil, fmt.Errorf("config: audit.snark_enabled is false")
	}
	vkFile, err := os.Open(cfg.VerifyingKeyPath)
	if err != nil {
		return nil, fmt.Errorf("open verifying key: %w", err)
	}
	defer vkFile.Close()

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(vkFile); err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return snark.NewVerifier(vk), nil
}

func loadProver(cfg AuditConfig) (*snark.Prover, error) {
	pkFile, err := os.Open(cfg.ProvingKeyPath)
	if err != nil {
		return nil, fmt.Errorf("open proving key: %w", err)
	}
	defer pkFile.Close()

	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(pkFile); err != nil {
		return nil, fmt.Errorf("read proving key: %w", err)
	}
	return snark.LoadProver(cfg.MaxMerklePathLen, pk)
}

func writeKeyFile(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := key.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CreateFilesystem assembles the SBFS filesystem that backs the NFS
// handler layer: one "wire up everything Open needs" entry point.
func CreateFilesystem(ctx context.Context, store backingstore.Store, codec *ssc.Codec, auditLog *audit.Log, cfg NFSConfig) (*sbfs.Filesystem, error) {
	return sbfs.Open(ctx, sbfs.Config{
		Store:          store,
		Codec:          codec,
		Audit:          auditLog,
		Root:           cfg.ExportPath,
		FlushThreshold: cfg.FlushThreshold,
		IdleFlush:      cfg.IdleFlush,
	})
}

// CreateAdapter wires the NFSv3 and MOUNT handlers to the TCP adapter.
func CreateAdapter(fs *sbfs.Filesystem, rootHandle []byte, cfg NFSConfig) (*nfs.Adapter, error) {
	port, err := portOf(cfg.DataRoomAddress)
	if err != nil {
		return nil, fmt.Errorf("config: nfs.data_room_address: %w", err)
	}

	v3Handler := v3.New(fs)
	mountHandler := mount.New(mount.Export{
		Path:       cfg.ExportPath,
		RootHandle: rootHandle,
	})

	return nfs.New(nfs.Config{
		Port:           port,
		MaxConnections: cfg.MaxConnections,
		Timeouts: nfs.TimeoutsConfig{
			Read:     cfg.ReadTimeout,
			Write:    cfg.WriteTimeout,
			Idle:     cfg.IdleTimeout,
			Shutdown: cfg.ShutdownTimeout,
		},
	}, v3Handler, mountHandler), nil
}

// portOf extracts a TCP port number from an address string, accepting
// either a bare port ("2049") or a host:port pair (":2049",
// "0.0.0.0:2049") -- the forms a TOML nfs.data_room_address value
// reasonably takes.
func portOf(addr string) (int, error) {
	if !strings.Contains(addr, ":") {
		return strconv.Atoi(addr)
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
