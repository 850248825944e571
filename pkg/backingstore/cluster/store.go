// Package cluster adapts a Redis Cluster deployment to the
// backingstore.Store capability set, used when storage.rocksdb_path is
// unset and cluster_nodes is configured instead.
//
// Redis's native hash and sorted-set types map directly onto the
// Backing Store's hash-field maps and sorted sets, so unlike the
// embedded adapter this one needs no key-composition tricks -- HSET
// and ZADD are used as-is. Atomic multi-key mutations are realized
// with a MULTI/EXEC pipeline; callers are responsible for formatting
// keys within one ExecAtomic batch so they land on the same cluster
// slot (a "{root}" hash tag prefix), since Redis Cluster refuses a
// cross-slot MULTI.
package cluster

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
	"github.com/shamirnfs/shamirnfs/pkg/ferr"
)

type Store struct {
	client redis.UniversalClient
}

// Config configures the cluster client pool.
type Config struct {
	Nodes       []string // cluster_nodes
	PoolMaxSize int      // redis_pool_max_size
}

func Open(cfg Config) (*Store, error) {
	if len(cfg.Nodes) == 0 {
		return nil, ferr.New(ferr.InvalidArgument, "cluster_nodes must not be empty")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Nodes,
		PoolSize: cfg.PoolMaxSize,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, ferr.Wrap(ferr.IOError, "connect to cluster", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func classify(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	return ferr.Wrap(ferr.IOError, "backing store", err)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err)
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return classify(s.client.Set(ctx, key, value, 0).Err())
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return classify(s.client.Del(ctx, key).Err())
}

func (s *Store) HGet(ctx context.Context, key, field string) ([]byte, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(err)
	}
	return v, true, nil
}

func (s *Store) HSet(ctx context.Context, key, field string, value []byte) error {
	return classify(s.client.HSet(ctx, key, field, value).Err())
}

func (s *Store) HDel(ctx context.Context, key, field string) error {
	return classify(s.client.HDel(ctx, key, field).Err())
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	res, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, classify(err)
	}
	out := make(map[string][]byte, len(res))
	for k, v := range res {
		out[k] = []byte(v)
	}
	return out, nil
}

func (s *Store) ZAdd(ctx context.Context, key, member string, score float64) error {
	return classify(s.client.ZAdd(ctx, key, &redis.Z{Score: score, Member: member}).Err())
}

func (s *Store) ZRem(ctx context.Context, key, member string) error {
	return classify(s.client.ZRem(ctx, key, member).Err())
}

func (s *Store) ZRangeByScore(ctx context.Context, key string, lo, hi float64) ([]string, error) {
	res, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(lo),
		Max: formatScore(hi),
	}).Result()
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func formatScore(f float64) string {
	if f == negInf {
		return "-inf"
	}
	if f == posInf {
		return "+inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

const (
	negInf = -1.0 / 0
	posInf = 1.0 / 0
)

func (s *Store) ExecAtomic(ctx context.Context, batch []backingstore.Write) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range batch {
			switch w.Op {
			case backingstore.OpPut:
				pipe.Set(ctx, w.Key, w.Value, 0)
			case backingstore.OpDelete:
				pipe.Del(ctx, w.Key)
			case backingstore.OpHSet:
				pipe.HSet(ctx, w.Key, w.Field, w.Value)
			case backingstore.OpHDel:
				pipe.HDel(ctx, w.Key, w.Field)
			case backingstore.OpZAdd:
				pipe.ZAdd(ctx, w.Key, &redis.Z{Score: w.Score, Member: w.Member})
			case backingstore.OpZRem:
				pipe.ZRem(ctx, w.Key, w.Member)
			}
		}
		return nil
	})
	return classify(err)
}

// NextID implements backingstore.Allocator with a native INCR, since
// unlike BadgerDB, Redis provides one directly.
func (s *Store) NextID(ctx context.Context, key string) (uint64, error) {
	v, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, classify(err)
	}
	return uint64(v), nil
}
