// Package memory provides an in-memory backingstore.Store for unit
// tests that need a real Store implementation but shouldn't pay the
// cost (or the fixture setup) of a real BadgerDB or Redis instance.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
)

type zmember struct {
	member string
	score  float64
}

type Store struct {
	mu    sync.Mutex
	raw   map[string][]byte
	hash  map[string]map[string][]byte
	zset  map[string][]zmember
	alloc map[string]uint64
}

func New() *Store {
	return &Store{
		raw:   make(map[string][]byte),
		hash:  make(map[string]map[string][]byte),
		zset:  make(map[string][]zmember),
		alloc: make(map[string]uint64),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.raw[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[key] = append([]byte{}, value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.raw, key)
	return nil
}

func (s *Store) HGet(_ context.Context, key, field string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.hash[key]
	if !ok {
		return nil, false, nil
	}
	v, ok := m[field]
	return v, ok, nil
}

func (s *Store) HSet(_ context.Context, key, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.hash[key]
	if !ok {
		m = make(map[string][]byte)
		s.hash[key] = m
	}
	m[field] = append([]byte{}, value...)
	return nil
}

func (s *Store) HDel(_ context.Context, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.hash[key]; ok {
		delete(m, field)
	}
	return nil
}

func (s *Store) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte)
	for k, v := range s.hash[key] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) zIndex(key, member string) int {
	for i, m := range s.zset[key] {
		if m.member == member {
			return i
		}
	}
	return -1
}

func (s *Store) ZAdd(_ context.Context, key, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.zIndex(key, member); i >= 0 {
		s.zset[key][i].score = score
	} else {
		s.zset[key] = append(s.zset[key], zmember{member, score})
	}
	sort.Slice(s.zset[key], func(i, j int) bool { return s.zset[key][i].score < s.zset[key][j].score })
	return nil
}

func (s *Store) ZRem(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.zIndex(key, member); i >= 0 {
		s.zset[key] = append(s.zset[key][:i], s.zset[key][i+1:]...)
	}
	return nil
}

func (s *Store) ZRangeByScore(_ context.Context, key string, lo, hi float64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.zset[key] {
		if m.score >= lo && m.score <= hi {
			out = append(out, m.member)
		}
	}
	return out, nil
}

func (s *Store) ExecAtomic(ctx context.Context, batch []backingstore.Write) error {
	// Single global mutex makes every batch trivially all-or-nothing.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range batch {
		switch w.Op {
		case backingstore.OpPut:
			s.raw[w.Key] = append([]byte{}, w.Value...)
		case backingstore.OpDelete:
			delete(s.raw, w.Key)
		case backingstore.OpHSet:
			m, ok := s.hash[w.Key]
			if !ok {
				m = make(map[string][]byte)
				s.hash[w.Key] = m
			}
			m[w.Field] = append([]byte{}, w.Value...)
		case backingstore.OpHDel:
			if m, ok := s.hash[w.Key]; ok {
				delete(m, w.Field)
			}
		case backingstore.OpZAdd:
			if i := s.zIndex(w.Key, w.Member); i >= 0 {
				s.zset[w.Key][i].score = w.Score
			} else {
				s.zset[w.Key] = append(s.zset[w.Key], zmember{w.Member, w.Score})
			}
			sort.Slice(s.zset[w.Key], func(i, j int) bool { return s.zset[w.Key][i].score < s.zset[w.Key][j].score })
		case backingstore.OpZRem:
			if i := s.zIndex(w.Key, w.Member); i >= 0 {
				s.zset[w.Key] = append(s.zset[w.Key][:i], s.zset[w.Key][i+1:]...)
			}
		}
	}
	return nil
}

func (s *Store) NextID(_ context.Context, key string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alloc[key]++
	return s.alloc[key], nil
}
