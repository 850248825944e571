// Package channelbuffer implements the Channel Buffer (CB): a
// per-file-id in-memory write accumulator that coalesces sequential
// writes and flushes them through a chunk-aligned read-modify-write
// into whatever sits below (the Secret-Sharing Codec, in SBFS's
// wiring).
//
// Two-level locking (globalMu over the file-entry map, a per-file
// mutex over each entry's segment list), coalescing writes before they
// leave the buffer, and an idle-flush background loop. The Channel
// Buffer is not block-aligned at a fixed size by itself -- it defers
// chunk alignment to the ChunkStore it flushes into, since SSC's chunk
// size is a deployment-time configuration value, not a compile-time
// constant.
package channelbuffer

import (
	"context"
	"sync"
	"time"

	"github.com/shamirnfs/shamirnfs/pkg/ferr"
)

// FlushNotifier is told about every successful flush, so a caller
// above the Channel Buffer can record a disassembly event without the
// buffer itself needing to know anything about an audit log.
type FlushNotifier interface {
	NotifyFlush(ctx context.Context, fileID uint64) error
}

// ChunkStore is the read-modify-write surface the buffer flushes
// into. Implementations live in pkg/sbfs, backed by SSC split/combine
// and the Backing Store.
type ChunkStore interface {
	// ChunkSize returns the fixed chunk width C in bytes.
	ChunkSize() int

	// ReadChunk returns the current plaintext of chunk index idx for
	// fileID, zero-extended if the chunk has never been written.
	ReadChunk(ctx context.Context, fileID uint64, idx int64) ([]byte, error)

	// WriteChunk persists a full ChunkSize-aligned chunk.
	WriteChunk(ctx context.Context, fileID uint64, idx int64, data []byte) error
}

// Config tunes the flush triggers.
type Config struct {
	// FlushThreshold is the pending-byte count per file that forces an
	// immediate flush on the next write.
	FlushThreshold int

	// IdleTimeout flushes a file's buffer after this long with no new
	// writes. Zero disables idle flushing.
	IdleTimeout time.Duration

	// IdleCheckInterval is how often the background loop scans for
	// idle files. Defaults to IdleTimeout/4 if zero and IdleTimeout > 0.
	IdleCheckInterval time.Duration

	// Notifier, if set, is called after every flush that actually wrote
	// data. A failure here does not roll back the flush -- the chunk
	// data is already durable -- but is returned to the caller of
	// Flush so it can be logged or retried.
	Notifier FlushNotifier
}

type fileEntry struct {
	mu           sync.Mutex
	segments     []segment
	pendingBytes int
	lastWrite    time.Time
}

// Buffer is the Channel Buffer. One instance is shared across all
// open files in a namespace; file identity is the caller-supplied
// fileID (an SBFS inode ID).
type Buffer struct {
	store  ChunkStore
	cfg    Config

	globalMu sync.RWMutex
	files    map[uint64]*fileEntry
	closed   bool

	stopIdle chan struct{}
	idleWG   sync.WaitGroup
}

func New(store ChunkStore, cfg Config) *Buffer {
	if cfg.IdleCheckInterval == 0 && cfg.IdleTimeout > 0 {
		cfg.IdleCheckInterval = cfg.IdleTimeout / 4
		if cfg.IdleCheckInterval <= 0 {
			cfg.IdleCheckInterval = time.Second
		}
	}
	b := &Buffer{
		store:    store,
		cfg:      cfg,
		files:    make(map[uint64]*fileEntry),
		stopIdle: make(chan struct{}),
	}
	if cfg.IdleTimeout > 0 {
		b.idleWG.Add(1)
		go b.idleLoop()
	}
	return b
}

func (b *Buffer) getEntry(fileID uint64) *fileEntry {
	b.globalMu.RLock()
	e, ok := b.files[fileID]
	b.globalMu.RUnlock()
	if ok {
		return e
	}

	b.globalMu.Lock()
	defer b.globalMu.Unlock()
	if e, ok := b.files[fileID]; ok {
		return e
	}
	e = &fileEntry{lastWrite: time.Now()}
	b.files[fileID] = e
	return e
}

// Write accumulates data at the given byte offset for fileID,
// coalescing it with adjacent pending segments. It flushes
// immediately, synchronously, if the file's pending byte count
// crosses Config.FlushThreshold.
func (b *Buffer) Write(ctx context.Context, fileID uint64, offset int64, data []byte) error {
	b.globalMu.RLock()
	closed := b.closed
	b.globalMu.RUnlock()
	if closed {
		return ferr.New(ferr.TemporarilyUnavailable, "channel buffer is closed")
	}

	entry := b.getEntry(fileID)
	entry.mu.Lock()
	entry.segments = insertSegment(entry.segments, segment{offset: offset, data: append([]byte{}, data...)})
	entry.pendingBytes = totalBytes(entry.segments)
	entry.lastWrite = time.Now()
	overThreshold := b.cfg.FlushThreshold > 0 && entry.pendingBytes >= b.cfg.FlushThreshold
	entry.mu.Unlock()

	if overThreshold {
		return b.Flush(ctx, fileID)
	}
	return nil
}

// Read serves a byte range for fileID, overlaying pending (unflushed)
// segments on top of chunk data read from the ChunkStore. This is the
// read-modify-write counterpart: a reader must see its own unflushed
// writes.
func (b *Buffer) Read(ctx context.Context, fileID uint64, offset int64, length int) ([]byte, error) {
	entry := b.getEntry(fileID)
	entry.mu.Lock()
	pending := make([]segment, len(entry.segments))
	copy(pending, entry.segments)
	entry.mu.Unlock()

	out := make([]byte, length)
	chunkSize := int64(b.store.ChunkSize())
	startChunk := offset / chunkSize
	endChunk := (offset + int64(length) - 1) / chunkSize
	if length == 0 {
		endChunk = startChunk - 1
	}

	for idx := startChunk; idx <= endChunk; idx++ {
		chunk, err := b.store.ReadChunk(ctx, fileID, idx)
		if err != nil {
			return nil, err
		}
		chunkStart := idx * chunkSize
		copyOverlap(out, offset, chunk, chunkStart)
	}

	for _, s := range pending {
		copyOverlap(out, offset, s.data, s.offset)
	}
	return out, nil
}

// Flush performs the chunk-aligned read-modify-write for every
// pending segment of fileID and clears the buffer on success.
func (b *Buffer) Flush(ctx context.Context, fileID uint64) error {
	entry := b.getEntry(fileID)
	entry.mu.Lock()
	segs := entry.segments
	entry.mu.Unlock()
	if len(segs) == 0 {
		return nil
	}

	chunkSize := int64(b.store.ChunkSize())
	touched := affectedChunks(segs, chunkSize)

	for _, idx := range touched {
		current, err := b.store.ReadChunk(ctx, fileID, idx)
		if err != nil {
			return err
		}
		chunkStart := idx * chunkSize
		merged := append([]byte{}, current...)
		if int64(len(merged)) < chunkSize {
			grown := make([]byte, chunkSize)
			copy(grown, merged)
			merged = grown
		}
		for _, s := range segs {
			copyOverlap(merged, chunkStart, s.data, s.offset)
		}
		if err := b.store.WriteChunk(ctx, fileID, idx, merged); err != nil {
			return err
		}
	}

	entry.mu.Lock()
	// Only drop the segments we just flushed; a concurrent Write may
	// have appended more while the flush above was in flight.
	entry.segments = dropSegments(entry.segments, segs)
	entry.pendingBytes = totalBytes(entry.segments)
	entry.mu.Unlock()

	if b.cfg.Notifier != nil {
		return b.cfg.Notifier.NotifyFlush(ctx, fileID)
	}
	return nil
}

// Close flushes every buffered file and stops the idle-flush loop.
// After Close returns, Write fails with TemporarilyUnavailable; Flush
// is not refused, and finds nothing left to flush.
func (b *Buffer) Close(ctx context.Context) error {
	b.globalMu.Lock()
	if b.closed {
		b.globalMu.Unlock()
		return nil
	}
	b.closed = true
	ids := make([]uint64, 0, len(b.files))
	for id := range b.files {
		ids = append(ids, id)
	}
	b.globalMu.Unlock()

	if b.cfg.IdleTimeout > 0 {
		close(b.stopIdle)
		b.idleWG.Wait()
	}

	var firstErr error
	for _, id := range ids {
		if err := b.Flush(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *Buffer) idleLoop() {
	defer b.idleWG.Done()
	ticker := time.NewTicker(b.cfg.IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopIdle:
			return
		case <-ticker.C:
			b.flushIdleFiles()
		}
	}
}

func (b *Buffer) flushIdleFiles() {
	b.globalMu.RLock()
	ids := make([]uint64, 0, len(b.files))
	now := time.Now()
	for id, e := range b.files {
		e.mu.Lock()
		idle := len(e.segments) > 0 && now.Sub(e.lastWrite) >= b.cfg.IdleTimeout
		e.mu.Unlock()
		if idle {
			ids = append(ids, id)
		}
	}
	b.globalMu.RUnlock()

	for _, id := range ids {
		_ = b.Flush(context.Background(), id)
	}
}
