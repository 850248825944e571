package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shamirnfs/shamirnfs/pkg/backingstore"
	"github.com/shamirnfs/shamirnfs/pkg/ferr"
)

const (
	keyCurrentWindow  = "audit/current_window"
	keyWindowsZSet    = "audit/historical_roots"
	windowMetaField   = "meta"
	windowLeavesField = "leaves"
)

func keyWindow(id string) string { return "audit/windows/" + id }
func keyEvent(id string) string  { return "audit/events/" + id }

// Log is the Time-Windowed Merkle Audit log. One Log instance owns the
// currently-open window's in-memory tree; sealed windows are
// read-only and served straight from the Backing Store.
type Log struct {
	store backingstore.Store
	cfg   Config
	now   func() time.Time

	mu      sync.Mutex
	current *Window
	tree    *Tree
}

// Open loads (or creates) the current window from store.
func Open(ctx context.Context, store backingstore.Store, cfg Config) (*Log, error) {
	l := &Log{store: store, cfg: cfg, now: time.Now}

	raw, ok, err := store.Get(ctx, keyCurrentWindow)
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "load current audit window pointer", err)
	}
	if !ok {
		if err := l.openNewWindow(ctx, nil); err != nil {
			return nil, err
		}
		return l, nil
	}

	windowID := string(raw)
	w, tree, err := l.loadWindow(ctx, windowID)
	if err != nil {
		return nil, err
	}
	l.current = w
	l.tree = tree
	return l, nil
}

func (l *Log) loadWindow(ctx context.Context, id string) (*Window, *Tree, error) {
	metaRaw, ok, err := l.store.HGet(ctx, keyWindow(id), windowMetaField)
	if err != nil {
		return nil, nil, ferr.Wrap(ferr.IOError, "load window metadata", err)
	}
	if !ok {
		return nil, nil, ferr.New(ferr.NotFound, "audit window not found")
	}
	var w Window
	if err := json.Unmarshal(metaRaw, &w); err != nil {
		return nil, nil, ferr.Wrap(ferr.CorruptShares, "decode window metadata", err)
	}

	leavesRaw, ok, err := l.store.HGet(ctx, keyWindow(id), windowLeavesField)
	if err != nil {
		return nil, nil, ferr.Wrap(ferr.IOError, "load window leaves", err)
	}
	tree := NewTree()
	if ok {
		var leaves []Hash
		if err := json.Unmarshal(leavesRaw, &leaves); err != nil {
			return nil, nil, ferr.Wrap(ferr.CorruptShares, "decode window leaves", err)
		}
		for _, leaf := range leaves {
			tree.Insert(leaf)
		}
	}
	return &w, tree, nil
}

func (l *Log) openNewWindow(ctx context.Context, prevRootHash *Hash) error {
	now := l.now()
	w := &Window{
		ID:    uuid.NewString(),
		Start: now,
	}
	if prevRootHash != nil {
		w.PrevRootHash = *prevRootHash
	}
	tree := NewTree()

	if err := l.persistWindow(ctx, w, tree); err != nil {
		return err
	}
	if err := l.store.Put(ctx, keyCurrentWindow, []byte(w.ID)); err != nil {
		return ferr.Wrap(ferr.IOError, "set current audit window pointer", err)
	}
	l.current = w
	l.tree = tree
	return nil
}

func (l *Log) persistWindow(ctx context.Context, w *Window, tree *Tree) error {
	metaRaw, err := json.Marshal(w)
	if err != nil {
		return ferr.Wrap(ferr.IOError, "encode window metadata", err)
	}
	leavesRaw, err := json.Marshal(tree.leaves)
	if err != nil {
		return ferr.Wrap(ferr.IOError, "encode window leaves", err)
	}

	batch := []backingstore.Write{
		{Op: backingstore.OpHSet, Key: keyWindow(w.ID), Field: windowMetaField, Value: metaRaw},
		{Op: backingstore.OpHSet, Key: keyWindow(w.ID), Field: windowLeavesField, Value: leavesRaw},
	}
	if w.Sealed {
		batch = append(batch, backingstore.Write{
			Op:     backingstore.OpZAdd,
			Key:    keyWindowsZSet,
			Member: w.ID,
			Score:  float64(w.Start.Unix()),
		})
	}
	if err := l.store.ExecAtomic(ctx, batch); err != nil {
		return ferr.Wrap(ferr.IOError, "persist audit window", err)
	}
	return nil
}

// Append records a new event in the current window, rolling the
// window over first if a trigger has already fired. Returns the
// stored Event, including its assigned leaf index.
func (l *Log) Append(ctx context.Context, eventType EventType, filePath string, data []byte) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if trigger := l.cfg.trigger(l.current, now); trigger != RolloverNone {
		if err := l.sealCurrentLocked(ctx, now); err != nil {
			return nil, err
		}
	}

	eventID := uuid.NewString()
	leafHash := HashEvent(eventType, filePath, eventID, now.UnixNano(), data)
	idx := l.tree.Insert(leafHash)
	l.current.EventCount++

	ev := &Event{
		ID:        eventID,
		Type:      eventType,
		FilePath:  filePath,
		Timestamp: now,
		WindowID:  l.current.ID,
		LeafIndex: idx,
		Data:      data,
		Hash:      leafHash,
	}
	evRaw, err := json.Marshal(ev)
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "encode audit event", err)
	}

	metaRaw, err := json.Marshal(l.current)
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "encode window metadata", err)
	}
	leavesRaw, err := json.Marshal(l.tree.leaves)
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "encode window leaves", err)
	}

	batch := []backingstore.Write{
		{Op: backingstore.OpPut, Key: keyEvent(ev.ID), Value: evRaw},
		{Op: backingstore.OpHSet, Key: keyWindow(l.current.ID), Field: windowMetaField, Value: metaRaw},
		{Op: backingstore.OpHSet, Key: keyWindow(l.current.ID), Field: windowLeavesField, Value: leavesRaw},
	}
	if err := l.store.ExecAtomic(ctx, batch); err != nil {
		return nil, ferr.Wrap(ferr.IOError, "persist audit event", err)
	}
	return ev, nil
}

// sealCurrentLocked finalizes the open window and opens its successor.
// Callers must hold l.mu.
func (l *Log) sealCurrentLocked(ctx context.Context, now time.Time) error {
	w := l.current
	w.End = now
	w.Sealed = true
	w.RootHash = l.tree.Root()
	w.ChainHash = hashChain(w.PrevRootHash, w.RootHash)

	if err := l.persistWindow(ctx, w, l.tree); err != nil {
		return err
	}
	return l.openNewWindow(ctx, &w.RootHash)
}

// Seal forces the current window to close immediately, regardless of
// whether a rollover trigger has fired; a window with no events is left
// open and Seal returns nil. Used for graceful shutdown and
// administrative window rotation.
func (l *Log) Seal(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current.EventCount == 0 {
		return nil
	}
	return l.sealCurrentLocked(ctx, l.now())
}

// CurrentWindow returns a copy of the currently open window's metadata.
func (l *Log) CurrentWindow() Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.current
}

// Window returns a sealed or open window's metadata by ID.
func (l *Log) Window(ctx context.Context, id string) (*Window, error) {
	l.mu.Lock()
	if l.current != nil && l.current.ID == id {
		w := *l.current
		l.mu.Unlock()
		return &w, nil
	}
	l.mu.Unlock()

	w, _, err := l.loadWindow(ctx, id)
	return w, err
}

// ProofFor builds an inclusion proof for eventID, reading its event
// record to recover which window and leaf index it belongs to.
func (l *Log) ProofFor(ctx context.Context, eventID string) (*Proof, error) {
	raw, ok, err := l.store.Get(ctx, keyEvent(eventID))
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "load audit event", err)
	}
	if !ok {
		return nil, ferr.New(ferr.NotFound, "audit event not found")
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, ferr.Wrap(ferr.CorruptShares, "decode audit event", err)
	}

	w, err := l.Window(ctx, ev.WindowID)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	var tree *Tree
	if l.current != nil && l.current.ID == ev.WindowID {
		tree = l.tree
	}
	l.mu.Unlock()
	if tree == nil {
		_, loaded, err := l.loadWindow(ctx, ev.WindowID)
		if err != nil {
			return nil, err
		}
		tree = loaded
	}

	siblings, err := tree.ProofFor(ev.LeafIndex)
	if err != nil {
		return nil, ferr.Wrap(ferr.CorruptShares, "build inclusion proof", err)
	}

	root := w.RootHash
	if !w.Sealed {
		root = tree.Root()
	}

	var windowEnd int64
	if w.Sealed {
		windowEnd = w.End.Unix()
	}

	return &Proof{
		EventID:     ev.ID,
		EventHash:   ev.Hash,
		WindowID:    w.ID,
		WindowStart: w.Start.Unix(),
		WindowEnd:   windowEnd,
		MerkleRoot:  root,
		Siblings:    siblings,
	}, nil
}

// HistoricalRoots lists the root hashes of every sealed window whose
// Start falls within [from, to].
func (l *Log) HistoricalRoots(ctx context.Context, from, to time.Time) ([]Window, error) {
	ids, err := l.store.ZRangeByScore(ctx, keyWindowsZSet, float64(from.Unix()), float64(to.Unix()))
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "range historical audit roots", err)
	}
	out := make([]Window, 0, len(ids))
	for _, id := range ids {
		w, _, err := l.loadWindow(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, nil
}
