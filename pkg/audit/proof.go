package audit

// Proof is an inclusion proof that a specific event was recorded in a
// specific, identified window -- the unit a SNARK commitment's public
// inputs bind to (event_hash, timestamp, merkle_root, window_start,
// window_end).
type Proof struct {
	EventID     string        `json:"event_id"`
	EventHash   Hash          `json:"event_hash"`
	WindowID    string        `json:"window_id"`
	WindowStart int64         `json:"window_start"` // unix seconds
	WindowEnd   int64         `json:"window_end"`   // unix seconds, 0 if window still open
	MerkleRoot  Hash          `json:"merkle_root"`
	Siblings    []SiblingHash `json:"siblings"`
}

// Verify checks the proof's inclusion path against its own
// MerkleRoot. It does not check that MerkleRoot is actually the
// published root of WindowID -- callers that don't trust the Proof's
// origin must cross-check MerkleRoot against a window fetched
// independently (see Log.Window), or against a SNARK-verified
// commitment (pkg/snark).
func (p Proof) Verify() bool {
	return VerifyInclusion(p.EventHash, p.Siblings, p.MerkleRoot)
}
