// Package snark implements the zk-SNARK commitment layer: a
// Groth16/BN254 circuit that commits to a sealed window's Merkle root
// without revealing the audited event data to a verifier that only
// holds the published verification key.
//
// gnark and gnark-crypto are an explicit, out-of-pack dependency
// bringing in a prover/verifier split that nothing else in this module
// provides -- see DESIGN.md.
package snark

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// Circuit binds the public commitment (event_hash, timestamp,
// merkle_root, window_start, window_end) to a private witness
// (event_data, merkle_path) without exposing the witness.
//
// Hashing inside the circuit uses gnark's MiMC sponge rather than
// BLAKE3: BLAKE3 has no efficient R1CS representation, so the circuit
// commits to a MiMC hash of the same leaf/path data that pkg/audit
// hashes with BLAKE3 outside the circuit. EventHash and MerkleRoot
// here therefore carry the MiMC-domain values computed by
// BuildWitness, not the raw audit.Hash values -- bridging the two
// hash domains is the job of the Prover/Verifier wrappers, not this
// circuit.
type Circuit struct {
	// Public inputs.
	EventHash   frontend.Variable `gnark:",public"`
	Timestamp   frontend.Variable `gnark:",public"`
	MerkleRoot  frontend.Variable `gnark:",public"`
	WindowStart frontend.Variable `gnark:",public"`
	WindowEnd   frontend.Variable `gnark:",public"`

	// Private witness.
	EventData  frontend.Variable   `gnark:",secret"`
	MerklePath []frontend.Variable `gnark:",secret"`
	PathBits   []frontend.Variable `gnark:",secret"` // 0 = sibling is right child, 1 = left
}

// CurveID is the elliptic curve the circuit's commitment is proved
// over. BN254 is gnark's best-supported curve for Groth16.
const CurveID = ecc.BN254

// Define implements frontend.Circuit: it recomputes the Merkle root
// from EventData and MerklePath/PathBits using an in-circuit MiMC
// hash, and constrains the result to equal the public MerkleRoot and
// the leaf to equal the public EventHash.
func (c *Circuit) Define(api frontend.API) error {
	leafHasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	leafHasher.Write(c.EventData)
	leaf := leafHasher.Sum()
	api.AssertIsEqual(leaf, c.EventHash)

	cur := leaf
	for i, sibling := range c.MerklePath {
		left := api.Select(c.PathBits[i], sibling, cur)
		right := api.Select(c.PathBits[i], cur, sibling)

		nodeHasher, err := mimc.NewMiMC(api)
		if err != nil {
			return err
		}
		nodeHasher.Write(left, right)
		cur = nodeHasher.Sum()
	}
	api.AssertIsEqual(cur, c.MerkleRoot)
	return nil
}
