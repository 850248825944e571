package snark

import (
	"context"
	"io"
	"math/big"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/shamirnfs/shamirnfs/pkg/audit"
	"github.com/shamirnfs/shamirnfs/pkg/ferr"
)

// CommitmentInput is everything the prover needs to build a witness
// for one audit event: the public fields a verifier will check, plus
// the private Merkle path proving the event's inclusion under
// MerkleRoot.
type CommitmentInput struct {
	EventHash   audit.Hash
	Timestamp   time.Time
	MerkleRoot  audit.Hash
	WindowStart time.Time
	WindowEnd   time.Time
	EventData   []byte
	MerklePath  []audit.SiblingHash
}

// Commitment is the published artifact: a Groth16 proof plus the
// public inputs it was proved against. It carries no private data --
// this is what gets handed to an independent verifier.
type Commitment struct {
	Proof       groth16.Proof
	PublicInput PublicInput
}

// PublicInput is the subset of CommitmentInput the verifier sees.
type PublicInput struct {
	EventHash   audit.Hash
	Timestamp   int64
	MerkleRoot  audit.Hash
	WindowStart int64
	WindowEnd   int64
}

// Prover holds the compiled circuit and proving key for one
// (circuit shape, trusted setup) pair. Building a Prover is expensive
// (circuit compilation + key derivation), so callers construct one per
// process and reuse it across windows.
type Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
}

// NewProver compiles Circuit for BN254/Groth16 and derives proving and
// verification keys via gnark's unsafe (non-ceremony) setup, suitable
// for a single-operator deployment; a ceremony-based trusted setup is
// out of scope for this module -- see DESIGN.md.
func NewProver(maxPathLen int) (*Prover, groth16.VerifyingKey, error) {
	circuit := &Circuit{
		MerklePath: make([]frontend.Variable, maxPathLen),
		PathBits:   make([]frontend.Variable, maxPathLen),
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, nil, ferr.Wrap(ferr.IOError, "compile audit commitment circuit", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, ferr.Wrap(ferr.IOError, "derive groth16 keys", err)
	}
	return &Prover{ccs: ccs, pk: pk}, vk, nil
}

// ProvingKey exposes the derived proving key so a caller can persist
// it to disk between process restarts -- NewProver's setup is unsafe
// (non-ceremony) but still expensive, and need not be re-run on every
// startup once generated.
func (p *Prover) ProvingKey() groth16.ProvingKey { return p.pk }

// LoadProver reconstructs a Prover from a previously-derived proving
// key, recompiling the circuit (a deterministic function of
// maxPathLen) rather than re-running the expensive trusted setup.
func LoadProver(maxPathLen int, pk groth16.ProvingKey) (*Prover, error) {
	circuit := &Circuit{
		MerklePath: make([]frontend.Variable, maxPathLen),
		PathBits:   make([]frontend.Variable, maxPathLen),
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "compile audit commitment circuit", err)
	}
	return &Prover{ccs: ccs, pk: pk}, nil
}

// Prove builds a witness from in and produces a Commitment.
func (p *Prover) Prove(ctx context.Context, in CommitmentInput) (*Commitment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	leaf := mimcDomainHash(in.EventHash[:])
	root := mimcDomainHash(in.MerkleRoot[:])

	path := make([]frontend.Variable, len(in.MerklePath))
	bits := make([]frontend.Variable, len(in.MerklePath))
	for i, s := range in.MerklePath {
		path[i] = mimcDomainHash(s.Hash[:])
		if s.Left {
			bits[i] = 1
		} else {
			bits[i] = 0
		}
	}

	assignment := &Circuit{
		EventHash:   leaf,
		Timestamp:   in.Timestamp.Unix(),
		MerkleRoot:  root,
		WindowStart: in.WindowStart.Unix(),
		WindowEnd:   in.WindowEnd.Unix(),
		EventData:   new(big.Int).SetBytes(in.EventData),
		MerklePath:  path,
		PathBits:    bits,
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "build witness", err)
	}

	proof, err := groth16.Prove(p.ccs, p.pk, witness)
	if err != nil {
		return nil, ferr.Wrap(ferr.IOError, "generate groth16 proof", err)
	}

	return &Commitment{
		Proof: proof,
		PublicInput: PublicInput{
			EventHash:   in.EventHash,
			Timestamp:   in.Timestamp.Unix(),
			MerkleRoot:  in.MerkleRoot,
			WindowStart: in.WindowStart.Unix(),
			WindowEnd:   in.WindowEnd.Unix(),
		},
	}, nil
}

// WriteTo serializes a Commitment's proof for transport/storage.
func (c *Commitment) WriteTo(w io.Writer) (int64, error) {
	return c.Proof.WriteTo(w)
}

// mimcDomainHash folds a BLAKE3 digest into the BN254 scalar field so
// it can be used as a circuit input; this is the bridge between
// pkg/audit's hash domain and the circuit's MiMC domain noted in
// circuit.go.
func mimcDomainHash(digest []byte) *big.Int {
	v := new(big.Int).SetBytes(digest)
	return v.Mod(v, ecc.BN254.ScalarField())
}
