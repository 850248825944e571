package snark

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/shamirnfs/shamirnfs/pkg/ferr"
)

// Verifier checks a Commitment against a published verification key.
// It is deliberately self-contained -- it only needs the VerifyingKey
// produced once by NewProver's setup, never the Prover itself or its
// proving key, so a verifier process can run with no access to
// private witness data at all.
type Verifier struct {
	vk groth16.VerifyingKey
}

func NewVerifier(vk groth16.VerifyingKey) *Verifier {
	return &Verifier{vk: vk}
}

// Verify checks that c.Proof attests to c.PublicInput under the
// verifier's verifying key.
func (v *Verifier) Verify(c *Commitment) (bool, error) {
	leaf := mimcDomainHash(c.PublicInput.EventHash[:])
	root := mimcDomainHash(c.PublicInput.MerkleRoot[:])

	pub := &Circuit{
		EventHash:   leaf,
		Timestamp:   c.PublicInput.Timestamp,
		MerkleRoot:  root,
		WindowStart: c.PublicInput.WindowStart,
		WindowEnd:   c.PublicInput.WindowEnd,
	}
	witness, err := frontend.NewWitness(pub, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, ferr.Wrap(ferr.IOError, "build public witness", err)
	}

	if err := groth16.Verify(c.Proof, v.vk, witness); err != nil {
		return false, nil
	}
	return true, nil
}
