package trust

// Algorithm tags the signature scheme an envelope or key uses. The store
// refuses to verify an envelope with a key whose algorithm does not match.
type Algorithm string

const (
	// AlgoEd25519 is the classical signature scheme.
	AlgoEd25519 Algorithm = "ed25519"
	// AlgoHybrid combines Ed25519 with a CRYSTALS-Dilithium signature; both
	// halves must verify for the envelope to verify.
	AlgoHybrid Algorithm = "hybrid-ed25519-dilithium3"
)

// Valid reports whether a is a known algorithm tag.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgoEd25519, AlgoHybrid:
		return true
	default:
		return false
	}
}
