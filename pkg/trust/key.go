package trust

import (
	"crypto/ed25519"
	"time"

	"github.com/cloudflare/circl/sign/dilithium"

	"rookpkg/pkg/helper/errors"
)

// Level is a key's trust level, surfaced to the caller for policy decisions.
// An unknown key verifies mathematically but does not satisfy policy.
type Level int

const (
	LevelUnknown Level = iota
	LevelMarginal
	LevelFull
	LevelUltimate
)

func (l Level) String() string {
	switch l {
	case LevelUltimate:
		return "ultimate"
	case LevelFull:
		return "full"
	case LevelMarginal:
		return "marginal"
	default:
		return "unknown"
	}
}

// SatisfiesPolicy reports whether l meets at least the marginal bar the
// install path requires by default.
func (l Level) SatisfiesPolicy() bool {
	return l >= LevelMarginal
}

// Tier partitions keys into the root of trust (master) and the keys it
// certifies (packager). Only master and packager keys may sign packages or
// indices.
type Tier string

const (
	TierMaster   Tier = "master"
	TierPackager Tier = "packager"
)

// Identity is the human-readable metadata a key file carries.
type Identity struct {
	Name  string
	Email string
}

// TrustedKey is a key held in the trust store.
type TrustedKey struct {
	Fingerprint string
	Algorithm   Algorithm
	PublicKey   []byte // canonical bytes: raw ed25519.PublicKey, or the
	// plain ed25519||dilithium3 concatenation for AlgoHybrid.
	Identity  Identity
	Level     Level
	Tier      Tier
	CreatedAt time.Time
}

// dilithiumMode is the single Dilithium parameter set rookpkg's hybrid
// algorithm tag binds to. Pinning one mode keeps the fingerprint/envelope
// format unambiguous; a future algorithm tag would pin a different mode
// rather than making this one configurable.
var dilithiumMode = dilithium.Mode3

// ed25519PubSize is used to split a hybrid public key blob into its two
// halves: the first ed25519.PublicKeySize bytes are the Ed25519 key, the
// remainder is the Dilithium3 key.
const ed25519PubSize = ed25519.PublicKeySize

// splitHybridPublicKey separates a hybrid public key blob into its Ed25519
// and Dilithium3 halves.
func splitHybridPublicKey(blob []byte) (ed25519.PublicKey, dilithium.PublicKey, error) {
	if len(blob) < ed25519PubSize {
		return nil, nil, errors.InvalidInputf("hybrid public key too short")
	}
	edPub := ed25519.PublicKey(blob[:ed25519PubSize])
	dilBytes := blob[ed25519PubSize:]
	if len(dilBytes) != dilithiumMode.PublicKeySize() {
		return nil, nil, errors.InvalidInputf("hybrid public key has wrong dilithium length: got %d want %d", len(dilBytes), dilithiumMode.PublicKeySize())
	}
	dilPub := dilithiumMode.PublicKeyFromBytes(dilBytes)
	return edPub, dilPub, nil
}

// JoinHybridPublicKey concatenates an Ed25519 and a Dilithium3 public key
// into the canonical hybrid public-key blob.
func JoinHybridPublicKey(edPub ed25519.PublicKey, dilPub dilithium.PublicKey) []byte {
	out := make([]byte, 0, ed25519PubSize+dilithiumMode.PublicKeySize())
	out = append(out, edPub...)
	out = append(out, dilPub.Bytes()...)
	return out
}
