// Package trust holds the trusted public keys (master and packager tiers)
// and answers whether a signature envelope verifies against them, at what
// trust level.
package trust

import (
	"sync"

	"rookpkg/pkg/helper/errors"
)

// Certification is a signed assertion binding a packager fingerprint to a
// purpose string, issued by a master key.
type Certification struct {
	MasterFingerprint   string
	PackagerFingerprint string
	Purpose             string
	Signature           []byte // signature by the master key over the
	// canonical bytes of (PackagerFingerprint, Purpose).
}

// CertificationBytes returns the canonical bytes a certification signs.
func CertificationBytes(packagerFingerprint, purpose string) []byte {
	return []byte(packagerFingerprint + "\x00" + purpose)
}

// Store is the trust store: a read-heavy, externally-managed set of master
// and packager keys. External tooling edits the on-disk key directories;
// a Store holds what was loaded when it was built, and callers re-read the
// directories by building a fresh Store with LoadStore.
type Store struct {
	mu       sync.RWMutex
	masters  map[string]*TrustedKey
	packager map[string]*TrustedKey
	certs    map[string][]Certification // by packager fingerprint
}

// NewStore creates an empty trust store. Use LoadStore to populate one from the
// on-disk key directories.
func NewStore() *Store {
	return &Store{
		masters:  make(map[string]*TrustedKey),
		packager: make(map[string]*TrustedKey),
		certs:    make(map[string][]Certification),
	}
}

// AddMaster registers a master key, the root of trust.
func (s *Store) AddMaster(k *TrustedKey) {
	k.Tier = TierMaster
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masters[k.Fingerprint] = k
}

// AddPackager registers a packager key. Its trust level is as declared
// locally (ultimate/full) until a certification from a master key is added,
// at which point Find/Verify surface at least marginal trust.
func (s *Store) AddPackager(k *TrustedKey) {
	k.Tier = TierPackager
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packager[k.Fingerprint] = k
}

// AddCertification records a master's certification of a packager key. The
// certification's own signature must be verified by the caller (typically
// the loader, against the named master key) before calling this.
func (s *Store) AddCertification(c Certification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs[c.PackagerFingerprint] = append(s.certs[c.PackagerFingerprint], c)
}

// Find returns the trusted key for a fingerprint, or nil if absent.
func (s *Store) Find(fingerprint string) *TrustedKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, ok := s.masters[fingerprint]; ok {
		return k
	}
	if k, ok := s.packager[fingerprint]; ok {
		return resolvedLevel(k, s.certs[fingerprint])
	}
	return nil
}

// resolvedLevel returns a copy of k with its Level raised to at least
// marginal when at least one certification for it is on file, without
// downgrading a locally-declared ultimate/full level.
func resolvedLevel(k *TrustedKey, certs []Certification) *TrustedKey {
	if len(certs) == 0 || k.Level >= LevelMarginal {
		return k
	}
	cp := *k
	cp.Level = LevelMarginal
	return &cp
}

// Verify checks data against envelope: the envelope's fingerprint must
// resolve to a stored key, the key's algorithm must match the envelope's
// algorithm tag, and the cryptographic check must succeed. On success it
// returns the resolved key so the caller can inspect its trust level for
// policy decisions. A mathematically valid signature from an unknown
// fingerprint is distinguished from an invalid one via the error returned:
// Find failing surfaces as errors.ErrSignerUntrusted, a failed crypto check
// as errors.ErrSignatureInvalid.
func (s *Store) Verify(data []byte, env Envelope) (*TrustedKey, error) {
	key := s.Find(env.Fingerprint)
	if key == nil {
		return nil, errors.NewSignerUntrusted(env.Fingerprint)
	}
	if key.Algorithm != env.Algorithm {
		return nil, errors.Wrap(errors.ErrSignerAlgorithmRefused,
			"key %s is %s, envelope claims %s", env.Fingerprint, key.Algorithm, env.Algorithm)
	}
	if err := verifyRaw(env.Algorithm, key.PublicKey, data, env.Signature); err != nil {
		return nil, errors.Wrap(errors.ErrSignatureInvalid, "fingerprint %s", env.Fingerprint)
	}
	return key, nil
}

// VerifyPolicy is Verify followed by the install-path policy check: the
// result must be at least marginal unless allowUntrusted is set, in which
// case an untrusted-but-mathematically-valid signature is accepted and the
// returned key's Level is forced to LevelUnknown so callers can annotate the
// resulting installed record as downgraded.
func (s *Store) VerifyPolicy(data []byte, env Envelope, allowUntrusted bool) (*TrustedKey, error) {
	key, err := s.Verify(data, env)
	if err != nil {
		if allowUntrusted && errors.Is(err, errors.ErrSignerUntrusted) {
			return &TrustedKey{Fingerprint: env.Fingerprint, Algorithm: env.Algorithm, Level: LevelUnknown}, nil
		}
		return nil, err
	}
	if !key.Level.SatisfiesPolicy() && !allowUntrusted {
		return nil, errors.Wrap(errors.ErrSignerUntrusted, "fingerprint %s is below marginal trust", env.Fingerprint)
	}
	return key, nil
}
