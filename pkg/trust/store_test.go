package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
)

func TestVerifyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	store := NewStore()
	fp := Fingerprint(AlgoEd25519, pub)
	store.AddMaster(&TrustedKey{
		Fingerprint: fp,
		Algorithm:   AlgoEd25519,
		PublicKey:   pub,
		Level:       LevelUltimate,
	})

	data := []byte("package index bytes")
	sig := ed25519.Sign(priv, data)
	env := Envelope{Fingerprint: fp, Algorithm: AlgoEd25519, Signature: sig}

	key, err := store.Verify(data, env)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if key.Level != LevelUltimate {
		t.Errorf("Level = %v, want ultimate", key.Level)
	}

	tampered := append(append([]byte(nil), data...), 'x')
	if _, err := store.Verify(tampered, env); err == nil {
		t.Errorf("expected signature-invalid error over tampered data")
	}
}

func TestVerifyUnknownFingerprintDistinguishedFromInvalidSignature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	store := NewStore()
	data := []byte("data")
	sig := ed25519.Sign(priv, data)

	env := Envelope{Fingerprint: Fingerprint(AlgoEd25519, pub), Algorithm: AlgoEd25519, Signature: sig}
	_, err := store.Verify(data, env)
	if err == nil {
		t.Fatalf("expected untrusted-signer error")
	}

	// allow_untrusted proceeds with a downgraded annotation
	key, err := store.VerifyPolicy(data, env, true)
	if err != nil {
		t.Fatalf("VerifyPolicy with allow_untrusted should not fail: %v", err)
	}
	if key.Level != LevelUnknown {
		t.Errorf("expected downgraded LevelUnknown, got %v", key.Level)
	}

	if _, err := store.VerifyPolicy(data, env, false); err == nil {
		t.Errorf("expected VerifyPolicy to fail without allow_untrusted")
	}
}

func TestVerifyRefusesAlgorithmMismatch(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	store := NewStore()
	fp := Fingerprint(AlgoEd25519, pub)
	store.AddMaster(&TrustedKey{Fingerprint: fp, Algorithm: AlgoEd25519, PublicKey: pub, Level: LevelUltimate})

	data := []byte("data")
	sig := ed25519.Sign(priv, data)
	// Envelope claims hybrid, but the stored key is plain ed25519.
	env := Envelope{Fingerprint: fp, Algorithm: AlgoHybrid, Signature: sig}

	if _, err := store.Verify(data, env); err == nil {
		t.Errorf("expected algorithm-mismatch refusal")
	}
}

func TestHybridSignatureRequiresBothHalves(t *testing.T) {
	edPub, edPriv, _ := ed25519.GenerateKey(rand.Reader)
	dilPub, dilPriv, err := dilithiumMode.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate dilithium key: %v", err)
	}

	hybridPub := JoinHybridPublicKey(edPub, dilPub)
	store := NewStore()
	fp := Fingerprint(AlgoHybrid, hybridPub)
	store.AddMaster(&TrustedKey{Fingerprint: fp, Algorithm: AlgoHybrid, PublicKey: hybridPub, Level: LevelUltimate})

	data := []byte("hybrid-signed data")
	sig := SignHybrid(edPriv, dilPriv, data)
	env := Envelope{Fingerprint: fp, Algorithm: AlgoHybrid, Signature: sig}

	if _, err := store.Verify(data, env); err != nil {
		t.Fatalf("expected valid hybrid signature to verify: %v", err)
	}

	corrupt := append([]byte(nil), sig...)
	corrupt[0] ^= 0xFF
	corruptEnv := Envelope{Fingerprint: fp, Algorithm: AlgoHybrid, Signature: corrupt}
	if _, err := store.Verify(data, corruptEnv); err == nil {
		t.Errorf("expected corrupted ed25519 half to fail verification")
	}
}

func TestCertificationRaisesLevelToMarginal(t *testing.T) {
	masterPub, masterPriv, _ := ed25519.GenerateKey(rand.Reader)
	packagerPub, _, _ := ed25519.GenerateKey(rand.Reader)

	store := NewStore()
	masterFP := Fingerprint(AlgoEd25519, masterPub)
	store.AddMaster(&TrustedKey{Fingerprint: masterFP, Algorithm: AlgoEd25519, PublicKey: masterPub, Level: LevelUltimate})

	packagerFP := Fingerprint(AlgoEd25519, packagerPub)
	store.AddPackager(&TrustedKey{Fingerprint: packagerFP, Algorithm: AlgoEd25519, PublicKey: packagerPub, Level: LevelUnknown})

	if k := store.Find(packagerFP); k.Level.SatisfiesPolicy() {
		t.Fatalf("expected uncertified packager key to be below policy threshold")
	}

	cb := CertificationBytes(packagerFP, "package-signing")
	cert := Certification{
		MasterFingerprint:   masterFP,
		PackagerFingerprint: packagerFP,
		Purpose:             "package-signing",
		Signature:           ed25519.Sign(masterPriv, cb),
	}
	if !ed25519.Verify(masterPub, cb, cert.Signature) {
		t.Fatalf("test setup: certification signature does not verify")
	}
	store.AddCertification(cert)

	k := store.Find(packagerFP)
	if !k.Level.SatisfiesPolicy() {
		t.Errorf("expected certified packager key to satisfy policy, got level %v", k.Level)
	}
}
