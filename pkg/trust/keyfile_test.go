package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func writeKeyFile(t *testing.T, dir, name string, mode os.FileMode, kind, purpose string, keyBytes []byte) string {
	t.Helper()
	fp := Fingerprint(AlgoEd25519, keyBytes)
	content := "format_version: 1\n" +
		"type: " + kind + "\n" +
		"purpose: " + purpose + "\n" +
		"fingerprint: " + fp + "\n" +
		"algorithm: " + string(AlgoEd25519) + "\n" +
		"key: " + base64.StdEncoding.EncodeToString(keyBytes) + "\n" +
		"identity_name: Test Signer\n" +
		"identity_email: test@example.org\n" +
		"created: 2026-01-01T00:00:00Z\n"

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	return path
}

func TestLoadSecretKeyFileRejectsLoosePermissions(t *testing.T) {
	dir := t.TempDir()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	_ = pub

	path := writeKeyFile(t, dir, "secret.key", 0o644, "secret", "packager", priv)
	if _, err := LoadSecretKeyFile(path); err == nil {
		t.Fatalf("expected insecure-permissions error for mode 0644")
	}

	strict := writeKeyFile(t, dir, "secret2.key", 0o600, "secret", "packager", priv)
	kf, err := LoadSecretKeyFile(strict)
	if err != nil {
		t.Fatalf("unexpected error loading 0600 key: %v", err)
	}
	if kf.Purpose != "packager" {
		t.Errorf("Purpose = %q, want packager", kf.Purpose)
	}
}

func TestAsTrustedKeyValidatesFingerprint(t *testing.T) {
	dir := t.TempDir()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	path := writeKeyFile(t, dir, "master.pub", 0o644, "public", "master", pub)
	kf, err := LoadPublicKeyFile(path)
	if err != nil {
		t.Fatalf("load public key file: %v", err)
	}

	tk, err := kf.AsTrustedKey(LevelUltimate)
	if err != nil {
		t.Fatalf("AsTrustedKey: %v", err)
	}
	if tk.Tier != TierMaster {
		t.Errorf("Tier = %q, want master", tk.Tier)
	}
	if tk.Fingerprint != Fingerprint(AlgoEd25519, pub) {
		t.Errorf("fingerprint mismatch")
	}
}

func TestParseFileModeHelper(t *testing.T) {
	m, err := parseFileMode("600")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != 0o600 {
		t.Errorf("parseFileMode(600) = %o, want 600", m)
	}
}
