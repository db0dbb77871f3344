package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func writePublicKeyFile(t *testing.T, dir, name, purpose string, pub ed25519.PublicKey) string {
	t.Helper()
	fp := Fingerprint(AlgoEd25519, pub)
	content := "format_version: 1\n" +
		"type: public\n" +
		"purpose: " + purpose + "\n" +
		"fingerprint: " + fp + "\n" +
		"algorithm: " + string(AlgoEd25519) + "\n" +
		"key: " + base64.StdEncoding.EncodeToString(pub) + "\n"
	path := filepath.Join(dir, name+".pub")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	return fp
}

func TestLoadStoreFromDirectories(t *testing.T) {
	masterDir := t.TempDir()
	packagerDir := t.TempDir()

	masterPub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate master key: %v", err)
	}
	packagerPub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate packager key: %v", err)
	}

	masterFP := writePublicKeyFile(t, masterDir, "root", "master", masterPub)
	packagerFP := writePublicKeyFile(t, packagerDir, "builder", "packager", packagerPub)

	store, err := LoadStore(masterDir, packagerDir)
	if err != nil {
		t.Fatalf("LoadStore failed: %v", err)
	}

	master := store.Find(masterFP)
	if master == nil || master.Tier != TierMaster || master.Level != LevelUltimate {
		t.Fatalf("expected ultimate master key, got %+v", master)
	}

	packager := store.Find(packagerFP)
	if packager == nil || packager.Tier != TierPackager || packager.Level != LevelFull {
		t.Fatalf("expected full packager key, got %+v", packager)
	}
}

func TestLoadStoreToleratesMissingDirectories(t *testing.T) {
	store, err := LoadStore("/nonexistent/master", "/nonexistent/packager")
	if err != nil {
		t.Fatalf("LoadStore should tolerate missing directories, got: %v", err)
	}
	if store.Find("anything") != nil {
		t.Fatal("expected empty store")
	}
}
