package reposync

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rookpkg/pkg/trust"
)

func newTestServer(t *testing.T, descTOML string, idx Index, signer ed25519.PrivateKey, fp string) *httptest.Server {
	t.Helper()
	idxBytes, err := json.Marshal(idx)
	if err != nil {
		t.Fatalf("marshal index: %v", err)
	}
	sig := ed25519.Sign(signer, idxBytes)
	envText := fmt.Sprintf("fingerprint: %s\nalgorithm: %s\nsignature: %s\n",
		fp, trust.AlgoEd25519, base64.StdEncoding.EncodeToString(sig))

	mux := http.NewServeMux()
	mux.HandleFunc("/repo.toml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(descTOML))
	})
	mux.HandleFunc("/packages.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(idxBytes)
	})
	mux.HandleFunc("/packages.json.sig", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(envText))
	})
	return httptest.NewServer(mux)
}

func TestUpdateVerifiesAndCachesIndex(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fp := trust.Fingerprint(trust.AlgoEd25519, pub)

	idx := Index{
		Version:    "1",
		Generated:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Repository: "main",
		Count:      1,
		Packages: []PackageEntry{
			{Name: "curl", Version: "8.4.0", Release: 1, Filename: "curl-8.4.0-1.pkg", Hash: "sha256:abc", Size: 100},
		},
	}
	descTOML := `name = "main"
description = "main repository"
format_version = "1.0.0"
signing_fingerprint = "` + fp + `"
`
	srv := newTestServer(t, descTOML, idx, priv, fp)
	defer srv.Close()

	store := trust.NewStore()
	store.AddMaster(&trust.TrustedKey{Fingerprint: fp, Algorithm: trust.AlgoEd25519, PublicKey: pub, Level: trust.LevelUltimate})

	syncer := NewSyncer(t.TempDir(), store, false, nil)
	result := syncer.Update(context.Background(), []Repository{
		{Name: "main", URL: srv.URL, Enabled: true, Priority: 10},
	})

	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures: %+v", result.Failed)
	}
	if len(result.Updated) != 1 || result.Updated[0] != "main" {
		t.Fatalf("Updated = %v, want [main]", result.Updated)
	}

	entry, ok := syncer.Lookup("curl")
	if !ok {
		t.Fatalf("expected curl to be found after sync")
	}
	if entry.Version != "8.4.0" {
		t.Errorf("Version = %q, want 8.4.0", entry.Version)
	}
	if syncer.IsTainted("main") {
		t.Errorf("expected repo not to be tainted when signature verifies")
	}

	// second update with identical generation timestamp is a no-op
	result2 := syncer.Update(context.Background(), []Repository{
		{Name: "main", URL: srv.URL, Enabled: true, Priority: 10},
	})
	if len(result2.Unchanged) != 1 {
		t.Errorf("expected second sync to report unchanged, got %+v", result2)
	}
}

func TestUpdateFailsOnBadSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	_, wrongPriv, _ := ed25519.GenerateKey(rand.Reader)
	fp := trust.Fingerprint(trust.AlgoEd25519, pub)

	idx := Index{Version: "1", Generated: time.Now(), Repository: "main", Count: 0}
	descTOML := `name = "main"
format_version = "1.0.0"
signing_fingerprint = "` + fp + `"
`
	srv := newTestServer(t, descTOML, idx, wrongPriv, fp)
	defer srv.Close()

	store := trust.NewStore()
	store.AddMaster(&trust.TrustedKey{Fingerprint: fp, Algorithm: trust.AlgoEd25519, PublicKey: pub, Level: trust.LevelUltimate})

	syncer := NewSyncer(t.TempDir(), store, false, nil)
	result := syncer.Update(context.Background(), []Repository{
		{Name: "main", URL: srv.URL, Enabled: true, Priority: 0},
	})

	if len(result.Failed) != 1 {
		t.Fatalf("expected one failed repo, got %+v", result)
	}
}

func TestMultiRepoUpdateIsFaultIsolated(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	fp := trust.Fingerprint(trust.AlgoEd25519, pub)
	idx := Index{Version: "1", Generated: time.Now(), Repository: "good", Count: 0}
	descTOML := `name = "good"
format_version = "1.0.0"
signing_fingerprint = "` + fp + `"
`
	good := newTestServer(t, descTOML, idx, priv, fp)
	defer good.Close()

	broken := httptest.NewServer(http.NotFoundHandler())
	defer broken.Close()

	store := trust.NewStore()
	store.AddMaster(&trust.TrustedKey{Fingerprint: fp, Algorithm: trust.AlgoEd25519, PublicKey: pub, Level: trust.LevelUltimate})

	syncer := NewSyncer(t.TempDir(), store, false, nil)
	result := syncer.Update(context.Background(), []Repository{
		{Name: "good", URL: good.URL, Enabled: true, Priority: 0},
		{Name: "broken", URL: broken.URL, Enabled: true, Priority: 1},
	})

	if len(result.Updated) != 1 || result.Updated[0] != "good" {
		t.Errorf("Updated = %v, want [good]", result.Updated)
	}
	if len(result.Failed) != 1 || result.Failed[0].Name != "broken" {
		t.Errorf("Failed = %+v, want one entry for broken", result.Failed)
	}
}
