package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"testing"
)

func buildArchive(t *testing.T, info Info, files []FileEntry, scripts map[Hook]string, payload map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	writeEntry := func(name string, data []byte) {
		if err := tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatalf("write body %s: %v", name, err)
		}
	}

	infoBytes, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("marshal info: %v", err)
	}
	writeEntry("info", infoBytes)

	filesBytes, err := json.Marshal(files)
	if err != nil {
		t.Fatalf("marshal files: %v", err)
	}
	writeEntry("files", filesBytes)

	for hook, body := range scripts {
		writeEntry("scripts/"+string(hook), []byte(body))
	}
	for path, body := range payload {
		writeEntry("data/"+path, []byte(body))
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func TestOpenParsesInfoAndFiles(t *testing.T) {
	info := Info{
		Name:          "curl",
		Version:       "8.4.0",
		Release:       2,
		InstalledSize: 1024,
		Dependencies:  []Dependency{{Name: "openssl", Constraint: ">=3.0"}, {Name: "zlib"}},
	}
	files := []FileEntry{
		{Path: "/usr/bin/curl", Mode: 0o755, Size: 512, Hash: "sha256:abc", IsConfig: false},
		{Path: "/etc/curl/curlrc", Mode: 0o644, Size: 12, Hash: "sha256:def", IsConfig: true},
	}
	raw := buildArchive(t, info, files, map[Hook]string{HookPostInstall: "#!/bin/sh\necho done\n"}, map[string]string{
		"usr/bin/curl": "binary-stand-in",
	})

	a, err := Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if a.Info.Name != "curl" {
		t.Errorf("Name = %q, want curl", a.Info.Name)
	}
	if len(a.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(a.Files))
	}
	if string(a.Scripts[HookPostInstall]) != "#!/bin/sh\necho done\n" {
		t.Errorf("post_install script not captured correctly")
	}
	if a.ContentHash == "" {
		t.Errorf("expected a non-empty content hash")
	}

	id, err := a.Info.Identity()
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id.Name != "curl" || id.Release != 2 {
		t.Errorf("Identity = %+v, unexpected", id)
	}

	deps, err := a.Info.ParsedDependencies()
	if err != nil {
		t.Fatalf("ParsedDependencies: %v", err)
	}
	if len(deps) != 2 || deps[0].Constraint == nil || deps[1].Constraint != nil {
		t.Errorf("ParsedDependencies = %+v, unexpected shape", deps)
	}
}

func TestOpenRejectsMissingInfoSection(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := []byte(`[]`)
	if err := tw.WriteHeader(&tar.Header{Name: "files", Size: int64(len(body)), Mode: 0o644}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatalf("write body: %v", err)
	}
	tw.Close()
	gz.Close()

	if _, err := Open(bytes.NewReader(buf.Bytes())); err == nil {
		t.Errorf("expected error for archive missing info section")
	}
}

func TestExtractPayloadStreamsDataEntries(t *testing.T) {
	info := Info{Name: "zlib", Version: "1.3", Release: 1}
	files := []FileEntry{{Path: "/usr/lib/libz.so", Mode: 0o755, Size: 7, Hash: "sha256:xyz"}}
	raw := buildArchive(t, info, files, nil, map[string]string{
		"usr/lib/libz.so": "payload",
	})

	var seen []string
	err := ExtractPayload(bytes.NewReader(raw), func(relPath string, mode int64, content io.Reader) error {
		seen = append(seen, relPath)
		return nil
	})
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if len(seen) != 1 || seen[0] != "usr/lib/libz.so" {
		t.Errorf("seen = %v, want [usr/lib/libz.so]", seen)
	}
}

func TestVerifyFileHashDetectsMismatch(t *testing.T) {
	entry := FileEntry{Path: "/bin/true", Hash: "sha256:0000000000000000000000000000000000000000000000000000000000000000"}
	if err := VerifyFileHash(entry, []byte("content")); err == nil {
		t.Errorf("expected checksum mismatch")
	}
}
