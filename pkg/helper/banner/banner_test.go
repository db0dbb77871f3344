package banner

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestLogoContainsExpectedText(t *testing.T) {
	if !strings.Contains(Logo, "ROOKPKG") {
		t.Error("Logo does not mention ROOKPKG")
	}
	if !strings.Contains(SmallLogo, "ROOKPKG") {
		t.Error("SmallLogo does not mention ROOKPKG")
	}
	if len(SmallLogo) >= len(Logo) {
		t.Error("SmallLogo should be smaller than Logo")
	}
}

func TestPrint(t *testing.T) {
	oldVersion, oldCommit, oldBuild := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = "1.0.0", "abc123", "2024-01-01T00:00:00Z"
	defer func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldBuild }()

	output := captureStdout(t, Print)
	for _, expected := range []string{"ROOKPKG", "Version: 1.0.0", "Commit: abc123", "Built: 2024-01-01T00:00:00Z", "Runtime: Go"} {
		if !strings.Contains(output, expected) {
			t.Errorf("Print() output missing %q", expected)
		}
	}
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldCommit, oldBuild := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = "3.0.0", "def456", "2024-06-01T12:00:00Z"
	defer func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldBuild }()

	output := captureStdout(t, PrintVersion)
	for _, expected := range []string{"rookpkg v3.0.0", "Git Commit: def456", "Built: 2024-06-01T12:00:00Z"} {
		if !strings.Contains(output, expected) {
			t.Errorf("PrintVersion() output missing %q", expected)
		}
	}
	if strings.Contains(output, "_______________") {
		t.Error("PrintVersion() should not contain ASCII art")
	}
}
