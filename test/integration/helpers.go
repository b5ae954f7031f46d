package integration

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBinary = "./vetbox-test"

// buildTestBinary builds the CLI for the test and removes it afterwards.
func buildTestBinary(t *testing.T) {
	t.Helper()

	out, err := exec.Command("go", "build", "-o", "vetbox-test", "../../cmd/vetbox").CombinedOutput()
	if err != nil {
		t.Fatalf("could not build test binary: %v\n%s", err, out)
	}
	t.Cleanup(func() {
		os.Remove("vetbox-test")
	})
}

// runVetbox runs the CLI against the given history database and returns
// stdout, stderr and the execution error.
func runVetbox(t *testing.T, dbPath string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	fullArgs := append([]string{"--db-path", dbPath, "--no-log"}, args...)
	cmd := exec.Command(testBinary, fullArgs...)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()

	return outBuf.String(), errBuf.String(), err
}

// tempDBPath returns a per-test history database path.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "vetbox.db")
}

// writeCatalogueFile writes a YAML scenario catalogue to a temp file and
// returns its path.
func writeCatalogueFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}
