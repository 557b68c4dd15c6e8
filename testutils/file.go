package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

// WriteTempFile writes contents to name inside a fresh temporary directory and returns the full
// path. The directory is removed when the test ends.
func WriteTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}
