// Package testutils runs the built liquidsfz binary from tests.
package testutils

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/containerd/nerdctl/mod/tigron/test"

	"github.com/mycophonic/agar/pkg/agar"
)

func projectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0) //nolint:dogsled // runtime.Caller returns 4 values, only file is needed

	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

// BinaryPath returns the absolute path to the liquidsfz binary.
func BinaryPath() string {
	return filepath.Join(projectRoot(), "bin", "liquidsfz")
}

// Setup creates a test case configured to run the liquidsfz binary.
// The test is skipped when the binary has not been built.
func Setup(t *testing.T) *test.Case {
	t.Helper()

	if _, err := os.Stat(BinaryPath()); err != nil {
		t.Skipf("%s not built: %v", BinaryPath(), err)
	}

	return agar.Setup(BinaryPath())
}
