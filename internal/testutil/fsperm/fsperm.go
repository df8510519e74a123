package fsperm

import (
	"os"
	"runtime"
	"testing"
)

// AssertPrivateDir fails t unless dir is a directory readable only by its owner.
func AssertPrivateDir(t testing.TB, dir string) {
	t.Helper()
	assertMode(t, dir, true, 0o700)
}

// AssertPrivateFile fails t unless path is a regular file readable only by its owner.
func AssertPrivateFile(t testing.TB, path string) {
	t.Helper()
	assertMode(t, path, false, 0o600)
}

func assertMode(t testing.TB, path string, wantDir bool, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.IsDir() != wantDir {
		t.Fatalf("unexpected file type for %s: dir=%v", path, info.IsDir())
	}
	if runtime.GOOS == "windows" {
		return
	}
	if perm := info.Mode().Perm(); perm != want {
		t.Fatalf("expected perm %04o, got %04o for %s", want, perm, path)
	}
}
