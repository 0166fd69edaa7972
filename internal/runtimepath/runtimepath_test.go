package runtimepath

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestDir_UsesXDGRuntimeDirWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", td)

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_FallbacksWhenXDGRuntimeDirMissing(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	got, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}

	wantRun := fmt.Sprintf("/run/user/%d", os.Getuid())
	wantTmp := fmt.Sprintf("/tmp/ivicomp-runtime-%d", os.Getuid())
	if got != wantRun && got != wantTmp {
		t.Fatalf("Dir() = %q, want %q or %q", got, wantRun, wantTmp)
	}
}

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	socket, err := SocketPath()
	if err != nil {
		t.Fatalf("SocketPath() error: %v", err)
	}
	if !strings.HasSuffix(socket, "/ivicomp.sock") {
		t.Fatalf("SocketPath() = %q, missing suffix", socket)
	}
}

func TestBufferDir_Exists(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	dir, err := BufferDir()
	if err != nil {
		t.Fatalf("BufferDir() error: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("BufferDir() = %q is not a directory", dir)
	}
}
