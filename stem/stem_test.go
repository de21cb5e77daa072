package stem_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cellmesh/cell/stem"
)

func TestGerminateSpawnsWhenSocketMissing(t *testing.T) {
	runtimeDir := t.TempDir()
	dnaDir := t.TempDir()

	binPath := filepath.Join(dnaDir, "greeter")
	sockPath := filepath.Join(runtimeDir, "greeter.sock")
	script := "#!/bin/sh\ntouch \"" + sockPath + "\"\nsleep 5\n"
	if err := os.WriteFile(binPath, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake cell binary: %v", err)
	}

	s := stem.New(runtimeDir, dnaDir)
	res, err := s.Germinate("greeter")
	if err != nil {
		t.Fatalf("Germinate: %v", err)
	}
	if res != stem.GerminateOk {
		t.Fatalf("got result %v, want GerminateOk", res)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitForSocket(ctx, "greeter"); err != nil {
		t.Fatalf("WaitForSocket: %v", err)
	}
}

func TestGerminateNotFound(t *testing.T) {
	s := stem.New(t.TempDir(), t.TempDir())
	res, err := s.Germinate("nothing-here")
	if err != nil {
		t.Fatalf("Germinate: %v", err)
	}
	if res != stem.GerminateNotFound {
		t.Fatalf("got result %v, want GerminateNotFound", res)
	}
}

func TestGerminateRejectsInvalidName(t *testing.T) {
	s := stem.New(t.TempDir(), t.TempDir())
	if _, err := s.Germinate("Not Valid!"); err == nil {
		t.Fatal("expected an error for an invalid cell name")
	}
}

func TestGerminateNoopWhenAlreadyRunning(t *testing.T) {
	runtimeDir := t.TempDir()
	dnaDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(runtimeDir, "live.sock"), nil, 0o644); err != nil {
		t.Fatalf("seed socket file: %v", err)
	}
	s := stem.New(runtimeDir, dnaDir)
	res, err := s.Germinate("live")
	if err != nil {
		t.Fatalf("Germinate: %v", err)
	}
	if res != stem.GerminateOk {
		t.Fatalf("got result %v, want GerminateOk (already running)", res)
	}
}
