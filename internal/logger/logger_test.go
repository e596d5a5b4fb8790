package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procguard.log")
	log := New(Config{Path: path})
	log.Info("bring-up complete", "id", "varserver")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created at %s: %v", path, err)
	}
}

func TestNewVerboseMirrorsToStderr(t *testing.T) {
	log := New(Config{Verbose: true})
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewDefaultsToStderrWhenNoPath(t *testing.T) {
	log := New(Config{})
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}
