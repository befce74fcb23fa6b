package supervisor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSpectrum(t *testing.T, dir string) {
	t.Helper()
	data := []byte(`{
		"namespace": "demo",
		"name": "greeter",
		"version": "1.0.0",
		"wavelengths": [{"frequency": "greet", "input_schema": {}, "output_schema": {}}]
	}`)
	if err := os.WriteFile(filepath.Join(dir, "spectrum.json"), data, 0o644); err != nil {
		t.Fatalf("write spectrum.json: %v", err)
	}
}

func TestScanInstallDirMissingReturnsEmpty(t *testing.T) {
	found, err := scanInstallDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("expected no error for missing install dir, got %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected no prisms found, got %d", len(found))
	}
}

func TestScanLeafPrefersLaunchJSON(t *testing.T) {
	dir := t.TempDir()
	writeSpectrum(t, dir)
	launch := []byte(`{"command": ["python3", "handler.py"], "env": {"X": "1"}}`)
	if err := os.WriteFile(filepath.Join(dir, "launch.json"), launch, 0o644); err != nil {
		t.Fatalf("write launch.json: %v", err)
	}

	p, err := scanLeaf(dir)
	if err != nil {
		t.Fatalf("scanLeaf: %v", err)
	}
	if p == nil {
		t.Fatal("expected a discovered prism")
	}
	if len(p.command) != 2 || p.command[0] != "python3" || p.command[1] != "handler.py" {
		t.Fatalf("unexpected command: %v", p.command)
	}
	if p.env["X"] != "1" {
		t.Fatalf("expected env to be carried from launch.json, got %v", p.env)
	}
}

func TestScanLeafFallsBackToExecutableFile(t *testing.T) {
	dir := t.TempDir()
	writeSpectrum(t, dir)
	modulePath := filepath.Join(dir, "module")
	if err := os.WriteFile(modulePath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write module: %v", err)
	}

	p, err := scanLeaf(dir)
	if err != nil {
		t.Fatalf("scanLeaf: %v", err)
	}
	if p == nil || len(p.command) != 1 || p.command[0] != modulePath {
		t.Fatalf("expected command to be the executable file, got %+v", p)
	}
}

func TestScanLeafErrorsWithoutLaunchOrExecutable(t *testing.T) {
	dir := t.TempDir()
	writeSpectrum(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644); err != nil {
		t.Fatalf("write README.md: %v", err)
	}

	if _, err := scanLeaf(dir); err == nil {
		t.Fatal("expected an error when no launch.json or executable file is present")
	}
}

func TestScanLeafIgnoresDirWithoutSpectrum(t *testing.T) {
	p, err := scanLeaf(t.TempDir())
	if err != nil {
		t.Fatalf("expected no error for a dir without spectrum.json, got %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil, got %+v", p)
	}
}
