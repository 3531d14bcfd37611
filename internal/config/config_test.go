package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "vmc.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[package]
name = "example"

[build]
target = "llvm -mcpu=x86-64"
emit = ["ll", "o"]
entry = "main"
cache = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Package.Name != "example" {
		t.Fatalf("Package.Name = %q, want %q", cfg.Package.Name, "example")
	}
	if cfg.Build.Target != "llvm -mcpu=x86-64" {
		t.Fatalf("Build.Target = %q", cfg.Build.Target)
	}
	if len(cfg.Build.Emit) != 2 || cfg.Build.Emit[0] != "ll" {
		t.Fatalf("Build.Emit = %v", cfg.Build.Emit)
	}
	if !cfg.Build.Cache {
		t.Fatal("expected Build.Cache = true")
	}
}

func TestLoadRejectsMissingPackageName(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[build]
target = "llvm"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a manifest with no [package].name")
	}
}

func TestDiscoverManifestWalksUpward(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[package]
name = "root-pkg"
`)
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	manifest, ok, err := DiscoverManifest(nested)
	if err != nil {
		t.Fatalf("DiscoverManifest: %v", err)
	}
	if !ok {
		t.Fatal("expected to discover the manifest by walking upward")
	}
	if manifest.Config.Package.Name != "root-pkg" {
		t.Fatalf("Package.Name = %q, want %q", manifest.Config.Package.Name, "root-pkg")
	}
}

func TestDiscoverManifestReturnsFalseWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := DiscoverManifest(dir)
	if err != nil {
		t.Fatalf("DiscoverManifest: %v", err)
	}
	if ok {
		t.Fatal("expected no manifest to be discovered")
	}
}
