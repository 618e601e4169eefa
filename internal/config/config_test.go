package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.World.Seed != WorldSeed || cfg.World.ChunkSize != 16 {
		t.Errorf("unexpected defaults: %+v", cfg.World)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxel.yaml")
	data := []byte("world:\n  seed: 99\n  load_radius: 6\nserver:\n  listen: \":9000\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.World.Seed != 99 || cfg.World.LoadRadius != 6 {
		t.Errorf("world not overridden: seed=%d radius=%d", cfg.World.Seed, cfg.World.LoadRadius)
	}
	if cfg.World.ChunkHeight != 64 {
		t.Errorf("unset fields should keep defaults, chunk_height=%d", cfg.World.ChunkHeight)
	}
	if cfg.Server.Listen != ":9000" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.World.ChunkSize = 0 }},
		{"water above height", func(c *Config) { c.World.WaterLevel = 80 }},
		{"no rebuilds", func(c *Config) { c.World.MaxRebuildsPerUpdate = 0 }},
		{"huge raycast step", func(c *Config) { c.World.RaycastStep = 2 }},
		{"no octaves", func(c *Config) { c.World.Terrain.Octaves = nil }},
		{"roads overlap", func(c *Config) { c.World.Roads.Spacing = 10 }},
		{"dash too long", func(c *Config) { c.World.Roads.DashLength = 20 }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }},
		{"no peers", func(c *Config) { c.Server.MaxPeers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestMergeExplicitFlagsWin(t *testing.T) {
	cfg := Default()
	cfg.World.Seed = 5
	cfg.Server.Listen = ":1111"

	file := Default()
	file.World.Seed = 7
	file.World.LoadRadius = 9
	file.Server.Listen = ":2222"
	file.Server.DataDir = "/srv/voxel"

	Merge(cfg, file, map[string]bool{"seed": true, "listen": true})

	if cfg.World.Seed != 5 {
		t.Errorf("seed = %d, want flag value 5", cfg.World.Seed)
	}
	if cfg.Server.Listen != ":1111" {
		t.Errorf("listen = %q, want flag value", cfg.Server.Listen)
	}
	if cfg.World.LoadRadius != 9 {
		t.Errorf("load radius = %d, want file value 9", cfg.World.LoadRadius)
	}
	if cfg.Server.DataDir != "/srv/voxel" {
		t.Errorf("data dir = %q, want file value", cfg.Server.DataDir)
	}
}

func TestDigest(t *testing.T) {
	a := DefaultWorld()
	b := DefaultWorld()
	if a.Digest() != b.Digest() {
		t.Fatal("identical worlds must share a digest")
	}
	b.Roads.Spacing++
	if a.Digest() == b.Digest() {
		t.Error("changing road spacing must change the digest")
	}
	if len(a.Digest()) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a.Digest()))
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error", "INFO"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
}
