// Package storage persists the world's edit deltas and settings. Terrain is
// regenerated from the seed, so only edits and config are ever written.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/go-theft-craft/voxel/internal/config"
)

const (
	configFile = "config.yaml"
	exportFile = "edits.jsonl.zst"
)

// Storage handles file-based persistence rooted at a data directory.
type Storage struct {
	dir string
	log *slog.Logger
}

// New creates a Storage rooted at dir, creating subdirectories as needed.
func New(dir string, log *slog.Logger) (*Storage, error) {
	dirs := []string{
		dir,
		filepath.Join(dir, "world"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Storage{dir: dir, log: log}, nil
}

// Dir returns the data directory.
func (s *Storage) Dir() string { return s.dir }

// LoadConfig reads config.yaml into cfg. If the file does not exist, cfg is unchanged.
func (s *Storage) LoadConfig(cfg *config.Config) error {
	path := filepath.Join(s.dir, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	s.log.Info("loaded config from file", "path", path)
	return nil
}

// SaveConfig writes cfg to config.yaml atomically.
func (s *Storage) SaveConfig(cfg *config.Config) error {
	return SaveConfig(filepath.Join(s.dir, configFile), cfg)
}

// OpenEdits opens the edit store named by the server config, relative to
// the data directory unless absolute.
func (s *Storage) OpenEdits(name string) (*EditStore, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, "world", name)
	}
	store, err := OpenEditStore(path, s.log)
	if err != nil {
		return nil, err
	}
	s.log.Info("opened edit store", "path", path)
	return store, nil
}

// Export writes every edit in src to world/edits.jsonl.zst atomically.
func (s *Storage) Export(ctx context.Context, src EditSource) (int, error) {
	path := filepath.Join(s.dir, "world", exportFile)
	n, err := ExportFile(ctx, path, src)
	if err != nil {
		return 0, err
	}
	s.log.Info("exported edits", "path", path, "count", n)
	return n, nil
}

// SaveConfig writes cfg as YAML to path via a temporary file and a rename.
func SaveConfig(path string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
