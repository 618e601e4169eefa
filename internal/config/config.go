package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure reported by Validate.
var ErrInvalid = errors.New("invalid config")

// Config holds the host configuration.
type Config struct {
	World  World  `yaml:"world"`
	Server Server `yaml:"server"`
}

// World holds every constant that must match across peers for terrain to be
// bit-identical from the seed alone.
type World struct {
	Seed                 int64   `yaml:"seed"`
	ChunkSize            int     `yaml:"chunk_size"`
	ChunkHeight          int     `yaml:"chunk_height"`
	WaterLevel           int     `yaml:"water_level"`
	LoadRadius           int     `yaml:"load_radius"` // chunks, Chebyshev
	Hysteresis           int     `yaml:"hysteresis"`  // extra chunks before eviction
	MaxRebuildsPerUpdate int     `yaml:"max_rebuilds_per_update"`
	RaycastStep          float64 `yaml:"raycast_step"`

	Terrain Terrain `yaml:"terrain"`
	Roads   Roads   `yaml:"roads"`
}

// Octave is one layer of the terrain height sum.
type Octave struct {
	Frequency float64 `yaml:"frequency"`
	Amplitude float64 `yaml:"amplitude"`
}

// Terrain controls the height field and cave carving.
type Terrain struct {
	Baseline          float64    `yaml:"baseline"`
	FlatScale         float64    `yaml:"flat_scale"` // amplitude multiplier in fully flat areas
	FlatnessFrequency float64    `yaml:"flatness_frequency"`
	FlatnessOffset    float64    `yaml:"flatness_offset"`
	Octaves           []Octave   `yaml:"octaves"` // coarse first
	CaveFrequencies   [2]float64 `yaml:"cave_frequencies"`
	CaveThreshold     float64    `yaml:"cave_threshold"`
}

// Roads controls the road network layout.
type Roads struct {
	Spacing         int     `yaml:"spacing"`
	HalfWidth       float64 `yaml:"half_width"`
	Blend           float64 `yaml:"blend"` // smoothing margin past the road edge
	JitterAmplitude float64 `yaml:"jitter_amplitude"`
	JitterFrequency float64 `yaml:"jitter_frequency"`
	SampleCount     int     `yaml:"sample_count"` // height samples along the road axis
	SampleStep      int     `yaml:"sample_step"`
	DashPeriod      int     `yaml:"dash_period"`
	DashLength      int     `yaml:"dash_length"`
	Headroom        int     `yaml:"headroom"`
}

// Server holds settings for the relay host and tools.
type Server struct {
	Listen   string `yaml:"listen"`
	DataDir  string `yaml:"data_dir"`
	EditLog  string `yaml:"edit_log"` // SQLite file name inside DataDir
	LogLevel string `yaml:"log_level"`
	MaxPeers int    `yaml:"max_peers"`
}

// WorldSeed is the fixed seed shared by every peer unless configured otherwise.
const WorldSeed int64 = 1337

// Default returns a Config with the shipped world contract.
func Default() *Config {
	return &Config{
		World:  DefaultWorld(),
		Server: DefaultServer(),
	}
}

// DefaultWorld returns the default world contract.
func DefaultWorld() World {
	return World{
		Seed:                 WorldSeed,
		ChunkSize:            16,
		ChunkHeight:          64,
		WaterLevel:           24,
		LoadRadius:           4,
		Hysteresis:           2,
		MaxRebuildsPerUpdate: 2,
		RaycastStep:          0.15,
		Terrain: Terrain{
			Baseline:          28,
			FlatScale:         0.12,
			FlatnessFrequency: 0.0025,
			FlatnessOffset:    7331,
			Octaves: []Octave{
				{Frequency: 0.01, Amplitude: 14},
				{Frequency: 0.035, Amplitude: 5},
				{Frequency: 0.11, Amplitude: 1.5},
			},
			CaveFrequencies: [2]float64{0.06, 0.13},
			CaveThreshold:   1.05,
		},
		Roads: Roads{
			Spacing:         96,
			HalfWidth:       3.5,
			Blend:           6,
			JitterAmplitude: 8,
			JitterFrequency: 0.004,
			SampleCount:     13,
			SampleStep:      4,
			DashPeriod:      8,
			DashLength:      4,
			Headroom:        5,
		},
	}
}

// DefaultServer returns the default host settings.
func DefaultServer() Server {
	return Server{
		Listen:   ":8787",
		DataDir:  "data",
		EditLog:  "edits.db",
		LogLevel: "info",
		MaxPeers: 32,
	}
}

// Load reads a YAML config file on top of the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge applies file-loaded values into cfg, but only for fields that were
// NOT explicitly set via CLI flags. explicitFlags holds the flag names that
// were provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	seed := cfg.World.Seed
	cfg.World = fromFile.World
	if explicitFlags["seed"] {
		cfg.World.Seed = seed
	}
	if !explicitFlags["listen"] {
		cfg.Server.Listen = fromFile.Server.Listen
	}
	if !explicitFlags["data"] {
		cfg.Server.DataDir = fromFile.Server.DataDir
	}
	if !explicitFlags["log-level"] {
		cfg.Server.LogLevel = fromFile.Server.LogLevel
	}
	if !explicitFlags["max-peers"] {
		cfg.Server.MaxPeers = fromFile.Server.MaxPeers
	}
	cfg.Server.EditLog = fromFile.Server.EditLog
}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	errs := c.World.validate()
	if c.Server.MaxPeers < 1 {
		errs = append(errs, fmt.Errorf("server.max_peers must be positive, got %d", c.Server.MaxPeers))
	}
	if _, err := ParseLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Validate reports every out-of-range world setting.
func (w World) Validate() error {
	if errs := w.validate(); len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (w World) validate() []error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(w.ChunkSize > 0, "world.chunk_size must be positive, got %d", w.ChunkSize)
	check(w.ChunkHeight >= 8, "world.chunk_height must be at least 8, got %d", w.ChunkHeight)
	check(w.WaterLevel > 0 && w.WaterLevel < w.ChunkHeight, "world.water_level %d outside (0, %d)", w.WaterLevel, w.ChunkHeight)
	check(w.LoadRadius >= 0, "world.load_radius must not be negative, got %d", w.LoadRadius)
	check(w.Hysteresis >= 0, "world.hysteresis must not be negative, got %d", w.Hysteresis)
	check(w.MaxRebuildsPerUpdate > 0, "world.max_rebuilds_per_update must be positive, got %d", w.MaxRebuildsPerUpdate)
	check(w.RaycastStep > 0 && w.RaycastStep < 1, "world.raycast_step %g outside (0, 1)", w.RaycastStep)
	check(len(w.Terrain.Octaves) > 0, "world.terrain.octaves must not be empty")
	check(w.Roads.Spacing > 0, "world.roads.spacing must be positive, got %d", w.Roads.Spacing)
	check(w.Roads.HalfWidth > 0, "world.roads.half_width must be positive, got %g", w.Roads.HalfWidth)
	check(w.Roads.JitterAmplitude+w.Roads.HalfWidth+w.Roads.Blend < float64(w.Roads.Spacing)/2,
		"world.roads: jitter+half_width+blend must stay below spacing/2")
	check(w.Roads.SampleCount > 0 && w.Roads.SampleStep > 0, "world.roads: sample_count and sample_step must be positive")
	check(w.Roads.DashPeriod > 0 && w.Roads.DashLength >= 0 && w.Roads.DashLength <= w.Roads.DashPeriod,
		"world.roads: dash_length must be within [0, dash_period]")
	check(w.Roads.Headroom >= 0, "world.roads.headroom must not be negative")
	return errs
}

// Digest returns a stable hash of the world contract. Peers with different
// digests would generate different terrain from the same seed.
func (w World) Digest() string {
	data, err := yaml.Marshal(w)
	if err != nil {
		// World holds only plain values; Marshal cannot fail.
		panic(fmt.Sprintf("marshal world config: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseLevel maps a config log level to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}
