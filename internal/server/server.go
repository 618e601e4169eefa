package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-theft-craft/voxel/internal/config"
	"github.com/go-theft-craft/voxel/internal/noise"
	"github.com/go-theft-craft/voxel/internal/relay"
	"github.com/go-theft-craft/voxel/internal/storage"
	"github.com/go-theft-craft/voxel/internal/terrain"
)

const shutdownTimeout = 5 * time.Second

// Server hosts the edit relay for one world and persists its edits.
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	storage *storage.Storage
	edits   *storage.EditStore
	hub     *relay.Hub
	terrain *terrain.Terrain
}

// New opens the data directory and edit store and builds the relay hub.
func New(cfg *config.Config, log *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := storage.New(cfg.Server.DataDir, log)
	if err != nil {
		return nil, err
	}
	edits, err := st.OpenEdits(cfg.Server.EditLog)
	if err != nil {
		return nil, err
	}
	if err := st.SaveConfig(cfg); err != nil {
		edits.Close()
		return nil, fmt.Errorf("save effective config: %w", err)
	}

	hub := relay.NewHub(relay.Options{
		Seed:         cfg.World.Seed,
		ConfigDigest: cfg.World.Digest(),
		MaxPeers:     cfg.Server.MaxPeers,
		Source:       edits,
		Sink:         edits,
	}, log)

	return &Server{
		cfg:     cfg,
		log:     log,
		storage: st,
		edits:   edits,
		hub:     hub,
		terrain: terrain.New(cfg.World, noise.New(cfg.World.Seed)),
	}, nil
}

// LoadConfig reads the config file at path. Without a path it falls back to
// the effective config a previous run saved in dataDir, then to the defaults.
func LoadConfig(path, dataDir string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	st, err := storage.New(dataDir, nil)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if err := st.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("saved config in %s: %w", st.Dir(), err)
	}
	return cfg, nil
}

// Handler routes the relay websocket and a status endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/relay", s.hub)
	mux.HandleFunc("/healthz", s.handleStatus)
	return mux
}

type status struct {
	Seed         int64  `json:"seed"`
	ConfigDigest string `json:"config_digest"`
	Peers        int    `json:"peers"`
	Edits        int    `json:"edits"`
	SpawnHeight  int    `json:"spawn_height"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	n, err := s.edits.Count(r.Context())
	if err != nil {
		s.log.Error("count edits", "error", err)
		http.Error(w, "edit store unavailable", http.StatusInternalServerError)
		return
	}
	h, _ := s.terrain.Column(0, 0)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status{
		Seed:         s.cfg.World.Seed,
		ConfigDigest: s.cfg.World.Digest(),
		Peers:        s.hub.PeerCount(),
		Edits:        n,
		SpawnHeight:  h,
	})
}

// Start listens for relay connections and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Listen, err)
	}

	spawn, road := s.terrain.Column(0, 0)
	s.log.Info("server started",
		"addr", listener.Addr().String(),
		"data", s.storage.Dir(),
		"seed", s.cfg.World.Seed,
		"digest", s.cfg.World.Digest(),
		"spawnHeight", spawn,
		"spawnOnRoad", road.Paved,
		"maxPeers", s.cfg.Server.MaxPeers,
	)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(listener) }()

	select {
	case err := <-errc:
		s.Close()
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("server shutting down")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("http shutdown", "error", err)
	}
	return s.Close()
}

// Close exports a snapshot of the edit log and closes the store.
func (s *Server) Close() error {
	if _, err := s.edits.Compact(context.Background()); err != nil {
		s.log.Warn("compact edits", "error", err)
	}
	if _, err := s.storage.Export(context.Background(), s.edits); err != nil {
		s.log.Warn("export edits", "error", err)
	}
	return s.edits.Close()
}
