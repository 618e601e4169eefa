package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/go-theft-craft/voxel/internal/atlas"
	"github.com/go-theft-craft/voxel/internal/config"
	"github.com/go-theft-craft/voxel/internal/mesh"
	"github.com/go-theft-craft/voxel/internal/noise"
	"github.com/go-theft-craft/voxel/internal/relay"
	"github.com/go-theft-craft/voxel/internal/storage"
	"github.com/go-theft-craft/voxel/internal/world"
)

// countingScene keeps the live chunk nodes so their totals can be reported.
type countingScene struct {
	nodes   map[*mesh.Node]struct{}
	added   int
	removed int
}

func (s *countingScene) Add(n *mesh.Node) {
	s.nodes[n] = struct{}{}
	s.added++
}

func (s *countingScene) Remove(n *mesh.Node) {
	delete(s.nodes, n)
	s.removed++
}

func (s *countingScene) totals() (faces, surfaces int) {
	for n := range s.nodes {
		faces += n.FaceCount()
		surfaces += len(n.Surfaces)
	}
	return faces, surfaces
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		x          = flag.Float64("x", 0, "viewpoint x")
		z          = flag.Float64("z", 0, "viewpoint z")
		editsPath  = flag.String("edits", "", "edit log to replay (.jsonl.zst)")
		atlasPath  = flag.String("atlas", "", "texture atlas manifest (YAML)")
		relayURL   = flag.String("relay", "", "relay websocket URL to join")
		frames     = flag.Int("frames", 120, "update frames to run")
		logLevel   = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	level, err := config.ParseLevel(*logLevel)
	if err != nil {
		slog.Error("parse log level", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	var materials mesh.MaterialProvider = mesh.NopMaterials{}
	if *atlasPath != "" {
		a, err := atlas.Load(*atlasPath)
		if err != nil {
			log.Error("load atlas", "error", err)
			os.Exit(1)
		}
		log.Info("loaded atlas", "path", *atlasPath, "tiles", a.Distinct())
		materials = a
	}

	scene := &countingScene{nodes: make(map[*mesh.Node]struct{})}
	w := world.New(cfg.World, noise.New(cfg.World.Seed), materials, scene, log)
	defer w.Dispose()

	if *editsPath != "" {
		edits, err := storage.ImportFile(*editsPath)
		if err != nil {
			log.Error("import edits", "error", err)
			os.Exit(1)
		}
		// Chunks are not loaded yet; the world keeps the edits and applies
		// them as Update generates each chunk.
		w.ApplyEdits(edits)
		log.Info("replayed edit log", "path", *editsPath, "edits", len(edits), "positions", w.Overrides())
	}

	var client *relay.Client
	if *relayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = relay.Dial(ctx, *relayURL, relay.Hello{Name: "worldgen", ConfigDigest: cfg.World.Digest()})
		cancel()
		if err != nil {
			log.Error("join relay", "url", *relayURL, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		welcome := client.Welcome()
		log.Info("joined relay", "peer", welcome.PeerID, "seed", welcome.Seed, "backlog", welcome.Backlog)
	}

	start := time.Now()
	var total world.UpdateStats
	for i := 0; i < *frames; i++ {
		if client != nil {
			drainRelay(client, w, log)
		}
		st := w.Update(*x, *z)
		total.Generated += st.Generated
		total.Rebuilt += st.Rebuilt
		total.Evicted += st.Evicted
		total.Loaded = st.Loaded
		total.Pending = st.Pending
	}
	elapsed := time.Since(start)

	top := float64(cfg.World.ChunkHeight + 1)
	hit, ok := w.Raycast(mgl64.Vec3{*x, top, *z}, mgl64.Vec3{0, -1, 0}, top+1)
	if ok {
		log.Info("ground below viewpoint",
			"block", hit.Block.String(),
			"x", hit.Pos.X, "y", hit.Pos.Y, "z", hit.Pos.Z,
			"distance", hit.Distance,
		)
	} else {
		log.Warn("raycast found no ground", "x", *x, "z", *z)
	}

	faces, surfaces := scene.totals()
	log.Info("world stats",
		"frames", *frames,
		"elapsed", elapsed.String(),
		"chunks", w.ChunkCount(),
		"generated", total.Generated,
		"rebuilt", total.Rebuilt,
		"evicted", total.Evicted,
		"pending", total.Pending,
		"nodes", len(scene.nodes),
		"replaced", scene.removed,
		"surfaces", surfaces,
		"faces", faces,
	)
}

// drainRelay applies every edit batch already received without blocking.
func drainRelay(c *relay.Client, w *world.World, log *slog.Logger) {
	for {
		select {
		case edits, ok := <-c.Edits():
			if !ok {
				return
			}
			w.ApplyEdits(edits)
		default:
			return
		}
	}
}
