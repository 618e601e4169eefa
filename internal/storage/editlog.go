package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/world"
)

// ErrUnknownBlock is returned when an exported edit names a block type
// that is not in the catalog.
var ErrUnknownBlock = errors.New("unknown block")

const maxLineSize = 64 * 1024

// EditSource replays edits in order. EditStore satisfies it.
type EditSource interface {
	Replay(ctx context.Context, fn func(world.Edit) error) error
}

type editLine struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Block string `json:"block"`
}

// ExportJSONL writes every edit from src to w as zstd-compressed JSON lines.
func ExportJSONL(ctx context.Context, w io.Writer, src EditSource) (int, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return 0, fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 128*1024)

	n := 0
	err = src.Replay(ctx, func(e world.Edit) error {
		b, err := json.Marshal(editLine{X: e.X, Y: e.Y, Z: e.Z, Block: e.Block.String()})
		if err != nil {
			return err
		}
		b = append(b, '\n')
		if _, err := bw.Write(b); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		enc.Close()
		return n, fmt.Errorf("export edits: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return n, fmt.Errorf("flush export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return n, fmt.Errorf("close zstd writer: %w", err)
	}
	return n, nil
}

// ImportJSONL reads zstd-compressed JSON lines written by ExportJSONL.
// Blank lines are skipped.
func ImportJSONL(r io.Reader) ([]world.Edit, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var edits []world.Edit
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var el editLine
		if err := json.Unmarshal(raw, &el); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bt, ok := block.ByName(el.Block)
		if !ok {
			return nil, fmt.Errorf("line %d: %w %q", line, ErrUnknownBlock, el.Block)
		}
		edits = append(edits, world.Edit{X: el.X, Y: el.Y, Z: el.Z, Block: bt})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read edits: %w", err)
	}
	return edits, nil
}

// ExportFile writes src to path atomically.
func ExportFile(ctx context.Context, path string, src EditSource) (int, error) {
	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, &buf, src)
	if err != nil {
		return 0, err
	}
	if err := atomicWrite(path, buf.Bytes()); err != nil {
		return 0, err
	}
	return n, nil
}

// ImportFile reads the edits stored at path.
func ImportFile(path string) ([]world.Edit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open edits: %w", err)
	}
	defer f.Close()
	return ImportJSONL(f)
}

// Edits is an in-memory EditSource.
type Edits []world.Edit

// Replay calls fn for each edit in order.
func (es Edits) Replay(ctx context.Context, fn func(world.Edit) error) error {
	for _, e := range es {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
