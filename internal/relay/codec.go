package relay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/world"
)

// Frame kinds. A frame is varint(kind) followed by its payload.
const (
	FrameEdit  = 1 // one edit: zigzag x, y, z, then the block byte
	FrameBatch = 2 // varint(count) followed by count edit payloads
)

// MaxFrameSize bounds a binary frame in either direction.
const MaxFrameSize = 1 << 20

// maxEditSize is the widest encoding of one edit payload.
const maxEditSize = 3*5 + 1

var (
	// ErrFrameTooLarge is returned for frames over MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrUnknownFrame is returned for frames with an unrecognised kind.
	ErrUnknownFrame = errors.New("unknown frame kind")
	// ErrCoordinateRange is returned for edits whose coordinates do not fit
	// in 32 bits.
	ErrCoordinateRange = errors.New("coordinate out of range")
)

// EncodeEdits encodes edits as a single edit frame or a batch frame.
func EncodeEdits(edits []world.Edit) ([]byte, error) {
	if len(edits) == 0 {
		return nil, errors.New("encode: no edits")
	}
	for i, e := range edits {
		if !fits32(e.X) || !fits32(e.Y) || !fits32(e.Z) {
			return nil, fmt.Errorf("%w: edit %d at (%d, %d, %d)", ErrCoordinateRange, i, e.X, e.Y, e.Z)
		}
	}
	var buf bytes.Buffer
	buf.Grow(5 + 5 + len(edits)*maxEditSize)

	if len(edits) == 1 {
		writeVarInt(&buf, FrameEdit)
		writeEdit(&buf, edits[0])
	} else {
		writeVarInt(&buf, FrameBatch)
		writeVarInt(&buf, uint32(len(edits)))
		for _, e := range edits {
			writeEdit(&buf, e)
		}
	}
	if buf.Len() > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, buf.Len())
	}
	return buf.Bytes(), nil
}

// DecodeFrame decodes an edit or batch frame. Edits naming unknown block
// types are dropped.
func DecodeFrame(data []byte) ([]world.Edit, error) {
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	r := bytes.NewReader(data)
	kind, err := readVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("read frame kind: %w", err)
	}

	var count uint32
	switch kind {
	case FrameEdit:
		count = 1
	case FrameBatch:
		if count, err = readVarInt(r); err != nil {
			return nil, fmt.Errorf("read batch count: %w", err)
		}
		// Each edit takes at least 4 bytes.
		if int(count) > r.Len()/4 {
			return nil, fmt.Errorf("batch count %d exceeds frame", count)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrame, kind)
	}

	edits := make([]world.Edit, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := readEdit(r)
		if err != nil {
			return nil, fmt.Errorf("read edit %d: %w", i, err)
		}
		if !e.Block.Valid() {
			continue
		}
		edits = append(edits, e)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes in frame", r.Len())
	}
	return edits, nil
}

func fits32(v int) bool { return v >= math.MinInt32 && v <= math.MaxInt32 }

func writeEdit(buf *bytes.Buffer, e world.Edit) {
	writeVarInt(buf, zigzag(int32(e.X)))
	writeVarInt(buf, zigzag(int32(e.Y)))
	writeVarInt(buf, zigzag(int32(e.Z)))
	buf.WriteByte(byte(e.Block))
}

func readEdit(r *bytes.Reader) (world.Edit, error) {
	var coords [3]int
	for i := range coords {
		v, err := readVarInt(r)
		if err != nil {
			return world.Edit{}, err
		}
		coords[i] = int(unzigzag(v))
	}
	b, err := r.ReadByte()
	if err != nil {
		return world.Edit{}, err
	}
	return world.Edit{X: coords[0], Y: coords[1], Z: coords[2], Block: block.Type(b)}, nil
}

// putVarInt writes value as an LEB128 varint and returns its length.
func putVarInt(buf []byte, value uint32) int {
	n := 0
	for {
		b := byte(value & 0x7F)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if value == 0 {
			return n
		}
	}
}

func writeVarInt(buf *bytes.Buffer, value uint32) {
	var tmp [5]byte
	n := putVarInt(tmp[:], value)
	buf.Write(tmp[:n])
}

func readVarInt(r io.ByteReader) (uint32, error) {
	var result uint32
	for numRead := 0; ; numRead++ {
		if numRead >= 5 {
			return 0, errors.New("varint too long")
		}
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		result |= uint32(b&0x7F) << (7 * numRead)
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

func zigzag(v int32) uint32 { return uint32((v << 1) ^ (v >> 31)) }

func unzigzag(v uint32) int32 { return int32(v>>1) ^ -int32(v&1) }
