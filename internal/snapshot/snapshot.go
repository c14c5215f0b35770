// Package snapshot encodes a point-in-time copy of the catalog for backups.
//
// Layout (little endian):
//
//	[0:4]   magic "SMVW"
//	[4:6]   format version
//	[6]     compression (0 none, 1 zstd, 2 lz4)
//	[7]     reserved, zero
//	[8:12]  CRC32-C of the uncompressed payload
//	[12:16] uncompressed payload length
//	[16:]   payload, compressed as flagged
//
// The payload is a JSON object {"created_at": ..., "views": {name: definition}}.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/semview/codec"
	"github.com/hupe1980/semview/internal/hash"
)

const (
	// Magic identifies a snapshot.
	Magic = "SMVW"
	// Version is the current format version.
	Version uint16 = 1

	headerSize = 16

	// MaxPayloadSize bounds the uncompressed payload accepted by Decode.
	MaxPayloadSize = 256 << 20
)

var (
	ErrBadMagic           = errors.New("snapshot: bad magic")
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")
	ErrChecksum           = errors.New("snapshot: checksum mismatch")
	ErrTruncated          = errors.New("snapshot: truncated")
)

// Compression selects the payload compression.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZSTD Compression = 1
	CompressionLZ4  Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZSTD:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a name ("none", "zstd", "lz4") to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZSTD, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("snapshot: unknown compression %q", name)
	}
}

// Snapshot is a decoded catalog copy.
type Snapshot struct {
	CreatedAt time.Time         `json:"created_at"`
	Views     map[string]string `json:"views"`
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Encode serializes s. LZ4 falls back to no compression when the payload
// does not compress.
func Encode(s *Snapshot, comp Compression, c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	views := s.Views
	if views == nil {
		views = map[string]string{}
	}
	payload, err := c.Marshal(Snapshot{CreatedAt: s.CreatedAt.UTC(), Views: views})
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode payload: %w", err)
	}

	body := payload
	switch comp {
	case CompressionNone:
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("snapshot: zstd: %w", err)
		}
		body = enc.EncodeAll(payload, nil)
		zstdEncoderPool.Put(enc)
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("snapshot: lz4: %w", err)
		}
		if n == 0 {
			comp = CompressionNone
		} else {
			body = buf[:n]
		}
	default:
		return nil, fmt.Errorf("snapshot: unknown compression %d", comp)
	}

	out := make([]byte, headerSize+len(body))
	copy(out[0:4], Magic)
	binary.LittleEndian.PutUint16(out[4:6], Version)
	out[6] = byte(comp)
	binary.LittleEndian.PutUint32(out[8:12], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(payload)))
	copy(out[headerSize:], body)
	return out, nil
}

// Decode parses and verifies data produced by Encode.
func Decode(data []byte, c codec.Codec) (*Snapshot, error) {
	if c == nil {
		c = codec.Default
	}
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	if string(data[0:4]) != Magic {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	comp := Compression(data[6])
	sum := binary.LittleEndian.Uint32(data[8:12])
	size := binary.LittleEndian.Uint32(data[12:16])
	if size > MaxPayloadSize {
		return nil, fmt.Errorf("snapshot: payload of %d bytes exceeds limit", size)
	}
	body := data[headerSize:]

	var payload []byte
	switch comp {
	case CompressionNone:
		payload = body
	case CompressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("snapshot: zstd: %w", err)
		}
		payload, err = dec.DecodeAll(body, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("snapshot: zstd: %w", err)
		}
	case CompressionLZ4:
		payload = make([]byte, size)
		n, err := lz4.UncompressBlock(body, payload)
		if err != nil {
			return nil, fmt.Errorf("snapshot: lz4: %w", err)
		}
		payload = payload[:n]
	default:
		return nil, fmt.Errorf("snapshot: unknown compression %d", comp)
	}

	if uint32(len(payload)) != size {
		return nil, ErrTruncated
	}
	if hash.CRC32C(payload) != sum {
		return nil, ErrChecksum
	}

	var s Snapshot
	if err := c.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("snapshot: decode payload: %w", err)
	}
	if s.Views == nil {
		s.Views = map[string]string{}
	}
	return &s, nil
}
