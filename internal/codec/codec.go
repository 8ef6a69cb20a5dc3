// Package codec compresses transfer payloads and records which algorithm
// was used, so a receiver with no backchannel can pick the matching
// decompressor from the header alone.
package codec

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Algorithm identifiers recorded verbatim in the transfer header.
const (
	AlgorithmZstd = "zstd"
	AlgorithmGzip = "gzip"
)

// ErrCodec wraps any unexpected fault in the underlying compressor.
// Treated as fatal to the current file load.
var ErrCodec = errors.New("codec failure")

// Codec compresses raw bytes with a fixed algorithm. The algorithm is
// chosen once at construction and never changes for the process lifetime.
type Codec struct {
	algorithm string
	level     zstd.EncoderLevel
}

// New selects the preferred algorithm (zstd) unless the caller forces the
// universally available fallback (gzip).
func New(preferZstd bool) *Codec {
	algo := AlgorithmGzip
	if preferZstd {
		algo = AlgorithmZstd
	}
	return &Codec{algorithm: algo, level: zstd.SpeedDefault}
}

// Algorithm returns the identifier written into the transfer header.
func (c *Codec) Algorithm() string { return c.algorithm }

// Compress compresses data with the fixed algorithm. Empty input is valid
// and yields a valid (possibly larger) output.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		out := enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		return out, nil
	case AlgorithmGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: unknown algorithm %q", ErrCodec, c.algorithm)
}

// Decompress reverses Compress for the named algorithm. Used by tests and
// by any co-located receiver tooling.
func Decompress(algorithm string, data []byte) ([]byte, error) {
	switch algorithm {
	case AlgorithmZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		return out, nil
	case AlgorithmGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown algorithm %q", ErrCodec, algorithm)
}
