// Package segment turns a file on disk into the header record and ordered
// chunk sequence that the layout engine places onto page frames.
package segment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dn36772386/qrmatrix/internal/codec"
	"github.com/dn36772386/qrmatrix/internal/protocol"
)

// ErrFileRead is returned when the source path is missing or unreadable.
// No partial header or chunks are produced in that case.
var ErrFileRead = errors.New("file read failure")

// Chunk sizes the UI offers. Kept as an enumerated set so a capture device
// tuned for one density is not surprised by another.
var AllowedChunkSizes = []int{300, 500, 600, 800, 1000}

const DefaultChunkSize = 800

// Result holds everything produced from one file load. Header.TotalPages
// is zero until the layout engine fills it in.
type Result struct {
	Header *protocol.Header
	Chunks []protocol.Chunk
}

// Segmenter reads, compresses, text-encodes and splits files.
type Segmenter struct {
	codec *codec.Codec
}

func New(c *codec.Codec) *Segmenter {
	return &Segmenter{codec: c}
}

// Process reads the whole file into memory, compresses it, base64-encodes
// the compressed bytes and splits the encoded text into chunkSize-character
// substrings. The final substring may be shorter; zero-length encoded text
// yields zero chunks.
//
// Deterministic for identical file bytes and chunkSize, except for the
// header timestamp.
func (s *Segmenter) Process(path string, chunkSize int) (*Result, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}

	compressed, err := s.codec.Compress(data)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(compressed)
	chunks := splitChunks(encoded, chunkSize)

	header := &protocol.Header{
		Type:            "header",
		FileName:        filepath.Base(path),
		FileType:        filepath.Ext(path),
		OriginalSize:    len(data),
		CompressedSize:  len(compressed),
		Compressed:      true,
		CompressionType: s.codec.Algorithm(),
		TotalChunks:     len(chunks),
		ChunkSize:       chunkSize,
		Timestamp:       time.Now().Unix(),
	}
	return &Result{Header: header, Chunks: chunks}, nil
}

func splitChunks(encoded string, chunkSize int) []protocol.Chunk {
	var chunks []protocol.Chunk
	for i := 0; i < len(encoded); i += chunkSize {
		end := i + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunks = append(chunks, protocol.NewChunk(len(chunks), encoded[i:end]))
	}
	return chunks
}

// ValidChunkSize reports whether size is one of the enumerated options.
func ValidChunkSize(size int) bool {
	for _, s := range AllowedChunkSizes {
		if s == size {
			return true
		}
	}
	return false
}
