package protocol

import (
	"encoding/json"
	"time"
)

// ===== Wire Payloads =====
// Every QR symbol on screen carries exactly one of these JSON documents.
// Field names are the wire contract with the receiver; do not rename.

// Position identifies which corner of the grid a marker occupies.
type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
)

// Capture marker actions, shown as standalone control frames so the
// recording side knows where a transmission begins and ends.
const (
	ActionRecordStart = "record-start"
	ActionRecordStop  = "record-stop"
)

// Header describes one whole transfer. It is built once per file load and
// transmitted first so a receiver without a backchannel can size the
// reassembly buffer and pick the matching decompressor.
type Header struct {
	Type            string `json:"type"`
	FileName        string `json:"fileName"`
	FileType        string `json:"fileType"`
	OriginalSize    int    `json:"originalSize"`
	CompressedSize  int    `json:"compressedSize"`
	Compressed      bool   `json:"compressed"`
	CompressionType string `json:"compressionType"`
	TotalChunks     int    `json:"totalChunks"`
	ChunkSize       int    `json:"chunkSize"`
	TotalPages      int    `json:"totalPages"`
	Timestamp       int64  `json:"timestamp"`
}

// Chunk is one fixed-size slice of the base64-encoded compressed stream.
// Concatenating all chunk Data fields in index order reproduces the
// encoded stream exactly.
type Chunk struct {
	Type       string `json:"type"`
	ChunkIndex int    `json:"chunkIndex"`
	Data       string `json:"data"`
}

// PageMarker is a corner synchronization payload. Regenerated per page so
// any single captured frame reveals orientation and progress.
type PageMarker struct {
	Type      string   `json:"type"`
	Position  Position `json:"position"`
	Page      int      `json:"page"`
	Total     int      `json:"total"`
	Timestamp int64    `json:"timestamp"`
}

// CaptureMarker is a transmission-boundary cue (start/stop recording).
type CaptureMarker struct {
	Type      string `json:"type"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

func NewChunk(index int, data string) Chunk {
	return Chunk{Type: "chunk", ChunkIndex: index, Data: data}
}

func NewPageMarker(pos Position, page, total int) PageMarker {
	return PageMarker{
		Type:      "control",
		Position:  pos,
		Page:      page,
		Total:     total,
		Timestamp: time.Now().Unix(),
	}
}

func NewCaptureMarker(action string) CaptureMarker {
	return CaptureMarker{Type: "control", Action: action, Timestamp: time.Now().Unix()}
}

// Encode renders any payload as the compact JSON string embedded in a
// QR symbol.
func Encode(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
