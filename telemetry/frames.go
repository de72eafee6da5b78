package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// FrameWriter appends one JSON document per line to a zstd-compressed file.
type FrameWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
	enc  *zstd.Encoder
	w    *bufio.Writer
}

// NewFrameWriter creates (or truncates) path and returns a writer for it.
func NewFrameWriter(path string) (*FrameWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create frames file: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &FrameWriter{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Write appends v as one JSON line.
func (fw *FrameWriter) Write(v any) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.w == nil {
		return fmt.Errorf("frame writer %s is closed", fw.path)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fw.w.Write(b); err != nil {
		return err
	}
	return fw.w.WriteByte('\n')
}

// Close flushes buffered frames and closes the file.
func (fw *FrameWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	var firstErr error
	if fw.w != nil {
		if err := fw.w.Flush(); err != nil {
			firstErr = err
		}
		fw.w = nil
	}
	if fw.enc != nil {
		if err := fw.enc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		fw.enc = nil
	}
	if fw.f != nil {
		if err := fw.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		fw.f = nil
	}
	return firstErr
}

// ReadFrames decodes every line of a frames file into a new T.
func ReadFrames[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frames: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var out []T
	jd := json.NewDecoder(dec)
	for jd.More() {
		var v T
		if err := jd.Decode(&v); err != nil {
			return out, fmt.Errorf("decode frame %d: %w", len(out), err)
		}
		out = append(out, v)
	}
	return out, nil
}
