package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/precinct/components"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// SnapshotHeader is the first JSON line of a snapshot, so tools can identify
// it without decoding the body.
type SnapshotHeader struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id,omitempty"`
	Step    int    `json:"step"`
}

// Snapshot holds the complete simulation state at a step boundary.
type Snapshot struct {
	Header SnapshotHeader `json:"header"`

	Seed   int64 `json:"seed"`
	Width  int   `json:"width"`
	Height int   `json:"height"`

	// Current resource amounts, x-major
	Amounts []int `json:"amounts"`

	Actors    []ActorState    `json:"actors"`
	Enforcers []EnforcerState `json:"enforcers"`

	Rebalance RebalanceState  `json:"rebalance"`
	Crime     CrimeStatsState `json:"crime"`
}

// ActorState holds one actor's complete state.
type ActorState struct {
	Pos   components.Position `json:"pos"`
	Actor components.Actor    `json:"actor"`
}

// EnforcerState holds one enforcer's complete state.
type EnforcerState struct {
	Pos      components.Position `json:"pos"`
	Enforcer components.Enforcer `json:"enforcer"`
}

// RebalanceState is the sweep bookkeeping shared by enforcers.
type RebalanceState struct {
	Valid   bool  `json:"valid"`
	Target  []int `json:"target"`
	Delta   []int `json:"delta"`
	Made    []int `json:"made"`
	Stepped int   `json:"stepped"`
}

// SnapshotPath returns the file name used for a snapshot of step in dir.
func SnapshotPath(dir string, step int) string {
	return filepath.Join(dir, fmt.Sprintf("snapshot_%06d.json.zst", step))
}

// SaveSnapshot writes a zstd-compressed snapshot into dir.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := SnapshotPath(dir, snapshot.Header.Step)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", fmt.Errorf("zstd writer: %w", err)
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	je := json.NewEncoder(bw)
	if err := je.Encode(snapshot.Header); err != nil {
		enc.Close()
		return "", fmt.Errorf("encode header: %w", err)
	}
	if err := je.Encode(snapshot); err != nil {
		enc.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return "", fmt.Errorf("flush snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("close zstd: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	jd := json.NewDecoder(bufio.NewReaderSize(dec, 256*1024))

	// The header line is repeated inside the body.
	var header SnapshotHeader
	if err := jd.Decode(&header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if header.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", header.Version)
	}

	var snapshot Snapshot
	if err := jd.Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
