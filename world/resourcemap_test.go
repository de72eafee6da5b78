package world

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseResourceMap(t *testing.T) {
	input := "# two rows, three columns\n44.0 44.0 28.0\n\n0 49 25\n"
	m, err := ParseResourceMap(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseResourceMap failed: %v", err)
	}
	if m.Width != 2 || m.Height != 3 {
		t.Fatalf("shape = %dx%d, want 2x3", m.Width, m.Height)
	}
	if m.At(0, 2) != 28 || m.At(1, 1) != 49 {
		t.Errorf("values = %v", m.Values)
	}
}

func TestParseResourceMapErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		shape bool
	}{
		{"empty", "", true},
		{"ragged", "1 2 3\n1 2\n", true},
		{"not a number", "1 x 3\n", false},
		{"nan", "1 NaN 3\n", true},
		{"infinite", "1 2 3\n4 -Inf 6\n", true},
		{"overflow", "1 1e999 3\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResourceMap(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.shape && !errors.Is(err, ErrMapShape) {
				t.Errorf("error %v should wrap ErrMapShape", err)
			}
		})
	}
}

func TestLoadResourceMapSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.txt")
	if err := os.WriteFile(path, []byte("1 1\n1 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadResourceMap(path, 2, 2); err != nil {
		t.Errorf("matching size failed: %v", err)
	}
	if _, err := LoadResourceMap(path, 3, 2); !errors.Is(err, ErrMapShape) {
		t.Errorf("expected ErrMapShape, got %v", err)
	}
}

func TestResourceMapWriteParse(t *testing.T) {
	m := NewResourceMap(3, 4, 36)
	m.Set(2, 3, 25)

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	back, err := ParseResourceMap(&buf)
	if err != nil {
		t.Fatalf("ParseResourceMap failed: %v", err)
	}
	if back.Width != 3 || back.Height != 4 || back.At(2, 3) != 25 || back.At(0, 0) != 36 {
		t.Errorf("parsed map differs: %+v", back)
	}
}
