package cart

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotName is the fixed key the cart is persisted under.
const SnapshotName = "cart_products.json"

// SnapshotPort is the persistence boundary of the cart. Save replaces the
// prior snapshot wholesale; there is no partial merge.
type SnapshotPort interface {
	Load() ([]Line, error)
	Save(lines []Line) error
	Clear() error
}

// FileSnapshot persists the cart as a JSON file under dir, the server-side
// stand-in for the client storage slot the cart lives in.
type FileSnapshot struct {
	path string
}

func NewFileSnapshot(dir string) *FileSnapshot {
	return &FileSnapshot{path: filepath.Join(dir, SnapshotName)}
}

func (f *FileSnapshot) Load() ([]Line, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cart: failed to read snapshot: %w", err)
	}

	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("cart: failed to decode snapshot: %w", err)
	}
	return lines, nil
}

func (f *FileSnapshot) Save(lines []Line) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("cart: failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("cart: failed to write snapshot: %w", err)
	}
	return nil
}

func (f *FileSnapshot) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cart: failed to remove snapshot: %w", err)
	}
	return nil
}

// MemorySnapshot is the in-memory port used by tests.
type MemorySnapshot struct {
	lines []Line
	saves int
}

func NewMemorySnapshot() *MemorySnapshot {
	return &MemorySnapshot{}
}

func (m *MemorySnapshot) Load() ([]Line, error) {
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out, nil
}

func (m *MemorySnapshot) Save(lines []Line) error {
	m.lines = make([]Line, len(lines))
	copy(m.lines, lines)
	m.saves++
	return nil
}

func (m *MemorySnapshot) Clear() error {
	m.lines = nil
	return nil
}

// Saves reports how many times Save ran, letting tests assert that every
// mutation persisted the collection.
func (m *MemorySnapshot) Saves() int {
	return m.saves
}
