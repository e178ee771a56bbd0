// ABOUTME: Checkpoint store - atomic per-unit completion snapshots on disk
// ABOUTME: Write-temp-then-rename so a crash mid-write never corrupts the last good state
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store persists checkpoints keyed by (phase, unit) as plain JSON files,
// inspectable without the running process.
type Store struct {
	dir string
}

// NewStore creates a checkpoint store rooted at dir
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "history"), 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the checkpoint directory
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(phase, unit string) string {
	return filepath.Join(s.dir, sanitize(phase)+"__"+sanitize(unit)+".json")
}

// Save writes a checkpoint atomically. A previous checkpoint under the same
// key is moved into history/ rather than overwritten, so old snapshots stay
// available for audit.
func (s *Store) Save(phase, unit string, state any) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint %s/%s: %w", phase, unit, err)
	}

	final := s.path(phase, unit)
	if _, err := os.Stat(final); err == nil {
		archived := filepath.Join(s.dir, "history",
			fmt.Sprintf("%s__%s.%d.json", sanitize(phase), sanitize(unit), time.Now().UnixNano()))
		if err := os.Rename(final, archived); err != nil {
			return fmt.Errorf("archive checkpoint %s/%s: %w", phase, unit, err)
		}
	}

	tmp, err := os.CreateTemp(s.dir, ".ckpt-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write checkpoint %s/%s: %w", phase, unit, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync checkpoint %s/%s: %w", phase, unit, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close checkpoint %s/%s: %w", phase, unit, err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit checkpoint %s/%s: %w", phase, unit, err)
	}
	return nil
}

// Load reads a checkpoint into out. The bool reports whether it exists.
func (s *Store) Load(phase, unit string, out any) (bool, error) {
	data, err := os.ReadFile(s.path(phase, unit))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read checkpoint %s/%s: %w", phase, unit, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode checkpoint %s/%s: %w", phase, unit, err)
	}
	return true, nil
}

// Snapshot is one current checkpoint file: its key plus raw contents
type Snapshot struct {
	Phase string          `json:"phase"`
	Unit  string          `json:"unit"`
	State json.RawMessage `json:"state"`
}

// Snapshots returns every current checkpoint in deterministic order, for
// export alongside the store
func (s *Store) Snapshots() ([]Snapshot, error) {
	keys, err := s.List()
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, 0, len(keys))
	for _, key := range keys {
		data, err := os.ReadFile(s.path(key[0], key[1]))
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s/%s: %w", key[0], key[1], err)
		}
		snaps = append(snaps, Snapshot{Phase: key[0], Unit: key[1], State: data})
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].Phase != snaps[j].Phase {
			return snaps[i].Phase < snaps[j].Phase
		}
		return snaps[i].Unit < snaps[j].Unit
	})
	return snaps, nil
}

// List returns the (phase, unit) keys of all current checkpoints
func (s *Store) List() ([][2]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	var keys [][2]string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		base := strings.TrimSuffix(name, ".json")
		parts := strings.SplitN(base, "__", 2)
		if len(parts) != 2 {
			continue
		}
		keys = append(keys, [2]string{parts[0], parts[1]})
	}
	return keys, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, s)
}
