// Package processes keeps an index of running launchers so that other
// invocations can list and stop them. Each launcher owns one JSON record file
// named after its pid.
package processes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/walletstack/cardano-launcher/internal/config"
)

const (
	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600

	rootDirName = "processes"

	// RegistryDirEnv overrides the registry directory.
	RegistryDirEnv = "CARDANO_LAUNCHER_PROCESS_DIR"
)

var ErrRecordNotFound = errors.New("process record not found")

// Record describes a running launcher and the stack it supervises.
type Record struct {
	PID            int       `json:"pid" yaml:"pid"`
	RunID          string    `json:"run_id" yaml:"run_id"`
	Backend        string    `json:"backend" yaml:"backend"`
	Network        string    `json:"network" yaml:"network"`
	StateDir       string    `json:"state_dir" yaml:"state_dir"`
	APIURL         string    `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	NodePID        int       `json:"node_pid,omitempty" yaml:"node_pid,omitempty"`
	WalletPID      int       `json:"wallet_pid,omitempty" yaml:"wallet_pid,omitempty"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	Args           []string  `json:"args,omitempty" yaml:"args,omitempty"`
	StartTimeTicks uint64    `json:"start_time_ticks,omitempty" yaml:"start_time_ticks,omitempty"`
}

// StoredRecord includes the record and backing file path.
type StoredRecord struct {
	Record
	File string `json:"file" yaml:"file"`
}

// Registry is a directory of launcher records.
type Registry struct {
	Dir string
}

// DefaultRegistry returns the registry below the user config directory, or
// the directory named by CARDANO_LAUNCHER_PROCESS_DIR.
func DefaultRegistry() (*Registry, error) {
	if dir := strings.TrimSpace(os.Getenv(RegistryDirEnv)); dir != "" {
		return &Registry{Dir: dir}, nil
	}
	configDir, err := config.GetDefaultConfigPath()
	if err != nil {
		return nil, fmt.Errorf("resolve default config path: %w", err)
	}
	return &Registry{Dir: filepath.Join(configDir, rootDirName)}, nil
}

// Path returns the record file for pid.
func (r *Registry) Path(pid int) string {
	return filepath.Join(r.Dir, strconv.Itoa(pid)+".json")
}

// Write persists record atomically and returns its path. Args are redacted.
func (r *Registry) Write(record Record) (string, error) {
	if record.PID <= 0 {
		return "", fmt.Errorf("process PID must be greater than zero")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.Args = RedactArgs(record.Args)

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal process record: %w", err)
	}

	path := r.Path(record.PID)
	if err := writeAtomic(path, raw); err != nil {
		return "", err
	}
	return path, nil
}

// Remove deletes the record for pid. A missing record is not an error.
func (r *Registry) Remove(pid int) error {
	if err := os.Remove(r.Path(pid)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Get loads the record for pid.
func (r *Registry) Get(pid int) (StoredRecord, error) {
	path := r.Path(pid)
	record, err := loadRecord(path)
	if errors.Is(err, os.ErrNotExist) {
		return StoredRecord{}, fmt.Errorf("%w: pid %d", ErrRecordNotFound, pid)
	}
	if err != nil {
		return StoredRecord{}, err
	}
	return StoredRecord{Record: record, File: path}, nil
}

// List returns all readable records, newest first. Unreadable files are
// skipped.
func (r *Registry) List() ([]StoredRecord, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	records := make([]StoredRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(r.Dir, entry.Name())
		record, err := loadRecord(path)
		if err != nil {
			continue
		}
		records = append(records, StoredRecord{Record: record, File: path})
	}

	sort.Slice(records, func(i, j int) bool {
		left, right := records[i].CreatedAt, records[j].CreatedAt
		if !left.Equal(right) {
			return left.After(right)
		}
		return records[i].PID < records[j].PID
	})
	return records, nil
}

// Prune removes records whose launcher is no longer running and returns them.
func (r *Registry) Prune() ([]StoredRecord, error) {
	records, err := r.List()
	if err != nil {
		return nil, err
	}
	var pruned []StoredRecord
	for _, rec := range records {
		state := Inspect(rec.Record)
		if state.Status != StatusExited && state.Status != StatusStale {
			continue
		}
		if err := os.Remove(rec.File); err != nil && !errors.Is(err, os.ErrNotExist) {
			return pruned, err
		}
		pruned = append(pruned, rec)
	}
	return pruned, nil
}

func loadRecord(path string) (Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if record.PID <= 0 {
		return Record{}, fmt.Errorf("invalid process record PID in %s", path)
	}
	return record, nil
}

// writeAtomic writes through a temp file in the same directory and renames
// it into place, so readers never see a partial record.
func writeAtomic(path string, payload []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return fmt.Errorf("create process record directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp process record: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(payload); err != nil {
		return fmt.Errorf("write temp process record: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp process record: %w", err)
	}
	if err = tmp.Chmod(defaultFilePerm); err != nil {
		return fmt.Errorf("chmod temp process record: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp process record: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace process record: %w", err)
	}
	return nil
}
