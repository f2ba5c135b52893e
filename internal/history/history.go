// Package history keeps a bounded log of recent window events.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/axwatch/internal/platform"
)

// Record is one dispatched window event.
type Record struct {
	ID           string                `json:"id"`
	Time         time.Time             `json:"time"`
	Notification platform.Notification `json:"notification"`
	PID          platform.PID          `json:"pid"`
	WindowID     platform.ElementID    `json:"window_id,omitempty"`
	App          string                `json:"app,omitempty"`
	Title        string                `json:"title,omitempty"`
	Frame        *platform.Rect        `json:"frame,omitempty"`
}

// Ring holds the most recent records, oldest first.
type Ring struct {
	mu   sync.Mutex
	buf  []Record
	size int
}

// New returns a ring keeping at most size records. size <= 0 keeps nothing.
func New(size int) *Ring {
	if size < 0 {
		size = 0
	}
	return &Ring{size: size, buf: make([]Record, 0, size)}
}

// Add stores rec, assigning an ID and timestamp when missing, and returns
// the stored record.
func (r *Ring) Add(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return rec
	}
	if len(r.buf) == r.size {
		copy(r.buf, r.buf[1:])
		r.buf = r.buf[:len(r.buf)-1]
	}
	r.buf = append(r.buf, rec)
	return rec
}

// Recent returns up to limit of the newest records, oldest first. limit <= 0
// returns everything.
func (r *Ring) Recent(limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return tail(r.buf, limit)
}

// Since returns up to limit records newer than the record with ID after.
// When after is empty or has already been evicted it behaves like Recent.
func (r *Ring) Since(after string, limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if after != "" {
		for i := len(r.buf) - 1; i >= 0; i-- {
			if r.buf[i].ID == after {
				return tail(r.buf[i+1:], limit)
			}
		}
	}
	return tail(r.buf, limit)
}

// Len returns the number of stored records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Resize changes the capacity, dropping the oldest records if needed.
func (r *Ring) Resize(size int) {
	if size < 0 {
		size = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.size = size
	if len(r.buf) > size {
		r.buf = append([]Record(nil), r.buf[len(r.buf)-size:]...)
	}
}

// Save writes the records to path as JSON.
func (r *Ring) Save(path string) error {
	records := r.Recent(0)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}

// Load appends the records stored at path. A missing file is not an error.
func (r *Ring) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read history: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse history %s: %w", path, err)
	}
	for _, rec := range records {
		r.Add(rec)
	}
	return nil
}

func tail(records []Record, limit int) []Record {
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return append([]Record(nil), records...)
}
