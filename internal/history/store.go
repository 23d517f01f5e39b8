// Package history persists comparison runs so the API can be polled and
// past results paged through.
package history

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"visual-tracer/internal/compare"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Record is one comparison run.
type Record struct {
	ID              string          `json:"id"`
	URL             string          `json:"url,omitempty"`
	Viewport        string          `json:"viewport,omitempty"`
	Sensitivity     int             `json:"sensitivity"`
	ReferenceSource string          `json:"reference_source,omitempty"`
	Status          Status          `json:"status"`
	Error           string          `json:"error,omitempty"`
	Approval        string          `json:"approval,omitempty"`
	ArtifactDir     string          `json:"artifact_dir,omitempty"`
	Result          *compare.Result `json:"result,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Store is a JSON-file run store guarded by a mutex. One process owns the
// file; concurrent jobs within that process serialize through the lock.
type Store struct {
	filepath string
	mu       sync.Mutex
}

// NewStore creates the backing file if missing.
func NewStore(path string) (*Store, error) {
	s := &Store{filepath: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(map[string]Record{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) read() (map[string]Record, error) {
	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Record{}, nil
		}
		return nil, fmt.Errorf("read run store: %w", err)
	}
	records := map[string]Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse run store: %w", err)
	}
	return records, nil
}

func (s *Store) write(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run store: %w", err)
	}
	if err := os.WriteFile(s.filepath, data, 0o644); err != nil {
		return fmt.Errorf("write run store: %w", err)
	}
	return nil
}

// Save inserts or replaces a record. CreatedAt is set on first insert and
// UpdatedAt on every write.
func (s *Store) Save(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if existing, ok := records[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	records[record.ID] = record
	return s.write(records)
}

// Update applies a mutation to an existing record.
func (s *Store) Update(id string, mutate func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	record, ok := records[id]
	if !ok {
		return fmt.Errorf("unknown run %s", id)
	}
	mutate(&record)
	record.UpdatedAt = time.Now().UTC()
	records[id] = record
	return s.write(records)
}

// Get returns one record.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return Record{}, false
	}
	record, ok := records[id]
	return record, ok
}

// List returns a page of records, newest first, plus the total count.
// Pages are 1-based; perPage <= 0 means everything.
func (s *Store) List(page, perPage int) ([]Record, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, 0
	}

	all := make([]Record, 0, len(records))
	for _, r := range records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if perPage <= 0 {
		return all, total
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= total {
		return []Record{}, total
	}
	end := min(start+perPage, total)
	return all[start:end], total
}

// Delete removes a record.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := records[id]; !ok {
		return fmt.Errorf("unknown run %s", id)
	}
	delete(records, id)
	return s.write(records)
}
