// Package history persists a record of submitted swaps so past activity
// survives restarts.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultStorageFileName = ".enso-swap-history.json"
)

// Record is one submitted swap.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	ChainID    int64  `json:"chain_id"`
	OutChainID int64  `json:"out_chain_id"`
	TokenIn    string `json:"token_in"`
	TokenOut   string `json:"token_out"`
	SymbolIn   string `json:"symbol_in,omitempty"`
	SymbolOut  string `json:"symbol_out,omitempty"`
	AmountIn   string `json:"amount_in"`
	AmountOut  string `json:"amount_out,omitempty"`

	Bridge            bool   `json:"bridge,omitempty"`
	TxHash            string `json:"tx_hash,omitempty"`
	DestinationTxHash string `json:"destination_tx_hash,omitempty"`
	Status            string `json:"status"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// fileFormat is the JSON structure on disk.
type fileFormat struct {
	Records []Record `json:"records"`
}

// Store handles persistence of swap records.
type Store struct {
	filePath string
	mu       sync.RWMutex
	records  []Record
}

// NewStore creates a store backed by filePath, defaulting to a dotfile in
// the home directory.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	store := &Store{filePath: filePath}

	// Load existing records if the file exists; it is created on first save.
	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var parsed fileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	s.records = parsed.Records
	return nil
}

// save writes records to the storage file. Caller holds the lock.
func (s *Store) save() error {
	data, err := json.MarshalIndent(fileFormat{Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary file first, then rename for an atomic write.
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Append stores a new record and returns its assigned id.
func (s *Store) Append(r Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.New().String()
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	s.records = append(s.records, r)
	return r.ID, s.save()
}

// Update rewrites the record with the given id.
func (s *Store) Update(id string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			fn(&s.records[i])
			return s.save()
		}
	}
	return fmt.Errorf("record '%s' not found", id)
}

// Get retrieves a record by id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("record '%s' not found", id)
}

// List returns all records, newest first.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Recent returns up to n of the newest records.
func (s *Store) Recent(n int) []Record {
	all := s.List()
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Count returns the total number of records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// GetFilePath returns the storage file path.
func (s *Store) GetFilePath() string {
	return s.filePath
}
