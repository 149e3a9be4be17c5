package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"salesdash/internal/core"
	"salesdash/internal/dataset"
	"salesdash/internal/dataset/ingest"
)

// Store keeps datasets in memory for the lifetime of the process.
type Store struct {
	mu       sync.Mutex
	byID     map[string]core.Dataset
	activeID string
}

func New() *Store {
	return &Store{byID: map[string]core.Dataset{}}
}

// NewFromDir creates a store, seeding it from seed_sales.csv or
// seed_sales.xlsx under base if either file is present.
func NewFromDir(base string) *Store {
	s := New()
	for _, name := range []string{"seed_sales.csv", "seed_sales.xlsx"} {
		path := filepath.Join(base, name)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		records, _, err := ingest.Parse(name, f)
		f.Close()
		if err != nil {
			continue
		}
		ds := core.Dataset{
			ID:         uuid.New().String(),
			Name:       name,
			UploadedAt: time.Now(),
			Records:    records,
		}
		_ = s.SaveDataset(context.Background(), ds)
		break
	}
	return s
}

// SaveDataset stores the dataset and makes it active.
func (s *Store) SaveDataset(_ context.Context, ds core.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[ds.ID] = ds
	s.activeID = ds.ID
	return nil
}

// ActiveDataset returns the most recently saved dataset.
func (s *Store) ActiveDataset(_ context.Context) (core.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return core.Dataset{}, dataset.ErrNoDataset
	}
	return s.byID[s.activeID], nil
}

// GetDataset returns a dataset by ID.
func (s *Store) GetDataset(_ context.Context, id string) (core.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.byID[id]
	if !ok {
		return core.Dataset{}, dataset.ErrNoDataset
	}
	return ds, nil
}
