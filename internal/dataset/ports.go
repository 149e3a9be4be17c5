package dataset

import (
	"context"
	"errors"

	"salesdash/internal/core"
)

// ErrNoDataset is returned when no dataset has been imported yet.
var ErrNoDataset = errors.New("no dataset imported")

// Ports for outbound adapters.
type (
	// Writer persists an imported dataset. Saving makes it the active one.
	Writer interface {
		SaveDataset(ctx context.Context, ds core.Dataset) error
	}

	// Reader serves stored datasets to the dashboard and the snapshot worker.
	Reader interface {
		// ActiveDataset returns the most recently imported dataset,
		// or ErrNoDataset when nothing has been uploaded yet.
		ActiveDataset(ctx context.Context) (core.Dataset, error)

		// GetDataset returns a dataset by ID.
		GetDataset(ctx context.Context, id string) (core.Dataset, error)
	}

	// Source loads a dataset from an external location, such as a remote
	// spreadsheet. Used at startup for the sheets backend.
	Source interface {
		Load(ctx context.Context) (core.Dataset, error)
	}
)
