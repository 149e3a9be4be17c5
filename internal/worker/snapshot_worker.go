package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"salesdash/internal/amqp"
	"salesdash/internal/core"
	"salesdash/internal/dataset"
	"salesdash/internal/reports"
)

// renderConcurrency bounds parallel chart rendering per dataset.
const renderConcurrency = 4

// SnapshotWorker renders the full chart set of an imported dataset to PNG
// files, so every upload leaves a static report snapshot on disk.
type SnapshotWorker struct {
	store  dataset.Reader
	outDir string
}

func NewSnapshotWorker(store dataset.Reader, outDir string) *SnapshotWorker {
	return &SnapshotWorker{store: store, outDir: outDir}
}

// HandleDatasetImported processes one dataset-imported message from AMQP.
// Rendering is idempotent: files are keyed by dataset ID and overwritten on
// redelivery.
func (w *SnapshotWorker) HandleDatasetImported(ctx context.Context, msg *amqp.DatasetImportedMessage) error {
	ds, err := w.store.GetDataset(ctx, msg.DatasetID)
	if err != nil {
		return fmt.Errorf("get dataset %s: %w", msg.DatasetID, err)
	}
	return w.Render(ctx, ds)
}

// Render writes every snapshot chart for the dataset under outDir/<id>/.
func (w *SnapshotWorker) Render(ctx context.Context, ds core.Dataset) error {
	dir := filepath.Join(w.outDir, ds.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(renderConcurrency)

	for _, spec := range reports.SnapshotSpecs() {
		spec := spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			png, err := reports.RenderChart(ds.Records, spec.Kind, spec.Measure, spec.Cohort)
			if err != nil {
				return fmt.Errorf("render %s: %w", spec.FileName, err)
			}
			path := filepath.Join(dir, spec.FileName)
			if err := os.WriteFile(path, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", spec.FileName, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Snapshot rendered",
		"dataset_id", ds.ID,
		"dir", dir,
		"charts", len(reports.SnapshotSpecs()))
	return nil
}

// StartupCheck renders the active dataset's snapshot if it is missing,
// covering messages lost while the worker was down.
func (w *SnapshotWorker) StartupCheck(ctx context.Context) error {
	ds, err := w.store.ActiveDataset(ctx)
	if err != nil {
		if errors.Is(err, dataset.ErrNoDataset) {
			slog.InfoContext(ctx, "No dataset yet, nothing to snapshot")
			return nil
		}
		return fmt.Errorf("read active dataset: %w", err)
	}

	dir := filepath.Join(w.outDir, ds.ID)
	if _, err := os.Stat(dir); err == nil {
		slog.DebugContext(ctx, "Snapshot already present", "dataset_id", ds.ID)
		return nil
	}
	return w.Render(ctx, ds)
}
