package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"salesdash/internal/core"
	"salesdash/internal/dataset"
)

const dateFormat = "2006-01-02"

// SQLiteRepository persists datasets so the last upload survives a restart.
type SQLiteRepository struct {
	db *sql.DB
}

// Ensure interface conformance
var (
	_ dataset.Writer = (*SQLiteRepository)(nil)
	_ dataset.Reader = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveDataset implements dataset.Writer. The dataset and all its records are
// written in one transaction; saving makes it the active dataset because
// ActiveDataset picks the latest upload.
func (r *SQLiteRepository) SaveDataset(ctx context.Context, ds core.Dataset) error {
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("validate dataset: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, uploaded_at) VALUES (?, ?, ?)`,
		ds.ID, ds.Name, ds.UploadedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sales_records (dataset_id, sale_date, product, category, subcategory, quantity, amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range ds.Records {
		if _, err := stmt.ExecContext(ctx,
			ds.ID,
			rec.Date.Format(dateFormat),
			rec.Product,
			rec.Category,
			rec.Subcategory,
			rec.Quantity,
			rec.Amount.String(),
		); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Dataset saved to SQLite",
		"dataset_id", ds.ID,
		"name", ds.Name,
		"records", len(ds.Records))

	return nil
}

// ActiveDataset implements dataset.Reader.
func (r *SQLiteRepository) ActiveDataset(ctx context.Context) (core.Dataset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id FROM datasets ORDER BY uploaded_at DESC, id DESC LIMIT 1`)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Dataset{}, dataset.ErrNoDataset
		}
		return core.Dataset{}, fmt.Errorf("scan active dataset id: %w", err)
	}
	return r.GetDataset(ctx, id)
}

// GetDataset implements dataset.Reader.
func (r *SQLiteRepository) GetDataset(ctx context.Context, id string) (core.Dataset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, uploaded_at FROM datasets WHERE id = ?`, id)

	var ds core.Dataset
	var uploadedAt time.Time
	if err := row.Scan(&ds.ID, &ds.Name, &uploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Dataset{}, dataset.ErrNoDataset
		}
		return core.Dataset{}, fmt.Errorf("scan dataset: %w", err)
	}
	ds.UploadedAt = uploadedAt

	rows, err := r.db.QueryContext(ctx,
		`SELECT sale_date, product, category, subcategory, quantity, amount
		 FROM sales_records WHERE dataset_id = ? ORDER BY id`, id)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dateStr   string
			amountStr string
			rec       core.Record
		)
		if err := rows.Scan(&dateStr, &rec.Product, &rec.Category, &rec.Subcategory, &rec.Quantity, &amountStr); err != nil {
			return core.Dataset{}, fmt.Errorf("scan record: %w", err)
		}
		t, err := time.Parse(dateFormat, dateStr)
		if err != nil {
			return core.Dataset{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
		}
		rec.Date = core.Date{Time: t}
		rec.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return core.Dataset{}, fmt.Errorf("parse stored amount %q: %w", amountStr, err)
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return core.Dataset{}, fmt.Errorf("iterate records: %w", err)
	}

	return ds, nil
}

// DatasetCount returns how many datasets are stored, for the readiness probe.
func (r *SQLiteRepository) DatasetCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count datasets: %w", err)
	}
	return n, nil
}
