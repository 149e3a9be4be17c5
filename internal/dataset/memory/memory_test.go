package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/core"
	"salesdash/internal/dataset"
)

func testDataset(id string) core.Dataset {
	return core.Dataset{
		ID:         id,
		Name:       "sales.csv",
		UploadedAt: time.Now(),
		Records: []core.Record{{
			Date:        core.NewDate(2024, 1, 5),
			Product:     "Espresso",
			Category:    "Beverage",
			Subcategory: "Coffee",
			Quantity:    10,
			Amount:      decimal.RequireFromString("25.00"),
		}},
	}
}

func TestStore_SaveAndActive(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.ActiveDataset(ctx); !errors.Is(err, dataset.ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset, got %v", err)
	}

	if err := s.SaveDataset(ctx, testDataset("a")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveDataset(ctx, testDataset("b")); err != nil {
		t.Fatalf("save: %v", err)
	}

	active, err := s.ActiveDataset(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != "b" {
		t.Fatalf("active = %q, want latest save %q", active.ID, "b")
	}

	got, err := s.GetDataset(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "a" {
		t.Fatalf("get returned %q", got.ID)
	}

	if _, err := s.GetDataset(ctx, "missing"); !errors.Is(err, dataset.ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset for unknown id, got %v", err)
	}
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	s := New()
	if err := s.SaveDataset(context.Background(), core.Dataset{ID: "x"}); err == nil {
		t.Fatal("expected error for dataset without records")
	}
}

func TestNewFromDir_SeedsFromCSV(t *testing.T) {
	dir := t.TempDir()
	csv := "date,product,category,sub-category,quantity,amount\n2024-01-05,Espresso,Beverage,Coffee,10,25.00\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_sales.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s := NewFromDir(dir)
	active, err := s.ActiveDataset(context.Background())
	if err != nil {
		t.Fatalf("active after seed: %v", err)
	}
	if len(active.Records) != 1 || active.Records[0].Product != "Espresso" {
		t.Fatalf("unexpected seeded records: %+v", active.Records)
	}
}

func TestNewFromDir_NoSeedFiles(t *testing.T) {
	s := NewFromDir(t.TempDir())
	if _, err := s.ActiveDataset(context.Background()); !errors.Is(err, dataset.ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset, got %v", err)
	}
}
