package http

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/core"
	"salesdash/internal/dataset/memory"
)

type publishedEvent struct {
	datasetID string
	name      string
	records   int
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishDatasetImported(ctx context.Context, datasetID, name string, records int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{datasetID: datasetID, name: name, records: records})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ds := core.Dataset{
		ID:         "ds-test",
		Name:       "sales.csv",
		UploadedAt: time.Now(),
		Records: []core.Record{
			{Date: core.NewDate(2024, 1, 5), Product: "Espresso", Category: "Beverage", Subcategory: "Coffee", Quantity: 10, Amount: decimal.RequireFromString("25.00")},
			{Date: core.NewDate(2024, 2, 9), Product: "Bagel", Category: "Food", Subcategory: "Bakery", Quantity: 5, Amount: decimal.RequireFromString("15.50")},
		},
	}
	if err := store.SaveDataset(context.Background(), ds); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func newTestServer(t *testing.T, store *memory.Store, pub EventPublisher) *Server {
	t.Helper()
	srv := NewServer(":0", store, store, pub, 10<<20)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, seededStore(t), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Sales Dashboard") {
		t.Fatalf("index body missing heading")
	}
	if !strings.Contains(rr.Body.String(), "sales.csv") {
		t.Fatalf("index body missing dataset name")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestIndexEmptyStore(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No dataset loaded yet") {
		t.Fatalf("empty state not rendered: %s", rr.Body.String())
	}
}

func TestOverviewPartial(t *testing.T) {
	srv := newTestServer(t, seededStore(t), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/overview", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("overview status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "$40.50") {
		t.Fatalf("overview missing total: %s", body)
	}
	if !strings.Contains(body, "Beverage") || !strings.Contains(body, "Food") {
		t.Fatalf("overview missing category rows")
	}
	// The filtered records themselves are listed, not just aggregates.
	if !strings.Contains(body, "Espresso") || !strings.Contains(body, "Bagel") {
		t.Fatalf("overview missing record rows: %s", body)
	}
	// Chart rows for both measures render regardless of the selected one.
	if !strings.Contains(body, "measure=amount") || !strings.Contains(body, "measure=quantity") {
		t.Fatalf("overview missing per-measure chart links: %s", body)
	}
}

func TestOverviewRecordTableCapped(t *testing.T) {
	store := memory.New()
	records := make([]core.Record, 0, 120)
	for i := 0; i < 120; i++ {
		records = append(records, core.Record{
			Date:        core.NewDate(2024, i%12+1, i%28+1),
			Product:     "Blend " + strconv.Itoa(i),
			Category:    "Beverage",
			Subcategory: "Coffee",
			Quantity:    int64(i + 1),
			Amount:      decimal.RequireFromString("4.00"),
		})
	}
	ds := core.Dataset{ID: "ds-big", Name: "big.csv", UploadedAt: time.Now(), Records: records}
	if err := store.SaveDataset(context.Background(), ds); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	srv := newTestServer(t, store, nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/overview", nil))
	if rr.Code != 200 {
		t.Fatalf("overview status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Showing first 100 of 120 records.") {
		t.Fatalf("overview missing cap note: %s", body)
	}
	if strings.Contains(body, "Blend 110") {
		t.Fatal("overview rendered rows past the cap")
	}
}

func TestOverviewPartialFiltered(t *testing.T) {
	srv := newTestServer(t, seededStore(t), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/overview?category=Beverage", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("overview status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "$25.00") {
		t.Fatalf("filtered overview missing beverage total: %s", body)
	}
	if strings.Contains(body, "Food") {
		t.Fatalf("filtered overview leaked food rows")
	}
}

func TestHierarchyPartial(t *testing.T) {
	srv := newTestServer(t, seededStore(t), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/hierarchy", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("hierarchy status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Jan", "Feb", "Coffee", "Bakery"} {
		if !strings.Contains(body, want) {
			t.Fatalf("hierarchy missing %q: %s", want, body)
		}
	}
}

func TestTopProductsPartial(t *testing.T) {
	srv := newTestServer(t, seededStore(t), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/top-products", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("top products status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Espresso") {
		t.Fatalf("top products missing best seller")
	}
	for _, img := range []string{"top-category.png", "top-subcategory.png", "top-category-bar.png", "top-subcategory-bar.png"} {
		if !strings.Contains(rr.Body.String(), img) {
			t.Fatalf("top products missing %s chart", img)
		}
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ui/top-products?cohort=bottom", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("bottom cohort status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Slowest") {
		t.Fatalf("bottom cohort heading missing")
	}
}

func TestPartialsWithoutDataset(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)

	for _, path := range []string{"/ui/overview", "/ui/hierarchy", "/ui/top-products"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "No dataset loaded yet") {
			t.Fatalf("%s missing empty-state placeholder", path)
		}
	}
}

func TestChartEndpoint(t *testing.T) {
	srv := newTestServer(t, seededStore(t), nil)

	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	for _, name := range []string{"category", "subcategory", "month", "hierarchy", "top-category", "top-subcategory", "top-category-bar", "top-subcategory-bar"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/charts/"+name+".png", nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("chart %s status=%d", name, rr.Code)
		}
		if !bytes.HasPrefix(rr.Body.Bytes(), pngMagic) {
			t.Fatalf("chart %s is not a PNG", name)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
			t.Fatalf("chart %s content type %q", name, ct)
		}
	}

	// Unknown kind
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/charts/sunburst.png", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown chart kind status=%d", rr.Code)
	}
}

func TestChartEndpointWithoutDataset(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/charts/category.png", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("chart without dataset status=%d", rr.Code)
	}
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadFlow(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{}
	srv := newTestServer(t, store, pub)

	// Wrong method
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Unparseable file
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, uploadRequest(t, "bad.csv", "no,usable,headers\n1,2,3\n"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// Success
	csv := "date,product,category,sub-category,quantity,amount\n" +
		"2024-01-05,Espresso,Beverage,Coffee,10,25.00\n" +
		"2024-02-09,Bagel,Food,Bakery,5,15.50\n"
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, uploadRequest(t, "sales.csv", csv))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "2 records") {
		t.Fatalf("expected import summary in body: %s", rr.Body.String())
	}

	ds, err := store.ActiveDataset(context.Background())
	if err != nil {
		t.Fatalf("active dataset after upload: %v", err)
	}
	if len(ds.Records) != 2 {
		t.Fatalf("stored %d records, want 2", len(ds.Records))
	}
	if pub.count() != 1 {
		t.Fatalf("publisher called %d times, want 1", pub.count())
	}
}

func TestUploadPublisherFailureStillSucceeds(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{err: context.DeadlineExceeded}
	srv := newTestServer(t, store, pub)

	csv := "date,product,category,sub-category,quantity,amount\n2024-01-05,Espresso,Beverage,Coffee,10,25.00\n"
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, uploadRequest(t, "sales.csv", csv))
	if rr.Code != 200 {
		t.Fatalf("upload should succeed when publish fails, got %d", rr.Code)
	}
}

func TestUploadReplacesDatasetAndInvalidatesCache(t *testing.T) {
	store := seededStore(t)
	srv := newTestServer(t, store, nil)

	// Warm the chart cache
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/charts/category.png", nil))
	if rr.Code != 200 {
		t.Fatalf("warmup chart status=%d", rr.Code)
	}
	if srv.chartCache.Size() == 0 {
		t.Fatal("chart cache not populated")
	}

	csv := "date,product,category,sub-category,quantity,amount\n2024-03-01,Muffin,Food,Bakery,3,9.00\n"
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, uploadRequest(t, "march.csv", csv))
	if rr.Code != 200 {
		t.Fatalf("upload status=%d", rr.Code)
	}

	if srv.chartCache.Size() != 0 {
		t.Fatal("chart cache not cleared after upload")
	}

	ds, err := store.ActiveDataset(context.Background())
	if err != nil {
		t.Fatalf("active dataset: %v", err)
	}
	if ds.Name != "march.csv" || len(ds.Records) != 1 {
		t.Fatalf("active dataset not replaced: %s with %d records", ds.Name, len(ds.Records))
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, seededStore(t), nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/logo.svg", nil))
	if rr.Code != 200 {
		t.Fatalf("logo status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<svg") {
		t.Fatal("logo is not an SVG")
	}

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	if rr.Code != 200 {
		t.Fatalf("stylesheet status=%d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") == "" {
		t.Fatal("static assets should be cacheable")
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, seededStore(t), nil)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff header")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("missing frame options header")
	}
}
