package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"salesdash/internal/core"
	"salesdash/internal/dataset"
	"salesdash/internal/dataset/ingest"
	applog "salesdash/internal/log"
	"salesdash/internal/middleware/trace"
	"salesdash/internal/reports"
)

// activeRecords loads the active dataset and applies the request filter.
func (s *Server) activeRecords(r *http.Request) (core.Dataset, []core.Record, error) {
	ds, err := s.store.ActiveDataset(r.Context())
	if err != nil {
		return core.Dataset{}, nil, err
	}
	f := ParseFilter(r.URL.Query())
	return ds, f.Apply(ds.Records), nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := struct {
		HasDataset    bool
		DatasetName   string
		UploadedAt    string
		RecordCount   int
		Categories    []string
		Subcategories []string
		Months        []monthOption
	}{}

	ds, err := s.store.ActiveDataset(r.Context())
	switch {
	case err == nil:
		data.HasDataset = true
		data.DatasetName = ds.Name
		data.UploadedAt = ds.UploadedAt.Format("2006-01-02 15:04")
		data.RecordCount = len(ds.Records)
		data.Categories = distinct(ds.Records, func(rec core.Record) string { return rec.Category })
		data.Subcategories = distinct(ds.Records, func(rec core.Record) string { return rec.Subcategory })
	case errors.Is(err, dataset.ErrNoDataset):
		// Render the empty state with the upload form only.
	default:
		slog.ErrorContext(r.Context(), "Active dataset read error", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	for m := 1; m <= 12; m++ {
		data.Months = append(data.Months, monthOption{Value: m, Label: core.MonthLabel(m)})
	}

	if err := s.templates.render(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type monthOption struct {
	Value int
	Label string
}

type totalRow struct {
	Name     string
	Amount   string
	Quantity int64
	Width    int
}

// overviewRowLimit caps the record table in the overview partial. Totals and
// charts always cover the full filtered set.
const overviewRowLimit = 100

// handleOverview renders the overview partial: headline totals, the filtered
// record table, and the chart set for both measures.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ds, records, err := s.activeRecords(r)
	if err != nil {
		s.renderPartialError(w, r, "overview", err)
		return
	}

	measure := core.ParseMeasure(r.URL.Query().Get("measure"))

	key := ds.ID + "|" + r.URL.RawQuery
	ov, found := s.overviewCache.Get(key)
	if !found {
		ov = core.Summarize(records)
		s.overviewCache.Set(key, ov)
	}

	limit := len(records)
	if limit > overviewRowLimit {
		limit = overviewRowLimit
	}
	rows := make([]productRow, 0, limit)
	for _, rec := range records[:limit] {
		rows = append(rows, productRow{
			Date:        rec.Date.Format("2006-01-02"),
			Product:     rec.Product,
			Category:    rec.Category,
			Subcategory: rec.Subcategory,
			Quantity:    rec.Quantity,
			Amount:      formatMoney(rec.Amount),
		})
	}

	data := struct {
		Total         string
		Quantity      int64
		Count         int
		Measure       string
		QueryAmount   template.URL
		QueryQuantity template.URL
		Rows          []productRow
		RowLimit      int
		Categories    []totalRow
		Months        []totalRow
	}{
		Total:         formatMoney(ov.TotalAmount),
		Quantity:      ov.TotalQuantity,
		Count:         ov.Count,
		Measure:       string(measure),
		QueryAmount:   measureQuery(r.URL.Query(), core.MeasureAmount),
		QueryQuantity: measureQuery(r.URL.Query(), core.MeasureQuantity),
		Rows:          rows,
		RowLimit:      overviewRowLimit,
		Categories:    totalRows(core.SumByCategory(records, measure), measure),
		Months:        totalRows(core.SumByMonth(records), measure),
	}

	if err := s.templates.render(w, "overview.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "overview.html")
		s.renderPartialError(w, r, "overview", err)
	}
}

// totalRows converts group totals to view rows with bar widths scaled to the
// largest value (rounded percent, floored at 2 for visibility).
func totalRows(totals []core.GroupTotal, m core.Measure) []totalRow {
	var max float64
	for _, t := range totals {
		if v := t.Value(m); v > max {
			max = v
		}
	}
	rows := make([]totalRow, 0, len(totals))
	for _, t := range totals {
		width := 0
		if v := t.Value(m); max > 0 && v > 0 {
			width = int(v/max*100 + 0.5)
			if width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		rows = append(rows, totalRow{
			Name:     t.Key,
			Amount:   formatMoney(t.Amount),
			Quantity: t.Quantity,
			Width:    width,
		})
	}
	return rows
}

// handleHierarchy renders the month > category > subcategory drill-down.
func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	_, records, err := s.activeRecords(r)
	if err != nil {
		s.renderPartialError(w, r, "hierarchy", err)
		return
	}

	measure := core.ParseMeasure(r.URL.Query().Get("measure"))

	data := struct {
		Measure string
		Query   template.URL
		Root    *core.HierarchyNode
	}{
		Measure: string(measure),
		Query:   chartQuery(r.URL.RawQuery),
		Root:    core.Rollup(records),
	}

	if err := s.templates.render(w, "hierarchy.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "hierarchy.html")
		s.renderPartialError(w, r, "hierarchy", err)
	}
}

type productRow struct {
	Date        string
	Product     string
	Category    string
	Subcategory string
	Quantity    int64
	Amount      string
}

// handleTopProducts renders the best or worst sellers partial.
func (s *Server) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	_, records, err := s.activeRecords(r)
	if err != nil {
		s.renderPartialError(w, r, "top-products", err)
		return
	}

	cohort := reports.ParseCohort(r.URL.Query().Get("cohort"))
	subset := reports.CohortRecords(records, cohort)

	rows := make([]productRow, 0, len(subset))
	for _, rec := range subset {
		rows = append(rows, productRow{
			Date:        rec.Date.Format("2006-01-02"),
			Product:     rec.Product,
			Category:    rec.Category,
			Subcategory: rec.Subcategory,
			Quantity:    rec.Quantity,
			Amount:      formatMoney(rec.Amount),
		})
	}

	data := struct {
		Cohort string
		TopN   int
		Query  template.URL
		Rows   []productRow
	}{
		Cohort: string(cohort),
		TopN:   reports.TopN,
		Query:  chartQuery(r.URL.RawQuery),
		Rows:   rows,
	}

	if err := s.templates.render(w, "top_products.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "top_products.html")
		s.renderPartialError(w, r, "top-products", err)
	}
}

// handleChart streams one report chart as PNG. The kind comes from the path
// (/charts/category.png), filters and measure from the query string.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/charts/")
	name = strings.TrimSuffix(name, ".png")
	kind, err := reports.ParseKind(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ds, records, err := s.activeRecords(r)
	if err != nil {
		if errors.Is(err, dataset.ErrNoDataset) {
			http.Error(w, "no dataset loaded", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "Active dataset read error", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	measure := core.ParseMeasure(r.URL.Query().Get("measure"))
	cohort := reports.ParseCohort(r.URL.Query().Get("cohort"))

	key := ds.ID + "|" + name + "|" + r.URL.RawQuery
	png, found := s.chartCache.Get(key)
	if !found {
		png, err = reports.RenderChart(records, kind, measure, cohort)
		if err != nil {
			fields := applog.NewFields().
				WithRequestID(trace.GetRequestID(r.Context())).
				WithClientIP(extractClientIP(r))
			fields[applog.FieldChartKind] = name
			s.structured.LogError(r.Context(), "Chart render error", err, applog.ComponentHTTP, applog.OpRender, fields)
			http.Error(w, "no data to chart", http.StatusUnprocessableEntity)
			return
		}
		s.chartCache.Set(key, png)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handleUpload imports an uploaded spreadsheet and makes it the active
// dataset, replacing the previous one wholesale.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	if err := r.ParseMultipartForm(s.uploadMaxBytes); err != nil {
		slog.WarnContext(r.Context(), "Upload parse error", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Upload too large or malformed</div>`))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Missing file field</div>`))
		return
	}
	defer file.Close()

	records, summary, err := ingest.Parse(header.Filename, file)
	if err != nil {
		slog.WarnContext(r.Context(), "Dataset parse error", "error", err, "file_name", header.Filename)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Could not read spreadsheet: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	ds := core.Dataset{
		ID:         uuid.NewString(),
		Name:       sanitizeInput(header.Filename),
		UploadedAt: time.Now(),
		Records:    records,
	}
	if err := s.writer.SaveDataset(r.Context(), ds); err != nil {
		slog.ErrorContext(r.Context(), "Dataset save error", "error", err, "dataset_id", ds.ID)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Could not store dataset</div>`))
		return
	}

	s.invalidateCaches()

	if s.publisher != nil {
		if err := s.publisher.PublishDatasetImported(r.Context(), ds.ID, ds.Name, len(ds.Records)); err != nil {
			// Snapshot rendering is best effort, the upload itself succeeded.
			slog.WarnContext(r.Context(), "Dataset event publish failed", "error", err, "dataset_id", ds.ID)
		}
	}

	s.structured.LogDatasetImported(r.Context(), ds.ID, ds.Name, summary.Imported, summary.Skipped)

	w.Header().Set("HX-Trigger", `{"dataset:imported": {"id": "`+ds.ID+`"}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Imported ` + template.HTMLEscapeString(ds.Name) +
		`: ` + itoa(summary.Imported) + ` records (` + itoa(summary.Skipped) + ` skipped)</div>`))
}

// renderPartialError writes an inline error block so a failed partial does
// not blank the page.
func (s *Server) renderPartialError(w http.ResponseWriter, r *http.Request, section string, err error) {
	if errors.Is(err, dataset.ErrNoDataset) {
		_, _ = w.Write([]byte(`<div class="placeholder">No dataset loaded yet. Upload a spreadsheet to get started.</div>`))
		return
	}
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Partial render error", "error", err, "section", section)
	_, _ = w.Write([]byte(`<div class="error">Error loading ` + template.HTMLEscapeString(section) + `</div>`))
}

// chartQuery marks an already URL-encoded query string safe for reuse in
// chart image URLs, so the template engine does not re-escape its separators.
func chartQuery(rawQuery string) template.URL {
	return template.URL(rawQuery)
}

// measureQuery rebuilds the request query with the measure pinned, so the
// overview can link the chart set for each measure regardless of the filter
// form's selection.
func measureQuery(query url.Values, m core.Measure) template.URL {
	v := url.Values{}
	for k, vals := range query {
		v[k] = vals
	}
	v.Set("measure", string(m))
	return template.URL(v.Encode())
}

func distinct(records []core.Record, key func(core.Record) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range records {
		k := key(r)
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
