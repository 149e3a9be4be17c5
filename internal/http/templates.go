package http

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	appweb "salesdash/web"
)

// templateSet wraps the parsed embedded templates. A failed parse leaves the
// set empty and every render returns an error instead of panicking.
type templateSet struct {
	t *template.Template
}

func parseTemplates() *templateSet {
	funcs := template.FuncMap{
		"money": formatMoney,
	}
	t, err := template.New("").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
		return &templateSet{}
	}
	return &templateSet{t: t}
}

func (ts *templateSet) render(w io.Writer, name string, data any) error {
	if ts == nil || ts.t == nil {
		return fmt.Errorf("templates not loaded")
	}
	return ts.t.ExecuteTemplate(w, name, data)
}

func formatMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
