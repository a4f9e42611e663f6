package printing

import (
	"bytes"
	"context"
	"html/template"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TemplateEngine renders documents through html/template with formatting helpers.
// Parsed templates are cached per name until the store is reloaded.
type TemplateEngine struct {
	store   *TemplateStore
	funcMap template.FuncMap

	mu     sync.RWMutex
	parsed map[string]*template.Template
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithTemplateFuncs adds or overrides template functions
func WithTemplateFuncs(funcs template.FuncMap) TemplateEngineOption {
	return func(e *TemplateEngine) {
		maps.Copy(e.funcMap, funcs)
	}
}

// NewTemplateEngine creates a new template engine backed by the given store
func NewTemplateEngine(store *TemplateStore, opts ...TemplateEngineOption) *TemplateEngine {
	e := &TemplateEngine{
		store:  store,
		parsed: make(map[string]*template.Template),
	}

	e.funcMap = template.FuncMap{
		// Money formatting
		"formatMoney":    formatMoney,
		"formatMoneyRaw": formatMoneyRaw,

		// Date formatting
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,

		// Number formatting
		"formatDecimal":  formatDecimal,
		"formatQuantity": formatQuantity,
		"formatPercent":  formatPercent,

		// String utilities
		"truncate": truncate,
		"upper":    strings.ToUpper,
		"title":    titleCase,
		"trim":     strings.TrimSpace,

		// Misc
		"default": defaultFunc,
		"safeURL": safeURL,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RenderDocument renders the template matching the paper size of opts
func (e *TemplateEngine) RenderDocument(ctx context.Context, doc printing.Document, theme Theme, opts printing.RenderOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := TemplateNameFor(opts.PaperSize)
	tmpl, err := e.template(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, NewDocumentView(doc, theme, opts)); err != nil {
		return "", printing.NewPrintError(printing.ErrCodeRenderingFailed, "failed to execute template "+name, err)
	}
	return buf.String(), nil
}

// RenderString renders a template string with the provided data
func (e *TemplateEngine) RenderString(name, content string, data any) (string, error) {
	if content == "" {
		return "", printing.NewPrintError(printing.ErrCodeRenderingFailed, "template content is empty", nil)
	}

	tmpl, err := template.New(name).Funcs(e.funcMap).Parse(content)
	if err != nil {
		return "", printing.NewPrintError(printing.ErrCodeRenderingFailed, "failed to parse template", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", printing.NewPrintError(printing.ErrCodeRenderingFailed, "failed to execute template", err)
	}
	return buf.String(), nil
}

// Reload re-reads the template store and drops parsed templates
func (e *TemplateEngine) Reload() error {
	if err := e.store.Reload(); err != nil {
		return err
	}
	e.mu.Lock()
	e.parsed = make(map[string]*template.Template)
	e.mu.Unlock()
	return nil
}

func (e *TemplateEngine) template(name string) (*template.Template, error) {
	e.mu.RLock()
	tmpl, ok := e.parsed[name]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	content, err := e.store.Content(name)
	if err != nil {
		return nil, printing.NewPrintError(printing.ErrCodeRenderingFailed, "template not found: "+name, err)
	}
	tmpl, err = template.New(name).Funcs(e.funcMap).Parse(content)
	if err != nil {
		return nil, printing.NewPrintError(printing.ErrCodeRenderingFailed, "failed to parse template "+name, err)
	}

	e.mu.Lock()
	e.parsed[name] = tmpl
	e.mu.Unlock()
	return tmpl, nil
}

// =============================================================================
// Template Functions - Money Formatting
// =============================================================================

var currencySymbols = map[string]string{
	"USD": "$",
	"DOP": "RD$",
	"EUR": "€",
	"GBP": "£",
	"CNY": "¥",
	"MXN": "MX$",
}

// formatMoney formats a decimal value with the currency symbol
// Example: (1234.5, "USD") -> "$1,234.50"
func formatMoney(v any, currency string) string {
	d := toDecimal(v)
	symbol, ok := currencySymbols[strings.ToUpper(currency)]
	if !ok {
		symbol = strings.ToUpper(currency) + " "
	}
	if d.IsNegative() {
		return "-" + symbol + formatMoneyRaw(d.Abs())
	}
	return symbol + formatMoneyRaw(d)
}

// formatMoneyRaw formats a decimal value as currency without symbol
// Example: 1234.56 -> "1,234.56"
func formatMoneyRaw(v any) string {
	d := toDecimal(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	parts := strings.Split(d.StringFixed(2), ".")
	intPart := parts[0]
	decPart := "00"
	if len(parts) > 1 {
		decPart = parts[1]
	}

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	return sign + result.String() + "." + decPart
}

// =============================================================================
// Template Functions - Date Formatting
// =============================================================================

// formatDate formats a time value as date string
// Example: time.Now() -> "2024-01-15"
func formatDate(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// formatDateTime formats a time value as datetime string
func formatDateTime(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

// =============================================================================
// Template Functions - Number Formatting
// =============================================================================

// formatDecimal formats a decimal with specified precision
func formatDecimal(v any, precision int) string {
	return toDecimal(v).StringFixed(int32(precision))
}

// formatQuantity drops trailing zeros from quantities ("2.50" -> "2.5", "3.00" -> "3")
func formatQuantity(v any) string {
	return toDecimal(v).String()
}

// formatPercent formats a percentage value
// Example: 18 -> "18%"
func formatPercent(v any) string {
	return toDecimal(v).String() + "%"
}

// =============================================================================
// Template Functions - String Utilities
// =============================================================================

// truncate truncates a string to max runes with optional suffix
func truncate(s string, max int, suffix ...string) string {
	suf := "..."
	if len(suffix) > 0 {
		suf = suffix[0]
	}
	runes := []rune(s)
	sufRunes := []rune(suf)
	if len(runes) <= max {
		return s
	}
	if max <= len(sufRunes) {
		return string(sufRunes[:max])
	}
	return string(runes[:max-len(sufRunes)]) + suf
}

// titleCase converts string to title case using proper Unicode handling
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

func defaultFunc(val, def any) any {
	if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
		return def
	}
	if val == nil {
		return def
	}
	return val
}

func safeURL(s string) template.URL {
	return template.URL(s)
}

// =============================================================================
// Helper Functions
// =============================================================================

// toDecimal converts various types to decimal.Decimal
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// toTime converts various types to time.Time
func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	case string:
		for _, f := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(f, val); err == nil {
				return t
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
