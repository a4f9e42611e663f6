package printing

import (
	"html"
	"strconv"
	"strings"

	"github.com/erp/docprint/internal/domain/printing"
)

// BuildFallbackHTML synthesizes the document markup directly from its fields.
// It has no dependency on template files so it still produces content when the
// themed template cannot be loaded, executed or mounted. The markup reuses the
// class names of the templates so both paths share one stylesheet.
func BuildFallbackHTML(doc printing.Document, theme Theme, opts printing.RenderOptions) string {
	v := NewDocumentView(doc, theme, opts)
	esc := html.EscapeString

	var b strings.Builder
	b.Grow(4096 + len(v.Lines)*256)

	b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8"><title>`)
	b.WriteString(esc(v.Title + " " + doc.Number))
	b.WriteString(`</title><style>`)
	b.WriteString(string(v.CSS))
	b.WriteString(`</style></head><body>`)

	b.WriteString(`<div class="doc`)
	if v.Receipt {
		b.WriteString(` receipt`)
	}
	b.WriteString(`" data-print-root data-strategy="fallback">`)

	// Header
	b.WriteString(`<div class="doc-header"><div>`)
	b.WriteString(`<h1 class="doc-title">` + esc(v.Title) + `</h1>`)
	b.WriteString(`<div><strong>` + esc(doc.Issuer.Name) + `</strong></div>`)
	writeOptional(&b, "Tax ID: ", doc.Issuer.TaxID)
	writeOptional(&b, "", doc.Issuer.Address)
	writeOptional(&b, "Tel: ", doc.Issuer.Phone)
	b.WriteString(`</div><div class="doc-meta">`)
	b.WriteString(`<div><strong>No.</strong> ` + esc(doc.Number) + `</div>`)
	b.WriteString(`<div><strong>Date</strong> ` + formatDate(doc.IssueDate) + `</div>`)
	if doc.DueDate != nil {
		b.WriteString(`<div><strong>Due</strong> ` + formatDate(doc.DueDate) + `</div>`)
	}
	if doc.Reference != "" {
		b.WriteString(`<div><strong>Ref.</strong> ` + esc(doc.Reference) + `</div>`)
	}
	b.WriteString(`</div></div>`)

	// Party
	name := doc.Counterparty.Name
	if strings.TrimSpace(name) == "" {
		name = "-"
	}
	b.WriteString(`<div class="doc-parties"><div class="doc-party"><h3>` + esc(v.CounterpartyLabel) + `</h3>`)
	b.WriteString(`<div><strong>` + esc(name) + `</strong>`)
	if doc.Counterparty.Code != "" {
		b.WriteString(` (` + esc(doc.Counterparty.Code) + `)`)
	}
	b.WriteString(`</div>`)
	writeOptional(&b, "Tax ID: ", doc.Counterparty.TaxID)
	writeOptional(&b, "", doc.Counterparty.Address)
	writeOptional(&b, "Tel: ", doc.Counterparty.Phone)
	b.WriteString(`</div></div>`)

	// Line items
	b.WriteString(`<table class="doc-items"><thead><tr><th>#</th><th>Description</th>` +
		`<th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr></thead><tbody>`)
	if len(v.Lines) == 0 {
		b.WriteString(`<tr><td class="doc-empty" colspan="5">No line items available</td></tr>`)
	}
	for _, l := range v.Lines {
		b.WriteString(`<tr><td>` + strconv.Itoa(l.No) + `</td>`)
		b.WriteString(`<td>` + esc(l.Item.Description) + `</td>`)
		b.WriteString(`<td class="num">` + formatQuantity(l.Item.Quantity))
		if l.Item.Unit != "" {
			b.WriteString(` ` + esc(l.Item.Unit))
		}
		b.WriteString(`</td>`)
		b.WriteString(`<td class="num">` + esc(formatMoney(l.Item.UnitPrice, v.Currency)) + `</td>`)
		b.WriteString(`<td class="num">` + esc(formatMoney(l.Total, v.Currency)) + `</td></tr>`)
	}
	b.WriteString(`</tbody></table>`)

	// Totals
	b.WriteString(`<table class="doc-totals">`)
	writeTotal(&b, "", "Subtotal", formatMoney(v.Totals.Subtotal, v.Currency))
	writeTotal(&b, "", "Discount", formatMoney(v.Totals.Discount, v.Currency))
	writeTotal(&b, "", "Tax", formatMoney(v.Totals.Tax, v.Currency))
	writeTotal(&b, "grand", "Total", formatMoney(v.Totals.Total, v.Currency))
	b.WriteString(`</table>`)

	if doc.Note != "" {
		b.WriteString(`<div class="doc-note">` + esc(doc.Note) + `</div>`)
	}
	if v.Theme.FooterText != "" {
		b.WriteString(`<div class="doc-footer">` + esc(v.Theme.FooterText) + `</div>`)
	}

	b.WriteString(`</div></body></html>`)
	return b.String()
}

func writeOptional(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(`<div>` + html.EscapeString(label+value) + `</div>`)
}

func writeTotal(b *strings.Builder, class, label, value string) {
	if class != "" {
		b.WriteString(`<tr class="` + class + `">`)
	} else {
		b.WriteString(`<tr>`)
	}
	b.WriteString(`<td>` + label + `</td><td class="num">` + html.EscapeString(value) + `</td></tr>`)
}
